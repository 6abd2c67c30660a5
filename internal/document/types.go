package document

import (
	"math"
	"strings"
	"time"
)

// FieldType identifies the semantic type of a classified form field
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeRadio     FieldType = "radio"
	FieldTypeSelect    FieldType = "select"
	FieldTypeDate      FieldType = "date"
	FieldTypeSignature FieldType = "signature"
	FieldTypeNumber    FieldType = "number"
	FieldTypeEmail     FieldType = "email"
	FieldTypePhone     FieldType = "phone"
	FieldTypeAddress   FieldType = "address"
)

// NormalizeFieldType maps a service-reported type string onto the allowed set.
// Anything unrecognized becomes text.
func NormalizeFieldType(s string) FieldType {
	switch FieldType(strings.ToLower(strings.TrimSpace(s))) {
	case FieldTypeText, FieldTypeCheckbox, FieldTypeRadio, FieldTypeSelect,
		FieldTypeDate, FieldTypeSignature, FieldTypeNumber, FieldTypeEmail,
		FieldTypePhone, FieldTypeAddress:
		return FieldType(strings.ToLower(strings.TrimSpace(s)))
	default:
		return FieldTypeText
	}
}

// MappingSource identifies which stored context produced a field's value
type MappingSource string

const (
	SourceProfile         MappingSource = "profile"
	SourceHouseholdMember MappingSource = "household_member"
	SourceSavedDate       MappingSource = "saved_date"
	SourceManual          MappingSource = "manual"
)

// DateLayout is the locale-neutral layout (MM/DD/YYYY) used for every date
// value placed into a mapping, regardless of which strategy produced it.
const DateLayout = "01/02/2006"

// Mime types accepted by the pipeline
const (
	MimeTypePDF  = "application/pdf"
	MimeTypePNG  = "image/png"
	MimeTypeJPEG = "image/jpeg"
	MimeTypeWebP = "image/webp"
	MimeTypeTIFF = "image/tiff"
)

// IsPDFMimeType reports whether the declared mime type is a PDF
func IsPDFMimeType(mime string) bool {
	return strings.EqualFold(strings.TrimSpace(mime), MimeTypePDF)
}

// IsImageMimeType reports whether the declared mime type is a supported raster format
func IsImageMimeType(mime string) bool {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case MimeTypePNG, MimeTypeJPEG, "image/jpg", MimeTypeWebP, MimeTypeTIFF:
		return true
	default:
		return false
	}
}

// BoundingBox locates a candidate or field on a page. Coordinates are
// normalized to the page dimensions with origin at the top-left corner, so
// x, y, width and height are all fractions in [0,1].
type BoundingBox struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Clamp forces the box into the unit square. Recognition providers report
// coordinates slightly out of range often enough that downstream stages must
// never see unclamped geometry.
func (b BoundingBox) Clamp() BoundingBox {
	if b.Page < 1 {
		b.Page = 1
	}
	b.X = clamp01(b.X)
	b.Y = clamp01(b.Y)
	b.Width = clamp01(b.Width)
	b.Height = clamp01(b.Height)
	if b.X+b.Width > 1 {
		b.Width = 1 - b.X
	}
	if b.Y+b.Height > 1 {
		b.Height = 1 - b.Y
	}
	return b
}

// CenterX returns the horizontal center of the box
func (b BoundingBox) CenterX() float64 {
	return b.X + b.Width/2
}

// CenterY returns the vertical center of the box
func (b BoundingBox) CenterY() float64 {
	return b.Y + b.Height/2
}

// CenterDistance returns the Euclidean distance between the centers of two
// boxes in normalized page units
func (b BoundingBox) CenterDistance(o BoundingBox) float64 {
	dx := b.CenterX() - o.CenterX()
	dy := b.CenterY() - o.CenterY()
	return math.Sqrt(dx*dx + dy*dy)
}

// Union returns the smallest box covering both b and o. The page is taken
// from b; callers only union boxes on the same page.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	x0 := math.Min(b.X, o.X)
	y0 := math.Min(b.Y, o.Y)
	x1 := math.Max(b.X+b.Width, o.X+o.Width)
	y1 := math.Max(b.Y+b.Height, o.Y+o.Height)
	return BoundingBox{
		Page:   b.Page,
		X:      x0,
		Y:      y0,
		Width:  x1 - x0,
		Height: y1 - y0,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Candidate represents a single positioned text or field detection before
// semantic classification. NearbyText is filled in by the grouper and holds
// the raw text of spatially close candidates on the same page; the value is
// immutable afterwards.
type Candidate struct {
	ID         string      `json:"id"`
	RawText    string      `json:"raw_text"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
	NearbyText []string    `json:"nearby_text,omitempty"`
}

// ClassifiedField represents a candidate enriched with a semantic key, label,
// type and fill metadata. Keys are snake-case and unique within a document.
type ClassifiedField struct {
	ID            string      `json:"id"`
	Key           string      `json:"key"`
	Label         string      `json:"label"`
	Type          FieldType   `json:"type"`
	Required      bool        `json:"required"`
	Confidence    float64     `json:"confidence"`
	BBox          BoundingBox `json:"bbox"`
	RawText       string      `json:"raw_text"`
	Suggestions   []string    `json:"suggestions,omitempty"`
	SaveToProfile bool        `json:"save_to_profile"`
}

// FieldMapping represents the resolved value and provenance for one
// classified field. An empty value means the field is unresolved.
type FieldMapping struct {
	FieldID    string        `json:"field_id"`
	Value      string        `json:"value"`
	Source     MappingSource `json:"source"`
	SourceID   string        `json:"source_id,omitempty"`
	Confidence float64       `json:"confidence"`
}

// Address represents the structured address stored on a profile
type Address struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	ZIP    string `json:"zip,omitempty"`
}

// Profile represents a user's stored fill data: scalar identity fields, a
// structured address, and free-form custom entries keyed by normalized field key
type Profile struct {
	FullName         string            `json:"full_name,omitempty"`
	Email            string            `json:"email,omitempty"`
	Phone            string            `json:"phone,omitempty"`
	DateOfBirth      time.Time         `json:"date_of_birth,omitempty"`
	SSN              string            `json:"ssn,omitempty"`
	EmergencyContact string            `json:"emergency_contact,omitempty"`
	Address          Address           `json:"address,omitempty"`
	Custom           map[string]string `json:"custom,omitempty"`
}

// HouseholdMember represents a dependent or relative attached to a profile
type HouseholdMember struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	DateOfBirth  time.Time         `json:"date_of_birth,omitempty"`
	Relationship string            `json:"relationship"`
	Custom       map[string]string `json:"custom,omitempty"`
}

// Age returns the member's age in whole years at the given instant, or -1
// when no date of birth is stored
func (m HouseholdMember) Age(now time.Time) int {
	if m.DateOfBirth.IsZero() {
		return -1
	}
	years := now.Year() - m.DateOfBirth.Year()
	if now.YearDay() < m.DateOfBirth.YearDay() {
		years--
	}
	if years < 0 {
		return -1
	}
	return years
}

// SavedDate represents a labeled date the user has stored for reuse
type SavedDate struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	Value time.Time `json:"value"`
}

// UserContext is the read-only snapshot of stored data available to one
// resolution pass. It is fetched once per pass and never written by the
// pipeline itself.
type UserContext struct {
	Profile          *Profile          `json:"profile,omitempty"`
	HouseholdMembers []HouseholdMember `json:"household_members,omitempty"`
	SavedDates       []SavedDate       `json:"saved_dates,omitempty"`
}

// RenderRequest carries everything needed to produce one filled document.
// DateOverrides is keyed by field ID with a fallback lookup by field key.
type RenderRequest struct {
	Document       []byte            `json:"document"`
	MimeType       string            `json:"mime_type"`
	Fields         []ClassifiedField `json:"fields"`
	Mappings       []FieldMapping    `json:"mappings"`
	SignatureImage []byte            `json:"signature_image,omitempty"`
	DateOverrides  map[string]string `json:"date_overrides,omitempty"`
}
