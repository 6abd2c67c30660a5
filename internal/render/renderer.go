// Package render draws resolved field values back onto the original document.
// Native PDFs get overlay content streams appended to their existing pages;
// single raster images are first promoted to a one-page PDF sized to the
// image. Drawing failures are local: a field that cannot be drawn is skipped
// and logged while the rest of the document still renders.
package render

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/formfill/formfill/internal/document"
)

const (
	defaultFontSizePt = 11.0
	defaultMarginPt   = 2.0
)

// Config holds rendering parameters.
type Config struct {
	// FontSizePt is the preferred text size; fields shorter than it shrink
	// the text to 70% of the field height.
	FontSizePt float64
	// MarginPt pads text away from the field's left edge.
	MarginPt float64
}

// DefaultConfig returns the default rendering configuration.
func DefaultConfig() Config {
	return Config{
		FontSizePt: defaultFontSizePt,
		MarginPt:   defaultMarginPt,
	}
}

// Renderer produces filled documents from render requests.
type Renderer struct {
	config Config
}

// NewRenderer creates a renderer, filling in defaults for zero config values.
func NewRenderer(config Config) *Renderer {
	if config.FontSizePt <= 0 {
		config.FontSizePt = defaultFontSizePt
	}
	if config.MarginPt <= 0 {
		config.MarginPt = defaultMarginPt
	}
	return &Renderer{config: config}
}

// Result is one rendered document plus drawing statistics.
type Result struct {
	Document       []byte        `json:"document"`
	MimeType       string        `json:"mime_type"`
	Pages          int           `json:"pages"`
	FieldsRendered int           `json:"fields_rendered"`
	FieldsSkipped  int           `json:"fields_skipped"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Render overlays mapped values onto the request's document and returns the
// filled PDF. Values are drawn in three passes: one per mapping, then the
// signature image into signature fields without an explicit value, then date
// overrides into date fields.
func (r *Renderer) Render(ctx context.Context, req document.RenderRequest) (Result, error) {
	start := time.Now()

	if len(req.Document) == 0 {
		return Result{}, document.NewError("render", document.KindUnsupportedInput, document.ErrEmptyDocument)
	}

	data := req.Document
	switch {
	case document.IsPDFMimeType(req.MimeType):
	case document.IsImageMimeType(req.MimeType):
		promoted, err := promoteImage(req.Document)
		if err != nil {
			return Result{}, document.NewError("render", document.KindRenderFailure, err)
		}
		data = promoted
	default:
		return Result{}, document.NewError("render", document.KindUnsupportedInput,
			fmt.Errorf("%w: %q", document.ErrUnsupportedMimeType, req.MimeType))
	}

	var sig *signatureImage
	if len(req.SignatureImage) > 0 {
		decoded, err := decodeSignature(req.SignatureImage)
		if err != nil {
			log.Printf("[render] %v, signature fields will be skipped", err)
		} else {
			sig = decoded
		}
	}

	ops, planSkipped := planOps(req, sig, len(req.SignatureImage) > 0)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	out, pages, drawn, drawSkipped, err := overlayDocument(data, ops, r.config)
	if err != nil {
		return Result{}, document.NewError("render", document.KindRenderFailure, err)
	}

	return Result{
		Document:       out,
		MimeType:       document.MimeTypePDF,
		Pages:          pages,
		FieldsRendered: drawn,
		FieldsSkipped:  planSkipped + drawSkipped,
		Elapsed:        time.Since(start),
	}, nil
}

// planOps turns mappings, the signature image and date overrides into draw
// ops. Returns the ops plus the count of fields skipped during planning.
// sigProvided distinguishes an undecodable signature image from none at all.
func planOps(req document.RenderRequest, sig *signatureImage, sigProvided bool) ([]drawOp, int) {
	fieldsByID := make(map[string]document.ClassifiedField, len(req.Fields))
	for _, f := range req.Fields {
		fieldsByID[f.ID] = f
	}

	var ops []drawOp
	skipped := 0
	valued := make(map[string]bool)

	for _, m := range req.Mappings {
		value := strings.TrimSpace(m.Value)
		if value == "" {
			continue
		}
		field, ok := fieldsByID[m.FieldID]
		if !ok {
			log.Printf("[render] mapping references unknown field %q, skipping", m.FieldID)
			skipped++
			continue
		}
		valued[field.ID] = true

		switch field.Type {
		case document.FieldTypeCheckbox:
			if isTruthyValue(value) {
				ops = append(ops, drawOp{kind: opCheck, box: field.BBox})
			}
		case document.FieldTypeSignature:
			if sig == nil {
				log.Printf("[render] field %q needs a signature image, skipping", field.Key)
				skipped++
				continue
			}
			ops = append(ops, drawOp{kind: opImage, box: field.BBox, img: sig})
		case document.FieldTypeDate:
			// An override wins over the mapped value; drawn below.
			if overrideFor(req.DateOverrides, field) == "" {
				ops = append(ops, drawOp{kind: opText, box: field.BBox, text: value})
			}
		default:
			ops = append(ops, drawOp{kind: opText, box: field.BBox, text: value})
		}
	}

	// Signature fields the mappings never valued still receive the image.
	if sigProvided {
		for _, f := range req.Fields {
			if f.Type != document.FieldTypeSignature || valued[f.ID] {
				continue
			}
			if sig == nil {
				skipped++
				continue
			}
			ops = append(ops, drawOp{kind: opImage, box: f.BBox, img: sig})
		}
	}

	for _, f := range req.Fields {
		if f.Type != document.FieldTypeDate {
			continue
		}
		if v := overrideFor(req.DateOverrides, f); v != "" {
			ops = append(ops, drawOp{kind: opText, box: f.BBox, text: v})
		}
	}

	return ops, skipped
}

// overrideFor looks up a date override by field ID, falling back to the
// field key.
func overrideFor(overrides map[string]string, field document.ClassifiedField) string {
	if len(overrides) == 0 {
		return ""
	}
	if v := strings.TrimSpace(overrides[field.ID]); v != "" {
		return v
	}
	return strings.TrimSpace(overrides[field.Key])
}
