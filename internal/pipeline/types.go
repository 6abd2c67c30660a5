package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/formfill/formfill/internal/document"
)

// Request Types

// FormExtractCandidatesRequest asks for the raw positioned candidates of one
// document, before grouping or classification.
type FormExtractCandidatesRequest struct {
	Document []byte `json:"document"`
	MimeType string `json:"mime_type"`
}

// Validate checks the request shape before any work happens.
func (r FormExtractCandidatesRequest) Validate() error {
	return validateDocument("extract", r.Document, r.MimeType)
}

// FormDetectFieldsRequest asks for the classified fillable fields of one
// document: extraction, grouping and classification in sequence.
type FormDetectFieldsRequest struct {
	Document []byte `json:"document"`
	MimeType string `json:"mime_type"`
}

// Validate checks the request shape before any work happens.
func (r FormDetectFieldsRequest) Validate() error {
	return validateDocument("extract", r.Document, r.MimeType)
}

// FormAutofillRequest asks for one value mapping per classified field. The
// user context may be supplied inline or fetched by user ID through the
// configured context fetcher.
type FormAutofillRequest struct {
	Fields            []document.ClassifiedField `json:"fields"`
	UserID            string                     `json:"user_id,omitempty"`
	HouseholdMemberID string                     `json:"household_member_id,omitempty"`
	Context           *document.UserContext      `json:"context,omitempty"`
}

// Validate checks the request shape before any work happens.
func (r FormAutofillRequest) Validate() error {
	for i, f := range r.Fields {
		if f.ID == "" {
			return validationError("resolve", fmt.Errorf("field %d has no id", i))
		}
	}
	return nil
}

// FormApplyEditRequest overrides one field's value with a manual edit,
// optionally persisting it back to the user's profile.
type FormApplyEditRequest struct {
	Field         document.ClassifiedField `json:"field"`
	Value         string                   `json:"value"`
	UserID        string                   `json:"user_id,omitempty"`
	SaveToProfile bool                     `json:"save_to_profile"`
}

// Validate checks the request shape before any work happens.
func (r FormApplyEditRequest) Validate() error {
	if r.Field.ID == "" {
		return validationError("resolve", errors.New("field id is required"))
	}
	if r.SaveToProfile && strings.TrimSpace(r.UserID) == "" {
		return validationError("resolve", errors.New("user_id is required when save_to_profile is set"))
	}
	return nil
}

// FormRenderRequest asks for mapped values drawn onto the original document.
type FormRenderRequest struct {
	Document       []byte                     `json:"document"`
	MimeType       string                     `json:"mime_type"`
	Fields         []document.ClassifiedField `json:"fields"`
	Mappings       []document.FieldMapping    `json:"mappings"`
	SignatureImage []byte                     `json:"signature_image,omitempty"`
	DateOverrides  map[string]string          `json:"date_overrides,omitempty"`
}

// Validate checks the request shape before any work happens.
func (r FormRenderRequest) Validate() error {
	return validateDocument("render", r.Document, r.MimeType)
}

// FormProcessRequest runs the whole pipeline for one document: detect fields,
// resolve values from the user's context, render the filled result.
type FormProcessRequest struct {
	Document          []byte                `json:"document"`
	MimeType          string                `json:"mime_type"`
	UserID            string                `json:"user_id,omitempty"`
	HouseholdMemberID string                `json:"household_member_id,omitempty"`
	Context           *document.UserContext `json:"context,omitempty"`
	SignatureImage    []byte                `json:"signature_image,omitempty"`
	DateOverrides     map[string]string     `json:"date_overrides,omitempty"`
}

// Validate checks the request shape before any work happens.
func (r FormProcessRequest) Validate() error {
	return validateDocument("extract", r.Document, r.MimeType)
}

// FormServerInfoRequest asks for server capabilities and usage guidance.
type FormServerInfoRequest struct{}

// Response Types

// FormExtractCandidatesResult carries the raw candidates of one document.
type FormExtractCandidatesResult struct {
	Candidates []document.Candidate `json:"candidates"`
	Pages      int                  `json:"pages"`
	Sources    []string             `json:"sources"`
	Provider   string               `json:"provider,omitempty"`
}

// FormDetectFieldsResult carries the classified fields of one document.
type FormDetectFieldsResult struct {
	Fields         []document.ClassifiedField `json:"fields"`
	Pages          int                        `json:"pages"`
	Sources        []string                   `json:"sources"`
	CandidateCount int                        `json:"candidate_count"`
}

// FormAutofillResult carries exactly one mapping per submitted field.
type FormAutofillResult struct {
	Mappings []document.FieldMapping `json:"mappings"`
	Resolved int                     `json:"resolved"`
}

// FormApplyEditResult carries the manual mapping and whether it was written
// back to the profile.
type FormApplyEditResult struct {
	Mapping        document.FieldMapping `json:"mapping"`
	SavedToProfile bool                  `json:"saved_to_profile"`
	ProfileKey     string                `json:"profile_key,omitempty"`
}

// FormRenderResult carries the filled document.
type FormRenderResult struct {
	Document       []byte `json:"document"`
	MimeType       string `json:"mime_type"`
	Pages          int    `json:"pages"`
	FieldsRendered int    `json:"fields_rendered"`
	FieldsSkipped  int    `json:"fields_skipped"`
}

// FormProcessResult carries everything one full pipeline run produced.
type FormProcessResult struct {
	Fields         []document.ClassifiedField `json:"fields"`
	Mappings       []document.FieldMapping    `json:"mappings"`
	Document       []byte                     `json:"document"`
	MimeType       string                     `json:"mime_type"`
	Pages          int                        `json:"pages"`
	Sources        []string                   `json:"sources"`
	Resolved       int                        `json:"resolved"`
	FieldsRendered int                        `json:"fields_rendered"`
	FieldsSkipped  int                        `json:"fields_skipped"`
}

// FormServerInfoResult describes the server's capabilities.
type FormServerInfoResult struct {
	ServerName         string     `json:"server_name"`
	Version            string     `json:"version"`
	MaxFileSize        int64      `json:"max_file_size"`
	RecognitionMode    string     `json:"recognition_mode"`
	ClassifierModel    string     `json:"classifier_model,omitempty"`
	SupportedMimeTypes []string   `json:"supported_mime_types"`
	AvailableTools     []ToolInfo `json:"available_tools"`
	UsageGuidance      string     `json:"usage_guidance"`
}

// ToolInfo represents information about an available tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Usage       string `json:"usage"`
	Parameters  string `json:"parameters"`
}

func validateDocument(stage string, data []byte, mimeType string) error {
	if len(data) == 0 {
		return validationError(stage, errors.New("document must not be empty"))
	}
	if strings.TrimSpace(mimeType) == "" {
		return validationError(stage, errors.New("mime_type is required"))
	}
	if !document.IsPDFMimeType(mimeType) && !document.IsImageMimeType(mimeType) {
		return validationError(stage, fmt.Errorf("%w: %q", document.ErrUnsupportedMimeType, mimeType))
	}
	return nil
}

func validationError(stage string, err error) error {
	return document.NewError(stage, document.KindValidationFailure, err)
}
