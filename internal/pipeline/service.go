// Package pipeline orchestrates the form-fill stages: extraction, grouping,
// classification, value resolution and rendering. Stages for one document run
// strictly in sequence; independent documents may run concurrently because
// the service holds no mutable state beyond its read-only configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/formfill/formfill/internal/classify"
	"github.com/formfill/formfill/internal/descriptions"
	"github.com/formfill/formfill/internal/document"
	"github.com/formfill/formfill/internal/extract"
	"github.com/formfill/formfill/internal/group"
	"github.com/formfill/formfill/internal/render"
	"github.com/formfill/formfill/internal/resolve"
)

// FetchOptions narrows a user-context fetch.
type FetchOptions struct {
	// HouseholdMemberID limits the household snapshot to one member.
	HouseholdMemberID string
}

// ContextFetcher loads the read-only user context a resolution pass works
// from. Implementations live with the caller; the pipeline never writes
// through this interface.
type ContextFetcher interface {
	Fetch(ctx context.Context, userID string, opts FetchOptions) (document.UserContext, error)
}

// Options configures a Service. Zero values fall back to stage defaults.
type Options struct {
	MaxFileSize       int64
	MinWordConfidence float64
	FontSizePt        float64

	// Recognizer handles image and image-only-PDF inputs; nil disables the
	// recognition path.
	Recognizer extract.Recognizer
	// Classifier is the semantic classification provider; nil disables
	// field detection.
	Classifier classify.Provider

	ContextFetcher ContextFetcher
	ProfileSaver   resolve.ProfileSaver

	// RecognitionMode and ClassifierModel are reported by ServerInfo.
	RecognitionMode string
	ClassifierModel string
}

// Service wires the pipeline stages together and exposes one method per
// operation.
type Service struct {
	extractor  *extract.Extractor
	grouper    *group.Grouper
	classifier *classify.Classifier
	resolver   *resolve.Engine
	renderer   *render.Renderer

	contextFetcher ContextFetcher
	profileSaver   resolve.ProfileSaver

	maxFileSize     int64
	recognitionMode string
	classifierModel string
}

// NewService creates a Service with all stages constructed from opts.
func NewService(opts Options) *Service {
	extractCfg := extract.Config{
		MaxFileSize:       opts.MaxFileSize,
		MinWordConfidence: opts.MinWordConfidence,
	}
	if extractCfg.MaxFileSize <= 0 {
		extractCfg.MaxFileSize = extract.DefaultConfig().MaxFileSize
	}

	s := &Service{
		extractor: extract.NewExtractor(opts.Recognizer, extractCfg),
		grouper:   group.NewGrouper(group.DefaultConfig()),
		resolver:  resolve.NewEngine(resolve.DefaultTables(), resolve.DefaultWeights()),
		renderer:  render.NewRenderer(render.Config{FontSizePt: opts.FontSizePt}),

		contextFetcher:  opts.ContextFetcher,
		profileSaver:    opts.ProfileSaver,
		maxFileSize:     extractCfg.MaxFileSize,
		recognitionMode: opts.RecognitionMode,
		classifierModel: opts.ClassifierModel,
	}
	if opts.Classifier != nil {
		s.classifier = classify.NewClassifier(opts.Classifier, classify.DefaultConfig())
	}
	return s
}

// FormExtractCandidates returns the raw positioned candidates of one
// document, before grouping or classification.
func (s *Service) FormExtractCandidates(ctx context.Context, req FormExtractCandidatesRequest) (*FormExtractCandidatesResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := s.extractor.Extract(ctx, req.Document, req.MimeType)
	if err != nil {
		return nil, err
	}

	return &FormExtractCandidatesResult{
		Candidates: res.Candidates,
		Pages:      res.Pages,
		Sources:    res.Sources,
		Provider:   res.Provider,
	}, nil
}

// FormDetectFields runs extraction, grouping and classification for one
// document and returns its fillable fields.
func (s *Service) FormDetectFields(ctx context.Context, req FormDetectFieldsRequest) (*FormDetectFieldsResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.classifier == nil {
		return nil, document.NewError("classify", document.KindProviderFailure,
			errors.New("no classification provider configured"))
	}

	extracted, err := s.extractor.Extract(ctx, req.Document, req.MimeType)
	if err != nil {
		return nil, err
	}

	grouped := s.grouper.Group(extracted.Candidates)

	fields, err := s.classifier.Classify(ctx, grouped)
	if err != nil {
		return nil, err
	}

	return &FormDetectFieldsResult{
		Fields:         fields,
		Pages:          extracted.Pages,
		Sources:        extracted.Sources,
		CandidateCount: len(grouped),
	}, nil
}

// FormAutofill resolves one value mapping per field from the user's stored
// context. The context comes inline with the request or is fetched by user
// ID.
func (s *Service) FormAutofill(ctx context.Context, req FormAutofillRequest) (*FormAutofillResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	snapshot, err := s.userContext(ctx, req.Context, req.UserID, req.HouseholdMemberID)
	if err != nil {
		return nil, err
	}

	mappings := s.resolver.Resolve(req.Fields, snapshot)

	return &FormAutofillResult{
		Mappings: mappings,
		Resolved: countResolved(mappings),
	}, nil
}

// FormApplyEdit overrides one field's value with a manual edit at full
// confidence, optionally writing it back to the profile.
func (s *Service) FormApplyEdit(ctx context.Context, req FormApplyEditRequest) (*FormApplyEditResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	mapping, err := s.resolver.ApplyEdit(ctx, s.profileSaver, req.UserID, req.Field, req.Value, req.SaveToProfile)
	if err != nil {
		return nil, document.NewError("resolve", document.KindProviderFailure, err)
	}

	saved := req.SaveToProfile && req.Field.SaveToProfile && s.profileSaver != nil && req.Value != ""
	result := &FormApplyEditResult{
		Mapping:        mapping,
		SavedToProfile: saved,
	}
	if saved {
		result.ProfileKey = s.resolver.WriteBackKey(req.Field.Key)
	}
	return result, nil
}

// FormRender draws mapped values onto the original document and returns the
// filled PDF.
func (s *Service) FormRender(ctx context.Context, req FormRenderRequest) (*FormRenderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := s.renderer.Render(ctx, document.RenderRequest{
		Document:       req.Document,
		MimeType:       req.MimeType,
		Fields:         req.Fields,
		Mappings:       req.Mappings,
		SignatureImage: req.SignatureImage,
		DateOverrides:  req.DateOverrides,
	})
	if err != nil {
		return nil, err
	}

	return &FormRenderResult{
		Document:       res.Document,
		MimeType:       res.MimeType,
		Pages:          res.Pages,
		FieldsRendered: res.FieldsRendered,
		FieldsSkipped:  res.FieldsSkipped,
	}, nil
}

// FormProcess runs the whole pipeline for one document: detect fields,
// resolve values, render the filled result.
func (s *Service) FormProcess(ctx context.Context, req FormProcessRequest) (*FormProcessResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	detected, err := s.FormDetectFields(ctx, FormDetectFieldsRequest{
		Document: req.Document,
		MimeType: req.MimeType,
	})
	if err != nil {
		return nil, err
	}

	snapshot, err := s.userContext(ctx, req.Context, req.UserID, req.HouseholdMemberID)
	if err != nil {
		return nil, err
	}

	mappings := s.resolver.Resolve(detected.Fields, snapshot)

	rendered, err := s.renderer.Render(ctx, document.RenderRequest{
		Document:       req.Document,
		MimeType:       req.MimeType,
		Fields:         detected.Fields,
		Mappings:       mappings,
		SignatureImage: req.SignatureImage,
		DateOverrides:  req.DateOverrides,
	})
	if err != nil {
		return nil, err
	}

	return &FormProcessResult{
		Fields:         detected.Fields,
		Mappings:       mappings,
		Document:       rendered.Document,
		MimeType:       rendered.MimeType,
		Pages:          rendered.Pages,
		Sources:        detected.Sources,
		Resolved:       countResolved(mappings),
		FieldsRendered: rendered.FieldsRendered,
		FieldsSkipped:  rendered.FieldsSkipped,
	}, nil
}

// userContext returns the inline context when present, fetches by user ID
// when a fetcher is configured, and otherwise yields an empty snapshot.
func (s *Service) userContext(ctx context.Context, inline *document.UserContext, userID, householdMemberID string) (document.UserContext, error) {
	if inline != nil {
		return *inline, nil
	}
	if userID == "" || s.contextFetcher == nil {
		return document.UserContext{}, nil
	}

	fetched, err := s.contextFetcher.Fetch(ctx, userID, FetchOptions{HouseholdMemberID: householdMemberID})
	if err != nil {
		return document.UserContext{}, document.NewError("resolve", document.KindProviderFailure,
			fmt.Errorf("failed to fetch user context: %w", err))
	}
	return fetched, nil
}

func countResolved(mappings []document.FieldMapping) int {
	n := 0
	for _, m := range mappings {
		if m.Value != "" {
			n++
		}
	}
	return n
}

// ServerInfo describes the server's capabilities and tools.
func (s *Service) ServerInfo(req FormServerInfoRequest, serverName, version string) (*FormServerInfoResult, error) {
	availableTools := []ToolInfo{
		{
			Name:        "form_detect_fields",
			Description: descriptions.GetToolDescription("form_detect_fields"),
			Usage: "Use this tool first on any form. It extracts positioned text and native form " +
				"fields, falls back to text recognition for scans, and classifies every field " +
				"with a semantic key and type.",
			Parameters: "document (required): base64 document bytes, mime_type (required): application/pdf or a supported image type",
		},
		{
			Name:        "form_autofill",
			Description: descriptions.GetToolDescription("form_autofill"),
			Usage: "Use this tool after form_detect_fields. Values come from the profile, saved " +
				"dates and household members; every field gets exactly one mapping with a " +
				"confidence and provenance.",
			Parameters: "fields (required): output of form_detect_fields, user_id or context (one required)",
		},
		{
			Name:        "form_render",
			Description: descriptions.GetToolDescription("form_render"),
			Usage: "Use this tool last. Text, checks, dates and the signature image are drawn at " +
				"each field's coordinates; fields that cannot be drawn are skipped without " +
				"failing the document.",
			Parameters: "document, mime_type, fields, mappings (required); signature_image, date_overrides (optional)",
		},
		{
			Name:        "form_process",
			Description: descriptions.GetToolDescription("form_process"),
			Usage:       "Use this tool for the common case: one document in, one filled document out.",
			Parameters:  "document, mime_type (required); user_id, context, signature_image, date_overrides (optional)",
		},
		{
			Name:        "form_server_info",
			Description: descriptions.GetToolDescription("form_server_info"),
			Usage:       "Use this tool to discover limits, configured providers and the supported input types.",
			Parameters:  "none",
		},
	}

	usageGuidance := `This server fills form documents:

1. form_detect_fields finds and labels the fillable regions of a PDF or image
2. form_autofill proposes a value for every field from the user's stored context
3. form_render writes the values back onto the document at their coordinates
4. form_process chains all three for the common case

Tips:
- PDFs with a text layer or native form fields never need a recognition call
- Scanned or photographed forms require a configured recognition provider
- Review low-confidence mappings before rendering; manual edits always win
- The rendered output is always a PDF, regardless of the input type`

	return &FormServerInfoResult{
		ServerName:         serverName,
		Version:            version,
		MaxFileSize:        s.maxFileSize,
		RecognitionMode:    s.recognitionMode,
		ClassifierModel:    s.classifierModel,
		SupportedMimeTypes: supportedMimeTypes(),
		AvailableTools:     availableTools,
		UsageGuidance:      usageGuidance,
	}, nil
}

func supportedMimeTypes() []string {
	return []string{
		document.MimeTypePDF,
		document.MimeTypePNG,
		document.MimeTypeJPEG,
		document.MimeTypeWebP,
		document.MimeTypeTIFF,
	}
}
