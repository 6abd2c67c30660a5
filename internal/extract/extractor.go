// Package extract turns raw document bytes into positioned text candidates.
// PDFs are read directly: text-layer runs and interactive form fields become
// candidates without any recognition call, and image-only PDFs fall back to
// recognizing their embedded page scans. Raster images go straight to the
// text-recognition cascade.
package extract

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formfill/formfill/internal/document"
	"github.com/formfill/formfill/internal/recognize"
)

const (
	textLayerConfidence = 0.95
	acroFieldConfidence = 1.0

	defaultMinWordConfidence = 0.30
	defaultMaxFileSize       = 100 * 1024 * 1024 // 100MB
)

// Candidate sources reported on extraction results.
const (
	SourceTextLayer   = "text_layer"
	SourceAcroForm    = "acroform"
	SourceRecognition = "recognition"
)

// Recognizer is the text-recognition entry point the extractor depends on.
// *recognize.Cascade satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (recognize.Result, error)
}

// Config carries the extractor's operating limits.
type Config struct {
	// MaxFileSize rejects documents larger than this many bytes.
	MaxFileSize int64
	// MinWordConfidence drops recognized words below this confidence
	// (0 to 1 scale).
	MinWordConfidence float64
}

// DefaultConfig returns the standard limits.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:       defaultMaxFileSize,
		MinWordConfidence: defaultMinWordConfidence,
	}
}

// Extractor converts document bytes into candidates.
type Extractor struct {
	recognizer Recognizer
	cfg        Config
}

// NewExtractor creates an Extractor. The recognizer may be nil when only
// text-layer PDFs need to be handled.
func NewExtractor(recognizer Recognizer, cfg Config) *Extractor {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.MinWordConfidence <= 0 {
		cfg.MinWordConfidence = defaultMinWordConfidence
	}
	return &Extractor{recognizer: recognizer, cfg: cfg}
}

// Result is the outcome of one extraction pass.
type Result struct {
	Candidates []document.Candidate `json:"candidates"`
	Pages      int                  `json:"pages"`
	// Sources lists which extraction paths contributed candidates.
	Sources []string `json:"sources,omitempty"`
	// Provider names the recognition provider when one was used.
	Provider string        `json:"provider,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Extract branches on the declared mime type and produces the document's raw
// candidates. Failure results still record the elapsed time and carry an
// empty, non-nil candidate list.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (Result, error) {
	start := time.Now()

	if len(data) == 0 {
		return failureResult(start), document.NewError("extract", document.KindUnsupportedInput, document.ErrEmptyDocument)
	}
	if int64(len(data)) > e.cfg.MaxFileSize {
		return failureResult(start), document.NewError("extract", document.KindValidationFailure,
			fmt.Errorf("%w: %d bytes exceeds limit %d", document.ErrDocumentTooLarge, len(data), e.cfg.MaxFileSize))
	}

	switch {
	case document.IsPDFMimeType(mimeType):
		return e.extractPDF(ctx, start, data)
	case document.IsImageMimeType(mimeType):
		return e.extractImage(ctx, start, data, mimeType)
	default:
		return failureResult(start), document.NewError("extract", document.KindUnsupportedInput,
			fmt.Errorf("%w: %q", document.ErrUnsupportedMimeType, mimeType))
	}
}

// extractPDF collects text-layer runs and form-field candidates, falling back
// to recognition of embedded page images when the document yields neither.
func (e *Extractor) extractPDF(ctx context.Context, start time.Time, data []byte) (Result, error) {
	res := Result{Candidates: []document.Candidate{}}

	runs, pages, textErr := textRuns(data)
	if textErr != nil {
		log.Printf("[extract] text layer unavailable: %v", textErr)
	} else if len(runs) > 0 {
		res.Candidates = append(res.Candidates, runs...)
		res.Sources = append(res.Sources, SourceTextLayer)
	}
	res.Pages = pages

	fields, formPages, formErr := formFields(data)
	if formErr != nil {
		log.Printf("[extract] form field scan unavailable: %v", formErr)
	} else if len(fields) > 0 {
		res.Candidates = append(res.Candidates, fields...)
		res.Sources = append(res.Sources, SourceAcroForm)
	}
	if res.Pages == 0 {
		res.Pages = formPages
	}

	if textErr != nil && formErr != nil {
		res.Elapsed = time.Since(start)
		return res, document.NewError("extract", document.KindUnsupportedInput,
			fmt.Errorf("failed to parse PDF: %w; form scan: %v", textErr, formErr))
	}

	if len(res.Candidates) == 0 {
		if err := e.recognizeEmbeddedImages(ctx, data, &res); err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// recognizeEmbeddedImages routes the largest embedded image of each page
// through the recognition cascade. Scanned PDFs hold their content this way.
func (e *Extractor) recognizeEmbeddedImages(ctx context.Context, data []byte, res *Result) error {
	images, err := largestPageImages(data)
	if err != nil {
		// A parseable PDF with no readable images is an empty document,
		// not a failure.
		log.Printf("[extract] embedded image scan failed: %v", err)
		return nil
	}
	if len(images) == 0 {
		return nil
	}
	if e.recognizer == nil {
		return document.NewError("extract", document.KindProviderFailure, recognize.ErrNoProvider)
	}

	pageNrs := make([]int, 0, len(images))
	for pageNr := range images {
		pageNrs = append(pageNrs, pageNr)
	}
	sort.Ints(pageNrs)

	var lastErr error
	recognized := false
	for _, pageNr := range pageNrs {
		img := images[pageNr]
		rec, err := e.recognizer.Recognize(ctx, img.data, img.mimeType)
		if err != nil {
			lastErr = err
			log.Printf("[extract] recognition failed on page %d: %v", pageNr, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if res.Provider == "" {
			res.Provider = rec.Provider
		}
		res.Candidates = append(res.Candidates, wordCandidates(rec, pageNr, e.cfg.MinWordConfidence)...)
		recognized = true
	}

	if recognized {
		res.Sources = append(res.Sources, SourceRecognition)
		return nil
	}
	if lastErr != nil {
		return document.NewError("extract", document.KindProviderFailure, lastErr)
	}
	return nil
}

// extractImage sends a raster image through the recognition cascade.
func (e *Extractor) extractImage(ctx context.Context, start time.Time, data []byte, mimeType string) (Result, error) {
	res := Result{Candidates: []document.Candidate{}, Pages: 1}

	if e.recognizer == nil {
		res.Elapsed = time.Since(start)
		return res, document.NewError("extract", document.KindProviderFailure, recognize.ErrNoProvider)
	}

	rec, err := e.recognizer.Recognize(ctx, data, mimeType)
	if err != nil {
		res.Elapsed = time.Since(start)
		return res, document.NewError("extract", document.KindProviderFailure, err)
	}

	res.Candidates = wordCandidates(rec, 1, e.cfg.MinWordConfidence)
	res.Provider = rec.Provider
	res.Sources = []string{SourceRecognition}
	res.Elapsed = time.Since(start)
	return res, nil
}

// wordCandidates converts recognized words into candidates on the given
// page, normalizing confidence to 0-1 and boxes to page fractions.
func wordCandidates(rec recognize.Result, pageNum int, minConfidence float64) []document.Candidate {
	candidates := make([]document.Candidate, 0, len(rec.Words))
	for _, w := range rec.Words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}

		confidence := w.Confidence / 100.0
		if confidence > 1 {
			confidence = 1
		}
		if confidence < 0 {
			confidence = 0
		}
		if confidence < minConfidence {
			continue
		}

		x, y, width, height := w.X, w.Y, w.Width, w.Height
		if rec.PageWidth > 0 && rec.PageHeight > 0 {
			x /= rec.PageWidth
			width /= rec.PageWidth
			y /= rec.PageHeight
			height /= rec.PageHeight
		}

		bbox := document.BoundingBox{
			Page:   pageNum,
			X:      x,
			Y:      y,
			Width:  width,
			Height: height,
		}

		candidates = append(candidates, document.Candidate{
			ID:         uuid.New().String(),
			RawText:    text,
			Confidence: confidence,
			BBox:       bbox.Clamp(),
		})
	}
	return candidates
}

func failureResult(start time.Time) Result {
	return Result{
		Candidates: []document.Candidate{},
		Elapsed:    time.Since(start),
	}
}
