package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultLocalTimeout = 60 * time.Second

// localResponse is the wire shape returned by the self-hosted OCR service.
type localResponse struct {
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Words  []localWord `json:"words"`
}

type localWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// LocalProvider recognizes text through a self-hosted OCR HTTP service that
// accepts a multipart image upload and returns pixel-positioned words.
type LocalProvider struct {
	endpoint string
	client   *http.Client
}

// NewLocalProvider creates a provider for the OCR service at endpoint, for
// example "http://localhost:8884/ocr".
func NewLocalProvider(endpoint string, timeout time.Duration) *LocalProvider {
	if timeout <= 0 {
		timeout = defaultLocalTimeout
	}
	return &LocalProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name implements Provider.
func (p *LocalProvider) Name() string { return "local" }

// Recognize implements Provider. Word boxes come back in pixels, so the
// result carries the reported image dimensions for normalization.
func (p *LocalProvider) Recognize(ctx context.Context, data []byte, mimeType string) (Result, error) {
	if p.endpoint == "" {
		return Result{}, fmt.Errorf("local OCR endpoint is not configured")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", uploadFilename(mimeType))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &buf)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to call local OCR service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("local OCR service error (status %d): %s", resp.StatusCode, string(body))
	}

	var parsed localResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("failed to parse local OCR response: %w", err)
	}

	words := make([]Word, 0, len(parsed.Words))
	for _, w := range parsed.Words {
		words = append(words, Word(w))
	}
	return Result{
		Words:      words,
		PageWidth:  float64(parsed.Width),
		PageHeight: float64(parsed.Height),
		Provider:   p.Name(),
	}, nil
}

func uploadFilename(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "page.png"
	case "image/webp":
		return "page.webp"
	case "image/tiff":
		return "page.tiff"
	default:
		return "page.jpg"
	}
}
