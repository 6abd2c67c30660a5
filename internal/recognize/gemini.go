package recognize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

const geminiTranscribePrompt = `You are an OCR engine. Transcribe every distinct word or short text run
visible in the attached image.

Return ONLY a valid JSON array. Each element must have this structure:
{
  "text": "the transcribed text",
  "confidence": 0 to 100,
  "x": left edge as a fraction of image width (0.0 to 1.0),
  "y": top edge as a fraction of image height (0.0 to 1.0),
  "width": width as a fraction of image width,
  "height": height as a fraction of image height
}

The origin is the top-left corner of the image. Preserve reading order where
possible. Do not include any explanations, markdown formatting, or additional
text outside the JSON array.`

// GeminiProvider recognizes text by sending the image to the Gemini API as
// multimodal input and asking for positioned word boxes.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini-backed recognition provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Close releases the underlying API client.
func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Recognize implements Provider. Word boxes come back as page fractions, so
// the result carries no pixel dimensions.
func (p *GeminiProvider) Recognize(ctx context.Context, data []byte, mimeType string) (Result, error) {
	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(0.0)

	resp, err := model.GenerateContent(ctx,
		genai.Text(geminiTranscribePrompt),
		genai.Blob{MIMEType: mimeType, Data: data},
	)
	if err != nil {
		return Result{}, fmt.Errorf("error calling Gemini AI API: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Result{}, fmt.Errorf("no response from Gemini AI API")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return Result{}, fmt.Errorf("unexpected response format from Gemini AI API")
	}

	cleaned := stripCodeFences(string(text))
	var words []Word
	if err := json.Unmarshal([]byte(cleaned), &words); err != nil {
		return Result{}, fmt.Errorf("error parsing Gemini response as JSON: %w", err)
	}
	return Result{Words: words, Provider: p.Name()}, nil
}

// stripCodeFences removes markdown code block markers the Gemini API sometimes
// wraps around JSON output.
func stripCodeFences(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "```json")
	s = strings.TrimPrefix(strings.TrimSpace(s), "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
