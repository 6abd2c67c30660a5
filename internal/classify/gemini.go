package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/formfill/formfill/internal/document"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider classifies text candidates by sending them to the Gemini API
// in a single structured prompt per batch.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a Gemini-backed classification provider.
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

// Close releases the underlying API client.
func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// promptCandidate is the wire shape for one candidate inside the prompt.
type promptCandidate struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Page       int      `json:"page"`
	NearbyText []string `json:"nearby_text,omitempty"`
}

func classificationPrompt(candidates []document.Candidate) (string, error) {
	wire := make([]promptCandidate, 0, len(candidates))
	for _, c := range candidates {
		wire = append(wire, promptCandidate{
			ID:         c.ID,
			Text:       c.RawText,
			Page:       c.BBox.Page,
			NearbyText: c.NearbyText,
		})
	}
	payload, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("failed to encode candidates: %w", err)
	}

	var b strings.Builder
	b.WriteString(`You are a document form analyst. Each item below is a text fragment found on a
form, with the text of nearby fragments for context. Decide for each item
whether it labels a fillable field, and if so describe that field.

Return ONLY a valid JSON array. Each element must have this structure:
{
  "candidate_id": "the id of the input item",
  "key": "snake_case machine key, e.g. patient_name",
  "label": "human readable label",
  "type": "one of: text, checkbox, radio, select, date, signature, number, email, phone, address",
  "required": true or false,
  "confidence": 0.0 to 1.0,
  "suggestions": ["optional example values"]
}

Omit items that are not field labels (instructions, headings, page numbers).
Do not include any explanations, markdown formatting, or additional text outside the JSON array.

Items:
`)
	b.Write(payload)
	return b.String(), nil
}

// cleanJSONResponse removes markdown code block markers from a JSON string.
// This handles cases where the Gemini API returns JSON wrapped in ```json ... ``` markers.
func cleanJSONResponse(jsonStr string) string {
	jsonStr = strings.TrimPrefix(strings.TrimSpace(jsonStr), "```json")
	jsonStr = strings.TrimPrefix(strings.TrimSpace(jsonStr), "```")
	jsonStr = strings.TrimSuffix(strings.TrimSpace(jsonStr), "```")
	return strings.TrimSpace(jsonStr)
}

// Classify implements Provider by asking the Gemini API to describe each
// candidate in one request.
func (p *GeminiProvider) Classify(ctx context.Context, candidates []document.Candidate) ([]Entry, error) {
	prompt, err := classificationPrompt(candidates)
	if err != nil {
		return nil, err
	}

	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(0.0) // deterministic output for identical inputs

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("error calling Gemini AI API: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini AI API")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected response format from Gemini AI API")
	}

	cleaned := cleanJSONResponse(string(text))
	var entries []Entry
	if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, fmt.Errorf("error parsing Gemini response as JSON: %w", err)
	}
	return entries, nil
}
