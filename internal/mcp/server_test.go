package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/formfill/formfill/internal/classify"
	"github.com/formfill/formfill/internal/config"
	"github.com/formfill/formfill/internal/document"
	"github.com/formfill/formfill/internal/pipeline"
)

// echoClassifier classifies every candidate as a text field keyed by its raw
// text, so handler tests stay deterministic without a live provider.
type echoClassifier struct{}

func (e *echoClassifier) Classify(_ context.Context, candidates []document.Candidate) ([]classify.Entry, error) {
	entries := make([]classify.Entry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, classify.Entry{
			CandidateID: c.ID,
			Key:         c.RawText,
			Label:       c.RawText,
			Type:        "text",
			Required:    true,
			Confidence:  0.9,
		})
	}
	return entries, nil
}

// buildPDF assembles a small PDF with a correct cross-reference table from
// the given object bodies. Object numbers start at 1; the first object must
// be the catalog.
func buildPDF(objects ...string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 0, len(objects))
	for i, body := range objects {
		offsets = append(offsets, b.Len())
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefStart := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<<\n/Size %d\n/Root 1 0 R\n>>\nstartxref\n%d\n%%%%EOF", len(objects)+1, xrefStart)

	return []byte(b.String())
}

// acroFormPDF carries one native text field named patient_name.
func acroFormPDF() []byte {
	return buildPDF(
		"<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R] >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Annots [4 0 R] >>",
		"<< /Type /Annot /Subtype /Widget /FT /Tx /T (patient_name) /Rect [100 600 300 630] /F 4 >>",
	)
}

func testConfig() *config.Config {
	return &config.Config{
		Mode:            "stdio",
		Host:            "127.0.0.1",
		Port:            8080,
		Version:         "1.0.0",
		ServerName:      "test-server",
		LogLevel:        "info",
		MaxFileSize:     1024 * 1024,
		RecognitionMode: "auto",
		FontSize:        11.0,
	}
}

func testService(cfg *config.Config) *pipeline.Service {
	return pipeline.NewService(pipeline.Options{
		MaxFileSize:     cfg.MaxFileSize,
		Classifier:      &echoClassifier{},
		RecognitionMode: cfg.RecognitionMode,
	})
}

func testServer(t *testing.T) *Server {
	t.Helper()

	cfg := testConfig()
	server, err := NewServer(cfg, testService(cfg))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return server
}

func documentRequest(data []byte, extra map[string]interface{}) mcp.CallToolRequest {
	args := map[string]interface{}{
		"document":  base64.StdEncoding.EncodeToString(data),
		"mime_type": document.MimeTypePDF,
	}
	for k, v := range extra {
		args[k] = v
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal test payload: %v", err)
	}
	return string(data)
}

func TestNewServer(t *testing.T) {
	tests := []struct {
		name string
		mode string
	}{
		{name: "valid stdio mode config", mode: "stdio"},
		{name: "valid server mode config", mode: "server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Mode = tt.mode
			service := testService(cfg)

			server, err := NewServer(cfg, service)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if server == nil {
				t.Fatal("server should not be nil")
			}
			if server.config != cfg {
				t.Error("server config not set correctly")
			}
			if server.service != service {
				t.Error("server service not set correctly")
			}
			if server.mcpServer == nil {
				t.Error("mcpServer should be initialized")
			}
		})
	}
}

func TestServer_HandleFormDetectFields(t *testing.T) {
	server := testServer(t)

	request := documentRequest(acroFormPDF(), nil)
	result, err := server.handleFormDetectFields(context.Background(), request)
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if result == nil {
		t.Fatal("result should not be nil")
	}

	var detected pipeline.FormDetectFieldsResult
	if err := json.Unmarshal([]byte(extractTextFromResult(result)), &detected); err != nil {
		t.Fatalf("result should be JSON: %v", err)
	}

	if len(detected.Fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(detected.Fields))
	}
	if detected.Fields[0].Key != "patient_name" {
		t.Errorf("expected field key patient_name, got %s", detected.Fields[0].Key)
	}
	if detected.Pages != 1 {
		t.Errorf("expected 1 page, got %d", detected.Pages)
	}
	if detected.CandidateCount != 1 {
		t.Errorf("expected 1 candidate, got %d", detected.CandidateCount)
	}
}

func TestServer_HandleFormDetectFieldsInvalidBase64(t *testing.T) {
	server := testServer(t)

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]interface{}{
				"document":  "%%% not base64 %%%",
				"mime_type": document.MimeTypePDF,
			},
		},
	}

	result, err := server.handleFormDetectFields(context.Background(), request)
	if err != nil {
		t.Fatalf("handler should not return error, got: %v", err)
	}

	resultText := extractTextFromResult(result)
	if !strings.Contains(resultText, "base64") {
		t.Errorf("expected base64 error message, got: %s", resultText)
	}
}

func TestServer_HandleFormAutofill(t *testing.T) {
	server := testServer(t)

	fields := []document.ClassifiedField{
		{ID: "f1", Key: "patient_name", Type: document.FieldTypeText},
	}

	// The context argument arrives as an already-parsed JSON object while
	// fields arrive as a JSON string; both shapes must decode.
	var contextArg map[string]interface{}
	contextJSON := mustJSON(t, document.UserContext{
		Profile: &document.Profile{FullName: "Jane Q. Patient"},
	})
	if err := json.Unmarshal([]byte(contextJSON), &contextArg); err != nil {
		t.Fatalf("failed to build context argument: %v", err)
	}

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]interface{}{
				"fields":  mustJSON(t, fields),
				"context": contextArg,
			},
		},
	}

	result, err := server.handleFormAutofill(context.Background(), request)
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	var autofill pipeline.FormAutofillResult
	if err := json.Unmarshal([]byte(extractTextFromResult(result)), &autofill); err != nil {
		t.Fatalf("result should be JSON: %v", err)
	}

	if len(autofill.Mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d", len(autofill.Mappings))
	}
	if autofill.Mappings[0].Value != "Jane Q. Patient" {
		t.Errorf("expected profile value, got %q", autofill.Mappings[0].Value)
	}
	if autofill.Mappings[0].Source != document.SourceProfile {
		t.Errorf("expected profile source, got %s", autofill.Mappings[0].Source)
	}
	if autofill.Resolved != 1 {
		t.Errorf("expected 1 resolved mapping, got %d", autofill.Resolved)
	}
}

func TestServer_HandleFormRender(t *testing.T) {
	server := testServer(t)

	fields := []document.ClassifiedField{
		{
			ID:   "f1",
			Key:  "patient_name",
			Type: document.FieldTypeText,
			BBox: document.BoundingBox{Page: 1, X: 0.16, Y: 0.2, Width: 0.33, Height: 0.04},
		},
	}
	mappings := []document.FieldMapping{
		{FieldID: "f1", Value: "Jane Q. Patient", Source: document.SourceProfile, Confidence: 0.8},
	}

	request := documentRequest(acroFormPDF(), map[string]interface{}{
		"fields":   mustJSON(t, fields),
		"mappings": mustJSON(t, mappings),
	})

	result, err := server.handleFormRender(context.Background(), request)
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	var rendered pipeline.FormRenderResult
	if err := json.Unmarshal([]byte(extractTextFromResult(result)), &rendered); err != nil {
		t.Fatalf("result should be JSON: %v", err)
	}

	if rendered.FieldsRendered != 1 {
		t.Errorf("expected 1 rendered field, got %d", rendered.FieldsRendered)
	}
	if rendered.FieldsSkipped != 0 {
		t.Errorf("expected 0 skipped fields, got %d", rendered.FieldsSkipped)
	}
	if !strings.HasPrefix(string(rendered.Document), "%PDF") {
		t.Error("rendered document should be a PDF")
	}
}

func TestServer_HandleFormProcess(t *testing.T) {
	server := testServer(t)

	contextJSON := mustJSON(t, document.UserContext{
		Profile: &document.Profile{FullName: "Jane Q. Patient"},
	})
	request := documentRequest(acroFormPDF(), map[string]interface{}{
		"context": contextJSON,
	})

	result, err := server.handleFormProcess(context.Background(), request)
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	var processed pipeline.FormProcessResult
	if err := json.Unmarshal([]byte(extractTextFromResult(result)), &processed); err != nil {
		t.Fatalf("result should be JSON: %v", err)
	}

	if len(processed.Fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(processed.Fields))
	}
	if len(processed.Mappings) != 1 {
		t.Fatalf("expected 1 mapping, got %d", len(processed.Mappings))
	}
	if processed.Mappings[0].Value != "Jane Q. Patient" {
		t.Errorf("expected profile value, got %q", processed.Mappings[0].Value)
	}
	if processed.Resolved != 1 {
		t.Errorf("expected 1 resolved mapping, got %d", processed.Resolved)
	}
	if !strings.HasPrefix(string(processed.Document), "%PDF") {
		t.Error("processed document should be a PDF")
	}
}

func TestServer_HandleFormServerInfo(t *testing.T) {
	server := testServer(t)

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]interface{}{},
		},
	}

	result, err := server.handleFormServerInfo(context.Background(), request)
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	resultText := extractTextFromResult(result)
	for _, expected := range []string{
		"test-server",
		"Max File Size: 1 MB",
		"Available Tools",
		"form_detect_fields",
		"form_process",
	} {
		if !strings.Contains(resultText, expected) {
			t.Errorf("server info should contain %q, got: %s", expected, resultText)
		}
	}
}

func TestServer_InvalidArguments(t *testing.T) {
	server := testServer(t)

	// Test with missing required arguments
	emptyRequest := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]interface{}{},
		},
	}

	// Test each handler that requires arguments
	handlers := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
	}{
		{"FormDetectFields", server.handleFormDetectFields},
		{"FormAutofill", server.handleFormAutofill},
		{"FormRender", server.handleFormRender},
		{"FormProcess", server.handleFormProcess},
	}

	for _, h := range handlers {
		t.Run(h.name, func(t *testing.T) {
			result, err := h.handler(context.Background(), emptyRequest)
			if err != nil {
				t.Errorf("handler should not return error, got: %v", err)
			}
			if result == nil {
				t.Fatal("result should not be nil")
			}

			// Check if it's an error result
			resultText := extractTextFromResult(result)
			if !strings.Contains(resultText, "required") && !strings.Contains(resultText, "missing") && !strings.Contains(resultText, "error") {
				t.Errorf("expected error message for missing arguments, got: %s", resultText)
			}
		})
	}
}

func TestDecodeJSONArg(t *testing.T) {
	tests := []struct {
		name        string
		args        map[string]any
		required    bool
		expectFound bool
		expectError bool
	}{
		{
			name:        "json string",
			args:        map[string]any{"fields": `[{"id":"f1","key":"name"}]`},
			expectFound: true,
		},
		{
			name: "parsed value",
			args: map[string]any{
				"fields": []any{map[string]any{"id": "f1", "key": "name"}},
			},
			expectFound: true,
		},
		{
			name: "missing optional",
			args: map[string]any{},
		},
		{
			name:        "missing required",
			args:        map[string]any{},
			required:    true,
			expectError: true,
		},
		{
			name:        "empty string required",
			args:        map[string]any{"fields": ""},
			required:    true,
			expectError: true,
		},
		{
			name:        "malformed json string",
			args:        map[string]any{"fields": `[{"id":`},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields []document.ClassifiedField
			found, err := decodeJSONArg(tt.args, "fields", tt.required, &fields)

			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if found != tt.expectFound {
				t.Errorf("expected found=%v, got %v", tt.expectFound, found)
			}
			if tt.expectFound && len(fields) != 1 {
				t.Errorf("expected 1 decoded field, got %d", len(fields))
			}
		})
	}
}

func TestFormatMethods(t *testing.T) {
	server := testServer(t)

	infoResult := &pipeline.FormServerInfoResult{
		ServerName:         "test-server",
		Version:            "1.0.0",
		MaxFileSize:        10 * 1024 * 1024,
		RecognitionMode:    "cloud",
		ClassifierModel:    "gemini-2.0-flash",
		SupportedMimeTypes: []string{"application/pdf", "image/png"},
		AvailableTools: []pipeline.ToolInfo{
			{Name: "form_detect_fields", Description: "detect", Usage: "first", Parameters: "document"},
		},
		UsageGuidance: "Start with form_detect_fields.",
	}

	formatted := server.formatFormServerInfoResult(infoResult)
	if !strings.Contains(formatted, "test-server v1.0.0") {
		t.Error("formatted result should contain server name and version")
	}
	if !strings.Contains(formatted, "Max File Size: 10 MB") {
		t.Error("formatted result should contain the file size limit")
	}
	if !strings.Contains(formatted, "Recognition Mode: cloud") {
		t.Error("formatted result should contain the recognition mode")
	}
	if !strings.Contains(formatted, "image/png") {
		t.Error("formatted result should contain supported types")
	}
	if !strings.Contains(formatted, "form_detect_fields") {
		t.Error("formatted result should contain tool names")
	}
	if !strings.Contains(formatted, "Start with form_detect_fields.") {
		t.Error("formatted result should contain usage guidance")
	}
}

// Helper function to extract text from a CallToolResult
func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	// Try to extract text content
	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		// Handle pointer to TextContent as well
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}

	return ""
}
