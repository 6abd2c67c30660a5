package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	"github.com/formfill/formfill/internal/config"
	"github.com/formfill/formfill/internal/document"
	"github.com/formfill/formfill/internal/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *pipeline.Service
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *pipeline.Service) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("pipeline service cannot be nil")
	}

	// Create MCP server
	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		service:   service,
		mcpServer: mcpServer,
	}

	// Register tools
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	// Register form detect fields tool
	formDetectFieldsTool := mcp.NewTool(
		"form_detect_fields",
		mcp.WithDescription("Detect and classify the fillable fields of a form document"),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("Base64 encoded document bytes"),
		),
		mcp.WithString("mime_type",
			mcp.Required(),
			mcp.Description("Document MIME type, application/pdf or a supported image type"),
		),
	)
	s.mcpServer.AddTool(formDetectFieldsTool, s.handleFormDetectFields)

	// Register form autofill tool
	formAutofillTool := mcp.NewTool(
		"form_autofill",
		mcp.WithDescription("Resolve a value for every detected field from the user's stored context"),
		mcp.WithString("fields",
			mcp.Required(),
			mcp.Description("JSON array of fields as returned by form_detect_fields"),
		),
		mcp.WithString("user_id",
			mcp.Description("User whose stored context supplies the values"),
		),
		mcp.WithString("household_member_id",
			mcp.Description("Household member the form is about, for relationship-aware filling"),
		),
		mcp.WithString("context",
			mcp.Description("JSON user context object, used instead of a user_id lookup"),
		),
	)
	s.mcpServer.AddTool(formAutofillTool, s.handleFormAutofill)

	// Register form render tool
	formRenderTool := mcp.NewTool(
		"form_render",
		mcp.WithDescription("Draw mapped values onto the original document and return the filled PDF"),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("Base64 encoded original document bytes"),
		),
		mcp.WithString("mime_type",
			mcp.Required(),
			mcp.Description("Document MIME type, application/pdf or a supported image type"),
		),
		mcp.WithString("fields",
			mcp.Required(),
			mcp.Description("JSON array of fields as returned by form_detect_fields"),
		),
		mcp.WithString("mappings",
			mcp.Required(),
			mcp.Description("JSON array of field mappings to draw"),
		),
		mcp.WithString("signature_image",
			mcp.Description("Base64 encoded PNG or JPEG signature image"),
		),
		mcp.WithString("date_overrides",
			mcp.Description("JSON object mapping field IDs to replacement date values"),
		),
	)
	s.mcpServer.AddTool(formRenderTool, s.handleFormRender)

	// Register form process tool
	formProcessTool := mcp.NewTool(
		"form_process",
		mcp.WithDescription("Run field detection, autofill and rendering in one call"),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("Base64 encoded document bytes"),
		),
		mcp.WithString("mime_type",
			mcp.Required(),
			mcp.Description("Document MIME type, application/pdf or a supported image type"),
		),
		mcp.WithString("user_id",
			mcp.Description("User whose stored context supplies the values"),
		),
		mcp.WithString("household_member_id",
			mcp.Description("Household member the form is about, for relationship-aware filling"),
		),
		mcp.WithString("context",
			mcp.Description("JSON user context object, used instead of a user_id lookup"),
		),
		mcp.WithString("signature_image",
			mcp.Description("Base64 encoded PNG or JPEG signature image"),
		),
		mcp.WithString("date_overrides",
			mcp.Description("JSON object mapping field IDs to replacement date values"),
		),
	)
	s.mcpServer.AddTool(formProcessTool, s.handleFormProcess)

	// Register form server info tool
	formServerInfoTool := mcp.NewTool(
		"form_server_info",
		mcp.WithDescription("Get server information, configured limits, available tools, and usage guidance"),
	)
	s.mcpServer.AddTool(formServerInfoTool, s.handleFormServerInfo)
}

// Handler functions
func (s *Server) handleFormDetectFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, mimeType, err := documentArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pipeline.FormDetectFieldsRequest{Document: data, MimeType: mimeType}
	result, err := s.service.FormDetectFields(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

func (s *Server) handleFormAutofill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var fields []document.ClassifiedField
	if _, err := decodeJSONArg(args, "fields", true, &fields); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pipeline.FormAutofillRequest{Fields: fields}
	if userID, ok := args["user_id"].(string); ok {
		req.UserID = userID
	}
	if memberID, ok := args["household_member_id"].(string); ok {
		req.HouseholdMemberID = memberID
	}

	var userContext document.UserContext
	ok, err := decodeJSONArg(args, "context", false, &userContext)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ok {
		req.Context = &userContext
	}

	result, err := s.service.FormAutofill(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

func (s *Server) handleFormRender(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, mimeType, err := documentArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()

	req := pipeline.FormRenderRequest{Document: data, MimeType: mimeType}
	if _, err := decodeJSONArg(args, "fields", true, &req.Fields); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := decodeJSONArg(args, "mappings", true, &req.Mappings); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.SignatureImage, err = signatureArg(args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := decodeJSONArg(args, "date_overrides", false, &req.DateOverrides); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.FormRender(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

func (s *Server) handleFormProcess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, mimeType, err := documentArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()

	req := pipeline.FormProcessRequest{Document: data, MimeType: mimeType}
	if userID, ok := args["user_id"].(string); ok {
		req.UserID = userID
	}
	if memberID, ok := args["household_member_id"].(string); ok {
		req.HouseholdMemberID = memberID
	}

	var userContext document.UserContext
	ok, err := decodeJSONArg(args, "context", false, &userContext)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ok {
		req.Context = &userContext
	}

	if req.SignatureImage, err = signatureArg(args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := decodeJSONArg(args, "date_overrides", false, &req.DateOverrides); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.FormProcess(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(result)
}

func (s *Server) handleFormServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := pipeline.FormServerInfoRequest{}
	result, err := s.service.ServerInfo(req, s.config.ServerName, s.config.Version)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responseText := s.formatFormServerInfoResult(result)
	return mcp.NewToolResultText(responseText), nil
}

// Argument helpers

// documentArgs reads the required document and mime_type arguments shared by
// every tool that takes raw document bytes.
func documentArgs(request mcp.CallToolRequest) ([]byte, string, error) {
	encoded, err := request.RequireString("document")
	if err != nil {
		return nil, "", err
	}
	mimeType, err := request.RequireString("mime_type")
	if err != nil {
		return nil, "", err
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("document must be base64 encoded: %w", err)
	}
	return data, mimeType, nil
}

// decodeJSONArg decodes a structured argument into out. The argument may
// arrive as a JSON string or as an already-parsed value; both are accepted.
// It reports whether the argument was present.
func decodeJSONArg(args map[string]any, name string, required bool, out any) (bool, error) {
	raw, exists := args[name]
	if !exists || raw == nil {
		if required {
			return false, fmt.Errorf("required argument %q not found", name)
		}
		return false, nil
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		if v == "" {
			if required {
				return false, fmt.Errorf("required argument %q not found", name)
			}
			return false, nil
		}
		data = []byte(v)
	default:
		encoded, err := json.Marshal(raw)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %w", name, err)
		}
		data = encoded
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return true, nil
}

// signatureArg reads the optional base64 signature_image argument.
func signatureArg(args map[string]any) ([]byte, error) {
	encoded, ok := args["signature_image"].(string)
	if !ok || encoded == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("signature_image must be base64 encoded: %w", err)
	}
	return data, nil
}

// jsonResult encodes a pipeline result as indented JSON so field lists and
// mappings can be passed back into the follow-up tools unchanged.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Formatting methods
func (s *Server) formatFormServerInfoResult(result *pipeline.FormServerInfoResult) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", result.ServerName, result.Version)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", result.MaxFileSize/(1024*1024))
	if result.RecognitionMode != "" {
		text += fmt.Sprintf("🔍 Recognition Mode: %s\n", result.RecognitionMode)
	}
	if result.ClassifierModel != "" {
		text += fmt.Sprintf("🧠 Classifier Model: %s\n", result.ClassifierModel)
	}
	text += "\n"

	// Supported input types
	if len(result.SupportedMimeTypes) > 0 {
		text += "📄 Supported Document Types:\n"
		for _, mimeType := range result.SupportedMimeTypes {
			text += fmt.Sprintf("  • %s\n", mimeType)
		}
		text += "\n"
	}

	// Available tools
	text += "🛠️  Available Tools:\n"
	for _, tool := range result.AvailableTools {
		text += fmt.Sprintf("\n• %s\n", tool.Name)
		text += fmt.Sprintf("  Description: %s\n", tool.Description)
		text += fmt.Sprintf("  Usage: %s\n", tool.Usage)
		text += fmt.Sprintf("  Parameters: %s\n", tool.Parameters)
	}

	// Usage guidance
	text += "\n" + result.UsageGuidance

	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting form-fill MCP server in stdio mode")
		log.Printf("Recognition mode: %s", s.config.RecognitionMode)
	}

	// Use the mark3labs/mcp-go server.ServeStdio function
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode runs the server in HTTP server mode
func (s *Server) runServerMode(ctx context.Context) error {
	// For now, we'll just use stdio mode since the mark3labs library
	// handles the transport differently
	log.Printf("Server mode not yet implemented with mark3labs/mcp-go")
	log.Printf("Falling back to stdio mode")
	return s.runStdioMode(ctx)
}
