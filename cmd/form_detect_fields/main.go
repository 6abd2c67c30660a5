package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/formfill/formfill/internal/classify"
	"github.com/formfill/formfill/internal/config"
	"github.com/formfill/formfill/internal/document"
	"github.com/formfill/formfill/internal/pipeline"
	"github.com/formfill/formfill/internal/recognize"
)

var (
	candidatesOnly = flag.Bool("candidates", false, "Stop after candidate extraction, skip semantic classification")
	outputFormat   = flag.String("format", "text", "Output format: text, json")
	mimeType       = flag.String("mime", "", "Override the document type inferred from the file extension")
	verbose        = flag.Bool("verbose", false, "Enable verbose output")
	help           = flag.Bool("help", false, "Show help message")
)

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: document file path required\n\n")
		printUsage()
		os.Exit(1)
	}

	docPath := flag.Arg(0)
	if _, err := os.Stat(docPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found: %s\n", docPath)
		os.Exit(1)
	}

	// A .env file beside the binary may carry GEMINI_API_KEY
	_ = godotenv.Load()

	result, err := detectFields(context.Background(), docPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error detecting fields: %v\n", err)
		os.Exit(1)
	}

	if err := outputResults(result); err != nil {
		fmt.Fprintf(os.Stderr, "Error outputting results: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Form Detect Fields - Extract and classify fillable fields from documents")
	fmt.Println()
	fmt.Println("This tool runs the extraction and classification stages of the form-fill")
	fmt.Println("pipeline against a single document and prints what it found, which makes it")
	fmt.Println("useful for debugging field detection on forms that fill incorrectly.")
	fmt.Println()
	printUsage()
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -candidates    Stop after candidate extraction, skip classification")
	fmt.Println("  -format        Output format: text (default), json")
	fmt.Println("  -mime          Override the document type inferred from the extension")
	fmt.Println("  -verbose       Enable verbose output")
	fmt.Println("  -help          Show this help message")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  GEMINI_API_KEY          Enables semantic classification of candidates")
	fmt.Println("  FORMFILL_OCR_ENDPOINT   Enables local OCR for scanned documents and images")
	fmt.Println()
	fmt.Println("Without GEMINI_API_KEY the tool behaves as if -candidates were set and")
	fmt.Println("prints the raw candidates instead of classified fields.")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  form_detect_fields enrollment.pdf")
	fmt.Println("  form_detect_fields -candidates -verbose consent-form.pdf")
	fmt.Println("  form_detect_fields -format json -mime image/png scan.dat")
	fmt.Println()
	fmt.Println("SUPPORTED DOCUMENT TYPES:")
	fmt.Println("  • PDF documents (digital and scanned)")
	fmt.Println("  • PNG, JPEG, WebP and TIFF images")
}

func printUsage() {
	fmt.Println("USAGE:")
	fmt.Println("  form_detect_fields [OPTIONS] <document_file>")
}

// DetectionResult represents the complete result of a detection run
type DetectionResult struct {
	FilePath       string                     `json:"file_path"`
	MimeType       string                     `json:"mime_type"`
	Success        bool                       `json:"success"`
	Classified     bool                       `json:"classified"`
	Pages          int                        `json:"pages"`
	Sources        []string                   `json:"sources,omitempty"`
	CandidateCount int                        `json:"candidate_count"`
	Candidates     []document.Candidate       `json:"candidates,omitempty"`
	Fields         []document.ClassifiedField `json:"fields,omitempty"`
	Error          string                     `json:"error,omitempty"`
}

func detectFields(ctx context.Context, docPath string) (*DetectionResult, error) {
	absPath, err := filepath.Abs(docPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	mime := *mimeType
	if mime == "" {
		mime, err = inferMimeType(absPath)
		if err != nil {
			return nil, err
		}
	}

	result := &DetectionResult{
		FilePath: absPath,
		MimeType: mime,
		Success:  false,
	}

	if *verbose {
		fmt.Printf("🔍 Analyzing document: %s (%s, %d bytes)\n", absPath, mime, len(data))
		fmt.Println()
	}

	opts := pipeline.Options{}

	// Scanned documents and images need a recognizer behind the extractor
	if endpoint := os.Getenv("FORMFILL_OCR_ENDPOINT"); endpoint != "" {
		local := recognize.NewLocalProvider(endpoint, 0)
		opts.Recognizer = recognize.NewCascade(nil, local, recognize.CascadeConfig{Mode: recognize.ModeLocal})
		if *verbose {
			fmt.Printf("🧠 Using local OCR endpoint: %s\n", endpoint)
		}
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	classifyRun := apiKey != "" && !*candidatesOnly
	if classifyRun {
		classifier, err := classify.NewGeminiProvider(ctx, apiKey, config.DefaultGeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create classification provider: %w", err)
		}
		defer classifier.Close()
		opts.Classifier = classifier
	} else if *verbose && !*candidatesOnly {
		fmt.Println("⚠️  GEMINI_API_KEY not set, printing raw candidates only")
		fmt.Println()
	}

	service := pipeline.NewService(opts)

	if classifyRun {
		detected, err := service.FormDetectFields(ctx, pipeline.FormDetectFieldsRequest{
			Document: data,
			MimeType: mime,
		})
		if err != nil {
			result.Error = err.Error()
			return result, nil // Don't fail, return error in result
		}
		result.Success = true
		result.Classified = true
		result.Pages = detected.Pages
		result.Sources = detected.Sources
		result.CandidateCount = detected.CandidateCount
		result.Fields = detected.Fields
		return result, nil
	}

	extracted, err := service.FormExtractCandidates(ctx, pipeline.FormExtractCandidatesRequest{
		Document: data,
		MimeType: mime,
	})
	if err != nil {
		result.Error = err.Error()
		return result, nil // Don't fail, return error in result
	}
	result.Success = true
	result.Pages = extracted.Pages
	result.Sources = extracted.Sources
	result.CandidateCount = len(extracted.Candidates)
	result.Candidates = extracted.Candidates
	return result, nil
}

func inferMimeType(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return document.MimeTypePDF, nil
	case ".png":
		return document.MimeTypePNG, nil
	case ".jpg", ".jpeg":
		return document.MimeTypeJPEG, nil
	case ".webp":
		return document.MimeTypeWebP, nil
	case ".tif", ".tiff":
		return document.MimeTypeTIFF, nil
	default:
		return "", fmt.Errorf("cannot infer document type from %q, pass -mime", filepath.Base(path))
	}
}

func outputResults(result *DetectionResult) error {
	switch *outputFormat {
	case "json":
		return outputJSON(result)
	case "text":
		return outputText(result)
	default:
		return fmt.Errorf("unsupported output format: %s", *outputFormat)
	}
}

func outputJSON(result *DetectionResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputText(result *DetectionResult) error {
	if !result.Success {
		fmt.Printf("❌ Field detection failed: %s\n", result.Error)
		return nil
	}

	if result.CandidateCount == 0 {
		fmt.Println("⚠️  No fillable fields detected in the document")
		if *verbose {
			fmt.Println()
			fmt.Println("SUGGESTIONS:")
			fmt.Println("• The document may not contain blanks, checkboxes or form widgets")
			fmt.Println("• Scanned documents need FORMFILL_OCR_ENDPOINT or a cloud provider")
			fmt.Println("• Try -format json to inspect the page and source breakdown")
		}
		return nil
	}

	if result.Classified {
		fmt.Printf("✅ Detected %d fillable fields from %d candidates across %d pages\n",
			len(result.Fields), result.CandidateCount, result.Pages)
		fmt.Println()

		for i, field := range result.Fields {
			fmt.Printf("[%d] %s\n", i+1, field.Key)
			fmt.Printf("    Label: %s\n", field.Label)
			fmt.Printf("    Type: %s\n", field.Type)
			if field.Required {
				fmt.Printf("    Required: yes\n")
			}
			fmt.Printf("    Confidence: %.2f\n", field.Confidence)
			printBBox(field.BBox)
			if len(field.Suggestions) > 0 {
				fmt.Printf("    Suggestions: %v\n", field.Suggestions)
			}
			fmt.Println()
		}
	} else {
		fmt.Printf("✅ Extracted %d candidates across %d pages\n", result.CandidateCount, result.Pages)
		fmt.Println()

		for i, candidate := range result.Candidates {
			fmt.Printf("[%d] %s\n", i+1, candidate.RawText)
			fmt.Printf("    Confidence: %.2f\n", candidate.Confidence)
			printBBox(candidate.BBox)
			if len(candidate.NearbyText) > 0 {
				fmt.Printf("    Nearby: %v\n", candidate.NearbyText)
			}
			fmt.Println()
		}
	}

	if len(result.Sources) > 0 {
		fmt.Printf("Sources: %v\n", result.Sources)
	}

	return nil
}

func printBBox(bbox document.BoundingBox) {
	// Coordinates are page fractions with the origin at the top left
	fmt.Printf("    Position: page %d at (%.2f, %.2f) size %.2f x %.2f\n",
		bbox.Page, bbox.X, bbox.Y, bbox.Width, bbox.Height)
}

func init() {
	// Custom flag usage
	flag.Usage = func() {
		printHelp()
	}
}
