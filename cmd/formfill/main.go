package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/formfill/formfill/internal/classify"
	"github.com/formfill/formfill/internal/config"
	"github.com/formfill/formfill/internal/extract"
	"github.com/formfill/formfill/internal/mcp"
	"github.com/formfill/formfill/internal/pipeline"
	"github.com/formfill/formfill/internal/recognize"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the server mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// In stdio mode, redirect log output to stderr to avoid interfering with MCP protocol
		log.SetOutput(os.Stderr)
		// Silence logging in stdio mode unless debug is enabled
		if !cfg.IsDebug() {
			log.SetOutput(io.Discard)
		}
	} else {
		// In server mode, use normal stdout logging with more detail
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

// buildClassifier creates the classification provider when a Gemini key is
// configured. Without one, field detection reports a provider failure while
// the render and autofill tools keep working.
func buildClassifier(ctx context.Context, cfg *config.Config) (*classify.GeminiProvider, error) {
	if !cfg.HasGeminiKey() {
		return nil, nil
	}
	return classify.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
}

// buildRecognizer assembles the recognition cascade from the configuration.
// A nil recognizer disables the scanned-document path but leaves text-layer
// and native-form extraction working.
func buildRecognizer(ctx context.Context, cfg *config.Config) (extract.Recognizer, func(), error) {
	var cloud *recognize.GeminiProvider
	if cfg.HasGeminiKey() && cfg.RecognitionMode != config.RecognitionLocal {
		p, err := recognize.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		cloud = p
	}

	var local *recognize.LocalProvider
	if cfg.OCREndpoint != "" && cfg.RecognitionMode != config.RecognitionCloud {
		local = recognize.NewLocalProvider(cfg.OCREndpoint, 0)
	}

	if cloud == nil && local == nil {
		return nil, nil, nil
	}

	// Assign through typed variables so a missing provider stays a nil
	// interface inside the cascade.
	var cloudProvider, localProvider recognize.Provider
	if cloud != nil {
		cloudProvider = cloud
	}
	if local != nil {
		localProvider = local
	}

	cascade := recognize.NewCascade(cloudProvider, localProvider, recognize.CascadeConfig{
		Mode: recognize.Mode(cfg.RecognitionMode),
	})
	cleanup := func() {
		if cloud != nil {
			_ = cloud.Close()
		}
	}
	return cascade, cleanup, nil
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Start server in a goroutine
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-signalCh:
		log.Printf("Received signal: %s", sig)
		log.Println("Initiating graceful shutdown...")
		cancel()

		// Wait for server to shutdown
		if err := <-serverErrCh; err != nil {
			log.Printf("Server shutdown with error: %v", err)
			os.Exit(1)
		}

	case err := <-serverErrCh:
		if err != nil {
			log.Printf("Server error: %v", err)
			os.Exit(1)
		}
	}

	log.Println("Server stopped successfully")
}

// runStdioMode handles stdio mode execution
func runStdioMode(ctx context.Context, _ context.CancelFunc, server *mcp.Server) {
	// In stdio mode, the parent process controls our lifecycle
	// We should exit cleanly when stdin is closed or we get an error

	// Start server and wait for it to complete
	if err := server.Run(ctx); err != nil {
		// Only log to stderr in debug mode to avoid protocol interference
		if os.Getenv("DEBUG") != "" {
			log.Printf("Server error: %v", err)
		}
		os.Exit(1)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	// A .env file is optional; real environment variables win either way
	_ = godotenv.Load()

	// Load configuration from flags first
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging based on mode
	setupLogging(cfg)

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	if cfg.IsDebug() && cfg.IsServerMode() {
		log.Printf("Starting with configuration: %s", cfg.String())
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build providers from the configuration
	classifier, err := buildClassifier(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create classification provider: %v", err)
	}

	recognizer, recognizerCleanup, err := buildRecognizer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create recognition provider: %v", err)
	}
	if recognizerCleanup != nil {
		defer recognizerCleanup()
	}

	// Create the pipeline service
	opts := pipeline.Options{
		MaxFileSize:     cfg.MaxFileSize,
		FontSizePt:      cfg.FontSize,
		Recognizer:      recognizer,
		RecognitionMode: cfg.RecognitionMode,
	}
	if classifier != nil {
		defer classifier.Close()
		opts.Classifier = classifier
		opts.ClassifierModel = cfg.GeminiModel
	}
	service := pipeline.NewService(opts)

	// Create MCP server
	server, err := mcp.NewServer(cfg, service)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	// Handle different modes
	if cfg.IsServerMode() {
		runServerMode(ctx, cancel, server)
	} else {
		runStdioMode(ctx, cancel, server)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("FormFill MCP Server\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
