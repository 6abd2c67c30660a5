package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Recognition mode constants
	RecognitionAuto  = "auto"
	RecognitionCloud = "cloud"
	RecognitionLocal = "local"

	// Default values
	DefaultPort            = 8080
	DefaultHost            = "127.0.0.1"
	DefaultLogLevel        = "info"
	DefaultMaxFileSize     = 100 * 1024 * 1024 // 100MB
	DefaultGeminiModel     = "gemini-2.0-flash"
	DefaultRecognitionMode = RecognitionAuto
	DefaultFontSize        = 11.0
)

// Config holds all configuration for the form-fill server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Provider configuration
	GeminiAPIKey    string
	GeminiModel     string
	OCREndpoint     string
	RecognitionMode string // "auto", "cloud" or "local"

	// Pipeline configuration
	MaxFileSize int64 // Maximum input document size in bytes
	FontSize    float64

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:            ModeStdio, // Default to stdio mode for MCP compatibility
		Host:            DefaultHost,
		Port:            DefaultPort,
		GeminiModel:     DefaultGeminiModel,
		RecognitionMode: DefaultRecognitionMode,
		MaxFileSize:     DefaultMaxFileSize,
		FontSize:        DefaultFontSize,
		Version:         "1.0.0",
		ServerName:      "formfill",
		LogLevel:        DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Dashed keys map onto FORMFILL_ environment variables with underscores
	viper.SetEnvPrefix("FORMFILL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// The Gemini key is also honored under its conventional bare name
	_ = viper.BindEnv("gemini-api-key", "FORMFILL_GEMINI_API_KEY", "GEMINI_API_KEY")

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("gemini-api-key", cfg.GeminiAPIKey)
	viper.SetDefault("gemini-model", cfg.GeminiModel)
	viper.SetDefault("ocr-endpoint", cfg.OCREndpoint)
	viper.SetDefault("recognition-mode", cfg.RecognitionMode)
	viper.SetDefault("font-size", cfg.FontSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum input document size in bytes")
	pflag.String("gemini-api-key", cfg.GeminiAPIKey, "Gemini API key for classification and cloud recognition")
	pflag.String("gemini-model", cfg.GeminiModel, "Gemini model name")
	pflag.String("ocr-endpoint", cfg.OCREndpoint, "Local OCR service endpoint, e.g. http://localhost:8884/ocr")
	pflag.String("recognition-mode", cfg.RecognitionMode, "Recognition provider selection: 'auto', 'cloud' or 'local'")
	pflag.Float64("font-size", cfg.FontSize, "Overlay font size in points for rendered values")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("host", pflag.Lookup("host"))
	_ = viper.BindPFlag("port", pflag.Lookup("port"))
	_ = viper.BindPFlag("log-level", pflag.Lookup("log-level"))
	_ = viper.BindPFlag("max-file-size", pflag.Lookup("max-file-size"))
	_ = viper.BindPFlag("gemini-api-key", pflag.Lookup("gemini-api-key"))
	_ = viper.BindPFlag("gemini-model", pflag.Lookup("gemini-model"))
	_ = viper.BindPFlag("ocr-endpoint", pflag.Lookup("ocr-endpoint"))
	_ = viper.BindPFlag("recognition-mode", pflag.Lookup("recognition-mode"))
	_ = viper.BindPFlag("font-size", pflag.Lookup("font-size"))
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nFormfill - a Model Context Protocol server that fills form documents\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --recognition-mode=local --ocr-endpoint=http://localhost:8884/ocr\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # server on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_MODE              Server mode\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_HOST              Server host\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_PORT              Server port\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_LOG_LEVEL         Log level\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_MAX_FILE_SIZE     Maximum document size\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_GEMINI_API_KEY    Gemini API key (GEMINI_API_KEY also works)\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_GEMINI_MODEL      Gemini model name\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_OCR_ENDPOINT      Local OCR service endpoint\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_RECOGNITION_MODE  Recognition provider selection\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_FONT_SIZE         Overlay font size in points\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.GeminiAPIKey = viper.GetString("gemini-api-key")
	cfg.GeminiModel = viper.GetString("gemini-model")
	cfg.OCREndpoint = viper.GetString("ocr-endpoint")
	cfg.RecognitionMode = viper.GetString("recognition-mode")
	cfg.FontSize = viper.GetFloat64("font-size")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate overlay font size
	if c.FontSize <= 0 {
		return errors.New("font size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	// Validate recognition mode and its provider requirements. Auto mode
	// works with any subset of providers, including none.
	switch c.RecognitionMode {
	case RecognitionAuto:
	case RecognitionCloud:
		if c.GeminiAPIKey == "" {
			return errors.New("recognition mode 'cloud' requires a Gemini API key")
		}
	case RecognitionLocal:
		if c.OCREndpoint == "" {
			return errors.New("recognition mode 'local' requires an OCR endpoint")
		}
	default:
		return fmt.Errorf("invalid recognition mode: %s (must be one of: auto, cloud, local)", c.RecognitionMode)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// HasGeminiKey returns true if a Gemini API key is configured
func (c *Config) HasGeminiKey() bool {
	return c.GeminiAPIKey != ""
}

// String returns a string representation of the configuration. The API key
// is reported as present or absent, never echoed.
func (c *Config) String() string {
	key := "unset"
	if c.GeminiAPIKey != "" {
		key = "set"
	}
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, RecognitionMode: %s, OCREndpoint: %s, GeminiAPIKey: %s, GeminiModel: %s, LogLevel: %s, MaxFileSize: %d, FontSize: %g}",
		c.Mode, c.Host, c.Port, c.RecognitionMode, c.OCREndpoint, key, c.GeminiModel, c.LogLevel, c.MaxFileSize, c.FontSize)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
