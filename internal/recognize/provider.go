// Package recognize integrates external text-recognition providers behind a
// single contract. A cascade selects between a high-accuracy cloud provider
// and an offline local service based on payload size and configured mode,
// falling back when the preferred provider fails.
package recognize

import "context"

// Word is one recognized text fragment as reported by a provider.
//
// Confidence uses the provider scale 0 to 100. Box coordinates are expressed
// in the units implied by the enclosing Result: pixels when PageWidth and
// PageHeight are set, page fractions in [0,1] when they are zero.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Result is the raw output of one recognition call before normalization.
type Result struct {
	Words []Word
	// PageWidth and PageHeight give the pixel dimensions the word boxes
	// refer to. Zero means the provider already reports page fractions.
	PageWidth  float64
	PageHeight float64
	// Provider names the implementation that produced the result.
	Provider string
}

// Mode selects how the cascade orders its providers.
type Mode string

const (
	// ModeAuto prefers the cloud provider for payloads under the size
	// ceiling and uses the local provider otherwise.
	ModeAuto Mode = "auto"
	// ModeCloud forces the cloud provider.
	ModeCloud Mode = "cloud"
	// ModeLocal forces the local provider.
	ModeLocal Mode = "local"
)

// Provider recognizes text in a raster image.
type Provider interface {
	// Name identifies the provider in logs and results.
	Name() string
	// Recognize extracts positioned words from the image bytes.
	Recognize(ctx context.Context, data []byte, mimeType string) (Result, error)
}
