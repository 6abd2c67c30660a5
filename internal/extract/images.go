package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/formfill/formfill/internal/document"
)

// pageImage is one embedded raster image pulled out of a PDF page.
type pageImage struct {
	data     []byte
	mimeType string
}

// largestPageImages returns the biggest embedded image per page, keyed by
// page number. Image-only PDFs (scans) typically hold one full-page image
// per page; that image is what gets routed through text recognition.
func largestPageImages(data []byte) (map[int]pageImage, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	extracted, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to extract page images: %w", err)
	}

	out := make(map[int]pageImage)
	for _, pageMap := range extracted {
		for _, img := range pageMap {
			raw, err := io.ReadAll(img)
			if err != nil || len(raw) == 0 {
				continue
			}
			if best, ok := out[img.PageNr]; ok && len(best.data) >= len(raw) {
				continue
			}
			out[img.PageNr] = pageImage{
				data:     raw,
				mimeType: imageMimeType(img.FileType),
			}
		}
	}
	return out, nil
}

// imageMimeType maps pdfcpu's extracted file type onto a mime type the
// recognition providers accept.
func imageMimeType(fileType string) string {
	switch fileType {
	case "png":
		return document.MimeTypePNG
	case "tif", "tiff":
		return document.MimeTypeTIFF
	case "webp":
		return document.MimeTypeWebP
	default:
		return document.MimeTypeJPEG
	}
}
