package render

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// promoteImage wraps a single raster image into a one-page PDF whose page is
// sized exactly to the image's pixel dimensions, with the image as the
// full-page background. Normalized field boxes then land on the page exactly
// where they land on the source image. The page must match the image edge to
// edge, so the file is assembled directly rather than through an import
// helper that may letterbox.
func promoteImage(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	w, h, rgb := flattenRGB(img)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(rgb); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to compress image data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress image data: %w", err)
	}

	// Object numbers are fixed by construction order: 1 catalog, 2 pages,
	// 3 page, 4 content, 5 image.
	b := newPDFBuilder()
	root := b.addObject("<< /Type /Catalog /Pages 2 0 R >>")
	b.addObject("<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.addObject(fmt.Sprintf(
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /XObject << /Bg 5 0 R >> >> /Contents 4 0 R >>",
		w, h))
	content := fmt.Sprintf("q\n%d 0 0 %d 0 0 cm\n/Bg Do\nQ\n", w, h)
	b.addStream(fmt.Sprintf("<< /Length %d >>", len(content)), []byte(content))
	b.addStream(fmt.Sprintf(
		"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode /Length %d >>",
		w, h, compressed.Len()), compressed.Bytes())

	return b.finish(root), nil
}

// pdfBuilder assembles a PDF file object by object, tracking byte offsets for
// the cross-reference table.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets []int
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{}
	b.buf.WriteString("%PDF-1.4\n")
	return b
}

// addObject appends one numbered object and returns its number.
func (b *pdfBuilder) addObject(body string) int {
	num := len(b.offsets) + 1
	b.offsets = append(b.offsets, b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
	return num
}

// addStream appends one stream object with the given dict and raw data.
func (b *pdfBuilder) addStream(dict string, data []byte) int {
	num := len(b.offsets) + 1
	b.offsets = append(b.offsets, b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nstream\n", num, dict)
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
	return num
}

// finish writes the xref table and trailer and returns the complete file.
func (b *pdfBuilder) finish(root int) []byte {
	xrefOffset := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", len(b.offsets)+1)
	b.buf.WriteString("0000000000 65535 f \n")
	for _, off := range b.offsets {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(b.offsets)+1, root, xrefOffset)
	return b.buf.Bytes()
}
