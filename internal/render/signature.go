package render

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// signatureImage is a decoded signature ready for embedding: raw 8-bit RGB
// rows, top row first, transparency already composited over white.
type signatureImage struct {
	width  int
	height int
	rgb    []byte
}

// decodeSignature decodes PNG, JPEG or GIF signature bytes into raw RGB.
func decodeSignature(data []byte) (*signatureImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature image: %w", err)
	}

	w, h, rgb := flattenRGB(img)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("signature image has no pixels")
	}
	return &signatureImage{width: w, height: h, rgb: rgb}, nil
}

// flattenRGB converts any decoded image into raw 8-bit RGB rows, top row
// first, compositing transparency over white.
func flattenRGB(img image.Image) (int, int, []byte) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return w, h, nil
	}

	rgb := make([]byte, 0, w*h*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			// Values are alpha-premultiplied 16-bit; composite over white.
			pad := 0xffff - a
			rgb = append(rgb,
				byte(clamp16(r+pad)>>8),
				byte(clamp16(g+pad)>>8),
				byte(clamp16(b+pad)>>8))
		}
	}
	return w, h, rgb
}

func clamp16(v uint32) uint32 {
	if v > 0xffff {
		return 0xffff
	}
	return v
}
