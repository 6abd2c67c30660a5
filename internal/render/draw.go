package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/formfill/formfill/internal/document"
)

// Resource names registered on every page the overlay touches. Prefixed to
// avoid colliding with names the document already uses.
const (
	overlayFontName  = "FFHelv"
	overlayImageName = "FFSig0"
)

type opKind int

const (
	opText opKind = iota
	opCheck
	opImage
)

// drawOp is one drawing instruction bound to a field box. Boxes stay in
// normalized top-left-origin form until emit time, when the page geometry is
// known.
type drawOp struct {
	kind opKind
	box  document.BoundingBox
	text string
	img  *signatureImage
}

func (op drawOp) page() int {
	return op.box.Page
}

// usesFont reports whether emitting this op requires the overlay font.
func (op drawOp) usesFont() bool {
	return op.kind == opText
}

// pageGeometry is the target page's MediaBox in PDF points.
type pageGeometry struct {
	llx, lly float64
	w, h     float64
}

func defaultGeometry() pageGeometry {
	return pageGeometry{0, 0, 612, 792}
}

// absRect converts a normalized top-left-origin box into absolute
// bottom-left-origin page coordinates.
func absRect(box document.BoundingBox, geo pageGeometry) (x, y, w, h float64) {
	x = geo.llx + box.X*geo.w
	y = geo.lly + geo.h - box.Y*geo.h - box.Height*geo.h
	w = box.Width * geo.w
	h = box.Height * geo.h
	return x, y, w, h
}

// appendTo writes the op's content-stream fragment. Each fragment is wrapped
// in its own q/Q pair so graphics state never leaks between ops.
func (op drawOp) appendTo(buf *bytes.Buffer, geo pageGeometry, cfg Config) {
	x, y, w, h := absRect(op.box, geo)
	if w <= 0 || h <= 0 {
		return
	}

	switch op.kind {
	case opText:
		emitText(buf, x, y, w, h, op.text, cfg)
	case opCheck:
		emitCheck(buf, x, y, w, h)
	case opImage:
		if op.img != nil {
			emitImage(buf, x, y, w, h, op.img)
		}
	}
}

// emitText draws a single clipped text run, left-padded and vertically
// centered in the field box.
func emitText(buf *bytes.Buffer, x, y, w, h float64, text string, cfg Config) {
	size := cfg.FontSizePt
	if limit := 0.7 * h; limit < size {
		size = limit
	}
	if size <= 0 {
		return
	}

	baseline := y + h/2 - 0.35*size

	fmt.Fprintf(buf, "q\n%s %s %s %s re W n\nBT\n/%s %s Tf\n0 0 0 rg\n%s %s Td\n(%s) Tj\nET\nQ\n",
		num(x), num(y), num(w), num(h),
		overlayFontName, num(size),
		num(x+cfg.MarginPt), num(baseline),
		escapeText(text))
}

// emitCheck strokes a check glyph sized to 60% of the smaller field dimension,
// centered in the box.
func emitCheck(buf *bytes.Buffer, x, y, w, h float64) {
	s := 0.6 * w
	if h < w {
		s = 0.6 * h
	}
	if s <= 0 {
		return
	}

	cx := x + w/2
	cy := y + h/2
	lw := 0.12 * s
	if lw < 1.0 {
		lw = 1.0
	}

	fmt.Fprintf(buf, "q\n%s w\n0 0 0 RG\n1 J 1 j\n%s %s m\n%s %s l\n%s %s l\nS\nQ\n",
		num(lw),
		num(cx-0.5*s), num(cy),
		num(cx-0.15*s), num(cy-0.35*s),
		num(cx+0.5*s), num(cy+0.35*s))
}

// emitImage places the signature image aspect-fit and centered in the box.
func emitImage(buf *bytes.Buffer, x, y, w, h float64, img *signatureImage) {
	dw, dh := fitDimensions(float64(img.width), float64(img.height), w, h)
	if dw <= 0 || dh <= 0 {
		return
	}

	dx := x + (w-dw)/2
	dy := y + (h-dh)/2

	fmt.Fprintf(buf, "q\n%s 0 0 %s %s %s cm\n/%s Do\nQ\n",
		num(dw), num(dh), num(dx), num(dy), overlayImageName)
}

// fitDimensions scales (srcW, srcH) to fit inside (boxW, boxH) preserving
// aspect ratio, fitting by whichever axis is tighter.
func fitDimensions(srcW, srcH, boxW, boxH float64) (float64, float64) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	scale := boxW / srcW
	if s := boxH / srcH; s < scale {
		scale = s
	}
	return srcW * scale, srcH * scale
}

// isTruthyValue reports whether a checkbox mapping value means checked.
func isTruthyValue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "x", "1", "checked":
		return true
	}
	return false
}

// escapeText sanitizes a value for a PDF literal string. Runes outside the
// single-byte range are replaced since the overlay font is WinAnsi encoded.
func escapeText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(byte(r))
		case '\n', '\r', '\t':
			b.WriteByte(' ')
		default:
			if r > 255 {
				b.WriteByte('?')
			} else {
				b.WriteByte(byte(r))
			}
		}
	}
	return b.String()
}

// num formats a coordinate for a content stream.
func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
