package extract

import (
	"bytes"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/formfill/formfill/internal/document"
)

const (
	// Geometry thresholds for assembling per-glyph text into runs, in
	// PDF points.
	lineTolerancePt = 2.0
	defaultGlyphPt  = 12.0

	// US Letter fallback when a page carries no usable MediaBox.
	defaultPageWidthPt  = 612.0
	defaultPageHeightPt = 792.0

	maxParentDepth = 10
)

// pageBox is a page's MediaBox in PDF points, bottom-left origin.
type pageBox struct {
	llx, lly, urx, ury float64
}

func (p pageBox) width() float64  { return p.urx - p.llx }
func (p pageBox) height() float64 { return p.ury - p.lly }

func defaultPageBox() pageBox {
	return pageBox{0, 0, defaultPageWidthPt, defaultPageHeightPt}
}

// textRuns extracts positioned text runs from every page of a PDF. Each run
// becomes one candidate at the text-layer confidence. Pages that panic inside
// the parser are skipped rather than failing the document.
func textRuns(data []byte) ([]document.Candidate, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open PDF: %w", err)
	}

	pages := reader.NumPage()
	var candidates []document.Candidate
	for pageNum := 1; pageNum <= pages; pageNum++ {
		candidates = append(candidates, pageTextRuns(reader, pageNum)...)
	}
	return candidates, pages, nil
}

// pageTextRuns extracts runs from a single page with panic recovery for
// malformed content streams.
func pageTextRuns(reader *pdf.Reader, pageNum int) (runs []document.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[extract] panic reading text on page %d: %v", pageNum, r)
			runs = nil
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return nil
	}

	box := pageMediaBox(page)
	content := page.Content()
	return assembleRuns(content.Text, pageNum, box)
}

// pageMediaBox resolves the page's MediaBox, walking up the page tree for
// inherited values and falling back to US Letter.
func pageMediaBox(page pdf.Page) pageBox {
	current := page.V
	for i := 0; i < maxParentDepth && !current.IsNull(); i++ {
		if box, ok := parseMediaBox(current.Key("MediaBox")); ok {
			return box
		}
		current = current.Key("Parent")
	}
	return defaultPageBox()
}

func parseMediaBox(v pdf.Value) (pageBox, bool) {
	if v.IsNull() || v.Kind() != pdf.Array || v.Len() != 4 {
		return pageBox{}, false
	}

	coords := make([]float64, 4)
	for i := 0; i < 4; i++ {
		val := v.Index(i)
		switch val.Kind() {
		case pdf.Integer:
			coords[i] = float64(val.Int64())
		case pdf.Real:
			coords[i] = val.Float64()
		default:
			return pageBox{}, false
		}
	}

	box := pageBox{llx: coords[0], lly: coords[1], urx: coords[2], ury: coords[3]}
	if box.llx > box.urx {
		box.llx, box.urx = box.urx, box.llx
	}
	if box.lly > box.ury {
		box.lly, box.ury = box.ury, box.lly
	}
	if box.width() <= 0 || box.height() <= 0 {
		return pageBox{}, false
	}
	return box, true
}

// assembleRuns merges per-glyph text entries into word runs. Glyphs are
// clustered into baselines by Y, ordered left to right, then swept greedily:
// a gap wider than a word space inserts a space, a gap wider than a column
// break starts a new run. Output boxes are normalized to the page with a
// top-left origin.
func assembleRuns(texts []pdf.Text, pageNum int, box pageBox) []document.Candidate {
	if len(texts) == 0 {
		return nil
	}

	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Y > sorted[j].Y
	})

	// Cluster into baselines. PDF Y grows upward, so the first cluster is
	// the top of the page.
	var lines [][]pdf.Text
	lineStart := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[lineStart].Y-sorted[i].Y > lineTolerancePt {
			line := make([]pdf.Text, i-lineStart)
			copy(line, sorted[lineStart:i])
			sort.SliceStable(line, func(a, b int) bool {
				return line[a].X < line[b].X
			})
			lines = append(lines, line)
			lineStart = i
		}
	}

	var candidates []document.Candidate
	for _, line := range lines {
		candidates = append(candidates, assembleLine(line, pageNum, box)...)
	}
	return candidates
}

// assembleLine sweeps one baseline left to right, producing one candidate per
// run of glyphs separated by at most a column gap.
func assembleLine(line []pdf.Text, pageNum int, box pageBox) []document.Candidate {
	var candidates []document.Candidate

	var text strings.Builder
	var startX, cursorX, baselineY, glyphSize float64

	flush := func() {
		raw := strings.TrimSpace(text.String())
		if raw != "" {
			candidates = append(candidates, runCandidate(raw, startX, cursorX, baselineY, glyphSize, pageNum, box))
		}
		text.Reset()
	}

	for i, t := range line {
		size := t.FontSize
		if size <= 0 {
			size = defaultGlyphPt
		}

		if i == 0 {
			startX, baselineY, glyphSize = t.X, t.Y, size
		} else {
			gap := t.X - cursorX
			switch {
			case gap > columnGap(glyphSize):
				flush()
				startX, baselineY, glyphSize = t.X, t.Y, size
			case gap > wordGap(glyphSize):
				text.WriteByte(' ')
			}
		}
		if size > glyphSize {
			glyphSize = size
		}
		text.WriteString(t.S)
		cursorX = t.X + t.W
	}
	flush()

	return candidates
}

// wordGap is the horizontal gap that separates two words on a baseline. A
// space advance runs about a quarter em, so the threshold sits below that
// while staying above kerning adjustments.
func wordGap(fontSize float64) float64 {
	gap := 0.2 * fontSize
	if gap < 1.0 {
		gap = 1.0
	}
	return gap
}

func columnGap(fontSize float64) float64 {
	gap := 2.0 * fontSize
	if gap < 12.0 {
		gap = 12.0
	}
	return gap
}

// runCandidate converts one assembled run into a normalized candidate.
func runCandidate(raw string, startX, endX, baselineY, glyphSize float64, pageNum int, box pageBox) document.Candidate {
	width := endX - startX
	if width < 0 {
		width = 0
	}

	bbox := document.BoundingBox{
		Page:   pageNum,
		X:      (startX - box.llx) / box.width(),
		Y:      (box.ury - (baselineY + glyphSize)) / box.height(),
		Width:  width / box.width(),
		Height: glyphSize / box.height(),
	}

	return document.Candidate{
		ID:         uuid.New().String(),
		RawText:    raw,
		Confidence: textLayerConfidence,
		BBox:       bbox.Clamp(),
	}
}
