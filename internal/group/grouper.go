// Package group merges spatially adjacent text candidates into line fragments
// and annotates every candidate with its nearby-text context. It is purely
// local: no I/O, no provider calls, deterministic for a given input set.
package group

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/formfill/formfill/internal/document"
)

// Default geometric thresholds, expressed in normalized page units
const (
	defaultLineTolerance = 0.01
	defaultGapTolerance  = 0.03
	defaultNearbyRadius  = 0.10
	defaultLineBreak     = 0.02
)

// Config carries the geometric thresholds the grouper operates with. All
// values are fractions of the page dimensions.
type Config struct {
	// LineTolerance is the maximum vertical center delta for two candidates
	// to be considered part of the same line during merging.
	LineTolerance float64
	// GapTolerance is the maximum horizontal gap between a candidate and the
	// right edge of the run being built for the two to merge.
	GapTolerance float64
	// NearbyRadius is the maximum center-to-center distance for a candidate
	// to contribute to another's nearby-text context.
	NearbyRadius float64
	// LineBreak is the vertical delta that starts a new line when ordering
	// candidates into reading order.
	LineBreak float64
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		LineTolerance: defaultLineTolerance,
		GapTolerance:  defaultGapTolerance,
		NearbyRadius:  defaultNearbyRadius,
		LineBreak:     defaultLineBreak,
	}
}

// Grouper merges same-line candidates and computes spatial context
type Grouper struct {
	cfg Config
}

// NewGrouper creates a Grouper with the given thresholds
func NewGrouper(cfg Config) *Grouper {
	if cfg.LineTolerance <= 0 {
		cfg.LineTolerance = defaultLineTolerance
	}
	if cfg.GapTolerance <= 0 {
		cfg.GapTolerance = defaultGapTolerance
	}
	if cfg.NearbyRadius <= 0 {
		cfg.NearbyRadius = defaultNearbyRadius
	}
	if cfg.LineBreak <= 0 {
		cfg.LineBreak = defaultLineBreak
	}
	return &Grouper{cfg: cfg}
}

// Group merges adjacent candidates, annotates nearby text, and returns the
// result in reading order: page ascending, then line, then left to right.
// The input slice is not modified.
func (g *Grouper) Group(candidates []document.Candidate) []document.Candidate {
	if len(candidates) == 0 {
		return []document.Candidate{}
	}

	merged := g.mergeLines(candidates)
	out := sortReadingOrder(merged, g.cfg.LineBreak)
	g.annotateNearby(out)
	return out
}

// mergeLines performs a one-pass greedy left-to-right sweep per line. Members
// absorbed into a run are marked consumed and never reconsidered.
func (g *Grouper) mergeLines(candidates []document.Candidate) []document.Candidate {
	rows := clusterRows(candidates, g.cfg.LineBreak)

	var out []document.Candidate
	for _, row := range rows {
		consumed := make([]bool, len(row))
		for i := range row {
			if consumed[i] {
				continue
			}
			run := row[i]
			run.BBox = run.BBox.Clamp()
			absorbed := false
			for j := i + 1; j < len(row); j++ {
				if consumed[j] {
					continue
				}
				next := row[j]
				gap := next.BBox.X - (run.BBox.X + run.BBox.Width)
				if gap >= g.cfg.GapTolerance {
					// Row is sorted by x, every later gap is wider.
					break
				}
				if !sameLine(run.BBox, next.BBox, g.cfg.LineTolerance) {
					continue
				}
				run.RawText = strings.TrimSpace(run.RawText + " " + next.RawText)
				if next.Confidence < run.Confidence {
					run.Confidence = next.Confidence
				}
				run.BBox = run.BBox.Union(next.BBox.Clamp())
				consumed[j] = true
				absorbed = true
			}
			if absorbed {
				run.ID = uuid.New().String()
			}
			out = append(out, run)
		}
	}
	return out
}

// annotateNearby sets NearbyText to the raw text of every other same-page
// candidate whose center lies within the configured radius
func (g *Grouper) annotateNearby(candidates []document.Candidate) {
	for i := range candidates {
		var nearby []string
		for j := range candidates {
			if i == j || candidates[i].BBox.Page != candidates[j].BBox.Page {
				continue
			}
			if candidates[i].BBox.CenterDistance(candidates[j].BBox) < g.cfg.NearbyRadius {
				nearby = append(nearby, candidates[j].RawText)
			}
		}
		candidates[i].NearbyText = nearby
	}
}

// clusterRows buckets candidates into visual lines: sorted by page and
// vertical center, a new row starts whenever the center moves further than
// the line-break tolerance. Rows come back sorted left to right.
func clusterRows(candidates []document.Candidate, lineBreak float64) [][]document.Candidate {
	sorted := make([]document.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BBox.Page != sorted[j].BBox.Page {
			return sorted[i].BBox.Page < sorted[j].BBox.Page
		}
		return sorted[i].BBox.CenterY() < sorted[j].BBox.CenterY()
	})

	var rows [][]document.Candidate
	var row []document.Candidate
	for _, c := range sorted {
		if len(row) > 0 {
			prev := row[len(row)-1]
			if c.BBox.Page != prev.BBox.Page || c.BBox.CenterY()-prev.BBox.CenterY() > lineBreak {
				rows = append(rows, sortRowByX(row))
				row = nil
			}
		}
		row = append(row, c)
	}
	if len(row) > 0 {
		rows = append(rows, sortRowByX(row))
	}
	return rows
}

func sortRowByX(row []document.Candidate) []document.Candidate {
	sort.SliceStable(row, func(i, j int) bool {
		return row[i].BBox.X < row[j].BBox.X
	})
	return row
}

// sortReadingOrder orders candidates by page, then line, then horizontal
// position, and returns them flattened
func sortReadingOrder(candidates []document.Candidate, lineBreak float64) []document.Candidate {
	rows := clusterRows(candidates, lineBreak)
	out := make([]document.Candidate, 0, len(candidates))
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

func sameLine(a, b document.BoundingBox, tolerance float64) bool {
	delta := a.CenterY() - b.CenterY()
	if delta < 0 {
		delta = -delta
	}
	return delta < tolerance
}
