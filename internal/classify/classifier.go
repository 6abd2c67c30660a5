// Package classify converts grouped candidates into semantically typed form
// fields. An external classification service proposes keys, labels and types;
// a deterministic local pass corrects types from text patterns, fills in
// suggestions, decides profile persistence, and deduplicates by key.
package classify

import (
	"context"
	"log"
	"sort"

	"github.com/formfill/formfill/internal/document"
)

const (
	defaultBatchSize     = 50
	defaultMinConfidence = 0.30
)

// Config carries the classifier's operating limits
type Config struct {
	// BatchSize is the maximum number of candidates per provider call.
	BatchSize int
	// MinConfidence drops candidates below this confidence before any
	// provider call.
	MinConfidence float64
}

// DefaultConfig returns the standard limits
func DefaultConfig() Config {
	return Config{
		BatchSize:     defaultBatchSize,
		MinConfidence: defaultMinConfidence,
	}
}

// Classifier turns candidates into classified fields using an external
// provider plus local enhancement rules
type Classifier struct {
	provider Provider
	cfg      Config
}

// NewClassifier creates a Classifier backed by the given provider
func NewClassifier(provider Provider, cfg Config) *Classifier {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = defaultMinConfidence
	}
	return &Classifier{provider: provider, cfg: cfg}
}

// Classify submits eligible candidates to the provider in sequential batches
// and applies the local enhancement pass to the combined results. An empty
// eligible set succeeds immediately without any provider call. A provider
// error fails the whole classification; no partial field list is returned.
func (c *Classifier) Classify(ctx context.Context, candidates []document.Candidate) ([]document.ClassifiedField, error) {
	eligible := make([]document.Candidate, 0, len(candidates))
	byID := make(map[string]document.Candidate, len(candidates))
	for _, cand := range candidates {
		if cand.Confidence < c.cfg.MinConfidence || isPunctuationOnly(cand.RawText) {
			continue
		}
		eligible = append(eligible, cand)
		byID[cand.ID] = cand
	}
	if len(eligible) == 0 {
		return []document.ClassifiedField{}, nil
	}

	var entries []Entry
	for start := 0; start < len(eligible); start += c.cfg.BatchSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := start + c.cfg.BatchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		batch, err := c.provider.Classify(ctx, eligible[start:end])
		if err != nil {
			return nil, document.NewError("classify", document.KindProviderFailure, err)
		}
		entries = append(entries, batch...)
	}

	fields := c.enhance(entries, byID)
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].BBox.Page != fields[j].BBox.Page {
			return fields[i].BBox.Page < fields[j].BBox.Page
		}
		return fields[i].BBox.CenterY() < fields[j].BBox.CenterY()
	})
	return fields, nil
}

// enhance applies the deterministic local pass in service-return order:
// effective confidence, type overrides, profile persistence, suggestions,
// and first-wins key deduplication.
func (c *Classifier) enhance(entries []Entry, byID map[string]document.Candidate) []document.ClassifiedField {
	seen := make(map[string]bool, len(entries))
	fields := make([]document.ClassifiedField, 0, len(entries))

	for _, e := range entries {
		cand, ok := byID[e.CandidateID]
		if !ok {
			log.Printf("[classify] dropping entry with unknown candidate id %q", e.CandidateID)
			continue
		}

		confidence := clampUnit(e.Confidence)
		if cand.Confidence < confidence {
			confidence = cand.Confidence
		}

		fieldType := document.NormalizeFieldType(e.Type)
		required := e.Required
		if t, forceRequired, matched := overrideType(cand.RawText); matched {
			fieldType = t
			if forceRequired {
				required = true
			}
		}

		key := document.NormalizeKey(e.Key)
		if key == "" {
			key = document.NormalizeKey(e.Label)
		}
		if key == "" {
			key = document.NormalizeKey(cand.RawText)
		}
		if key == "" {
			log.Printf("[classify] dropping entry for candidate %q with no derivable key", e.CandidateID)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		label := e.Label
		if label == "" {
			label = cand.RawText
		}

		suggestions := e.Suggestions
		if len(suggestions) == 0 {
			suggestions = suggestionsFor(fieldType)
		}

		fields = append(fields, document.ClassifiedField{
			ID:            cand.ID,
			Key:           key,
			Label:         label,
			Type:          fieldType,
			Required:      required,
			Confidence:    confidence,
			BBox:          cand.BBox.Clamp(),
			RawText:       cand.RawText,
			Suggestions:   suggestions,
			SaveToProfile: defaultSaveToProfile(key),
		})
	}
	return fields
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
