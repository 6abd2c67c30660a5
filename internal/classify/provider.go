package classify

import (
	"context"

	"github.com/formfill/formfill/internal/document"
)

// Entry is one structured classification returned by the provider for a
// submitted candidate
type Entry struct {
	CandidateID string   `json:"candidate_id"`
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Confidence  float64  `json:"confidence"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Provider is the external semantic-classification service contract. A
// provider returns at most one entry per submitted candidate; entries whose
// id matches nothing submitted are discarded by the classifier.
type Provider interface {
	Classify(ctx context.Context, candidates []document.Candidate) ([]Entry, error)
}
