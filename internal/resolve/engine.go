// Package resolve implements the auto-fill resolution engine: given
// classified fields and a user's stored context it computes a best-effort
// value and provenance for every field. Strategies run in a fixed order
// (profile, saved dates, household members) and the first success wins.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/formfill/formfill/internal/document"
)

// ProfileSaver persists a manual edit back to the user's profile. Direct
// attributes store under their canonical key; everything else is expected to
// land in the profile's custom dictionary.
type ProfileSaver interface {
	Save(ctx context.Context, userID, key, value string) error
}

// Engine resolves classified fields against a user context snapshot
type Engine struct {
	tables  Tables
	weights Weights
	now     func() time.Time
}

// NewEngine creates an Engine with the given lookup tables and scoring
// constants. Zero values fall back to the package defaults.
func NewEngine(tables Tables, weights Weights) *Engine {
	if tables.Synonyms == nil && tables.DateRules == nil {
		tables = DefaultTables()
	}
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Engine{
		tables:  tables,
		weights: weights,
		now:     time.Now,
	}
}

// Resolve produces exactly one mapping per classified field. Fields no
// strategy can answer map to an empty manual mapping with confidence zero.
// The pass is read-only over the context snapshot.
func (e *Engine) Resolve(fields []document.ClassifiedField, uc document.UserContext) []document.FieldMapping {
	flat, flatKeys := flattenProfile(uc.Profile)

	out := make([]document.FieldMapping, 0, len(fields))
	for _, f := range fields {
		out = append(out, e.resolveField(f, uc, flat, flatKeys))
	}
	return out
}

func (e *Engine) resolveField(f document.ClassifiedField, uc document.UserContext, flat map[string]string, flatKeys []string) document.FieldMapping {
	key := document.NormalizeKey(f.Key)

	if v, matched, conf, ok := e.matchProfile(key, flat, flatKeys); ok {
		return document.FieldMapping{
			FieldID:    f.ID,
			Value:      v,
			Source:     document.SourceProfile,
			SourceID:   matched,
			Confidence: conf,
		}
	}

	if f.Type == document.FieldTypeDate {
		if v, id, conf, ok := e.matchSavedDate(key, uc); ok {
			return document.FieldMapping{
				FieldID:    f.ID,
				Value:      v,
				Source:     document.SourceSavedDate,
				SourceID:   id,
				Confidence: conf,
			}
		}
	}

	if v, id, conf, ok := e.matchHousehold(key, f.Label, uc); ok {
		return document.FieldMapping{
			FieldID:    f.ID,
			Value:      v,
			Source:     document.SourceHouseholdMember,
			SourceID:   id,
			Confidence: conf,
		}
	}

	return document.FieldMapping{
		FieldID:    f.ID,
		Source:     document.SourceManual,
		Confidence: 0,
	}
}

// ApplyEdit overwrites a field's mapping with a manual value at full
// confidence. When the field opts into profile persistence and a saver is
// available, the value is written back under its canonical key.
func (e *Engine) ApplyEdit(ctx context.Context, saver ProfileSaver, userID string, field document.ClassifiedField, value string, saveToProfile bool) (document.FieldMapping, error) {
	mapping := document.FieldMapping{
		FieldID:    field.ID,
		Value:      value,
		Source:     document.SourceManual,
		Confidence: 1.0,
	}
	if !saveToProfile || !field.SaveToProfile || saver == nil || value == "" {
		return mapping, nil
	}
	if err := saver.Save(ctx, userID, e.WriteBackKey(field.Key), value); err != nil {
		return mapping, fmt.Errorf("profile write-back for %q: %w", field.Key, err)
	}
	return mapping, nil
}

// WriteBackKey maps a field key onto the profile attribute it should persist
// under: members of a synonym group store under the group's canonical key,
// everything else keeps its normalized key and lands in the custom dictionary.
func (e *Engine) WriteBackKey(fieldKey string) string {
	nk := document.NormalizeKey(fieldKey)
	canonicals := make([]string, 0, len(e.tables.Synonyms))
	for c := range e.tables.Synonyms {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)
	for _, canonical := range canonicals {
		if nk == canonical || containsString(e.tables.Synonyms[canonical], nk) {
			return canonical
		}
	}
	return nk
}
