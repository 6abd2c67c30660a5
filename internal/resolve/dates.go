package resolve

import (
	"strings"

	"github.com/formfill/formfill/internal/document"
)

// matchSavedDate applies the semantic date rules in order, then falls back to
// fuzzy-matching the field key against saved-date labels. Only called for
// date-typed fields. Today rules resolve without consulting stored data.
func (e *Engine) matchSavedDate(key string, uc document.UserContext) (value, sourceID string, confidence float64, ok bool) {
	if key == "" {
		return "", "", 0, false
	}

	for _, rule := range e.tables.DateRules {
		if !containsAny(key, rule.KeyKeywords) {
			continue
		}
		if rule.Today {
			return e.now().Format(document.DateLayout), "", e.weights.DateRuleConfidence, true
		}
		for _, sd := range uc.SavedDates {
			if sd.Value.IsZero() {
				continue
			}
			if containsAny(strings.ToLower(sd.Label), rule.LabelKeywords) {
				return sd.Value.Format(document.DateLayout), sd.ID, e.weights.DateRuleConfidence, true
			}
		}
		// Rule keyword matched but nothing stored under it; later rules or
		// the fuzzy pass may still resolve the field.
	}

	bestScore := e.weights.FuzzyThreshold
	var best *document.SavedDate
	for i := range uc.SavedDates {
		sd := &uc.SavedDates[i]
		if sd.Value.IsZero() {
			continue
		}
		if sim := Similarity(key, document.NormalizeKey(sd.Label)); sim > bestScore {
			bestScore = sim
			best = sd
		}
	}
	if best == nil {
		return "", "", 0, false
	}
	return best.Value.Format(document.DateLayout), best.ID, bestScore, true
}
