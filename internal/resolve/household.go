package resolve

import (
	"strings"
	"time"

	"github.com/formfill/formfill/internal/document"
)

// matchHousehold scores household members against a field that carries a
// relationship indicator in its key or label. The strategy is skipped
// entirely when no members exist or no indicator is present.
func (e *Engine) matchHousehold(key, label string, uc document.UserContext) (value, sourceID string, confidence float64, ok bool) {
	if len(uc.HouseholdMembers) == 0 {
		return "", "", 0, false
	}
	normalizedLabel := document.NormalizeKey(label)
	if !containsAny(key, e.tables.RelationshipKeywords) &&
		!containsAny(normalizedLabel, e.tables.RelationshipKeywords) {
		return "", "", 0, false
	}

	now := e.now()
	bestScore := 0.0
	var best *document.HouseholdMember
	for i := range uc.HouseholdMembers {
		m := &uc.HouseholdMembers[i]
		score := e.scoreMember(key, m, now)
		if score > bestScore {
			bestScore = score
			best = m
		}
	}
	if best == nil || bestScore <= e.weights.MinimumScore {
		return "", "", 0, false
	}
	if bestScore > 1.0 {
		bestScore = 1.0
	}

	v := e.memberValue(key, best)
	if v == "" {
		return "", "", 0, false
	}
	return v, best.ID, bestScore, true
}

func (e *Engine) scoreMember(key string, m *document.HouseholdMember, now time.Time) float64 {
	relationship := document.NormalizeKey(m.Relationship)
	score := 0.0

	if relationship != "" && strings.Contains(key, relationship) {
		score += e.weights.RelationshipMatch
	}
	if containsAny(key, e.tables.MinorKeywords) {
		if age := m.Age(now); age >= 0 && age < e.weights.MinorAgeLimit {
			score += e.weights.MinorMatch
		}
	}
	if strings.Contains(key, "spouse") && relationship == "spouse" {
		score += e.weights.SpouseMatch
	}
	return score
}

// memberValue extracts the attribute the field is asking for: date of birth
// for birth-related keys, the relationship string for relationship keys, a
// custom entry when one matches, otherwise the member's name.
func (e *Engine) memberValue(key string, m *document.HouseholdMember) string {
	switch {
	case strings.Contains(key, "birth") || strings.Contains(key, "dob"):
		if m.DateOfBirth.IsZero() {
			return m.Name
		}
		return m.DateOfBirth.Format(document.DateLayout)
	case strings.Contains(key, "relationship"):
		return m.Relationship
	case strings.Contains(key, "name"):
		return m.Name
	}
	if v, found := m.Custom[key]; found && v != "" {
		return v
	}
	return m.Name
}
