package resolve

import (
	"sort"
	"strings"

	"github.com/formfill/formfill/internal/document"
)

// flattenProfile builds the lookup dictionary the profile strategy matches
// against: scalar fields, decomposed address sub-fields, a joined address
// line, and custom entries under their normalized keys. The sorted key slice
// keeps fuzzy scans deterministic.
func flattenProfile(p *document.Profile) (map[string]string, []string) {
	flat := map[string]string{}
	if p == nil {
		return flat, nil
	}

	put := func(key, value string) {
		if value != "" {
			flat[key] = value
		}
	}

	put("full_name", p.FullName)
	put("email", p.Email)
	put("phone", p.Phone)
	put("ssn", p.SSN)
	put("emergency_contact", p.EmergencyContact)
	if !p.DateOfBirth.IsZero() {
		put("date_of_birth", p.DateOfBirth.Format(document.DateLayout))
	}

	put("street", p.Address.Street)
	put("city", p.Address.City)
	put("state", p.Address.State)
	put("zip", p.Address.ZIP)
	put("address", joinAddress(p.Address))

	for k, v := range p.Custom {
		nk := document.NormalizeKey(k)
		if nk != "" {
			put(nk, v)
		}
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return flat, keys
}

func joinAddress(a document.Address) string {
	var parts []string
	for _, p := range []string{a.Street, a.City, a.State, a.ZIP} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// matchProfile tries the three profile sub-strategies in order: exact
// flattened-key match, synonym-group match, then fuzzy similarity above the
// configured threshold. The matched flattened key is reported as source id.
func (e *Engine) matchProfile(key string, flat map[string]string, flatKeys []string) (value, matchedKey string, confidence float64, ok bool) {
	if len(flat) == 0 || key == "" {
		return "", "", 0, false
	}

	if v, found := flat[key]; found {
		return v, key, e.weights.ExactConfidence, true
	}

	canonicals := make([]string, 0, len(e.tables.Synonyms))
	for c := range e.tables.Synonyms {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)
	for _, canonical := range canonicals {
		group := e.tables.Synonyms[canonical]
		if key != canonical && !containsString(group, key) {
			continue
		}
		for _, member := range append([]string{canonical}, group...) {
			if v, found := flat[member]; found {
				return v, member, e.weights.SynonymConfidence, true
			}
		}
	}

	bestScore := e.weights.FuzzyThreshold
	bestKey := ""
	for _, fk := range flatKeys {
		if sim := Similarity(key, fk); sim > bestScore {
			bestScore = sim
			bestKey = fk
		}
	}
	if bestKey == "" {
		return "", "", 0, false
	}
	return flat[bestKey], bestKey, bestScore, true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
