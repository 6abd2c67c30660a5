package document

import (
	"strings"
	"unicode"
)

// NormalizeKey canonicalizes a field key: lowercase, runs of non-alphanumeric
// characters collapsed to a single underscore, leading and trailing
// underscores trimmed. Every stage that compares or stores keys goes through
// this so "Patient Name", "patient-name" and "patient_name" are one key.
func NormalizeKey(s string) string {
	var b strings.Builder
	pendingUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			pendingUnderscore = false
			continue
		}
		if !pendingUnderscore {
			b.WriteByte('_')
			pendingUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
