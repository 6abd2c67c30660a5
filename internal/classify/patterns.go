package classify

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/formfill/formfill/internal/document"
)

// Text patterns that override the service-reported field type
var (
	phonePattern = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	datePattern  = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	digitsOnly   = regexp.MustCompile(`^\d+$`)
)

// overrideType inspects a candidate's raw text and corrects the field type
// regardless of what the service reported. Checks run in a fixed precedence
// and the first hit wins. Signature hits also force the field required.
func overrideType(rawText string) (fieldType document.FieldType, forceRequired, matched bool) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return "", false, false
	}

	switch {
	case strings.Contains(text, "@"):
		return document.FieldTypeEmail, false, true
	case phonePattern.MatchString(text):
		return document.FieldTypePhone, false, true
	case datePattern.MatchString(text):
		return document.FieldTypeDate, false, true
	case digitsOnly.MatchString(text):
		return document.FieldTypeNumber, false, true
	case strings.Contains(strings.ToLower(text), "sign"):
		return document.FieldTypeSignature, true, true
	}
	return "", false, false
}

// isPunctuationOnly reports whether the text carries no letters or digits.
// Empty strings count as punctuation-only.
func isPunctuationOnly(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// saveToProfileVocabulary lists the key fragments that mark a field as worth
// persisting to the user's profile
var saveToProfileVocabulary = []string{
	"name", "first_name", "last_name", "full_name",
	"email", "phone", "address", "street", "city", "state", "zip",
	"date_of_birth", "dob", "ssn", "social_security", "emergency_contact",
}

// defaultSaveToProfile reports whether the key overlaps the profile
// vocabulary
func defaultSaveToProfile(key string) bool {
	nk := document.NormalizeKey(key)
	if nk == "" {
		return false
	}
	for _, v := range saveToProfileVocabulary {
		if strings.Contains(nk, v) {
			return true
		}
	}
	return false
}

// cannedSuggestions supplies type-specific hints when the service offered none
var cannedSuggestions = map[document.FieldType][]string{
	document.FieldTypeDate:      {"MM/DD/YYYY", "Today", "Date of Birth"},
	document.FieldTypeCheckbox:  {"Yes", "No"},
	document.FieldTypeRadio:     {"Yes", "No"},
	document.FieldTypeEmail:     {"name@example.com"},
	document.FieldTypePhone:     {"(555) 555-5555"},
	document.FieldTypeSignature: {"Sign here"},
}

func suggestionsFor(t document.FieldType) []string {
	canned, ok := cannedSuggestions[t]
	if !ok {
		return nil
	}
	out := make([]string, len(canned))
	copy(out, canned)
	return out
}
