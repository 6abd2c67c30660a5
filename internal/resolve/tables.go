package resolve

// DateRule resolves a date-typed field against stored context. A rule fires
// when the normalized field key contains any of its key keywords. Today rules
// resolve to the current date without consulting stored data; label rules
// scan saved-date labels for one of their label keywords.
type DateRule struct {
	KeyKeywords   []string
	Today         bool
	LabelKeywords []string
}

// Tables is the immutable lookup data the engine matches against. It is
// loaded once at startup and injected so tests can substitute alternates.
type Tables struct {
	// Synonyms groups a canonical semantic key with the alternate spellings
	// seen on real forms. A field key belonging to a group resolves through
	// the first group member that exists on the flattened profile.
	Synonyms map[string][]string
	// DateRules are tried in order before fuzzy label matching.
	DateRules []DateRule
	// RelationshipKeywords gate the household strategy: the field key or
	// label must contain one of them.
	RelationshipKeywords []string
	// MinorKeywords mark a field key as referring to a minor.
	MinorKeywords []string
}

// DefaultTables returns the built-in lookup data
func DefaultTables() Tables {
	return Tables{
		Synonyms: map[string][]string{
			"name": {
				"full_name", "patient_name", "client_name", "applicant_name",
				"employee_name", "student_name", "member_name", "your_name",
				"printed_name", "legal_name",
			},
			"email": {
				"email_address", "e_mail", "e_mail_address", "contact_email",
			},
			"phone": {
				"phone_number", "telephone", "telephone_number", "cell_phone",
				"mobile_number", "contact_number", "daytime_phone", "home_phone",
			},
			"address": {
				"street_address", "home_address", "mailing_address",
				"current_address", "residence_address",
			},
			"date_of_birth": {
				"dob", "birth_date", "birthdate", "d_o_b",
			},
			"ssn": {
				"social_security_number", "social_security", "ss_number", "ss",
			},
			"emergency_contact": {
				"emergency_contact_name", "emergency_name", "ice_contact",
			},
			"city":  {"town", "municipality"},
			"state": {"province", "region"},
			"zip":   {"zip_code", "postal_code", "zipcode"},
		},
		DateRules: []DateRule{
			{
				KeyKeywords: []string{"today", "current_date", "date_signed", "signature_date"},
				Today:       true,
			},
			{
				KeyKeywords:   []string{"birth", "dob"},
				LabelKeywords: []string{"birth", "dob"},
			},
			{
				KeyKeywords:   []string{"immunization", "vaccination", "vaccine"},
				LabelKeywords: []string{"immunization", "vaccination", "vaccine"},
			},
			{
				KeyKeywords:   []string{"appointment", "visit"},
				LabelKeywords: []string{"appointment", "visit"},
			},
		},
		RelationshipKeywords: []string{
			"child", "spouse", "dependent", "family", "guardian", "parent",
		},
		MinorKeywords: []string{
			"child", "dependent", "minor",
		},
	}
}

// Weights carries the heuristic scoring constants. The household values have
// no documented derivation; they are kept configurable rather than inlined.
type Weights struct {
	// Profile strategy confidences.
	ExactConfidence   float64
	SynonymConfidence float64
	// Similarity a fuzzy match must exceed to be accepted.
	FuzzyThreshold float64
	// Confidence for semantic date-rule hits.
	DateRuleConfidence float64
	// Household scoring.
	RelationshipMatch float64
	MinorMatch        float64
	SpouseMatch       float64
	MinimumScore      float64
	// Age below which a household member counts as a minor.
	MinorAgeLimit int
}

// DefaultWeights returns the standard scoring constants
func DefaultWeights() Weights {
	return Weights{
		ExactConfidence:    0.95,
		SynonymConfidence:  0.8,
		FuzzyThreshold:     0.7,
		DateRuleConfidence: 0.9,
		RelationshipMatch:  0.8,
		MinorMatch:         0.6,
		SpouseMatch:        0.9,
		MinimumScore:       0.5,
		MinorAgeLimit:      18,
	}
}
