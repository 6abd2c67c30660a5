package resolve

import (
	"math"
	"testing"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected int
	}{
		{name: "identical", a: "date_of_birth", b: "date_of_birth", expected: 0},
		{name: "both empty", a: "", b: "", expected: 0},
		{name: "one empty", a: "", b: "name", expected: 4},
		{name: "single substitution", a: "phone", b: "phine", expected: 1},
		{name: "insertion", a: "name", b: "names", expected: 1},
		{name: "deletion", a: "emails", b: "email", expected: 1},
		{name: "unrelated", a: "abc", b: "xyz", expected: 3},
		{name: "unicode runes", a: "café", b: "cafe", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := levenshtein(tt.a, tt.b); got != tt.expected {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.expected)
			}
			// Distance is symmetric.
			if got := levenshtein(tt.b, tt.a); got != tt.expected {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.b, tt.a, got, tt.expected)
			}
		})
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{name: "identical", a: "full_name", b: "full_name", expected: 1.0},
		{name: "both empty", a: "", b: "", expected: 1.0},
		{name: "one empty", a: "name", b: "", expected: 0.0},
		{name: "close keys", a: "full_nam", b: "full_name", expected: 1.0 - 1.0/9.0},
		{name: "distant keys", a: "abc", b: "xyz", expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.expected)
			}
			if got < 0 || got > 1 {
				t.Errorf("Similarity(%q, %q) = %f out of [0,1]", tt.a, tt.b, got)
			}
		})
	}
}

func BenchmarkSimilarity(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Similarity("emergency_contact_phone_number", "emergency_contact_name")
	}
}
