package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formfill/formfill/internal/document"
)

var testNow = time.Date(2026, time.August, 25, 10, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	e := NewEngine(DefaultTables(), DefaultWeights())
	e.now = func() time.Time { return testNow }
	return e
}

func field(id, key string, ft document.FieldType) document.ClassifiedField {
	return document.ClassifiedField{ID: id, Key: key, Label: key, Type: ft}
}

func TestResolveProfileExactMatch(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{Profile: &document.Profile{Email: "jane@example.com"}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "email", document.FieldTypeEmail)}, uc)

	require.Len(t, mappings, 1)
	m := mappings[0]
	assert.Equal(t, "f1", m.FieldID)
	assert.Equal(t, "jane@example.com", m.Value)
	assert.Equal(t, document.SourceProfile, m.Source)
	assert.Equal(t, "email", m.SourceID)
	assert.InDelta(t, 0.95, m.Confidence, 1e-9)
}

func TestResolveProfileSynonymMatch(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{Profile: &document.Profile{FullName: "Jane Doe"}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "patient_name", document.FieldTypeText)}, uc)

	require.Len(t, mappings, 1)
	m := mappings[0]
	assert.Equal(t, "Jane Doe", m.Value)
	assert.Equal(t, document.SourceProfile, m.Source)
	assert.InDelta(t, 0.8, m.Confidence, 1e-9)
}

func TestResolveProfileFuzzyMatch(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{Profile: &document.Profile{FullName: "Jane Doe"}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "full_nam", document.FieldTypeText)}, uc)

	require.Len(t, mappings, 1)
	m := mappings[0]
	assert.Equal(t, "Jane Doe", m.Value)
	assert.Equal(t, document.SourceProfile, m.Source)
	assert.Equal(t, "full_name", m.SourceID)
	assert.InDelta(t, 1.0-1.0/9.0, m.Confidence, 1e-9)
}

func TestResolveProfileAddressSubFields(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{Profile: &document.Profile{
		Address: document.Address{Street: "123 Main St", City: "Springfield", State: "IL", ZIP: "62704"},
	}}

	mappings := e.Resolve([]document.ClassifiedField{
		field("f1", "city", document.FieldTypeText),
		field("f2", "zip_code", document.FieldTypeText),
		field("f3", "address", document.FieldTypeAddress),
	}, uc)

	require.Len(t, mappings, 3)
	assert.Equal(t, "Springfield", mappings[0].Value)
	assert.Equal(t, "62704", mappings[1].Value, "zip_code resolves through the zip synonym group")
	assert.Equal(t, "123 Main St, Springfield, IL, 62704", mappings[2].Value)
}

func TestResolveTodayRule(t *testing.T) {
	e := newTestEngine()
	// Stored saved dates must not shadow the today resolver.
	uc := document.UserContext{SavedDates: []document.SavedDate{
		{ID: "sd1", Label: "Some Date", Value: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
	}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "todays_date", document.FieldTypeDate)}, uc)

	require.Len(t, mappings, 1)
	m := mappings[0]
	assert.Equal(t, "08/25/2026", m.Value)
	assert.Equal(t, document.SourceSavedDate, m.Source)
	assert.Empty(t, m.SourceID)
	assert.InDelta(t, 0.9, m.Confidence, 1e-9)
}

func TestResolveSavedDateLabelScan(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{SavedDates: []document.SavedDate{
		{ID: "sd1", Label: "Covid Vaccination", Value: time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)},
	}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "vaccination_date", document.FieldTypeDate)}, uc)

	require.Len(t, mappings, 1)
	m := mappings[0]
	assert.Equal(t, "03/14/2025", m.Value)
	assert.Equal(t, document.SourceSavedDate, m.Source)
	assert.Equal(t, "sd1", m.SourceID)
	assert.InDelta(t, 0.9, m.Confidence, 1e-9)
}

func TestResolveSavedDateFuzzy(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{SavedDates: []document.SavedDate{
		{ID: "sd1", Label: "License Expiration", Value: time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)},
	}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "license_expiration_dt", document.FieldTypeDate)}, uc)

	require.Len(t, mappings, 1)
	m := mappings[0]
	assert.Equal(t, "06/30/2027", m.Value)
	assert.Equal(t, "sd1", m.SourceID)
	assert.Greater(t, m.Confidence, 0.7)
	assert.LessOrEqual(t, m.Confidence, 1.0)
}

func TestResolveSavedDateOnlyForDateFields(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{SavedDates: []document.SavedDate{
		{ID: "sd1", Label: "Todays Date", Value: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
	}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "todays_date", document.FieldTypeText)}, uc)

	require.Len(t, mappings, 1)
	assert.Equal(t, document.SourceManual, mappings[0].Source)
	assert.Empty(t, mappings[0].Value)
}

func TestResolveHouseholdSpouse(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{HouseholdMembers: []document.HouseholdMember{
		{ID: "hm1", Name: "Alex Doe", Relationship: "Spouse"},
		{ID: "hm2", Name: "Sam Doe", Relationship: "Child", DateOfBirth: time.Date(2015, time.March, 10, 0, 0, 0, 0, time.UTC)},
	}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "spouse_name", document.FieldTypeText)}, uc)

	require.Len(t, mappings, 1)
	m := mappings[0]
	assert.Equal(t, "Alex Doe", m.Value)
	assert.Equal(t, document.SourceHouseholdMember, m.Source)
	assert.Equal(t, "hm1", m.SourceID)
	assert.InDelta(t, 1.0, m.Confidence, 1e-9, "stacked scores cap at 1.0")
}

func TestResolveHouseholdMinorDateOfBirth(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{HouseholdMembers: []document.HouseholdMember{
		{ID: "hm1", Name: "Sam Doe", Relationship: "Child", DateOfBirth: time.Date(2015, time.March, 10, 0, 0, 0, 0, time.UTC)},
	}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "child_date_of_birth", document.FieldTypeDate)}, uc)

	require.Len(t, mappings, 1)
	m := mappings[0]
	assert.Equal(t, "03/10/2015", m.Value)
	assert.Equal(t, document.SourceHouseholdMember, m.Source)
	assert.Equal(t, "hm1", m.SourceID)
	assert.InDelta(t, 1.0, m.Confidence, 1e-9)
}

func TestResolveHouseholdRequiresIndicator(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{HouseholdMembers: []document.HouseholdMember{
		{ID: "hm1", Name: "Sam Doe", Relationship: "Child"},
	}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "occupation", document.FieldTypeText)}, uc)

	require.Len(t, mappings, 1)
	assert.Equal(t, document.SourceManual, mappings[0].Source)
	assert.Zero(t, mappings[0].Confidence)
}

func TestResolveHouseholdBelowMinimumScore(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{HouseholdMembers: []document.HouseholdMember{
		{ID: "hm1", Name: "Pat Doe", Relationship: "Son", DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)},
	}}

	// "family" triggers the strategy but nothing scores above the minimum.
	mappings := e.Resolve([]document.ClassifiedField{field("f1", "family_doctor", document.FieldTypeText)}, uc)

	require.Len(t, mappings, 1)
	assert.Equal(t, document.SourceManual, mappings[0].Source)
	assert.Empty(t, mappings[0].Value)
}

func TestResolveMappingCompleteness(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{Profile: &document.Profile{FullName: "Jane Doe"}}

	fields := []document.ClassifiedField{
		field("f1", "full_name", document.FieldTypeText),
		field("f2", "unmatchable_field_xyz", document.FieldTypeText),
		field("f3", "another_unknown", document.FieldTypeText),
	}
	mappings := e.Resolve(fields, uc)

	require.Len(t, mappings, len(fields))
	for i, m := range mappings {
		assert.Equal(t, fields[i].ID, m.FieldID)
		assert.GreaterOrEqual(t, m.Confidence, 0.0)
		assert.LessOrEqual(t, m.Confidence, 1.0)
	}
}

func TestResolveExactOutranksFuzzy(t *testing.T) {
	e := newTestEngine()
	uc := document.UserContext{Profile: &document.Profile{
		FullName: "Jane Doe",
		Custom:   map[string]string{"full_names": "not this one"},
	}}

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "full_name", document.FieldTypeText)}, uc)

	require.Len(t, mappings, 1)
	assert.Equal(t, "Jane Doe", mappings[0].Value)
	assert.Equal(t, "full_name", mappings[0].SourceID)
	assert.InDelta(t, 0.95, mappings[0].Confidence, 1e-9)
}

func TestResolveEmptyContext(t *testing.T) {
	e := newTestEngine()

	mappings := e.Resolve([]document.ClassifiedField{field("f1", "full_name", document.FieldTypeText)}, document.UserContext{})

	require.Len(t, mappings, 1)
	assert.Equal(t, document.SourceManual, mappings[0].Source)
	assert.Empty(t, mappings[0].Value)
	assert.Zero(t, mappings[0].Confidence)
}

type recordingSaver struct {
	userID string
	key    string
	value  string
	calls  int
	err    error
}

func (r *recordingSaver) Save(_ context.Context, userID, key, value string) error {
	r.calls++
	r.userID = userID
	r.key = key
	r.value = value
	return r.err
}

func TestApplyEdit(t *testing.T) {
	e := newTestEngine()
	f := document.ClassifiedField{ID: "f1", Key: "Patient Name", Type: document.FieldTypeText, SaveToProfile: true}

	saver := &recordingSaver{}
	m, err := e.ApplyEdit(context.Background(), saver, "user-1", f, "Jane Q. Doe", true)

	require.NoError(t, err)
	assert.Equal(t, "Jane Q. Doe", m.Value)
	assert.Equal(t, document.SourceManual, m.Source)
	assert.InDelta(t, 1.0, m.Confidence, 1e-9)
	assert.Equal(t, 1, saver.calls)
	assert.Equal(t, "user-1", saver.userID)
	assert.Equal(t, "name", saver.key, "synonym-group members persist under the canonical key")
	assert.Equal(t, "Jane Q. Doe", saver.value)
}

func TestApplyEditSkipsWriteBack(t *testing.T) {
	e := newTestEngine()
	saver := &recordingSaver{}

	tests := []struct {
		name          string
		field         document.ClassifiedField
		saveToProfile bool
		value         string
	}{
		{
			name:          "caller_opted_out",
			field:         document.ClassifiedField{ID: "f1", Key: "email", SaveToProfile: true},
			saveToProfile: false,
			value:         "a@b.com",
		},
		{
			name:          "field_not_marked_for_profile",
			field:         document.ClassifiedField{ID: "f1", Key: "notes", SaveToProfile: false},
			saveToProfile: true,
			value:         "some notes",
		},
		{
			name:          "empty_value",
			field:         document.ClassifiedField{ID: "f1", Key: "email", SaveToProfile: true},
			saveToProfile: true,
			value:         "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := e.ApplyEdit(context.Background(), saver, "user-1", tt.field, tt.value, tt.saveToProfile)
			require.NoError(t, err)
			assert.Equal(t, document.SourceManual, m.Source)
			assert.Equal(t, 0, saver.calls)
		})
	}
}

func TestApplyEditSaverError(t *testing.T) {
	e := newTestEngine()
	f := document.ClassifiedField{ID: "f1", Key: "email", SaveToProfile: true}
	saver := &recordingSaver{err: errors.New("backend down")}

	m, err := e.ApplyEdit(context.Background(), saver, "user-1", f, "a@b.com", true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile write-back")
	// The mapping itself is still valid; persistence failed, not the edit.
	assert.Equal(t, "a@b.com", m.Value)
	assert.InDelta(t, 1.0, m.Confidence, 1e-9)
}

func TestWriteBackKey(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "canonical_passthrough", input: "email", expected: "email"},
		{name: "synonym_member", input: "Patient Name", expected: "name"},
		{name: "dob_variant", input: "DOB", expected: "date_of_birth"},
		{name: "unknown_goes_custom", input: "Favorite Color", expected: "favorite_color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.WriteBackKey(tt.input))
		})
	}
}
