package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedCases(t *testing.T) {
	cat, err := Load("")
	require.NoError(t, err)

	list := cat.List()
	require.Len(t, list, 3)

	profile, err := cat.Lookup("case_pregnant_abdominal_pain")
	require.NoError(t, err)
	assert.Equal(t, "Angie Smith", profile.Name)
	assert.Equal(t, 26, profile.Age)
	assert.Equal(t, 2, profile.ESILevel)
	assert.Contains(t, profile.OpeningLine, "18 weeks pregnant")
}

func TestLookupUnknownCase(t *testing.T) {
	cat, err := Load("")
	require.NoError(t, err)

	_, err = cat.Lookup("case_missing")
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestListTruncatesComplaint(t *testing.T) {
	cat, err := Load("")
	require.NoError(t, err)

	for _, summary := range cat.List() {
		runes := []rune(summary.Complaint)
		if strings.HasSuffix(summary.Complaint, "...") {
			assert.Len(t, runes, maxComplaintLen+3)
		} else {
			assert.LessOrEqual(t, len(runes), maxComplaintLen)
		}
	}
}

func writeCaseFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeCaseFile(t, `
cases:
  - id: case_custom
    name: Pat Doe
    age: 40
    sex: Other
    esi_level: 4
    chief_complaint: Sprained ankle after a fall.
    opening_line: I twisted my ankle this morning.
    hot_clues: "'mechanism of injury'"
    scoring_rule: Award +10 for asking how it happened.
`)
	cat, err := Load(path)
	require.NoError(t, err)

	profile, err := cat.Lookup("case_custom")
	require.NoError(t, err)
	assert.Equal(t, "Pat Doe", profile.Name)
	assert.Len(t, cat.List(), 1)
}

func TestLoadRejectsInvalidCases(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", `
cases:
  - id: case_bad
    age: 40
    sex: Other
    esi_level: 2
    chief_complaint: x
    opening_line: x
    hot_clues: x
    scoring_rule: x
`},
		{"zero esi level", `
cases:
  - id: case_bad
    name: Pat Doe
    age: 40
    sex: Other
    esi_level: 0
    chief_complaint: x
    opening_line: x
    hot_clues: x
    scoring_rule: x
`},
		{"duplicate ids", `
cases:
  - id: case_dup
    name: Pat Doe
    age: 40
    sex: Other
    esi_level: 2
    chief_complaint: x
    opening_line: x
    hot_clues: x
    scoring_rule: x
  - id: case_dup
    name: Sam Roe
    age: 41
    sex: Other
    esi_level: 3
    chief_complaint: y
    opening_line: y
    hot_clues: y
    scoring_rule: y
`},
		{"no cases", "cases: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeCaseFile(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}
