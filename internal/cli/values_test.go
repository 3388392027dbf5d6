package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"1.5", 1.5},
		{"1e3", 1000.0},
		{"null", nil},
		{"'null'", "null"},
		{`"42"`, "42"},
		{"Krakatit", "Krakatit"},
		{"hello", "hello"},
		{"", ""},
		{"'", "'"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.raw))
		})
	}
}

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"title=R.U.R.", "year=1920", "en_title=null", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title":    "R.U.R.",
		"year":     int64(1920),
		"en_title": nil,
		"note":     "a=b",
	}, values)

	values, err = parseAssignments(nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestParseAssignments_Invalid(t *testing.T) {
	for _, args := range [][]string{
		{"title"},
		{"=value"},
		{"year=1", "year=2"},
	} {
		_, err := parseAssignments(args)
		assert.Error(t, err, "%v", args)
	}
}
