package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeasonForms(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"2024", "2024"},
		{" 2024 ", "2024"},
		{2024, "2024"},
		{int64(2024), "2024"},
		{2024.0, "2024"},
		{"2024-25", "2024"},
		{"2024/25", "2024"},
	}

	for _, c := range cases {
		got, err := ParseSeason(c.in)
		require.NoError(t, err, "season %v should parse", c.in)
		assert.Equal(t, c.want, got)
	}
}

func TestParseSeasonRejectsGarbage(t *testing.T) {
	for _, in := range []any{nil, "", "20", "abcd", "18999", true, 1492} {
		_, err := ParseSeason(in)
		assert.Error(t, err, "season %v should be rejected", in)
	}
}

func TestIsSameSeason(t *testing.T) {
	same, err := IsSameSeason("2024-25", 2024)
	require.NoError(t, err)
	assert.True(t, same)

	same, err = IsSameSeason("2024", "2023")
	require.NoError(t, err)
	assert.False(t, same)
}
