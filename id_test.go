package lemonrest

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	valid := map[string]int64{
		"1":             1,
		"42":            42,
		" 7 ":           7,
		"-3":            -3,
		"0":             0,
		"1700000000000": 1700000000000,
	}

	for in, expected := range valid {
		t.Run(in, func(t *testing.T) {
			id, err := ParseID(in)
			require.NoError(t, err)
			assert.Equal(t, expected, id)
		})
	}

	for _, in := range []string{"", "abc", "1.5", "+1", "1e3", "99999999999999999999"} {
		t.Run("invalid "+in, func(t *testing.T) {
			_, err := ParseID(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidID))
		})
	}
}
