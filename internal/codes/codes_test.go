package codes

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := Generate()
		require.NoError(t, err)
		require.Len(t, code, Length)
		assert.Equal(t, strings.ToUpper(code), code)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
		}
		seen[code] = true
	}
	assert.Len(t, seen, 200)
}

func TestUnique(t *testing.T) {
	t.Run("retries_collisions", func(t *testing.T) {
		calls := 0
		code, err := Unique(func(string) (bool, error) {
			calls++
			return calls < 3, nil
		})
		require.NoError(t, err)
		assert.Len(t, code, Length)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives_up", func(t *testing.T) {
		_, err := Unique(func(string) (bool, error) { return true, nil })
		assert.Error(t, err)
	})

	t.Run("lookup_error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Unique(func(string) (bool, error) { return false, boom })
		assert.ErrorIs(t, err, boom)
	})
}
