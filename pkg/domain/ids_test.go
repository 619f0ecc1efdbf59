package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "presence/pkg/domain-errors"
)

func TestParseSessionID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSessionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSessionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSessionID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID and trims whitespace", func(t *testing.T) {
		raw := uuid.NewString()
		id, err := ParseSessionID("  " + raw + " ")
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
		assert.False(t, id.IsNil())
	})

	t.Run("round-trips through String", func(t *testing.T) {
		id := NewSessionID()
		parsed, err := ParseSessionID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}

func TestParseEventID(t *testing.T) {
	t.Run("rejects malformed input", func(t *testing.T) {
		for _, raw := range []string{"", "xyz", strings.Repeat("0", 36), uuid.Nil.String()} {
			_, err := ParseEventID(raw)
			require.Error(t, err, "input %q", raw)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})

	t.Run("fresh IDs are unique and parseable", func(t *testing.T) {
		a, b := NewEventID(), NewEventID()
		assert.NotEqual(t, a, b)

		parsed, err := ParseEventID(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	})
}

func TestOpaqueIDs(t *testing.T) {
	t.Run("person ID zero check", func(t *testing.T) {
		assert.True(t, PersonID("").IsZero())
		assert.False(t, PersonID("A123").IsZero())
	})

	t.Run("room ID zero check", func(t *testing.T) {
		assert.True(t, RoomID("").IsZero())
		assert.False(t, RoomID("LIB-2").IsZero())
	})
}
