package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confd/internal/types"
)

// TestStoreBasicOperations tests get/set/delete semantics
func TestStoreBasicOperations(t *testing.T) {
	s := New(map[string]string{"LOG_LEVEL": "info"})

	v, err := s.Get("LOG_LEVEL")
	require.NoError(t, err)
	assert.Equal(t, "info", v)

	_, err = s.Get("MISSING")
	assert.ErrorIs(t, err, types.ErrKeyNotFound)

	old, existed := s.Set("LOG_LEVEL", "debug")
	assert.True(t, existed)
	assert.Equal(t, "info", old)

	_, existed = s.Set("NEW_KEY", "value")
	assert.False(t, existed)
	assert.Equal(t, 2, s.Len())

	removed, err := s.Delete("NEW_KEY")
	require.NoError(t, err)
	assert.Equal(t, "value", removed)
	assert.False(t, s.Has("NEW_KEY"))

	_, err = s.Delete("NEW_KEY")
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
}

// TestStoreRequiredKeys tests the deletion veto
func TestStoreRequiredKeys(t *testing.T) {
	s := New(map[string]string{"DATABASE_URL": "postgresql://host/app"})

	_, err := s.Delete("DATABASE_URL")
	var rkErr *types.RequiredKeyError
	require.ErrorAs(t, err, &rkErr)
	assert.Equal(t, "DATABASE_URL", rkErr.Key)

	// still vetoed even when the key is not set
	_, err = s.Delete("JWT_SECRET")
	assert.ErrorAs(t, err, &rkErr)

	assert.True(t, s.IsRequiredKey("database_url"))
	assert.False(t, s.IsRequiredKey("LOG_LEVEL"))
}

// TestStoreSnapshotIsolation tests that snapshots are value copies
func TestStoreSnapshotIsolation(t *testing.T) {
	s := New(map[string]string{"KEY": "A"})

	snap := s.Snapshot()
	s.Set("KEY", "B")

	assert.Equal(t, "A", snap["KEY"])

	v, err := s.Get("KEY")
	require.NoError(t, err)
	assert.Equal(t, "B", v)
}

// TestStoreReplace tests full-replace semantics
func TestStoreReplace(t *testing.T) {
	s := New(map[string]string{"A": "1", "B": "2", "C": "3"})

	changed := s.Replace(map[string]string{"A": "1", "B": "changed", "D": "4"})

	// B changed, C removed, D added; A untouched
	assert.Equal(t, []string{"B", "C", "D"}, changed)
	assert.False(t, s.Has("C"))

	v, err := s.Get("D")
	require.NoError(t, err)
	assert.Equal(t, "4", v)
}

// TestValidateConfigValue tests the rule table
func TestValidateConfigValue(t *testing.T) {
	rules := NewRules()

	testCases := []struct {
		name    string
		key     string
		value   string
		wantErr bool
	}{
		{"url must be http", "SERVICE_URL", "https://host", false},
		{"url rejects non-http", "SERVICE_URL", "ftp://host", true},
		{"port must be numeric", "HTTP_PORT", "8080", false},
		{"port rejects text", "HTTP_PORT", "eighty", true},
		{"email needs at sign", "ADMIN_EMAIL", "ops@example.com", false},
		{"email rejects plain text", "ADMIN_EMAIL", "nobody", true},
		{"secret needs 32 chars", "JWT_SECRET", "0123456789abcdef0123456789abcdef", false},
		{"secret rejects short", "JWT_SECRET", "short", true},
		{"database url allowed scheme", "DATABASE_URL", "postgresql://host/app", false},
		{"unmatched keys always valid", "LOG_LEVEL", "anything", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := rules.ValidateConfigValue(tc.key, tc.value)
			if tc.wantErr {
				var verr *types.ValidationError
				assert.ErrorAs(t, err, &verr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestRulesExtension tests adding a custom rule without touching callers
func TestRulesExtension(t *testing.T) {
	rules := NewRules()
	rules.Add(Rule{
		Match: "TIMEOUT",
		Check: func(v string) (bool, string) {
			if v != "" && v[0] != '-' {
				return true, ""
			}
			return false, "TIMEOUT values must be non-negative"
		},
	})

	assert.NoError(t, rules.ValidateConfigValue("READ_TIMEOUT", "30s"))
	assert.Error(t, rules.ValidateConfigValue("READ_TIMEOUT", "-5"))
}
