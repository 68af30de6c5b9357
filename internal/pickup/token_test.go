package pickup

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
)

func TestMintTokenShape(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := MintToken()
		require.NoError(t, err)
		assert.Regexp(t, pattern, token)
		seen[token] = true
	}
	assert.Greater(t, len(seen), 1, "tokens must not be constant")
}

func TestAssignLockerRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		locker, err := AssignLocker()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, locker, 1)
		assert.LessOrEqual(t, locker, lockerCount)
	}
}

func TestValidateTokenFormat(t *testing.T) {
	cases := []struct {
		name  string
		code  string
		valid bool
	}{
		{name: "uppercase", code: "A1B2C3", valid: true},
		{name: "lowercase accepted", code: "a1b2c3", valid: true},
		{name: "too short", code: "A1B2C", valid: false},
		{name: "too long", code: "A1B2C3D", valid: false},
		{name: "empty", code: "", valid: false},
		{name: "punctuation", code: "A1B2C!", valid: false},
		{name: "whitespace", code: "A1 2C3", valid: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTokenFormat(tc.code)
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}
}

func TestTokensMatchIsCaseInsensitive(t *testing.T) {
	assert.True(t, tokensMatch("a1b2c3", "A1B2C3"))
	assert.True(t, tokensMatch("A1B2C3", "A1B2C3"))
	assert.False(t, tokensMatch("A1B2C4", "A1B2C3"))
	assert.False(t, tokensMatch("", "A1B2C3"))
}
