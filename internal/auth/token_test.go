package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseToken(t *testing.T) {
	token, exp, err := IssueToken("secret", "user-1", time.Hour, time.Now())
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	sub, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestParseTokenRejects(t *testing.T) {
	token, _, err := IssueToken("secret", "user-1", time.Hour, time.Now())
	require.NoError(t, err)

	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, _, err := IssueToken("secret", "user-1", time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ParseToken("secret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("secret", "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = IssueToken("secret", "", time.Hour, time.Now())
	assert.Error(t, err)
}
