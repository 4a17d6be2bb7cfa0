package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueVerify(t *testing.T) {
	t.Parallel()

	tokens := NewTokenService([]byte("super-secret"), time.Hour)

	token, err := tokens.Issue("alice")
	require.NoError(t, err)

	subject, err := tokens.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "alice", subject)
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	tokens := NewTokenService([]byte("super-secret"), -time.Second)

	token, err := tokens.Issue("alice")
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	t.Parallel()

	issuer := NewTokenService([]byte("right-secret"), time.Hour)
	verifier := NewTokenService([]byte("wrong-secret"), time.Hour)

	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()

	tokens := NewTokenService([]byte("super-secret"), time.Hour)

	_, err := tokens.Verify("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
