package auth

import (
	"crush-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_Round_Trip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("a_long_enough_test_secret_for_hs256", time.Hour)

	token, err := issuer.GenerateToken("user_1")
	req.NoError(err)

	claims, err := issuer.ValidateToken(token)
	req.NoError(err)
	req.Equal("user_1", claims.UserID)
	req.Equal("crush-chat", claims.Issuer)
}

func TestTokenIssuer_Rejects_Bad_Tokens(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("a_long_enough_test_secret_for_hs256", time.Hour)
	other := NewTokenIssuer("another_secret_signing_other_tokens", time.Hour)
	expired := NewTokenIssuer("a_long_enough_test_secret_for_hs256", -time.Minute)

	foreign, err := other.GenerateToken("user_1")
	req.NoError(err)
	stale, err := expired.GenerateToken("user_1")
	req.NoError(err)

	for _, token := range []string{"", "not.a.jwt", foreign, stale} {
		_, err = issuer.ValidateToken(token)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	}
}
