package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
)

func newTestService(ttl time.Duration) *Service {
	return NewService("test-signing-key-32-bytes-long!!", "monedero", "wallet-app", ttl)
}

func TestIssueAndValidate(t *testing.T) {
	service := newTestService(time.Hour)
	userID := id.NewUserID()
	clientID := id.NewClientID()

	pair, err := service.Issue(userID, &clientID, "registro_completado")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := service.Validate(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, clientID.String(), claims.ClientID)
	assert.Equal(t, "registro_completado", claims.Stage)
	assert.Equal(t, "monedero", claims.Issuer)

	got, err := service.UserID(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestValidateRejections(t *testing.T) {
	service := newTestService(time.Hour)

	t.Run("expired token", func(t *testing.T) {
		expired := newTestService(-time.Minute)
		pair, err := expired.Issue(id.NewUserID(), nil, "")
		require.NoError(t, err)

		_, err = service.Validate(pair.AccessToken)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewService("another-key-entirely-here!!!!!!!", "monedero", "wallet-app", time.Hour)
		pair, err := other.Issue(id.NewUserID(), nil, "")
		require.NoError(t, err)

		_, err = service.Validate(pair.AccessToken)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := service.Validate("not.a.token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestRefreshTokensAreUnique(t *testing.T) {
	service := newTestService(time.Hour)
	first, err := service.Issue(id.NewUserID(), nil, "")
	require.NoError(t, err)
	second, err := service.Issue(id.NewUserID(), nil, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
}
