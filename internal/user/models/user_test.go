package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monedero/internal/user/models"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestUser(t *testing.T) *models.User {
	t.Helper()
	user, err := models.NewUser(id.NewUserID(), "+52", "9812345678", testNow, "test")
	require.NoError(t, err)
	return user
}

func TestNewUser(t *testing.T) {
	t.Run("starts in pre_registro", func(t *testing.T) {
		user := newTestUser(t)
		assert.Equal(t, models.StagePreRegistration, user.Stage)
		assert.Equal(t, "+52 9812345678", user.Phone())
	})

	t.Run("collects every phone violation at once", func(t *testing.T) {
		_, err := models.NewUser(id.NewUserID(), "52", "98x", testNow, "test")
		require.Error(t, err)
		require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		var domainErr *dErrors.Error
		require.ErrorAs(t, err, &domainErr)
		// country code misses the "+" pattern; number is both short and
		// non-numeric.
		assert.GreaterOrEqual(t, len(domainErr.Details), 3)
	})
}

func TestAdvanceFrom(t *testing.T) {
	t.Run("advances one step when expectation matches", func(t *testing.T) {
		user := newTestUser(t)
		require.NoError(t, user.AdvanceFrom(models.StagePreRegistration, testNow, "test"))
		assert.Equal(t, models.StagePhoneConfirmed, user.Stage)
	})

	t.Run("wrong expected stage fails and leaves stage unchanged", func(t *testing.T) {
		user := newTestUser(t)
		err := user.AdvanceFrom(models.StageEmailRegistered, testNow, "test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

		var domainErr *dErrors.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "pre_registro", domainErr.Params["actual"])
		assert.Equal(t, "correo_registrado", domainErr.Params["expected"])
		assert.Equal(t, models.StagePreRegistration, user.Stage)
	})

	t.Run("final stage cannot advance", func(t *testing.T) {
		user := newTestUser(t)
		for stage, ok := models.StagePreRegistration, true; ok; stage, ok = stage.Next() {
			if stage.Completed() {
				break
			}
			require.NoError(t, user.AdvanceFrom(stage, testNow, "test"))
		}
		require.Equal(t, models.StageCompleted, user.Stage)

		err := user.AdvanceFrom(models.StageCompleted, testNow, "test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func TestVerificationLifecycle(t *testing.T) {
	t.Run("issuing a second pending code supersedes the first", func(t *testing.T) {
		user := newTestUser(t)
		first, err := user.AddVerification(id.NewVerificationID(), models.ChannelSMS, "d-1", testNow, "test")
		require.NoError(t, err)
		firstID := first.ID

		_, err = user.AddVerification(id.NewVerificationID(), models.ChannelSMS, "d-2", testNow.Add(time.Minute), "test")
		require.NoError(t, err)

		for _, v := range user.Verifications {
			if v.ID == firstID {
				assert.False(t, v.Active)
			}
		}
	})

	t.Run("confirming a superseded code fails as invalid state, not not-found", func(t *testing.T) {
		user := newTestUser(t)
		user.Verifications = []models.Verification{{
			ID:        id.NewVerificationID(),
			Channel:   models.ChannelSMS,
			ExpiresAt: testNow.Add(models.VerificationTTL),
			Active:    false,
			CreatedAt: testNow,
		}}

		_, err := user.ConfirmVerification(models.ChannelSMS, "123456", testNow.Add(time.Minute), "test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
		assert.False(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("no verification at all reports not found", func(t *testing.T) {
		user := newTestUser(t)
		_, err := user.ConfirmVerification(models.ChannelSMS, "123456", testNow, "test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("correct code after expiry fails with expired", func(t *testing.T) {
		user := newTestUser(t)
		_, err := user.AddVerification(id.NewVerificationID(), models.ChannelSMS, "d-1", testNow, "test")
		require.NoError(t, err)

		after := testNow.Add(models.VerificationTTL)
		_, err = user.ConfirmVerification(models.ChannelSMS, "123456", after, "test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExpired))
	})

	t.Run("confirm before expiry succeeds and is idempotent for the same code", func(t *testing.T) {
		user := newTestUser(t)
		_, err := user.AddVerification(id.NewVerificationID(), models.ChannelSMS, "d-1", testNow, "test")
		require.NoError(t, err)

		changed, err := user.ConfirmVerification(models.ChannelSMS, "123456", testNow.Add(time.Minute), "test")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, user.HasConfirmed(models.ChannelSMS))

		changed, err = user.ConfirmVerification(models.ChannelSMS, "123456", testNow.Add(2*time.Minute), "test")
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("confirm twice with a different code fails", func(t *testing.T) {
		user := newTestUser(t)
		_, err := user.AddVerification(id.NewVerificationID(), models.ChannelSMS, "d-1", testNow, "test")
		require.NoError(t, err)

		_, err = user.ConfirmVerification(models.ChannelSMS, "123456", testNow.Add(time.Minute), "test")
		require.NoError(t, err)

		_, err = user.ConfirmVerification(models.ChannelSMS, "654321", testNow.Add(2*time.Minute), "test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("issuing before completion resets stage to pre_registro", func(t *testing.T) {
		user := newTestUser(t)
		require.NoError(t, user.AdvanceFrom(models.StagePreRegistration, testNow, "test"))
		require.Equal(t, models.StagePhoneConfirmed, user.Stage)

		_, err := user.AddVerification(id.NewVerificationID(), models.ChannelEmail, "d-9", testNow, "test")
		require.NoError(t, err)
		assert.Equal(t, models.StagePreRegistration, user.Stage)
	})

	t.Run("issuing after completion leaves stage alone", func(t *testing.T) {
		user := newTestUser(t)
		user.Stage = models.StageCompleted

		_, err := user.AddVerification(id.NewVerificationID(), models.ChannelSMS, "d-7", testNow, "test")
		require.NoError(t, err)
		assert.Equal(t, models.StageCompleted, user.Stage)
	})
}

func TestConsents(t *testing.T) {
	t.Run("all three together are recorded", func(t *testing.T) {
		user := newTestUser(t)
		err := user.AcceptConsents([]models.ConsentType{
			models.ConsentTerms, models.ConsentPrivacy, models.ConsentDataUsage,
		}, testNow, "test")
		require.NoError(t, err)
		assert.Len(t, user.Consents, 3)
	})

	t.Run("partial acceptance records nothing", func(t *testing.T) {
		user := newTestUser(t)
		err := user.AcceptConsents([]models.ConsentType{models.ConsentTerms}, testNow, "test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Empty(t, user.Consents)
	})
}

func TestPassword(t *testing.T) {
	t.Run("create succeeds once", func(t *testing.T) {
		user := newTestUser(t)
		require.NoError(t, user.CreatePassword("hash-1", testNow, "test"))

		err := user.CreatePassword("hash-2", testNow, "test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("replace requires an existing password", func(t *testing.T) {
		user := newTestUser(t)
		err := user.ReplacePassword("hash-2", testNow, "test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))

		require.NoError(t, user.CreatePassword("hash-1", testNow, "test"))
		require.NoError(t, user.ReplacePassword("hash-2", testNow, "test"))
		assert.Equal(t, "hash-2", *user.PasswordHash)
	})
}

func TestAddDevice(t *testing.T) {
	device := models.Device{
		ID:           id.NewDeviceID(),
		Fingerprint:  "fp-0123456789",
		Platform:     "iPhone",
		BiometricKey: "key-0123456789abcdef",
		RegisteredAt: testNow,
	}

	t.Run("registers a device", func(t *testing.T) {
		user := newTestUser(t)
		require.NoError(t, user.AddDevice(device, testNow, "test"))
		assert.Len(t, user.Devices, 1)
	})

	t.Run("rejects a duplicate fingerprint", func(t *testing.T) {
		user := newTestUser(t)
		require.NoError(t, user.AddDevice(device, testNow, "test"))
		err := user.AddDevice(device, testNow, "test")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicate))
	})
}
