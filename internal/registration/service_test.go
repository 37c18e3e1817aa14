package registration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"monedero/internal/audit"
	clientmodels "monedero/internal/client/models"
	clientstore "monedero/internal/client/store"
	"monedero/internal/delivery"
	"monedero/internal/lockout"
	"monedero/internal/user/models"
	userstore "monedero/internal/user/store"
	dErrors "monedero/pkg/domain-errors"
	"monedero/pkg/requestcontext"
)

// codeTap records every code the transport carries so tests can submit the
// right (or deliberately wrong) answer.
type codeTap struct {
	mu    sync.Mutex
	codes []string
}

func (t *codeTap) Send(_ context.Context, _, code string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.codes = append(t.codes, code)
	return "ref", nil
}

func (t *codeTap) last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.codes) == 0 {
		return ""
	}
	return t.codes[len(t.codes)-1]
}

func (t *codeTap) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.codes)
}

type RegistrationSuite struct {
	suite.Suite
	users   *userstore.InMemory
	clients *clientstore.InMemory
	tap     *codeTap
	events  *audit.MemoryStore
	service *Service
	now     time.Time
	ctx     context.Context
	seq     int
}

func TestRegistrationSuite(t *testing.T) {
	suite.Run(t, new(RegistrationSuite))
}

func (s *RegistrationSuite) SetupTest() {
	s.users = userstore.NewInMemory()
	s.clients = clientstore.NewInMemory()
	s.tap = &codeTap{}
	s.events = audit.NewMemoryStore()
	s.now = time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(requestcontext.WithActor(context.Background(), "app"), s.now)

	provider := delivery.NewProvider(s.tap, delivery.NewMemoryCodeStore())
	s.service = New(s.users, s.clients, provider,
		WithAuditPublisher(audit.NewPublisher(s.events)),
		WithAttemptGuard(lockout.New(lockout.NewMemoryStore(), lockout.WithMaxAttempts(3))),
	)
}

// profile builds a datos-cliente payload with a CURP unique to the current
// walk, since the client store enforces CURP uniqueness.
func (s *RegistrationSuite) profile() clientmodels.Profile {
	return clientmodels.Profile{
		FirstName:       "Valeria",
		PaternalSurname: "Lozano",
		CURP:            fmt.Sprintf("LOZV%06dMDFLNA08", 930214+s.seq),
		BirthDate:       time.Date(1993, time.February, 14, 0, 0, 0, 0, time.UTC),
		PostalCode:      "06700",
		StateCode:       "CDMX",
	}
}

// walk drives a fresh user to the given stage and returns it. Each walk uses
// its own phone number.
func (s *RegistrationSuite) walk(until models.RegistrationStage) *models.User {
	s.seq++
	smsIndex := s.tap.count()

	user, err := s.service.Start(s.ctx, "+52", fmt.Sprintf("98%08d", s.seq))
	s.Require().NoError(err)
	smsCode := s.codeFor(smsIndex)
	if until == models.StagePreRegistration {
		return user
	}

	user, err = s.service.ConfirmPhone(s.ctx, user.ID, user.Audit.Version, smsCode)
	s.Require().NoError(err)
	if until == models.StagePhoneConfirmed {
		return user
	}

	user, err = s.service.CompleteClientData(s.ctx, user.ID, user.Audit.Version, s.profile())
	s.Require().NoError(err)
	if until == models.StageClientDataCompleted {
		return user
	}

	user, err = s.service.RegisterEmail(s.ctx, user.ID, user.Audit.Version, "valeria@example.mx")
	s.Require().NoError(err)
	if until == models.StageEmailRegistered {
		return user
	}

	user, err = s.service.IssueVerification(s.ctx, user.ID, user.Audit.Version, models.ChannelEmail)
	s.Require().NoError(err)
	// Issuing the e-mail code resets an in-progress registration to the
	// initial stage; the earlier steps re-run as idempotent no-ops.
	s.Require().Equal(models.StagePreRegistration, user.Stage)
	emailCode := s.tap.last()

	user, err = s.service.ConfirmPhone(s.ctx, user.ID, user.Audit.Version, smsCode)
	s.Require().NoError(err)
	user, err = s.service.CompleteClientData(s.ctx, user.ID, user.Audit.Version, s.profile())
	s.Require().NoError(err)
	user, err = s.service.RegisterEmail(s.ctx, user.ID, user.Audit.Version, "valeria@example.mx")
	s.Require().NoError(err)

	user, err = s.service.VerifyEmail(s.ctx, user.ID, user.Audit.Version, emailCode)
	s.Require().NoError(err)
	if until == models.StageEmailVerified {
		return user
	}

	user, err = s.service.RegisterBiometrics(s.ctx, user.ID, user.Audit.Version, BiometricsRequest{
		Fingerprint:  "device-fingerprint-01",
		BiometricKey: "a-very-long-biometric-public-key",
		UserAgent:    "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	})
	s.Require().NoError(err)
	if until == models.StageBiometricsRegistered {
		return user
	}

	user, err = s.service.AcceptTerms(s.ctx, user.ID, user.Audit.Version, []models.ConsentType{
		models.ConsentTerms, models.ConsentPrivacy, models.ConsentDataUsage,
	})
	s.Require().NoError(err)
	if until == models.StageTermsAccepted {
		return user
	}

	user, err = s.service.CompleteRegistration(s.ctx, user.ID, user.Audit.Version, "Abc123!", "Abc123!")
	s.Require().NoError(err)
	return user
}

func (s *RegistrationSuite) codeFor(index int) string {
	s.tap.mu.Lock()
	defer s.tap.mu.Unlock()
	return s.tap.codes[index]
}

func (s *RegistrationSuite) TestStart() {
	s.Run("creates the user in pre_registro and dispatches a code", func() {
		user, err := s.service.Start(s.ctx, "+52", "9812345678")
		s.Require().NoError(err)
		s.Equal(models.StagePreRegistration, user.Stage)
		s.NotEmpty(s.tap.last())

		v, ok := user.LatestVerification(models.ChannelSMS)
		s.Require().True(ok)
		s.True(v.Pending())
		s.Equal(s.now.Add(models.VerificationTTL), v.ExpiresAt)
	})

	s.Run("duplicate phone is rejected", func() {
		_, err := s.service.Start(s.ctx, "+52", "9812345678")
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
	})

	s.Run("invalid phone reports every violation", func() {
		_, err := s.service.Start(s.ctx, "52", "12")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrationSuite) TestConfirmPhone() {
	s.Run("correct code advances to numero_confirmado", func() {
		user, err := s.service.Start(s.ctx, "+52", "9811111111")
		s.Require().NoError(err)

		user, err = s.service.ConfirmPhone(s.ctx, user.ID, user.Audit.Version, s.tap.last())
		s.Require().NoError(err)
		s.Equal(models.StagePhoneConfirmed, user.Stage)
	})

	s.Run("wrong code fails and leaves the stage untouched", func() {
		user, err := s.service.Start(s.ctx, "+52", "9822222222")
		s.Require().NoError(err)

		_, err = s.service.ConfirmPhone(s.ctx, user.ID, user.Audit.Version, "000000")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

		stored, err := s.service.Get(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(models.StagePreRegistration, stored.Stage)
	})

	s.Run("expired code fails even when correct", func() {
		user, err := s.service.Start(s.ctx, "+52", "9833333333")
		s.Require().NoError(err)
		code := s.tap.last()

		late := requestcontext.WithTime(s.ctx, s.now.Add(models.VerificationTTL+time.Second))
		_, err = s.service.ConfirmPhone(late, user.ID, user.Audit.Version, code)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})

	s.Run("repeated wrong codes lock the channel", func() {
		user, err := s.service.Start(s.ctx, "+52", "9844444444")
		s.Require().NoError(err)

		for i := 0; i < 2; i++ {
			_, err = s.service.ConfirmPhone(s.ctx, user.ID, user.Audit.Version, "999999")
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
		_, err = s.service.ConfirmPhone(s.ctx, user.ID, user.Audit.Version, "999999")
		s.True(dErrors.HasCode(err, dErrors.CodeLocked))

		// Even the correct code is rejected while locked.
		_, err = s.service.ConfirmPhone(s.ctx, user.ID, user.Audit.Version, s.tap.last())
		s.True(dErrors.HasCode(err, dErrors.CodeLocked))
	})
}

func (s *RegistrationSuite) TestStageAssertions() {
	s.Run("operation out of order fails with actual and expected stages", func() {
		user := s.walk(models.StagePreRegistration)

		_, err := s.service.RegisterEmail(s.ctx, user.ID, user.Audit.Version, "x@y.mx")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		var dErr *dErrors.Error
		s.Require().ErrorAs(err, &dErr)
		s.Equal("pre_registro", dErr.Params["actual"])
		s.Equal("datos_cliente_completado", dErr.Params["expected"])

		stored, err := s.service.Get(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(models.StagePreRegistration, stored.Stage)
	})

	s.Run("stale version token fails with conflict", func() {
		user := s.walk(models.StagePhoneConfirmed)

		updated, err := s.service.CompleteClientData(s.ctx, user.ID, user.Audit.Version, s.profile())
		s.Require().NoError(err)
		s.NotEqual(user.Audit.Version, updated.Audit.Version)

		_, err = s.service.RegisterEmail(s.ctx, user.ID, user.Audit.Version, "x@y.mx")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *RegistrationSuite) TestFullWalk() {
	user := s.walk(models.StageCompleted)
	s.Equal(models.StageCompleted, user.Stage)
	s.Require().NotNil(user.PasswordHash)
	s.Len(user.Devices, 1)
	s.Equal("iPhone", user.Devices[0].Platform)
	s.Len(user.Consents, 3)
	s.Require().NotNil(user.ClientID)

	s.Run("second completion fails", func() {
		_, err := s.service.CompleteRegistration(s.ctx, user.ID, user.Audit.Version, "Abc123!", "Abc123!")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("issuing a verification after completion keeps the stage", func() {
		after, err := s.service.IssueVerification(s.ctx, user.ID, user.Audit.Version, models.ChannelSMS)
		s.Require().NoError(err)
		s.Equal(models.StageCompleted, after.Stage)
	})
}

func (s *RegistrationSuite) TestCompleteRegistration() {
	s.Run("mismatched confirmation fails before touching the password", func() {
		user := s.walk(models.StageTermsAccepted)

		_, err := s.service.CompleteRegistration(s.ctx, user.ID, user.Audit.Version, "Abc123!", "Abc124!")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		stored, err := s.service.Get(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Nil(stored.PasswordHash)
		s.Equal(models.StageTermsAccepted, stored.Stage)
	})

	s.Run("short password is rejected", func() {
		user := s.walk(models.StageTermsAccepted)
		_, err := s.service.CompleteRegistration(s.ctx, user.ID, user.Audit.Version, "Ab1!", "Ab1!")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrationSuite) TestAcceptTerms() {
	user := s.walk(models.StageBiometricsRegistered)

	s.Run("partial consent fails the whole operation", func() {
		_, err := s.service.AcceptTerms(s.ctx, user.ID, user.Audit.Version, []models.ConsentType{models.ConsentTerms})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		stored, err := s.service.Get(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Empty(stored.Consents)
		s.Equal(models.StageBiometricsRegistered, stored.Stage)
	})
}

func (s *RegistrationSuite) TestChangePassword() {
	user := s.walk(models.StageCompleted)

	s.Run("requires the current password", func() {
		_, err := s.service.ChangePassword(s.ctx, user.ID, user.Audit.Version, "wrong", "NewPass1!")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("replaces the hash with the current password", func() {
		updated, err := s.service.ChangePassword(s.ctx, user.ID, user.Audit.Version, "Abc123!", "NewPass1!")
		s.Require().NoError(err)
		s.NotEqual(*user.PasswordHash, *updated.PasswordHash)
	})
}

func (s *RegistrationSuite) TestAuditTrail() {
	user := s.walk(models.StagePhoneConfirmed)

	events, err := audit.NewPublisher(s.events).List(s.ctx, user.ID.String())
	s.Require().NoError(err)

	var actions []audit.EventName
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, audit.EventUserCreated)
	s.Contains(actions, audit.EventVerificationIssued)
	s.Contains(actions, audit.EventPhoneConfirmed)
}
