// Package registration orchestrates the onboarding workflow: the forward-only
// stage machine of the User aggregate plus the verification, profile, device,
// consent and password side effects each stage requires.
package registration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"monedero/internal/audit"
	clientmodels "monedero/internal/client/models"
	"monedero/internal/registration/metrics"
	"monedero/internal/user/models"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
	"monedero/pkg/platform/sentinel"
	"monedero/pkg/requestcontext"
	"monedero/pkg/secrets"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByPhone(ctx context.Context, countryCode, number string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User, expected id.Version) error
}

type ClientStore interface {
	Create(ctx context.Context, client *clientmodels.Client) error
	FindByUser(ctx context.Context, userID id.UserID) (*clientmodels.Client, error)
}

// CodeProvider dispatches verification codes and checks submitted answers.
// The human-facing code never crosses into this package.
type CodeProvider interface {
	Dispatch(ctx context.Context, destination string) (dispatchID string, err error)
	Verify(ctx context.Context, dispatchID, code string) (bool, error)
}

// AttemptGuard throttles repeated confirmation failures.
type AttemptGuard interface {
	Check(ctx context.Context, key string) error
	RecordFailure(ctx context.Context, key string) error
	Clear(ctx context.Context, key string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service drives users through the onboarding stages. Every mutating call
// takes the version token the caller last observed.
type Service struct {
	users          UserStore
	clients        ClientStore
	codes          CodeProvider
	attempts       AttemptGuard
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAttemptGuard(guard AttemptGuard) Option {
	return func(s *Service) {
		s.attempts = guard
	}
}

func New(users UserStore, clients ClientStore, codes CodeProvider, opts ...Option) *Service {
	s := &Service{
		users:   users,
		clients: clients,
		codes:   codes,
		tracer:  otel.Tracer("monedero/registration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates a user in the initial pre_registro stage and dispatches the
// first SMS verification to the phone.
func (s *Service) Start(ctx context.Context, countryCode, number string) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Start")
	defer span.End()

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	user, err := models.NewUser(id.NewUserID(), countryCode, number, now, actor)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeDuplicate, "phone number is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	span.SetAttributes(attribute.String("user_id", user.ID.String()))

	s.logAudit(ctx, audit.EventUserCreated, user)
	s.metrics.IncrementStarted()

	if _, err := s.IssueVerification(ctx, user.ID, user.Audit.Version, models.ChannelSMS); err != nil {
		// The user exists; the code can be re-requested.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "initial verification dispatch failed", "user_id", user.ID, "error", err)
		}
		return user, nil
	}
	return s.load(ctx, user.ID)
}

// IssueVerification dispatches a fresh code over the channel and records the
// pending verification, superseding any previous pending one. Issuing a
// verification on a registration that has not completed resets its stage to
// pre_registro.
func (s *Service) IssueVerification(ctx context.Context, userID id.UserID, expected id.Version, channel models.VerificationChannel) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "registration.IssueVerification",
		trace.WithAttributes(attribute.String("channel", channel.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	destination, err := s.destination(user, channel)
	if err != nil {
		return nil, err
	}
	dispatchID, err := s.codes.Dispatch(ctx, destination)
	if err != nil {
		return nil, err
	}
	if _, err := user.AddVerification(id.NewVerificationID(), channel, dispatchID, now, actor); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, user, expected); err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.EventVerificationIssued, user)
	s.metrics.IncrementIssued(channel.String())
	return user, nil
}

// ConfirmPhone confirms the SMS code and advances pre_registro to
// numero_confirmado. A failed confirmation leaves the stage untouched.
func (s *Service) ConfirmPhone(ctx context.Context, userID id.UserID, expected id.Version, code string) (*models.User, error) {
	return s.stageOp(ctx, "registration.ConfirmPhone", userID, expected, models.StagePreRegistration, audit.EventPhoneConfirmed,
		func(ctx context.Context, user *models.User) error {
			return s.confirmCode(ctx, user, models.ChannelSMS, code)
		})
}

// CompleteClientData records the personal profile and advances
// numero_confirmado to datos_cliente_completado. Re-running the stage reuses
// the existing profile.
func (s *Service) CompleteClientData(ctx context.Context, userID id.UserID, expected id.Version, profile clientmodels.Profile) (*models.User, error) {
	return s.stageOp(ctx, "registration.CompleteClientData", userID, expected, models.StagePhoneConfirmed, audit.EventClientDataCompleted,
		func(ctx context.Context, user *models.User) error {
			now := requestcontext.Now(ctx)
			actor := requestcontext.Actor(ctx)

			existing, err := s.clients.FindByUser(ctx, user.ID)
			if err == nil {
				return user.LinkClient(existing.ID, now, actor)
			}
			if !errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load client profile")
			}

			client, err := clientmodels.NewClient(id.NewClientID(), user.ID, profile, now, actor)
			if err != nil {
				return err
			}
			if err := s.clients.Create(ctx, client); err != nil {
				if errors.Is(err, sentinel.ErrAlreadyUsed) {
					return dErrors.New(dErrors.CodeDuplicate, "client profile already exists for this identity")
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create client profile")
			}
			return user.LinkClient(client.ID, now, actor)
		})
}

// RegisterEmail records the e-mail contact point and advances
// datos_cliente_completado to correo_registrado. The verification code for
// the new address is issued separately.
func (s *Service) RegisterEmail(ctx context.Context, userID id.UserID, expected id.Version, email string) (*models.User, error) {
	return s.stageOp(ctx, "registration.RegisterEmail", userID, expected, models.StageClientDataCompleted, audit.EventEmailRegistered,
		func(ctx context.Context, user *models.User) error {
			now := requestcontext.Now(ctx)
			actor := requestcontext.Actor(ctx)
			return user.RegisterEmail(email, now, actor)
		})
}

// VerifyEmail confirms the e-mail code and advances correo_registrado to
// correo_verificado.
func (s *Service) VerifyEmail(ctx context.Context, userID id.UserID, expected id.Version, code string) (*models.User, error) {
	return s.stageOp(ctx, "registration.VerifyEmail", userID, expected, models.StageEmailRegistered, audit.EventEmailVerified,
		func(ctx context.Context, user *models.User) error {
			return s.confirmCode(ctx, user, models.ChannelEmail, code)
		})
}

// BiometricsRequest carries the device enrollment payload.
type BiometricsRequest struct {
	Fingerprint  string
	BiometricKey string
	UserAgent    string
}

// RegisterBiometrics enrolls the device and its biometric credential and
// advances correo_verificado to datos_biometricos_registrado.
func (s *Service) RegisterBiometrics(ctx context.Context, userID id.UserID, expected id.Version, req BiometricsRequest) (*models.User, error) {
	return s.stageOp(ctx, "registration.RegisterBiometrics", userID, expected, models.StageEmailVerified, audit.EventBiometricsRegistered,
		func(ctx context.Context, user *models.User) error {
			now := requestcontext.Now(ctx)
			actor := requestcontext.Actor(ctx)

			device := models.Device{
				ID:           id.NewDeviceID(),
				Fingerprint:  req.Fingerprint,
				BiometricKey: req.BiometricKey,
				UserAgent:    req.UserAgent,
				RegisteredAt: now,
			}
			if req.UserAgent != "" {
				ua := useragent.New(req.UserAgent)
				device.Platform = ua.Platform()
				device.Browser, _ = ua.Browser()
			}
			return user.AddDevice(device, now, actor)
		})
}

// AcceptTerms records all onboarding consents and advances
// datos_biometricos_registrado to terminos_condiciones_aceptado. Consent is
// all-or-nothing: missing any required type fails the whole operation.
func (s *Service) AcceptTerms(ctx context.Context, userID id.UserID, expected id.Version, accepted []models.ConsentType) (*models.User, error) {
	return s.stageOp(ctx, "registration.AcceptTerms", userID, expected, models.StageBiometricsRegistered, audit.EventTermsAccepted,
		func(ctx context.Context, user *models.User) error {
			now := requestcontext.Now(ctx)
			actor := requestcontext.Actor(ctx)
			return user.AcceptConsents(accepted, now, actor)
		})
}

// CompleteRegistration sets the password and advances
// terminos_condiciones_aceptado to registro_completado. The password is set
// exactly once through this path; a second call fails.
func (s *Service) CompleteRegistration(ctx context.Context, userID id.UserID, expected id.Version, password, confirmation string) (*models.User, error) {
	user, err := s.stageOp(ctx, "registration.CompleteRegistration", userID, expected, models.StageTermsAccepted, audit.EventRegistrationCompleted,
		func(ctx context.Context, user *models.User) error {
			now := requestcontext.Now(ctx)
			actor := requestcontext.Actor(ctx)

			if password != confirmation {
				return dErrors.New(dErrors.CodeValidation, "password confirmation does not match").
					WithDetails(dErrors.Detail{Code: "password_confirmation_mismatch", Params: map[string]any{"field": "password_confirmation"}})
			}
			if err := models.Catalog().Validate("password", password); len(err) > 0 {
				return dErrors.New(dErrors.CodeValidation, "password does not meet requirements")
			}
			hash, err := secrets.HashPassword(password)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
			}
			return user.CreatePassword(hash, now, actor)
		})
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementCompleted()
	return user, nil
}

// ChangePassword swaps the password outside the workflow. It requires the
// current password and is not gated by stage.
func (s *Service) ChangePassword(ctx context.Context, userID id.UserID, expected id.Version, current, next string) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "registration.ChangePassword")
	defer span.End()

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == nil {
		return nil, dErrors.New(dErrors.CodeInvalidState, "no password exists to change").
			WithParam("actual", "no_password").
			WithParam("expected", "password_set")
	}
	if err := secrets.VerifyPassword(current, *user.PasswordHash); err != nil {
		return nil, err
	}
	if violations := models.Catalog().Validate("password", next); len(violations) > 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "password does not meet requirements")
	}
	hash, err := secrets.HashPassword(next)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	if err := user.ReplacePassword(hash, now, actor); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, user, expected); err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventPasswordChanged, user)
	return user, nil
}

// Login authenticates a completed registration by phone and password.
// Failed attempts count toward the same lockout window as code
// confirmations, keyed per user.
func (s *Service) Login(ctx context.Context, countryCode, number, password string) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Login")
	defer span.End()

	user, err := s.users.FindByPhone(ctx, countryCode, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	key := "login:" + user.ID.String()
	if s.attempts != nil {
		if err := s.attempts.Check(ctx, key); err != nil {
			return nil, err
		}
	}
	if user.Stage != models.StageCompleted || user.PasswordHash == nil {
		return nil, dErrors.New(dErrors.CodeInvalidState, "registration is not completed").
			WithParam("actual", user.Stage.String()).
			WithParam("expected", models.StageCompleted.String())
	}
	if err := secrets.VerifyPassword(password, *user.PasswordHash); err != nil {
		if s.attempts != nil {
			if lockErr := s.attempts.RecordFailure(ctx, key); lockErr != nil {
				return nil, lockErr
			}
		}
		return nil, err
	}
	if s.attempts != nil {
		_ = s.attempts.Clear(ctx, key)
	}

	s.logAudit(ctx, audit.EventUserLoggedIn, user)
	return user, nil
}

// Get loads the user aggregate.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.load(ctx, userID)
}

// stageOp runs one workflow step: load, apply the stage-specific side
// effect, advance from the expected prior stage, persist. Any failure aborts
// the whole step with the stored stage untouched.
func (s *Service) stageOp(ctx context.Context, spanName string, userID id.UserID, expected id.Version, priorStage models.RegistrationStage, event audit.EventName, sideEffect func(context.Context, *models.User) error) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("prior_stage", priorStage.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Stage != priorStage {
		return nil, dErrors.New(dErrors.CodeInvalidState, "registration is not at the required stage").
			WithParam("actual", user.Stage.String()).
			WithParam("expected", priorStage.String())
	}
	if err := sideEffect(ctx, user); err != nil {
		return nil, err
	}
	if err := user.AdvanceFrom(priorStage, now, actor); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, user, expected); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("stage", user.Stage.String()))
	s.logAudit(ctx, event, user)
	s.metrics.IncrementStageAdvance(user.Stage.String())
	return user, nil
}

// confirmCode checks the submitted code with the provider when the latest
// verification is still pending, then records the confirmation on the
// aggregate. Failed attempts count toward the lockout window.
func (s *Service) confirmCode(ctx context.Context, user *models.User, channel models.VerificationChannel, code string) error {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	key := user.ID.String() + ":" + channel.String()

	if s.attempts != nil {
		if err := s.attempts.Check(ctx, key); err != nil {
			return err
		}
	}

	if v, ok := user.LatestVerification(channel); ok && v.Pending() && !v.Expired(now) {
		verified, err := s.codes.Verify(ctx, v.DispatchID, code)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify code")
		}
		if !verified {
			s.metrics.IncrementFailure(channel.String())
			if s.attempts != nil {
				if lockErr := s.attempts.RecordFailure(ctx, key); lockErr != nil {
					return lockErr
				}
			}
			return dErrors.New(dErrors.CodeInvalidInput, "incorrect verification code").
				WithParam("channel", channel.String())
		}
	}

	changed, err := user.ConfirmVerification(channel, code, now, actor)
	if err != nil {
		return err
	}
	if changed {
		if s.attempts != nil {
			_ = s.attempts.Clear(ctx, key)
		}
		s.logAudit(ctx, audit.EventVerificationConfirmed, user)
		s.metrics.IncrementConfirmed(channel.String())
	}
	return nil
}

func (s *Service) destination(user *models.User, channel models.VerificationChannel) (string, error) {
	switch channel {
	case models.ChannelSMS:
		return user.Phone(), nil
	case models.ChannelEmail:
		if user.Email == nil {
			return "", dErrors.New(dErrors.CodeInvalidState, "no e-mail is registered for the user").
				WithParam("actual", "no_email").
				WithParam("expected", "email_registered")
		}
		return *user.Email, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown verification channel").
			WithParam("channel", channel.String())
	}
}

func (s *Service) load(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

func (s *Service) persist(ctx context.Context, user *models.User, expected id.Version) error {
	if err := s.users.Update(ctx, user, expected); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		case errors.Is(err, sentinel.ErrVersionMismatch):
			return dErrors.New(dErrors.CodeConflict, "user was modified since it was read")
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return dErrors.New(dErrors.CodeDuplicate, "contact point is already registered")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist user")
		}
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event audit.EventName, user *models.User) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", event,
			"log_type", "audit",
			"user_id", user.ID,
			"stage", user.Stage,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Actor:    requestcontext.Actor(ctx),
		UserID:   user.ID.String(),
		Action:   event,
		Entity:   "user",
		EntityID: user.ID.String(),
		Params:   map[string]string{"stage": user.Stage.String()},
	})
}
