// Package service orchestrates account lifecycle and balance movements on
// top of the Account aggregate and its store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"monedero/internal/account/models"
	"monedero/internal/audit"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
	"monedero/pkg/platform/sentinel"
	"monedero/pkg/requestcontext"
)

type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Account, error)
	Update(ctx context.Context, account *models.Account, expected id.Version) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service applies account operations. Every mutating call takes the version
// token the caller last observed.
type Service struct {
	store          AccountStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(store AccountStore, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates an active zero-balance account for the user in the given
// currency. One account per user and currency.
func (s *Service) Open(ctx context.Context, userID id.UserID, currency string) (*models.Account, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	account, err := models.NewAccount(id.NewAccountID(), userID, currency, now, actor)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, s.translate(err, "failed to create account")
	}
	s.logAudit(ctx, audit.EventAccountOpened, account)
	return account, nil
}

// Get loads an account.
func (s *Service) Get(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, s.translate(err, "failed to load account")
	}
	return account, nil
}

// ListByUser returns the user's accounts.
func (s *Service) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Account, error) {
	accounts, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.translate(err, "failed to list accounts")
	}
	return accounts, nil
}

func (s *Service) Credit(ctx context.Context, accountID id.AccountID, expected id.Version, amount decimal.Decimal) (*models.Account, error) {
	account, err := s.mutate(ctx, accountID, expected, func(account *models.Account, now time.Time, actor string) error {
		return account.Credit(amount, now, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventAccountCredited, account)
	return account, nil
}

func (s *Service) Debit(ctx context.Context, accountID id.AccountID, expected id.Version, amount decimal.Decimal) (*models.Account, error) {
	account, err := s.mutate(ctx, accountID, expected, func(account *models.Account, now time.Time, actor string) error {
		return account.Debit(amount, now, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventAccountDebited, account)
	return account, nil
}

func (s *Service) Freeze(ctx context.Context, accountID id.AccountID, expected id.Version) (*models.Account, error) {
	account, err := s.mutate(ctx, accountID, expected, func(account *models.Account, now time.Time, actor string) error {
		return account.Freeze(now, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventAccountFrozen, account)
	return account, nil
}

func (s *Service) Unfreeze(ctx context.Context, accountID id.AccountID, expected id.Version) (*models.Account, error) {
	account, err := s.mutate(ctx, accountID, expected, func(account *models.Account, now time.Time, actor string) error {
		return account.Unfreeze(now, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventAccountUnfrozen, account)
	return account, nil
}

// Close closes a zero-balance account. Closing is terminal.
func (s *Service) Close(ctx context.Context, accountID id.AccountID, expected id.Version) (*models.Account, error) {
	account, err := s.mutate(ctx, accountID, expected, func(account *models.Account, now time.Time, actor string) error {
		return account.Close(now, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventAccountClosed, account)
	return account, nil
}

func (s *Service) mutate(ctx context.Context, accountID id.AccountID, expected id.Version, apply func(*models.Account, time.Time, string) error) (*models.Account, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, s.translate(err, "failed to load account")
	}
	if err := apply(account, now, actor); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, account, expected); err != nil {
		return nil, s.translate(err, "failed to update account")
	}
	return account, nil
}

func (s *Service) translate(err error, message string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "account not found")
	case errors.Is(err, sentinel.ErrVersionMismatch):
		return dErrors.New(dErrors.CodeConflict, "account was modified since it was read")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeDuplicate, "an account in this currency already exists for the user")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.EventName, account *models.Account) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", event,
			"log_type", "audit",
			"account_id", account.ID,
			"user_id", account.UserID,
			"state", account.State,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Actor:    requestcontext.Actor(ctx),
		UserID:   account.UserID.String(),
		Action:   event,
		Entity:   "account",
		EntityID: account.ID.String(),
		Params: map[string]string{
			"state":    account.State.String(),
			"currency": account.Currency,
		},
	})
}
