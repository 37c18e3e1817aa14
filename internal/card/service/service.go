// Package service orchestrates card issuance and lifecycle operations on
// top of the Card aggregate and its store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"monedero/internal/audit"
	"monedero/internal/card/metrics"
	"monedero/internal/card/models"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
	"monedero/pkg/platform/sentinel"
	"monedero/pkg/requestcontext"
	"monedero/pkg/secrets"
)

type CardStore interface {
	Create(ctx context.Context, card *models.Card) error
	FindByID(ctx context.Context, cardID id.CardID) (*models.Card, error)
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]*models.Card, error)
	Update(ctx context.Context, card *models.Card, expected id.Version) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service applies card lifecycle operations. Every mutating call takes the
// version token the caller last observed; a stale token is rejected without
// touching the stored card.
type Service struct {
	store          CardStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func New(store CardStore, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueRequest carries the processor-side identity of a new card.
type IssueRequest struct {
	AccountID      id.AccountID
	ProcessorToken string
	MaskedNumber   string
	ExpiresOn      time.Time
	DailyLimit     decimal.Decimal
}

// IssuePhysical creates a plastic card. It starts inactive with shipment
// requested; activation happens once the cardholder receives it.
func (s *Service) IssuePhysical(ctx context.Context, req IssueRequest) (*models.Card, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	card, err := models.NewPhysicalCard(id.NewCardID(), req.AccountID, req.ProcessorToken, req.MaskedNumber, req.ExpiresOn, req.DailyLimit, now, actor)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, card); err != nil {
		return nil, s.translate(err, "failed to create card")
	}
	s.logAudit(ctx, audit.EventCardIssued, card)
	s.metrics.IncrementIssued(card.Type.String())
	return card, nil
}

// IssueVirtual creates a digital card, active on creation since there is
// nothing to ship or receive.
func (s *Service) IssueVirtual(ctx context.Context, req IssueRequest) (*models.Card, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	card, err := models.NewVirtualCard(id.NewCardID(), req.AccountID, req.ProcessorToken, req.MaskedNumber, req.ExpiresOn, req.DailyLimit, now, actor)
	if err != nil {
		return nil, err
	}
	if err := card.Activate(now, actor); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, card); err != nil {
		return nil, s.translate(err, "failed to create card")
	}
	s.logAudit(ctx, audit.EventCardIssued, card)
	s.metrics.IncrementIssued(card.Type.String())
	s.metrics.IncrementActivated()
	return card, nil
}

// Get loads a card, recording the expired state when the expiry date has
// passed since the last access.
func (s *Service) Get(ctx context.Context, cardID id.CardID) (*models.Card, error) {
	card, err := s.store.FindByID(ctx, cardID)
	if err != nil {
		return nil, s.translate(err, "failed to load card")
	}
	return s.settleExpiry(ctx, card), nil
}

// ListByAccount returns the account's cards, settling expiry on each.
func (s *Service) ListByAccount(ctx context.Context, accountID id.AccountID) ([]*models.Card, error) {
	cards, err := s.store.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, s.translate(err, "failed to list cards")
	}
	for i, card := range cards {
		cards[i] = s.settleExpiry(ctx, card)
	}
	return cards, nil
}

func (s *Service) Activate(ctx context.Context, cardID id.CardID, expected id.Version) (*models.Card, error) {
	card, err := s.mutate(ctx, cardID, expected, func(card *models.Card, now time.Time, actor string) error {
		return card.Activate(now, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventCardActivated, card)
	s.metrics.IncrementActivated()
	return card, nil
}

func (s *Service) SetTemporaryBlock(ctx context.Context, cardID id.CardID, expected id.Version, blocked bool) (*models.Card, error) {
	card, err := s.mutate(ctx, cardID, expected, func(card *models.Card, now time.Time, actor string) error {
		return card.SetTemporaryBlock(blocked, now, actor)
	})
	if err != nil {
		return nil, err
	}
	if blocked {
		s.logAudit(ctx, audit.EventCardBlocked, card)
		s.metrics.IncrementBlocked()
	} else {
		s.logAudit(ctx, audit.EventCardUnblocked, card)
	}
	return card, nil
}

// ConfigureRules updates spending controls. Rules may change on a card that
// was never activated; only expiry stops them.
func (s *Service) ConfigureRules(ctx context.Context, cardID id.CardID, expected id.Version, dailyLimit decimal.Decimal, onlinePurchases, atmWithdrawal bool) (*models.Card, error) {
	card, err := s.mutate(ctx, cardID, expected, func(card *models.Card, now time.Time, actor string) error {
		return card.ConfigureRules(dailyLimit, onlinePurchases, atmWithdrawal, now, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventCardRulesUpdated, card)
	s.metrics.IncrementRuleChanges()
	return card, nil
}

func (s *Service) UpdateShipment(ctx context.Context, cardID id.CardID, expected id.Version, state models.ShipmentState, trackingNumber *string) (*models.Card, error) {
	card, err := s.mutate(ctx, cardID, expected, func(card *models.Card, now time.Time, actor string) error {
		return card.UpdateShipmentInfo(state, trackingNumber, now, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventCardShipmentUpdated, card)
	return card, nil
}

func (s *Service) Cancel(ctx context.Context, cardID id.CardID, expected id.Version, reason models.CancelReason) (*models.Card, error) {
	card, err := s.mutate(ctx, cardID, expected, func(card *models.Card, now time.Time, actor string) error {
		return card.Cancel(reason, now, actor)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventCardCanceled, card)
	s.metrics.IncrementCanceled(string(reason))
	return card, nil
}

// NewProcessorToken mints the opaque token the card processor is keyed by.
func NewProcessorToken() (string, error) {
	return secrets.GenerateToken()
}

// mutate loads, settles expiry, applies the change, and writes back under
// the caller's version token.
func (s *Service) mutate(ctx context.Context, cardID id.CardID, expected id.Version, apply func(*models.Card, time.Time, string) error) (*models.Card, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)

	card, err := s.store.FindByID(ctx, cardID)
	if err != nil {
		return nil, s.translate(err, "failed to load card")
	}
	card = s.settleExpiry(ctx, card)

	if err := apply(card, now, actor); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, card, expected); err != nil {
		return nil, s.translate(err, "failed to update card")
	}
	return card, nil
}

// settleExpiry records the expired state the first time a card is touched
// past its expiry date. The write runs under the freshly read version, so a
// concurrent writer simply wins; the marking happens again on the next read.
func (s *Service) settleExpiry(ctx context.Context, card *models.Card) *models.Card {
	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	if !card.CheckExpiry(now, actor) {
		return card
	}
	if err := s.store.Update(ctx, card, card.Audit.Version); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to record card expiry", "card_id", card.ID, "error", err)
		}
		return card
	}
	s.logAudit(ctx, audit.EventCardExpired, card)
	s.metrics.IncrementExpired()
	return card
}

func (s *Service) translate(err error, message string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "card not found")
	case errors.Is(err, sentinel.ErrVersionMismatch):
		return dErrors.New(dErrors.CodeConflict, "card was modified since it was read")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeDuplicate, "processor token already in use")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, message)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.EventName, card *models.Card) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", event,
			"log_type", "audit",
			"card_id", card.ID,
			"account_id", card.AccountID,
			"state", card.State,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Actor:    requestcontext.Actor(ctx),
		Action:   event,
		Entity:   "card",
		EntityID: card.ID.String(),
		Params:   map[string]string{"state": card.State.String(), "account_id": card.AccountID.String()},
	})
}
