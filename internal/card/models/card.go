// Package models defines the Card aggregate and its lifecycle state machine.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"monedero/internal/constraint"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
)

// CardState is the lifecycle state of a card. Wire values are the canonical
// Spanish names persisted since the first platform version.
type CardState string

const (
	StateInactive         CardState = "inactiva"
	StateActive           CardState = "activa"
	StateTempBlocked      CardState = "bloqueada_temporalmente"
	StateCanceledStolen   CardState = "cancelada_robo"
	StateCanceledLost     CardState = "cancelada_extravio"
	StateCanceledBySystem CardState = "cancelada_sistema"
	StateExpired          CardState = "vencida"
)

// Terminal reports whether the state admits no further transitions.
func (s CardState) Terminal() bool {
	switch s {
	case StateCanceledStolen, StateCanceledLost, StateCanceledBySystem, StateExpired:
		return true
	}
	return false
}

func (s CardState) String() string { return string(s) }

// CardType distinguishes plastic from purely digital cards.
type CardType string

const (
	TypePhysical CardType = "fisica"
	TypeVirtual  CardType = "virtual"
)

func (t CardType) String() string { return string(t) }

// ShipmentState tracks delivery of a physical card.
type ShipmentState string

const (
	ShipmentRequested ShipmentState = "solicitada"
	ShipmentInTransit ShipmentState = "en_transito"
	ShipmentDelivered ShipmentState = "entregada"
)

// CancelReason selects the terminal state a cancellation lands in.
type CancelReason string

const (
	CancelStolen   CancelReason = "robo"
	CancelLost     CancelReason = "extravio"
	CancelBySystem CancelReason = "sistema"
)

var cancelStates = map[CancelReason]CardState{
	CancelStolen:   StateCanceledStolen,
	CancelLost:     StateCanceledLost,
	CancelBySystem: StateCanceledBySystem,
}

var catalog = constraint.NewCatalog(
	constraint.IdentifierField("account_id", true),
	constraint.IdentifierField("processor_token", true),
	constraint.StringField("masked_number", true, 12, 19, `[0-9*]+`),
	constraint.DecimalField("daily_limit", true, false, false, true, 2),
	constraint.DateField("expires_on", true),
	constraint.StringField("tracking_number", false, 6, 40, ""),
)

// Catalog exposes the aggregate's constraint table, mainly for tests.
func Catalog() constraint.Catalog { return catalog }

// Card is the aggregate root for issued cards.
//
// Invariants:
//   - Physical cards are created inactive with shipment "solicitada";
//     virtual cards are created inactive and activated by the creating
//     operation.
//   - Once the computed expiry check is true, every mutating operation
//     except the lazy expiry marking itself fails.
type Card struct {
	ID              id.CardID
	AccountID       id.AccountID
	ProcessorToken  string
	MaskedNumber    string
	Type            CardType
	State           CardState
	ExpiresOn       time.Time
	TempBlocked     bool
	DailyLimit      decimal.Decimal
	OnlinePurchases bool
	ATMWithdrawal   bool
	ShipmentState   *ShipmentState
	TrackingNumber  *string
	Audit           id.Audit
}

func newCard(cardID id.CardID, accountID id.AccountID, cardType CardType, processorToken, maskedNumber string, expiresOn time.Time, dailyLimit decimal.Decimal, now time.Time, actor string) (*Card, error) {
	values := map[string]any{
		"processor_token": processorToken,
		"masked_number":   maskedNumber,
		"daily_limit":     dailyLimit,
		"expires_on":      expiresOn,
	}
	if accountID.IsNil() {
		values["account_id"] = nil
	}
	if err := constraint.AsError(catalog.ValidateAll(values)); err != nil {
		return nil, err
	}
	return &Card{
		ID:             cardID,
		AccountID:      accountID,
		ProcessorToken: processorToken,
		MaskedNumber:   maskedNumber,
		Type:           cardType,
		State:          StateInactive,
		ExpiresOn:      expiresOn,
		DailyLimit:     dailyLimit,
		Audit:          id.NewAudit(now, actor),
	}, nil
}

// NewPhysicalCard constructs a plastic card awaiting shipment.
func NewPhysicalCard(cardID id.CardID, accountID id.AccountID, processorToken, maskedNumber string, expiresOn time.Time, dailyLimit decimal.Decimal, now time.Time, actor string) (*Card, error) {
	card, err := newCard(cardID, accountID, TypePhysical, processorToken, maskedNumber, expiresOn, dailyLimit, now, actor)
	if err != nil {
		return nil, err
	}
	shipment := ShipmentRequested
	card.ShipmentState = &shipment
	return card, nil
}

// NewVirtualCard constructs a digital card. The creating operation activates
// it immediately after construction.
func NewVirtualCard(cardID id.CardID, accountID id.AccountID, processorToken, maskedNumber string, expiresOn time.Time, dailyLimit decimal.Decimal, now time.Time, actor string) (*Card, error) {
	return newCard(cardID, accountID, TypeVirtual, processorToken, maskedNumber, expiresOn, dailyLimit, now, actor)
}

// ExpiryPassed reports the computed expiry check: the wall clock is past the
// card's expiry date or the expired state was already recorded.
func (c *Card) ExpiryPassed(now time.Time) bool {
	return c.State == StateExpired || now.After(c.ExpiresOn)
}

// CheckExpiry lazily records the expired state. It returns true when the
// state changed so the caller knows to persist; a second call is a no-op.
// This is the one transition allowed to run on an expired card: it is the
// mechanism that performs the marking.
func (c *Card) CheckExpiry(now time.Time, actor string) bool {
	if c.State == StateExpired || !now.After(c.ExpiresOn) {
		return false
	}
	c.State = StateExpired
	c.Audit.Touch(now, actor)
	return true
}

func (c *Card) expiredErr() error {
	return dErrors.New(dErrors.CodeExpired, "card has expired").
		WithParam("card_id", c.ID.String()).
		WithParam("expires_on", c.ExpiresOn)
}

func (c *Card) stateErr(expected string) error {
	return dErrors.New(dErrors.CodeInvalidState, "card is not in the required state").
		WithParam("actual", c.State.String()).
		WithParam("expected", expected)
}

// Activate moves the card to active. Allowed from any non-terminal state;
// fails on expired cards.
func (c *Card) Activate(now time.Time, actor string) error {
	if c.ExpiryPassed(now) {
		return c.expiredErr()
	}
	if c.State.Terminal() {
		return c.stateErr(string(StateInactive))
	}
	c.State = StateActive
	c.TempBlocked = false
	c.Audit.Touch(now, actor)
	return nil
}

// SetTemporaryBlock toggles between active and temporarily blocked.
func (c *Card) SetTemporaryBlock(blocked bool, now time.Time, actor string) error {
	if c.ExpiryPassed(now) {
		return c.expiredErr()
	}
	if blocked {
		if c.State != StateActive {
			return c.stateErr(string(StateActive))
		}
		c.State = StateTempBlocked
		c.TempBlocked = true
	} else {
		if c.State != StateTempBlocked {
			return c.stateErr(string(StateTempBlocked))
		}
		c.State = StateActive
		c.TempBlocked = false
	}
	c.Audit.Touch(now, actor)
	return nil
}

// ConfigureRules updates the spending controls. Rules are independent of the
// active/inactive state but never change on an expired card.
func (c *Card) ConfigureRules(dailyLimit decimal.Decimal, onlinePurchases, atmWithdrawal bool, now time.Time, actor string) error {
	if c.ExpiryPassed(now) {
		return c.expiredErr()
	}
	if err := constraint.AsError(catalog.Validate("daily_limit", dailyLimit)); err != nil {
		return err
	}
	c.DailyLimit = dailyLimit
	c.OnlinePurchases = onlinePurchases
	c.ATMWithdrawal = atmWithdrawal
	c.Audit.Touch(now, actor)
	return nil
}

// Cancel lands the card in the terminal state matching the reason.
func (c *Card) Cancel(reason CancelReason, now time.Time, actor string) error {
	if c.ExpiryPassed(now) {
		return c.expiredErr()
	}
	target, ok := cancelStates[reason]
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown cancel reason").
			WithParam("reason", string(reason))
	}
	if c.State.Terminal() {
		return c.stateErr("non-terminal")
	}
	c.State = target
	c.TempBlocked = false
	c.Audit.Touch(now, actor)
	return nil
}

// UpdateShipmentInfo records delivery progress. Only physical cards ship.
func (c *Card) UpdateShipmentInfo(state ShipmentState, trackingNumber *string, now time.Time, actor string) error {
	if c.Type != TypePhysical {
		return dErrors.New(dErrors.CodeInvalidState, "card type does not ship").
			WithParam("actual", c.Type.String()).
			WithParam("expected", TypePhysical.String())
	}
	if c.ExpiryPassed(now) {
		return c.expiredErr()
	}
	if err := constraint.AsError(catalog.Validate("tracking_number", trackingNumber)); err != nil {
		return err
	}
	c.ShipmentState = &state
	c.TrackingNumber = trackingNumber
	c.Audit.Touch(now, actor)
	return nil
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (c *Card) Clone() *Card {
	out := *c
	if c.ShipmentState != nil {
		shipment := *c.ShipmentState
		out.ShipmentState = &shipment
	}
	if c.TrackingNumber != nil {
		tracking := *c.TrackingNumber
		out.TrackingNumber = &tracking
	}
	out.Audit.Version = append(id.Version(nil), c.Audit.Version...)
	return &out
}
