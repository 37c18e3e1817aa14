// Package models defines the Account aggregate: the money container cards
// draw from.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"monedero/internal/constraint"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
)

// AccountState is the lifecycle state of an account.
type AccountState string

const (
	AccountActive AccountState = "activa"
	AccountFrozen AccountState = "congelada"
	AccountClosed AccountState = "cerrada"
)

func (s AccountState) String() string { return string(s) }

var catalog = constraint.NewCatalog(
	constraint.IdentifierField("user_id", true),
	constraint.CurrencyField("currency", true),
	constraint.DecimalField("balance", true, false, true, true, 2),
)

// Catalog exposes the aggregate's constraint table, mainly for tests.
func Catalog() constraint.Catalog { return catalog }

// Account holds a balance in a single currency.
type Account struct {
	ID       id.AccountID
	UserID   id.UserID
	Currency string
	Balance  decimal.Decimal
	State    AccountState
	Audit    id.Audit
}

// NewAccount opens an active zero-balance account in the given currency.
func NewAccount(accountID id.AccountID, userID id.UserID, currency string, now time.Time, actor string) (*Account, error) {
	values := map[string]any{
		"currency": currency,
		"balance":  decimal.Zero,
	}
	if userID.IsNil() {
		values["user_id"] = nil
	}
	if err := constraint.AsError(catalog.ValidateAll(values)); err != nil {
		return nil, err
	}
	return &Account{
		ID:       accountID,
		UserID:   userID,
		Currency: currency,
		Balance:  decimal.Zero,
		State:    AccountActive,
		Audit:    id.NewAudit(now, actor),
	}, nil
}

// Credit adds funds. The amount must be positive with at most two decimal
// places.
func (a *Account) Credit(amount decimal.Decimal, now time.Time, actor string) error {
	if a.State != AccountActive {
		return a.stateErr()
	}
	if err := constraint.AsError(catalog.Validate("balance", amount)); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "credit amount must be positive").
			WithParam("amount", amount.String())
	}
	a.Balance = a.Balance.Add(amount)
	a.Audit.Touch(now, actor)
	return nil
}

// Debit removes funds, never below zero.
func (a *Account) Debit(amount decimal.Decimal, now time.Time, actor string) error {
	if a.State != AccountActive {
		return a.stateErr()
	}
	if err := constraint.AsError(catalog.Validate("balance", amount)); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "debit amount must be positive").
			WithParam("amount", amount.String())
	}
	if a.Balance.LessThan(amount) {
		return dErrors.New(dErrors.CodeInvalidState, "insufficient funds").
			WithParam("actual", a.Balance.String()).
			WithParam("expected", amount.String())
	}
	a.Balance = a.Balance.Sub(amount)
	a.Audit.Touch(now, actor)
	return nil
}

// Freeze suspends an active account.
func (a *Account) Freeze(now time.Time, actor string) error {
	if a.State != AccountActive {
		return a.stateErr()
	}
	a.State = AccountFrozen
	a.Audit.Touch(now, actor)
	return nil
}

// Unfreeze reactivates a frozen account.
func (a *Account) Unfreeze(now time.Time, actor string) error {
	if a.State != AccountFrozen {
		return dErrors.New(dErrors.CodeInvalidState, "account is not in the required state").
			WithParam("actual", string(a.State)).
			WithParam("expected", string(AccountFrozen))
	}
	a.State = AccountActive
	a.Audit.Touch(now, actor)
	return nil
}

// Close ends the account. Requires a zero balance.
func (a *Account) Close(now time.Time, actor string) error {
	if a.State == AccountClosed {
		return a.stateErr()
	}
	if !a.Balance.IsZero() {
		return dErrors.New(dErrors.CodeInvalidState, "account balance must be zero to close").
			WithParam("actual", a.Balance.String()).
			WithParam("expected", "0")
	}
	a.State = AccountClosed
	a.Audit.Touch(now, actor)
	return nil
}

func (a *Account) stateErr() error {
	return dErrors.New(dErrors.CodeInvalidState, "account is not in the required state").
		WithParam("actual", string(a.State)).
		WithParam("expected", string(AccountActive))
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (a *Account) Clone() *Account {
	out := *a
	out.Audit.Version = append(id.Version(nil), a.Audit.Version...)
	return &out
}
