// Package store persists Account aggregates.
package store

import (
	"context"
	"sync"

	"monedero/internal/account/models"
	id "monedero/pkg/domain"
	"monedero/pkg/platform/sentinel"
)

// InMemory keeps accounts in process memory for tests and local development.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*models.Account
}

func NewInMemory() *InMemory {
	return &InMemory{accounts: make(map[id.AccountID]*models.Account)}
}

// Create persists a new account and assigns its first version token. A user
// holds at most one account per currency.
func (s *InMemory) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	for _, existing := range s.accounts {
		if existing.UserID == account.UserID && existing.Currency == account.Currency {
			return sentinel.ErrAlreadyUsed
		}
	}

	account.Audit.Version = id.NewVersion()
	s.accounts[account.ID] = account.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if account, ok := s.accounts[accountID]; ok {
		return account.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Account
	for _, account := range s.accounts {
		if account.UserID == userID {
			out = append(out, account.Clone())
		}
	}
	return out, nil
}

// Update persists a mutated account guarded by the caller's version token.
func (s *InMemory) Update(_ context.Context, account *models.Account, expected id.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[account.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !stored.Audit.Version.Equal(expected) {
		return sentinel.ErrVersionMismatch
	}

	account.Audit.Version = id.NewVersion()
	s.accounts[account.ID] = account.Clone()
	return nil
}
