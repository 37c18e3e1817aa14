// Package store persists Card aggregates with the same version-guarded
// write discipline as the user store.
package store

import (
	"context"
	"sync"

	"monedero/internal/card/models"
	id "monedero/pkg/domain"
	"monedero/pkg/platform/sentinel"
)

// InMemory keeps cards in process memory for tests and local development.
type InMemory struct {
	mu    sync.RWMutex
	cards map[id.CardID]*models.Card
}

func NewInMemory() *InMemory {
	return &InMemory{cards: make(map[id.CardID]*models.Card)}
}

// Create persists a new card and assigns its first version token. The
// processor token is unique across cards.
func (s *InMemory) Create(_ context.Context, card *models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cards[card.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	for _, existing := range s.cards {
		if existing.ProcessorToken == card.ProcessorToken {
			return sentinel.ErrAlreadyUsed
		}
	}

	card.Audit.Version = id.NewVersion()
	s.cards[card.ID] = card.Clone()
	return nil
}

// FindByID returns a deep copy of the stored aggregate.
func (s *InMemory) FindByID(_ context.Context, cardID id.CardID) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if card, ok := s.cards[cardID]; ok {
		return card.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// ListByAccount returns every card of the account.
func (s *InMemory) ListByAccount(_ context.Context, accountID id.AccountID) ([]*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Card
	for _, card := range s.cards {
		if card.AccountID == accountID {
			out = append(out, card.Clone())
		}
	}
	return out, nil
}

// Update persists a mutated card guarded by the caller's version token.
func (s *InMemory) Update(_ context.Context, card *models.Card, expected id.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.cards[card.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !stored.Audit.Version.Equal(expected) {
		return sentinel.ErrVersionMismatch
	}

	card.Audit.Version = id.NewVersion()
	s.cards[card.ID] = card.Clone()
	return nil
}
