// Package store persists Client aggregates.
package store

import (
	"context"
	"sync"

	"monedero/internal/client/models"
	id "monedero/pkg/domain"
	"monedero/pkg/platform/sentinel"
)

// InMemory keeps client profiles in process memory for tests and local
// development.
type InMemory struct {
	mu      sync.RWMutex
	clients map[id.ClientID]*models.Client
}

func NewInMemory() *InMemory {
	return &InMemory{clients: make(map[id.ClientID]*models.Client)}
}

// Create persists a new profile and assigns its first version token. The
// CURP is unique across clients.
func (s *InMemory) Create(_ context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	for _, existing := range s.clients {
		if existing.CURP == client.CURP {
			return sentinel.ErrAlreadyUsed
		}
	}

	client.Audit.Version = id.NewVersion()
	s.clients[client.ID] = client.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, clientID id.ClientID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if client, ok := s.clients[clientID]; ok {
		return client.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByUser(_ context.Context, userID id.UserID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, client := range s.clients {
		if client.UserID == userID {
			return client.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Update persists a mutated profile guarded by the caller's version token.
func (s *InMemory) Update(_ context.Context, client *models.Client, expected id.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.clients[client.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !stored.Audit.Version.Equal(expected) {
		return sentinel.ErrVersionMismatch
	}

	client.Audit.Version = id.NewVersion()
	s.clients[client.ID] = client.Clone()
	return nil
}
