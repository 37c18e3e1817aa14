// Package store persists User aggregates.
//
// Both implementations enforce the optimistic-concurrency guard: updates
// carry the version token the caller observed at read time and fail with
// ErrVersionMismatch when the stored token has since changed. A fresh token
// is assigned as part of every successful write.
package store

import (
	"context"
	"strings"
	"sync"

	"monedero/internal/user/models"
	id "monedero/pkg/domain"
	"monedero/pkg/platform/sentinel"
)

// InMemory keeps users in process memory. It favors clarity over
// performance and backs unit tests and local development.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserID]*models.User)}
}

// Create persists a new user, enforcing phone and e-mail uniqueness. The
// aggregate receives its first version token on success.
func (s *InMemory) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	for _, existing := range s.users {
		if existing.Phone() == user.Phone() {
			return sentinel.ErrAlreadyUsed
		}
		if user.Email != nil && existing.Email != nil &&
			strings.EqualFold(*existing.Email, *user.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}

	user.Audit.Version = id.NewVersion()
	s.users[user.ID] = user.Clone()
	return nil
}

// FindByID returns a deep copy of the stored aggregate.
func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		return user.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByPhone locates a user by its canonical phone form.
func (s *InMemory) FindByPhone(_ context.Context, countryCode, number string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	phone := countryCode + " " + number
	for _, user := range s.users {
		if user.Phone() == phone {
			return user.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// FindByEmail locates a user by e-mail, case-insensitively.
func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email != nil && strings.EqualFold(*user.Email, email) {
			return user.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Update persists a mutated aggregate guarded by the version token the
// caller read. On success the aggregate carries a fresh token; on mismatch
// nothing is written.
func (s *InMemory) Update(_ context.Context, user *models.User, expected id.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[user.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !stored.Audit.Version.Equal(expected) {
		return sentinel.ErrVersionMismatch
	}
	if user.Email != nil {
		for otherID, other := range s.users {
			if otherID == user.ID || other.Email == nil {
				continue
			}
			if strings.EqualFold(*other.Email, *user.Email) {
				return sentinel.ErrAlreadyUsed
			}
		}
	}

	user.Audit.Version = id.NewVersion()
	s.users[user.ID] = user.Clone()
	return nil
}
