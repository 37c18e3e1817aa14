// Package lockout throttles verification-code guessing. Failed confirmation
// attempts are counted per user and channel; past the threshold the
// combination is locked for a cooling-off window.
package lockout

import (
	"context"
	"log/slog"
	"time"

	dErrors "monedero/pkg/domain-errors"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// AttemptStore counts failures with a sliding expiry.
type AttemptStore interface {
	RecordFailure(ctx context.Context, key string, window time.Duration) (int, error)
	Failures(ctx context.Context, key string) (int, error)
	Clear(ctx context.Context, key string) error
}

type Service struct {
	store       AttemptStore
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		s.maxAttempts = n
	}
}

func WithWindow(window time.Duration) Option {
	return func(s *Service) {
		s.window = window
	}
}

func New(store AttemptStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check fails with a locked error when the key has exhausted its attempts.
func (s *Service) Check(ctx context.Context, key string) error {
	count, err := s.store.Failures(ctx, key)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read lockout state")
	}
	if count >= s.maxAttempts {
		return dErrors.New(dErrors.CodeLocked, "too many failed attempts, try again later").
			WithParam("retry_after", s.window.String())
	}
	return nil
}

// RecordFailure counts a failed attempt. It reports the locked error when
// this failure crosses the threshold.
func (s *Service) RecordFailure(ctx context.Context, key string) error {
	count, err := s.store.RecordFailure(ctx, key, s.window)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attempt")
	}
	if count >= s.maxAttempts {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "verification attempts locked", "key", key, "attempts", count)
		}
		return dErrors.New(dErrors.CodeLocked, "too many failed attempts, try again later").
			WithParam("retry_after", s.window.String())
	}
	return nil
}

// Clear resets the counter after a successful confirmation.
func (s *Service) Clear(ctx context.Context, key string) error {
	if err := s.store.Clear(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear lockout state")
	}
	return nil
}
