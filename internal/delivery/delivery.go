// Package delivery dispatches verification codes over SMS and email and
// checks the answers. The code itself never leaves this package: callers
// hold only the dispatch id.
package delivery

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	dErrors "monedero/pkg/domain-errors"
)

const codeLength = 6

// Transport carries a generated code to its destination and returns the
// carrier's own reference for the message.
type Transport interface {
	Send(ctx context.Context, destination, code string) (providerRef string, err error)
}

// CodeStore remembers issued codes by dispatch id until they expire.
type CodeStore interface {
	Put(dispatchID, code string, ttl time.Duration)
	Get(dispatchID string) (string, bool)
	Delete(dispatchID string)
}

// Provider generates one-time codes, hands them to a transport, and later
// answers whether a submitted code matches the dispatch.
type Provider struct {
	transport Transport
	codes     CodeStore
	ttl       time.Duration
	logger    *slog.Logger
}

type Option func(*Provider)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.ttl = ttl
	}
}

func NewProvider(transport Transport, codes CodeStore, opts ...Option) *Provider {
	p := &Provider{
		transport: transport,
		codes:     codes,
		ttl:       10 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dispatch generates a fresh code, sends it, and returns the dispatch id the
// caller will later verify against.
func (p *Provider) Dispatch(ctx context.Context, destination string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification code")
	}

	providerRef, err := p.transport.Send(ctx, destination, code)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to send verification code")
	}

	dispatchID := uuid.NewString()
	p.codes.Put(dispatchID, code, p.ttl)

	if p.logger != nil {
		p.logger.InfoContext(ctx, "verification code dispatched",
			"dispatch_id", dispatchID,
			"provider_ref", providerRef,
		)
	}
	return dispatchID, nil
}

// Verify reports whether the submitted code matches the dispatch. A match
// consumes the code.
func (p *Provider) Verify(_ context.Context, dispatchID, code string) (bool, error) {
	stored, ok := p.codes.Get(dispatchID)
	if !ok {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}
	p.codes.Delete(dispatchID)
	return true, nil
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n), nil
}

// MemoryCodeStore holds codes in process memory. Expiry is checked on read.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]storedCode
}

type storedCode struct {
	code      string
	expiresAt time.Time
}

func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{codes: make(map[string]storedCode)}
}

func (s *MemoryCodeStore) Put(dispatchID, code string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[dispatchID] = storedCode{code: code, expiresAt: time.Now().Add(ttl)}
}

func (s *MemoryCodeStore) Get(dispatchID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[dispatchID]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.codes, dispatchID)
		return "", false
	}
	return entry.code, true
}

func (s *MemoryCodeStore) Delete(dispatchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, dispatchID)
}

// LogTransport writes the code to the log instead of delivering it. Used in
// development and tests; SMS delivery plugs in behind the same interface.
type LogTransport struct {
	Channel string
	Logger  *slog.Logger
}

func (t *LogTransport) Send(ctx context.Context, destination, code string) (string, error) {
	if t.Logger != nil {
		t.Logger.InfoContext(ctx, "verification code (dev transport)",
			"channel", t.Channel,
			"destination", destination,
			"code", code,
		)
	}
	return uuid.NewString(), nil
}
