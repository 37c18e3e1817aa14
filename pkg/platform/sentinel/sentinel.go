package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain error codes without
// depending on store internals.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: aggregate does not exist in the store
// - ErrVersionMismatch: caller-supplied version token is stale
// - ErrAlreadyUsed: uniqueness constraint hit (phone, e-mail, account alias)
// - ErrExpired: time-boxed resource past its validity window
// - ErrInvalidState: aggregate in the wrong state for the requested change
// - ErrUnavailable: collaborator temporarily unreachable
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionMismatch = errors.New("version mismatch")
	ErrAlreadyUsed     = errors.New("already used")
	ErrExpired         = errors.New("expired")
	ErrInvalidState    = errors.New("invalid state")
	ErrUnavailable     = errors.New("unavailable")
)
