package domain

import (
	"bytes"
	"encoding/base64"

	"github.com/google/uuid"

	dErrors "monedero/pkg/domain-errors"
)

// Version is the opaque optimistic-concurrency token carried by every mutable
// aggregate. The core only ever compares tokens for equality and regenerates
// them on successful writes; the byte layout is not interpreted anywhere.
//
// Stores persist the raw bytes. Transports exchange the base64 form produced
// by Encode so the token survives JSON round trips unchanged.
type Version []byte

// NewVersion returns a fresh, unique version token.
func NewVersion() Version {
	u := uuid.New()
	return Version(u[:])
}

// Equal reports whether two tokens match byte for byte. A zero-length token
// never matches anything, including another zero-length token: an aggregate
// that was never persisted has no version to compare against.
func (v Version) Equal(other Version) bool {
	if len(v) == 0 || len(other) == 0 {
		return false
	}
	return bytes.Equal(v, other)
}

// IsZero reports whether the token is unset.
func (v Version) IsZero() bool { return len(v) == 0 }

// Encode returns the transport-safe base64 form of the token.
func (v Version) Encode() string {
	return base64.RawURLEncoding.EncodeToString(v)
}

// DecodeVersion parses the base64 form produced by Encode.
func DecodeVersion(s string) (Version, error) {
	if s == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "version token cannot be empty")
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "version token is not valid base64")
	}
	return Version(raw), nil
}
