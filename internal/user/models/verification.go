package models

import (
	"time"

	id "monedero/pkg/domain"
)

// VerificationTTL is the validity window of an issued code.
const VerificationTTL = 10 * time.Minute

// VerificationChannel names the delivery channel of a code.
type VerificationChannel string

const (
	ChannelSMS   VerificationChannel = "sms"
	ChannelEmail VerificationChannel = "email"
)

// IsValid reports whether the channel is a known value.
func (c VerificationChannel) IsValid() bool {
	return c == ChannelSMS || c == ChannelEmail
}

func (c VerificationChannel) String() string { return string(c) }

// Verification is a time-boxed one-time code owned by a User.
//
// Lifecycle: created pending and active; confirmed when the correct code
// arrives before expiry; deactivated (superseded) when a newer verification
// of the same channel is issued while this one was still unconfirmed.
// Expiry is never stored as a flag: it is computed against ExpiresAt at
// confirmation time.
//
// The code itself is generated and checked by the delivery provider; the
// core persists the provider's dispatch reference and, once confirmed, the
// code that was accepted.
type Verification struct {
	ID         id.VerificationID
	Channel    VerificationChannel
	DispatchID string
	Code       *string
	ExpiresAt  time.Time
	Confirmed  bool
	Active     bool
	CreatedAt  time.Time
}

// Expired reports whether now is past the validity window.
func (v Verification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// Pending reports whether the record can still supersede or be confirmed.
func (v Verification) Pending() bool {
	return v.Active && !v.Confirmed
}
