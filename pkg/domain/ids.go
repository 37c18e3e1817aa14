// Package domain holds the typed identifiers shared across the wallet core.
//
// IDs are distinct types over uuid.UUID so the compiler rejects cross-type
// assignment (a CardID can never be passed where a UserID is expected).
// Construct them via the Parse functions at trust boundaries; direct casting
// bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "monedero/pkg/domain-errors"
)

type (
	// UserID identifies a wallet user aggregate.
	UserID uuid.UUID

	// ClientID identifies the client profile linked to a user.
	ClientID uuid.UUID

	// ProviderID identifies a service provider.
	ProviderID uuid.UUID

	// AccountID identifies a wallet account.
	AccountID uuid.UUID

	// CardID identifies a card aggregate.
	CardID uuid.UUID

	// VerificationID identifies a single verification record.
	VerificationID uuid.UUID

	// DeviceID identifies an authorized device record.
	DeviceID uuid.UUID
)

// NewUserID returns a freshly generated user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewClientID returns a freshly generated client ID.
func NewClientID() ClientID { return ClientID(uuid.New()) }

// NewProviderID returns a freshly generated provider ID.
func NewProviderID() ProviderID { return ProviderID(uuid.New()) }

// NewAccountID returns a freshly generated account ID.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewCardID returns a freshly generated card ID.
func NewCardID() CardID { return CardID(uuid.New()) }

// NewVerificationID returns a freshly generated verification ID.
func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }

// NewDeviceID returns a freshly generated device ID.
func NewDeviceID() DeviceID { return DeviceID(uuid.New()) }

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id ClientID) String() string       { return uuid.UUID(id).String() }
func (id ProviderID) String() string     { return uuid.UUID(id).String() }
func (id AccountID) String() string      { return uuid.UUID(id).String() }
func (id CardID) String() string         { return uuid.UUID(id).String() }
func (id VerificationID) String() string { return uuid.UUID(id).String() }
func (id DeviceID) String() string       { return uuid.UUID(id).String() }

// MarshalText makes the IDs render as canonical UUID strings in JSON and
// other text encodings instead of raw byte arrays.
func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id ClientID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id ProviderID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id AccountID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id CardID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id VerificationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id DeviceID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UserID(u)
	return nil
}

func (id *ClientID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ClientID(u)
	return nil
}

func (id *ProviderID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ProviderID(u)
	return nil
}

func (id *AccountID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = AccountID(u)
	return nil
}

func (id *CardID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = CardID(u)
	return nil
}

func (id *VerificationID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = VerificationID(u)
	return nil
}

func (id *DeviceID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = DeviceID(u)
	return nil
}

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ProviderID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AccountID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id CardID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id VerificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DeviceID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared parsing invariant: IDs must be valid,
// non-nil UUIDs.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UserID{}, err
	}
	return UserID(u), nil
}

// ParseClientID constructs a ClientID from external input.
func ParseClientID(s string) (ClientID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ClientID{}, err
	}
	return ClientID(u), nil
}

// ParseProviderID constructs a ProviderID from external input.
func ParseProviderID(s string) (ProviderID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ProviderID{}, err
	}
	return ProviderID(u), nil
}

// ParseAccountID constructs an AccountID from external input.
func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID(u), nil
}

// ParseCardID constructs a CardID from external input.
func ParseCardID(s string) (CardID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CardID{}, err
	}
	return CardID(u), nil
}

// ParseVerificationID constructs a VerificationID from external input.
func ParseVerificationID(s string) (VerificationID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return VerificationID{}, err
	}
	return VerificationID(u), nil
}

// ParseDeviceID constructs a DeviceID from external input.
func ParseDeviceID(s string) (DeviceID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return DeviceID{}, err
	}
	return DeviceID(u), nil
}
