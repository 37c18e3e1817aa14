package models

import (
	"time"

	"monedero/internal/constraint"
	id "monedero/pkg/domain"
	dErrors "monedero/pkg/domain-errors"
)

// catalog declares the per-field constraints of the User aggregate. Built
// once; every mutator validates candidate values against it before accepting
// new state.
var catalog = constraint.NewCatalog(
	constraint.StringField("phone_country_code", true, 2, 4, `\+[0-9]{1,3}`),
	constraint.StringField("phone_number", true, 8, 12, `[0-9]+`),
	constraint.StringField("email", true, 6, 120, `[^@\s]+@[^@\s]+\.[^@\s]+`),
	constraint.StringField("password", true, 6, 72, ""),
	constraint.IdentifierField("client_id", true),
	constraint.StringField("biometric_key", true, 16, 512, ""),
	constraint.StringField("device_fingerprint", true, 8, 128, ""),
)

// Catalog exposes the aggregate's constraint table, mainly for tests.
func Catalog() constraint.Catalog { return catalog }

// User is the aggregate root of the onboarding flow. It owns the phone
// contact point, the verification records, the registration stage and the
// authorized devices.
type User struct {
	ID               id.UserID
	PhoneCountryCode string
	PhoneNumber      string
	Email            *string
	PasswordHash     *string
	Stage            RegistrationStage
	Verifications    []Verification
	Devices          []Device
	Consents         []Consent
	ClientID         *id.ClientID
	Audit            id.Audit
}

// NewUser constructs a user in the initial pre_registro stage.
func NewUser(userID id.UserID, countryCode, number string, now time.Time, actor string) (*User, error) {
	violations := catalog.ValidateAll(map[string]any{
		"phone_country_code": countryCode,
		"phone_number":       number,
	})
	if err := constraint.AsError(violations); err != nil {
		return nil, err
	}
	return &User{
		ID:               userID,
		PhoneCountryCode: countryCode,
		PhoneNumber:      number,
		Stage:            StagePreRegistration,
		Audit:            id.NewAudit(now, actor),
	}, nil
}

// Phone returns the canonical "+cc number" form used for uniqueness checks
// and code delivery.
func (u *User) Phone() string {
	return u.PhoneCountryCode + " " + u.PhoneNumber
}

// AdvanceFrom moves the stage forward by exactly one step after asserting the
// current stage matches the caller's expectation. This is the only way the
// stage advances; failures leave it untouched.
func (u *User) AdvanceFrom(expected RegistrationStage, now time.Time, actor string) error {
	if u.Stage != expected {
		return dErrors.New(dErrors.CodeInvalidState, "registration is not at the required stage").
			WithParam("actual", u.Stage.String()).
			WithParam("expected", expected.String())
	}
	next, ok := u.Stage.Next()
	if !ok {
		return dErrors.New(dErrors.CodeInvalidState, "registration is already complete").
			WithParam("actual", u.Stage.String())
	}
	u.Stage = next
	u.Audit.Touch(now, actor)
	return nil
}

// AddVerification issues a pending verification for the channel.
//
// Any other pending verification of the same channel is deactivated first, so
// at most one active unconfirmed record per channel exists at any time. While
// registration has not completed, issuing a verification also resets the
// stage to pre_registro: an unverified contact point restarts trust.
func (u *User) AddVerification(verificationID id.VerificationID, channel VerificationChannel, dispatchID string, now time.Time, actor string) (*Verification, error) {
	if !channel.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown verification channel").
			WithParam("channel", channel.String())
	}
	for i := range u.Verifications {
		if u.Verifications[i].Channel == channel && u.Verifications[i].Pending() {
			u.Verifications[i].Active = false
		}
	}
	v := Verification{
		ID:         verificationID,
		Channel:    channel,
		DispatchID: dispatchID,
		ExpiresAt:  now.Add(VerificationTTL),
		Active:     true,
		CreatedAt:  now,
	}
	u.Verifications = append(u.Verifications, v)
	if !u.Stage.Completed() {
		u.Stage = StagePreRegistration
	}
	u.Audit.Touch(now, actor)
	return &u.Verifications[len(u.Verifications)-1], nil
}

// latestVerification selects the most recently created record of the channel
// regardless of its active flag.
func (u *User) latestVerification(channel VerificationChannel) *Verification {
	var latest *Verification
	for i := range u.Verifications {
		v := &u.Verifications[i]
		if v.Channel != channel {
			continue
		}
		if latest == nil || !v.CreatedAt.Before(latest.CreatedAt) {
			latest = v
		}
	}
	return latest
}

// LatestVerification returns a copy of the most recently created record of
// the channel, regardless of its active flag.
func (u *User) LatestVerification(channel VerificationChannel) (Verification, bool) {
	v := u.latestVerification(channel)
	if v == nil {
		return Verification{}, false
	}
	return *v, true
}

// ConfirmVerification confirms the latest verification of the channel with
// the provider-accepted code.
//
// It fails when no record exists, when the selected record was superseded,
// when it was already confirmed with a different code, or when the validity
// window has passed. Confirming again with the same code is an idempotent
// no-op and reports changed=false.
func (u *User) ConfirmVerification(channel VerificationChannel, code string, now time.Time, actor string) (bool, error) {
	v := u.latestVerification(channel)
	if v == nil {
		return false, dErrors.New(dErrors.CodeNotFound, "no verification exists for channel").
			WithParam("channel", channel.String())
	}
	if !v.Active && !v.Confirmed {
		return false, dErrors.New(dErrors.CodeInvalidState, "verification was superseded").
			WithParam("channel", channel.String()).
			WithParam("actual", "superseded").
			WithParam("expected", "pending")
	}
	if v.Confirmed {
		if v.Code != nil && *v.Code == code {
			return false, nil
		}
		return false, dErrors.New(dErrors.CodeInvalidState, "verification was already confirmed").
			WithParam("channel", channel.String()).
			WithParam("actual", "confirmed").
			WithParam("expected", "pending")
	}
	if v.Expired(now) {
		return false, dErrors.New(dErrors.CodeExpired, "verification code has expired").
			WithParam("channel", channel.String()).
			WithParam("expired_at", v.ExpiresAt)
	}
	v.Confirmed = true
	v.Active = false
	v.Code = &code
	u.Audit.Touch(now, actor)
	return true, nil
}

// HasConfirmed reports whether the latest verification of the channel was
// confirmed.
func (u *User) HasConfirmed(channel VerificationChannel) bool {
	v := u.latestVerification(channel)
	return v != nil && v.Confirmed
}

// RegisterEmail validates and sets the e-mail contact point.
func (u *User) RegisterEmail(email string, now time.Time, actor string) error {
	if err := constraint.AsError(catalog.Validate("email", email)); err != nil {
		return err
	}
	u.Email = &email
	u.Audit.Touch(now, actor)
	return nil
}

// LinkClient attaches the completed client profile.
func (u *User) LinkClient(clientID id.ClientID, now time.Time, actor string) error {
	if clientID.IsNil() {
		return constraint.AsError(catalog.Validate("client_id", nil))
	}
	u.ClientID = &clientID
	u.Audit.Touch(now, actor)
	return nil
}

// AddDevice records an authorized device with its biometric credential.
func (u *User) AddDevice(device Device, now time.Time, actor string) error {
	violations := catalog.ValidateAll(map[string]any{
		"biometric_key":      device.BiometricKey,
		"device_fingerprint": device.Fingerprint,
	})
	if err := constraint.AsError(violations); err != nil {
		return err
	}
	for _, d := range u.Devices {
		if d.Fingerprint == device.Fingerprint {
			return dErrors.New(dErrors.CodeDuplicate, "device is already registered").
				WithParam("fingerprint", device.Fingerprint)
		}
	}
	u.Devices = append(u.Devices, device)
	u.Audit.Touch(now, actor)
	return nil
}

// AcceptConsents records the onboarding agreements. All required consent
// types must be accepted in the same call or nothing is recorded.
func (u *User) AcceptConsents(accepted []ConsentType, now time.Time, actor string) error {
	consents, err := buildConsents(accepted, now)
	if err != nil {
		return err
	}
	u.Consents = consents
	u.Audit.Touch(now, actor)
	return nil
}

// CreatePassword sets the password hash exactly once. Later changes go
// through ChangePassword, which requires the current password and is not
// gated by stage.
func (u *User) CreatePassword(hash string, now time.Time, actor string) error {
	if u.PasswordHash != nil {
		return dErrors.New(dErrors.CodeInvalidState, "password was already created").
			WithParam("actual", "password_set").
			WithParam("expected", "no_password")
	}
	u.PasswordHash = &hash
	u.Audit.Touch(now, actor)
	return nil
}

// ReplacePassword swaps the stored hash. Callers must have verified the
// current password first.
func (u *User) ReplacePassword(hash string, now time.Time, actor string) error {
	if u.PasswordHash == nil {
		return dErrors.New(dErrors.CodeInvalidState, "no password exists to change").
			WithParam("actual", "no_password").
			WithParam("expected", "password_set")
	}
	u.PasswordHash = &hash
	u.Audit.Touch(now, actor)
	return nil
}

// Clone returns a deep copy so stores never hand out shared slices.
func (u *User) Clone() *User {
	out := *u
	out.Verifications = append([]Verification(nil), u.Verifications...)
	for i := range out.Verifications {
		if c := out.Verifications[i].Code; c != nil {
			code := *c
			out.Verifications[i].Code = &code
		}
	}
	out.Devices = append([]Device(nil), u.Devices...)
	out.Consents = append([]Consent(nil), u.Consents...)
	if u.Email != nil {
		email := *u.Email
		out.Email = &email
	}
	if u.PasswordHash != nil {
		hash := *u.PasswordHash
		out.PasswordHash = &hash
	}
	if u.ClientID != nil {
		clientID := *u.ClientID
		out.ClientID = &clientID
	}
	out.Audit.Version = append(id.Version(nil), u.Audit.Version...)
	return &out
}
