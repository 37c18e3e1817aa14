package models

import (
	"time"

	id "monedero/pkg/domain"
)

// Device is an authorized-device record captured when the user registers
// biometric credentials. Platform and browser come from parsing the raw
// user-agent string at the service layer.
type Device struct {
	ID           id.DeviceID
	Fingerprint  string
	Platform     string
	Browser      string
	UserAgent    string
	BiometricKey string
	RegisteredAt time.Time
}
