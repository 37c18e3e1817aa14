package audit

import "time"

// EventName identifies a domain action worth an audit trail entry.
type EventName string

const (
	EventUserCreated           EventName = "user.created"
	EventPhoneConfirmed        EventName = "user.phone_confirmed"
	EventClientDataCompleted   EventName = "user.client_data_completed"
	EventEmailRegistered       EventName = "user.email_registered"
	EventEmailVerified         EventName = "user.email_verified"
	EventBiometricsRegistered  EventName = "user.biometrics_registered"
	EventTermsAccepted         EventName = "user.terms_accepted"
	EventRegistrationCompleted EventName = "user.registration_completed"
	EventPasswordChanged       EventName = "user.password_changed"
	EventUserLoggedIn          EventName = "user.logged_in"
	EventVerificationIssued    EventName = "verification.issued"
	EventVerificationConfirmed EventName = "verification.confirmed"
	EventCardIssued            EventName = "card.issued"
	EventCardActivated         EventName = "card.activated"
	EventCardBlocked           EventName = "card.blocked"
	EventCardUnblocked         EventName = "card.unblocked"
	EventCardRulesUpdated      EventName = "card.rules_updated"
	EventCardShipmentUpdated   EventName = "card.shipment_updated"
	EventCardCanceled          EventName = "card.canceled"
	EventCardExpired           EventName = "card.expired"
	EventAccountOpened         EventName = "account.opened"
	EventAccountCredited       EventName = "account.credited"
	EventAccountDebited        EventName = "account.debited"
	EventAccountFrozen         EventName = "account.frozen"
	EventAccountUnfrozen       EventName = "account.unfrozen"
	EventAccountClosed         EventName = "account.closed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Actor     string            `json:"actor"`
	UserID    string            `json:"user_id,omitempty"`
	Action    EventName         `json:"action"`
	Entity    string            `json:"entity,omitempty"`
	EntityID  string            `json:"entity_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}
