// Package models defines the Client aggregate: the personal profile captured
// during the datos-cliente step of onboarding.
package models

import (
	"time"

	"monedero/internal/constraint"
	id "monedero/pkg/domain"
)

var catalog = constraint.NewCatalog(
	constraint.StringField("first_name", true, 2, 60, ""),
	constraint.StringField("paternal_surname", true, 2, 60, ""),
	constraint.StringField("maternal_surname", false, 2, 60, ""),
	constraint.StringField("curp", true, 18, 18, `[A-Z]{4}[0-9]{6}[HM][A-Z]{5}[A-Z0-9][0-9]`),
	constraint.StringField("rfc", false, 12, 13, `[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}`),
	constraint.DateField("birth_date", true),
	constraint.StringField("postal_code", true, 5, 5, `[0-9]{5}`),
	constraint.StringField("state_code", true, 2, 4, `[A-Z]+`),
)

// Catalog exposes the aggregate's constraint table, mainly for tests.
func Catalog() constraint.Catalog { return catalog }

// Client holds the verified identity data of a wallet holder.
type Client struct {
	ID              id.ClientID
	UserID          id.UserID
	FirstName       string
	PaternalSurname string
	MaternalSurname *string
	CURP            string
	RFC             *string
	BirthDate       time.Time
	PostalCode      string
	StateCode       string
	Audit           id.Audit
}

// Profile carries the raw datos-cliente payload into construction.
type Profile struct {
	FirstName       string
	PaternalSurname string
	MaternalSurname *string
	CURP            string
	RFC             *string
	BirthDate       time.Time
	PostalCode      string
	StateCode       string
}

// NewClient validates the full profile and builds the aggregate. All field
// violations are reported together.
func NewClient(clientID id.ClientID, userID id.UserID, profile Profile, now time.Time, actor string) (*Client, error) {
	values := map[string]any{
		"first_name":       profile.FirstName,
		"paternal_surname": profile.PaternalSurname,
		"maternal_surname": profile.MaternalSurname,
		"curp":             profile.CURP,
		"rfc":              profile.RFC,
		"birth_date":       profile.BirthDate,
		"postal_code":      profile.PostalCode,
		"state_code":       profile.StateCode,
	}
	if err := constraint.AsError(catalog.ValidateAll(values)); err != nil {
		return nil, err
	}
	return &Client{
		ID:              clientID,
		UserID:          userID,
		FirstName:       profile.FirstName,
		PaternalSurname: profile.PaternalSurname,
		MaternalSurname: profile.MaternalSurname,
		CURP:            profile.CURP,
		RFC:             profile.RFC,
		BirthDate:       profile.BirthDate,
		PostalCode:      profile.PostalCode,
		StateCode:       profile.StateCode,
		Audit:           id.NewAudit(now, actor),
	}, nil
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (c *Client) Clone() *Client {
	out := *c
	if c.MaternalSurname != nil {
		v := *c.MaternalSurname
		out.MaternalSurname = &v
	}
	if c.RFC != nil {
		v := *c.RFC
		out.RFC = &v
	}
	out.Audit.Version = append(id.Version(nil), c.Audit.Version...)
	return &out
}
