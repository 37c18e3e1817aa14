package models

import (
	"time"

	dErrors "monedero/pkg/domain-errors"
)

// ConsentType labels one of the agreements captured during onboarding.
type ConsentType string

const (
	ConsentTerms     ConsentType = "terminos_condiciones"
	ConsentPrivacy   ConsentType = "aviso_privacidad"
	ConsentDataUsage ConsentType = "uso_de_datos"
)

// requiredConsents lists every agreement that must be accepted together.
// Partial acceptance is never recorded.
var requiredConsents = []ConsentType{ConsentTerms, ConsentPrivacy, ConsentDataUsage}

// Consent records one accepted agreement.
type Consent struct {
	Type       ConsentType
	AcceptedAt time.Time
}

// buildConsents validates that accepted covers every required consent type
// and returns the records to attach. Unknown types are rejected.
func buildConsents(accepted []ConsentType, now time.Time) ([]Consent, error) {
	seen := make(map[ConsentType]bool, len(accepted))
	for _, t := range accepted {
		switch t {
		case ConsentTerms, ConsentPrivacy, ConsentDataUsage:
			seen[t] = true
		default:
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown consent type").
				WithParam("type", string(t))
		}
	}
	for _, required := range requiredConsents {
		if !seen[required] {
			return nil, dErrors.New(dErrors.CodeValidation, "all consents must be accepted together").
				WithParam("missing", string(required))
		}
	}
	out := make([]Consent, 0, len(requiredConsents))
	for _, t := range requiredConsents {
		out = append(out, Consent{Type: t, AcceptedAt: now})
	}
	return out, nil
}
