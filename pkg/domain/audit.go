package domain

import "time"

// Audit is the creation/modification metadata embedded in every mutable
// aggregate. It replaces a persistent base-class hierarchy with a small
// composed value.
//
// Version is the optimistic-concurrency token: stores regenerate it on every
// successful write, and reject writes whose caller-supplied token no longer
// matches the stored one. Mutators only touch the actor/timestamp fields.
type Audit struct {
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
	Version   Version
}

// NewAudit returns the metadata for a freshly constructed aggregate. The
// version starts empty; the store assigns the first token when it persists
// the aggregate.
func NewAudit(now time.Time, actor string) Audit {
	return Audit{
		CreatedAt: now,
		CreatedBy: actor,
		UpdatedAt: now,
		UpdatedBy: actor,
	}
}

// Touch records a mutation. Every aggregate mutator calls it; the version
// token itself is only advanced by the store on successful persistence.
func (a *Audit) Touch(now time.Time, actor string) {
	a.UpdatedAt = now
	a.UpdatedBy = actor
}
