// Package entity provides the declarative description of domain entities:
// field descriptor tables with typed accessors, built once per type.
package entity

import (
	"context"
)

// Entity is any domain object exposed as a resource.
type Entity interface {
	Identifier() int64
	SetIdentifier(id int64)
}

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// Base contains the identifier shared by all entities.
// Zero UID means "not persisted yet".
type Base struct {
	UID int64 `db:"uid" json:"uid"`
}

// Identifier returns the entity identifier.
func (b *Base) Identifier() int64 {
	return b.UID
}

// SetIdentifier updates the identifier (used by repository after insert).
func (b *Base) SetIdentifier(id int64) {
	b.UID = id
}

// IsNew reports whether the entity has not been persisted.
func (b *Base) IsNew() bool {
	return b.UID == 0
}
