// Package tx defines the unit-of-work contract used by the dispatcher.
// Storage drivers provide the implementation; the dispatcher never talks
// to a concrete database.
package tx

import (
	"context"
)

// Manager runs one unit of work.
//
// Writes staged by repositories inside fn become visible only when fn
// returns nil; any error discards them. Nested calls join the outer unit.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ManagerFunc adapts a plain function to Manager.
type ManagerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTransaction calls f.
func (f ManagerFunc) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}
