// Package domain provides the collaborator contracts the dispatcher works
// against: repositories, validation, pagination and lifecycle hooks.
package domain

import (
	"context"
	"net/url"

	"apiresource/internal/core/entity"
	"apiresource/internal/core/tx"
	"apiresource/internal/filter"
	"apiresource/internal/query"
)

// --- Repository Interfaces ---

// Repository defines persistence of one entity type.
// Writes join the unit of work carried by ctx, if any.
type Repository interface {
	// FindByIdentifier returns the entity or nil when it does not exist.
	FindByIdentifier(ctx context.Context, id int64) (entity.Entity, error)

	// FindFiltered applies filter specs to the query parameters and returns one page.
	FindFiltered(ctx context.Context, specs []filter.Spec, params url.Values, page Page) (*CollectionResult, error)

	// Add inserts the entity, or replaces it when its identifier is already stored.
	// The identifier is assigned on insert.
	Add(ctx context.Context, e entity.Entity) error

	// Update modifies an existing entity.
	Update(ctx context.Context, e entity.Entity) error

	// Remove deletes the entity.
	Remove(ctx context.Context, e entity.Entity) error
}

// Store hands out repositories and runs units of work.
type Store interface {
	tx.Manager

	// Repository returns the repository of an entity type.
	Repository(t *entity.Type) (Repository, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// BuildQuery turns filter specs and query parameters into a query.
func BuildQuery(specs []filter.Spec, params url.Values) (*query.Query, error) {
	q := query.New()
	if err := filter.Apply(specs, params, q); err != nil {
		return nil, err
	}
	return q, nil
}

// CollectionResult contains one page of a collection.
type CollectionResult struct {
	Members    []entity.Entity
	TotalItems int64
	Page       Page

	// Path and Query of the request, used to build page links.
	Path  string
	Query url.Values
}
