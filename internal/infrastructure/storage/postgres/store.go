package postgres

import (
	"context"
	"fmt"

	"apiresource/internal/core/entity"
	"apiresource/internal/domain"
)

var _ domain.Store = (*Store)(nil)

// Store is the PostgreSQL implementation of domain.Store.
type Store struct {
	pool    *Pool
	txm     *TxManager
	catalog *entity.Catalog
}

// NewStore creates a store over pool.
func NewStore(pool *Pool, catalog *entity.Catalog, opts TxOptions) *Store {
	return &Store{
		pool:    pool,
		txm:     NewTxManager(pool, opts),
		catalog: catalog,
	}
}

// RunInTransaction runs fn in one database transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.txm.RunInTransaction(ctx, fn)
}

// Repository returns the repository of t.
func (s *Store) Repository(t *entity.Type) (domain.Repository, error) {
	if _, ok := s.catalog.Lookup(t.Name); !ok {
		return nil, fmt.Errorf("postgres store: entity %s is not registered", t.Name)
	}
	return &Repository{store: s, typ: t}, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool returns the underlying pool.
func (s *Store) Pool() *Pool {
	return s.pool
}

// Migrate executes a schema script.
func (s *Store) Migrate(ctx context.Context, script string) error {
	if _, err := s.pool.Exec(ctx, script); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) querier(ctx context.Context) Querier {
	return s.txm.GetQuerier(ctx)
}
