// Package memory provides an in-process storage driver. Writes made inside
// a unit of work are staged and become visible only on commit.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"apiresource/internal/core/entity"
	"apiresource/internal/core/tx"
	"apiresource/internal/domain"
)

var tracer = otel.Tracer("apiresource/storage/memory")

var (
	_ domain.Store = (*Store)(nil)
	_ tx.Manager   = (*Store)(nil)
)

// relationDepth bounds how many relation hops are refreshed on read.
const relationDepth = 3

type table struct {
	typ  *entity.Type
	rows map[int64]entity.Entity
	seq  int64
}

// Store keeps committed entities in maps keyed by type and identifier.
type Store struct {
	catalog *entity.Catalog

	mu     sync.RWMutex
	tables map[string]*table

	commits   atomic.Int64
	rollbacks atomic.Int64
}

// New creates an empty store for the types of catalog.
func New(catalog *entity.Catalog) *Store {
	s := &Store{
		catalog: catalog,
		tables:  make(map[string]*table, len(catalog.Types())),
	}
	for _, t := range catalog.Types() {
		s.tables[t.Name] = &table{typ: t, rows: make(map[int64]entity.Entity)}
	}
	return s
}

// Commits returns the number of committed units of work.
func (s *Store) Commits() int64 { return s.commits.Load() }

// Rollbacks returns the number of discarded units of work.
func (s *Store) Rollbacks() int64 { return s.rollbacks.Load() }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Repository returns the repository of t.
func (s *Store) Repository(t *entity.Type) (domain.Repository, error) {
	if _, ok := s.tables[t.Name]; !ok {
		return nil, fmt.Errorf("memory store: entity %s is not registered", t.Name)
	}
	return &Repository{store: s, typ: t}, nil
}

// Seed stores entities directly, outside any unit of work. Entities without
// an identifier get the next one.
func (s *Store) Seed(entities ...entity.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		t, ok := s.catalog.TypeOf(e)
		if !ok {
			return fmt.Errorf("memory store: %T is not a registered entity", e)
		}
		tbl := s.tables[t.Name]
		if e.Identifier() == 0 {
			tbl.seq++
			e.SetIdentifier(tbl.seq)
		} else if e.Identifier() > tbl.seq {
			tbl.seq = e.Identifier()
		}
		tbl.rows[e.Identifier()] = t.Clone(e)
	}
	return nil
}

// unit is one open unit of work.
type unit struct {
	mu     sync.Mutex
	staged []change
}

type change struct {
	typ *entity.Type
	id  int64
	// e is nil for a deletion.
	e entity.Entity
}

type unitKey struct{}

func unitFrom(ctx context.Context) *unit {
	u, _ := ctx.Value(unitKey{}).(*unit)
	return u
}

func (u *unit) stage(c change) {
	u.mu.Lock()
	u.staged = append(u.staged, c)
	u.mu.Unlock()
}

// lookup returns the latest staged state of (t, id).
func (u *unit) lookup(t *entity.Type, id int64) (entity.Entity, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i := len(u.staged) - 1; i >= 0; i-- {
		c := u.staged[i]
		if c.typ.Name == t.Name && c.id == id {
			return c.e, true
		}
	}
	return nil, false
}

// RunInTransaction runs fn in a unit of work. Nested calls join the outer unit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if unitFrom(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(attribute.String("storage.driver", "memory")))
	defer span.End()

	u := &unit{}
	if err := fn(context.WithValue(ctx, unitKey{}, u)); err != nil {
		s.rollbacks.Add(1)
		span.RecordError(err)
		return err
	}

	s.mu.Lock()
	for _, c := range u.staged {
		tbl := s.tables[c.typ.Name]
		if c.e == nil {
			delete(tbl.rows, c.id)
			continue
		}
		tbl.rows[c.id] = c.e
	}
	s.mu.Unlock()
	s.commits.Add(1)
	return nil
}

// get returns the visible state of (t, id) as stored, without cloning.
// The caller must hold s.mu for reading.
func (s *Store) get(ctx context.Context, t *entity.Type, id int64) entity.Entity {
	if u := unitFrom(ctx); u != nil {
		if e, ok := u.lookup(t, id); ok {
			return e
		}
	}
	return s.tables[t.Name].rows[id]
}

// visible returns every visible row of t in identifier order.
// The caller must hold s.mu for reading.
func (s *Store) visible(ctx context.Context, t *entity.Type) []entity.Entity {
	tbl := s.tables[t.Name]
	ids := make(map[int64]struct{}, len(tbl.rows))
	for id := range tbl.rows {
		ids[id] = struct{}{}
	}
	if u := unitFrom(ctx); u != nil {
		u.mu.Lock()
		for _, c := range u.staged {
			if c.typ.Name == t.Name {
				ids[c.id] = struct{}{}
			}
		}
		u.mu.Unlock()
	}

	out := make([]entity.Entity, 0, len(ids))
	for id := range ids {
		if e := s.get(ctx, t, id); e != nil {
			out = append(out, e)
		}
	}
	sortByIdentifier(out)
	return out
}

// materialize returns a detached copy of e whose relations point at the
// current state of the related entities.
// The caller must hold s.mu for reading.
func (s *Store) materialize(ctx context.Context, t *entity.Type, e entity.Entity, depth int) entity.Entity {
	out := t.Clone(e)
	for _, f := range t.Fields {
		if f.Kind != entity.KindRelation {
			continue
		}
		rel, ok := f.Get(out).(entity.Entity)
		if !ok || rel == nil {
			continue
		}
		target, _ := s.catalog.Lookup(f.Target)
		current := s.get(ctx, target, rel.Identifier())
		switch {
		case current == nil:
			_ = f.Set(out, nil)
		case depth <= 1:
			stub := target.New()
			stub.SetIdentifier(rel.Identifier())
			_ = f.Set(out, stub)
		default:
			_ = f.Set(out, s.materialize(ctx, target, current, depth-1))
		}
	}
	return out
}

// referencedBy reports the first visible entity holding a relation to (t, id).
// The caller must hold s.mu for reading.
func (s *Store) referencedBy(ctx context.Context, t *entity.Type, id int64) (string, int64, bool) {
	for _, owner := range s.catalog.Types() {
		for _, f := range owner.Fields {
			if f.Kind != entity.KindRelation || f.Target != t.Name {
				continue
			}
			for _, e := range s.visible(ctx, owner) {
				rel, ok := f.Get(e).(entity.Entity)
				if ok && rel != nil && rel.Identifier() == id {
					return owner.Name, e.Identifier(), true
				}
			}
		}
	}
	return "", 0, false
}
