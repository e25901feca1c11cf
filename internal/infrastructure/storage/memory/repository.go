package memory

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"apiresource/internal/core/apperror"
	"apiresource/internal/core/entity"
	"apiresource/internal/domain"
	"apiresource/internal/filter"
)

var _ domain.Repository = (*Repository)(nil)

// Repository is the memory repository of one entity type.
type Repository struct {
	store *Store
	typ   *entity.Type
}

func (r *Repository) FindByIdentifier(ctx context.Context, id int64) (entity.Entity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	e := r.store.get(ctx, r.typ, id)
	if e == nil {
		return nil, nil
	}
	return r.store.materialize(ctx, r.typ, e, relationDepth), nil
}

func (r *Repository) FindFiltered(ctx context.Context, specs []filter.Spec, params url.Values, page domain.Page) (*domain.CollectionResult, error) {
	q, err := domain.BuildQuery(specs, params)
	if err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []entity.Entity
	ev := evaluator{catalog: r.store.catalog}
	for _, e := range r.store.visible(ctx, r.typ) {
		// evaluate against materialized relations so dotted paths see current data
		m := r.store.materialize(ctx, r.typ, e, relationDepth)
		ok, err := ev.match(q.Constraint(), m)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, m)
		}
	}
	ev.sort(matched, q.Orderings())

	total := int64(len(matched))
	from := max(min(page.Offset(), len(matched)), 0)
	to := max(min(from+page.Size, len(matched)), from)
	return &domain.CollectionResult{
		Members:    slices.Clip(matched[from:to]),
		TotalItems: total,
		Page:       page,
	}, nil
}

func (r *Repository) Add(ctx context.Context, e entity.Entity) error {
	return r.store.RunInTransaction(ctx, func(ctx context.Context) error {
		if e.Identifier() == 0 {
			r.store.mu.Lock()
			tbl := r.store.tables[r.typ.Name]
			tbl.seq++
			e.SetIdentifier(tbl.seq)
			r.store.mu.Unlock()
		} else {
			r.store.mu.Lock()
			if tbl := r.store.tables[r.typ.Name]; e.Identifier() > tbl.seq {
				tbl.seq = e.Identifier()
			}
			r.store.mu.Unlock()
		}
		if err := r.checkReferences(ctx, e); err != nil {
			return err
		}
		unitFrom(ctx).stage(change{typ: r.typ, id: e.Identifier(), e: r.typ.Clone(e)})
		return nil
	})
}

func (r *Repository) Update(ctx context.Context, e entity.Entity) error {
	return r.store.RunInTransaction(ctx, func(ctx context.Context) error {
		r.store.mu.RLock()
		exists := r.store.get(ctx, r.typ, e.Identifier()) != nil
		r.store.mu.RUnlock()
		if !exists {
			return apperror.NewNotFound(r.typ.Name, e.Identifier())
		}
		if err := r.checkReferences(ctx, e); err != nil {
			return err
		}
		unitFrom(ctx).stage(change{typ: r.typ, id: e.Identifier(), e: r.typ.Clone(e)})
		return nil
	})
}

func (r *Repository) Remove(ctx context.Context, e entity.Entity) error {
	return r.store.RunInTransaction(ctx, func(ctx context.Context) error {
		r.store.mu.RLock()
		owner, ownerID, used := r.store.referencedBy(ctx, r.typ, e.Identifier())
		r.store.mu.RUnlock()
		if used {
			return apperror.NewConflict(fmt.Sprintf("%s %d is referenced by %s %d", r.typ.Name, e.Identifier(), owner, ownerID)).
				WithDetail("entity", r.typ.Name).
				WithDetail("referencedBy", owner)
		}
		unitFrom(ctx).stage(change{typ: r.typ, id: e.Identifier()})
		return nil
	})
}

// checkReferences rejects relations to entities that are not stored.
func (r *Repository) checkReferences(ctx context.Context, e entity.Entity) error {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, f := range r.typ.Fields {
		if f.Kind != entity.KindRelation {
			continue
		}
		rel, ok := f.Get(e).(entity.Entity)
		if !ok || rel == nil {
			continue
		}
		target, _ := r.store.catalog.Lookup(f.Target)
		if r.store.get(ctx, target, rel.Identifier()) == nil {
			return apperror.NewInvalidInput(fmt.Sprintf("%s %d does not exist", f.Target, rel.Identifier())).
				WithDetail("property", f.Name)
		}
	}
	return nil
}
