package serializer

import (
	"context"

	"apiresource/internal/core/entity"
	"apiresource/internal/domain"
)

// StoreReferences resolves references through the repositories of a store.
type StoreReferences struct {
	Store domain.Store
}

func (r StoreReferences) Reference(ctx context.Context, t *entity.Type, id int64) (entity.Entity, error) {
	repo, err := r.Store.Repository(t)
	if err != nil {
		return nil, err
	}
	return repo.FindByIdentifier(ctx, id)
}
