package blog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"apiresource/internal/core/entity"
	"apiresource/internal/domain"
)

// SampleData returns a small, related data set in insertion order:
// publishers first, then authors, then articles.
func SampleData(now time.Time) []entity.Entity {
	now = now.UTC().Truncate(time.Second)
	published := now.Add(-48 * time.Hour)

	acme := &Publisher{Name: "Acme Books", Website: "https://acme.example", Verified: true}
	indie := &Publisher{Name: "Indie Press"}

	ann := &Author{Name: "Ann Lee", Email: "ann@example.com", Rating: 4.5, Publisher: acme, CreatedAt: now}
	bob := &Author{Name: "Bob Stone", Email: "bob@example.com", Rating: 3, Publisher: indie, CreatedAt: now}

	return []entity.Entity{
		acme, indie, ann, bob,
		&Article{
			Title: "Getting started", Slug: "getting-started", Body: "First steps.",
			Tags: []string{"intro", "go"}, Featured: true, Views: 120,
			Price: decimal.Zero, Status: StatusPublished, PublishedAt: &published, Author: ann,
		},
		&Article{
			Title: "Filtering collections", Slug: "filtering-collections", Body: "Query parameters in depth.",
			Tags: []string{"api"}, Views: 42, Price: decimal.RequireFromString("4.99"),
			Status: StatusPublished, PublishedAt: &published, Author: bob,
		},
		&Article{
			Title: "Work in progress", Slug: "work-in-progress", Body: "Not ready yet.",
			Status: StatusDraft, Author: ann,
		},
	}
}

// Seed inserts SampleData into store in one unit of work.
func Seed(ctx context.Context, store domain.Store, catalog *entity.Catalog, now time.Time) (int, error) {
	data := SampleData(now)
	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, e := range data {
			t, ok := catalog.TypeOf(e)
			if !ok {
				return fmt.Errorf("seed: %T is not registered", e)
			}
			repo, err := store.Repository(t)
			if err != nil {
				return err
			}
			if err := repo.Add(ctx, e); err != nil {
				return fmt.Errorf("seed %s: %w", t.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
