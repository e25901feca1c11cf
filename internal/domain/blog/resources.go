package blog

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"apiresource/internal/core/entity"
	"apiresource/internal/domain"
	"apiresource/internal/filter"
	"apiresource/internal/resource"
)

const (
	canRead   = `object.status == 'published' || user.authenticated`
	canWrite  = `user.authenticated`
	canDelete = `user.admin || 'editor' in user.roles`
	// Only administrators may feature an article.
	canFeature = `user.admin || !object.featured`
)

// Resources returns fresh resource declarations of the blog domain.
// Registration mutates resources, so every registry needs its own set.
func Resources() []*resource.Resource {
	return []*resource.Resource{
		{
			Entity: "Article",
			Operations: []*resource.Operation{
				{
					Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/articles",
					NormalizationGroups: []string{GroupArticleRead},
				},
				{
					Kind: resource.CollectionOperation, Method: http.MethodPost, Path: "/articles",
					Security:                canWrite,
					SecurityPostDenormalize: canFeature,
					NormalizationGroups:     []string{GroupArticleRead, GroupArticleDetail},
					DenormalizationGroups:   []string{GroupArticleWrite},
				},
				{
					Kind: resource.ItemOperation, Method: http.MethodGet, Path: "/articles/{id}", Main: true,
					Security:            canRead,
					NormalizationGroups: []string{GroupArticleRead, GroupArticleDetail},
				},
				{
					Kind: resource.ItemOperation, Method: http.MethodPut, Path: "/articles/{id}",
					Security:                canWrite,
					SecurityPostDenormalize: canFeature,
					NormalizationGroups:     []string{GroupArticleRead, GroupArticleDetail},
					DenormalizationGroups:   []string{GroupArticleWrite},
				},
				{
					Kind: resource.ItemOperation, Method: http.MethodPatch, Path: "/articles/{id}",
					Security:                canWrite,
					SecurityPostDenormalize: canFeature,
					NormalizationGroups:     []string{GroupArticleRead, GroupArticleDetail},
					DenormalizationGroups:   []string{GroupArticleWrite},
				},
				{
					Kind: resource.ItemOperation, Method: http.MethodDelete, Path: "/articles/{id}",
					Security: canDelete,
				},
			},
			Filters: []filter.Spec{
				{Kind: filter.Numeric, Property: "uid"},
				{Kind: filter.Numeric, Property: "author.uid", Parameter: "author"},
				{Kind: filter.String, Property: "title", Arguments: map[string]string{"strategy": "partial"}},
				{Kind: filter.String, Property: "slug"},
				{Kind: filter.String, Property: "status"},
				{Kind: filter.String, Property: "author.publisher.name", Parameter: "publisher", Arguments: map[string]string{"strategy": "word_start"}},
				{Kind: filter.Numeric, Property: "views"},
				{Kind: filter.Boolean, Property: "featured"},
				{Kind: filter.Date, Property: "publishedAt"},
				{Kind: filter.Exists, Property: "publishedAt"},
				{Kind: filter.Order, Property: "publishedAt"},
				{Kind: filter.Order, Property: "title"},
				{Kind: filter.Order, Property: "uid", Arguments: map[string]string{"default": "asc"}},
			},
		},
		{
			Entity: "Author",
			Operations: []*resource.Operation{
				{
					Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/authors",
					NormalizationGroups: []string{GroupAuthorRead},
				},
				{
					Kind: resource.CollectionOperation, Method: http.MethodPost, Path: "/authors",
					Security:              canWrite,
					NormalizationGroups:   []string{GroupAuthorRead},
					DenormalizationGroups: []string{GroupAuthorWrite},
				},
				{
					Kind: resource.ItemOperation, Method: http.MethodGet, Path: "/authors/{id}",
					NormalizationGroups: []string{GroupAuthorRead},
				},
				{
					Kind: resource.ItemOperation, Method: http.MethodPatch, Path: "/authors/{id}",
					Security:              canWrite,
					NormalizationGroups:   []string{GroupAuthorRead},
					DenormalizationGroups: []string{GroupAuthorWrite},
				},
				{
					Kind: resource.ItemOperation, Method: http.MethodDelete, Path: "/authors/{id}",
					Security: canDelete,
				},
			},
			Filters: []filter.Spec{
				{Kind: filter.String, Property: "name", Arguments: map[string]string{"strategy": "start"}},
				{Kind: filter.String, Property: "email", Arguments: map[string]string{"strategy": "exact", "caseSensitive": "true"}},
				{Kind: filter.Numeric, Property: "publisher.uid", Parameter: "publisher"},
				{Kind: filter.Exists, Property: "publisher"},
				{Kind: filter.Date, Property: "createdAt"},
				{Kind: filter.Order, Property: "name", Arguments: map[string]string{"default": "asc"}},
				{Kind: filter.Order, Property: "rating"},
			},
			ItemsPerPage: 20,
		},
		{
			Entity: "Publisher",
			Operations: []*resource.Operation{
				{Kind: resource.CollectionOperation, Method: http.MethodGet, Path: "/publishers"},
				{Kind: resource.CollectionOperation, Method: http.MethodPost, Path: "/publishers", Security: canDelete},
				{Kind: resource.ItemOperation, Method: http.MethodGet, Path: "/publishers/{id}"},
				{Kind: resource.ItemOperation, Method: http.MethodPut, Path: "/publishers/{id}", Security: canDelete},
				{Kind: resource.ItemOperation, Method: http.MethodDelete, Path: "/publishers/{id}", Security: canDelete},
			},
			Filters: []filter.Spec{
				{Kind: filter.Boolean, Property: "verified"},
				{Kind: filter.String, Property: "name", Arguments: map[string]string{"strategy": "word_start"}},
				{Kind: filter.Order, Property: "name"},
			},
		},
	}
}

// Register adds the blog resources to reg.
func Register(reg *resource.Registry) error {
	for _, res := range Resources() {
		if err := reg.Register(res); err != nil {
			return err
		}
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a title into a URL-friendly slug.
func Slugify(title string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// RegisterHooks installs the lifecycle hooks of the blog domain.
func RegisterHooks(h *domain.HookRegistry, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	h.OnBeforeCreate("Article", func(_ context.Context, e entity.Entity) error {
		a := e.(*Article)
		if a.Slug == "" {
			a.Slug = Slugify(a.Title)
		}
		return nil
	})
	h.OnBeforeUpdate("Article", func(_ context.Context, e entity.Entity) error {
		a := e.(*Article)
		if a.Slug == "" {
			a.Slug = Slugify(a.Title)
		}
		return nil
	})
	h.OnBeforeCreate("Author", func(_ context.Context, e entity.Entity) error {
		a := e.(*Author)
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now().UTC()
		}
		return nil
	})
}
