package blog

import (
	"time"

	"github.com/shopspring/decimal"

	"apiresource/internal/core/annotation"
	"apiresource/internal/core/entity"
)

// Serialization groups.
const (
	GroupArticleRead   = "article:read"
	GroupArticleDetail = "article:detail"
	GroupArticleWrite  = "article:write"
	GroupAuthorRead    = "author:read"
	GroupAuthorWrite   = "author:write"
)

var PublisherType = entity.MustType("Publisher", "blog_publishers",
	func() entity.Entity { return &Publisher{} },
	entity.Identifier("uid", "uid"),
	entity.String("name", "name", func(p *Publisher) *string { return &p.Name }),
	entity.String("website", "website", func(p *Publisher) *string { return &p.Website },
		entity.Annotate(annotation.Doc{Description: "Public home page"})),
	entity.Bool("verified", "verified", func(p *Publisher) *bool { return &p.Verified }),
)

var AuthorType = entity.MustType("Author", "blog_authors",
	func() entity.Entity { return &Author{} },
	entity.Identifier("uid", "uid"),
	entity.String("name", "name", func(a *Author) *string { return &a.Name },
		entity.Annotate(annotation.Groups{GroupAuthorRead, GroupAuthorWrite, GroupArticleRead})),
	entity.String("email", "email", func(a *Author) *string { return &a.Email },
		entity.Annotate(annotation.Groups{GroupAuthorRead, GroupAuthorWrite})),
	entity.Float("rating", "rating", func(a *Author) *float64 { return &a.Rating },
		entity.Annotate(annotation.Groups{GroupAuthorRead, GroupAuthorWrite, GroupArticleRead}),
		entity.Hint("double average review score")),
	entity.Relation("publisher", "publisher_uid", "Publisher", func(a *Author) **Publisher { return &a.Publisher },
		entity.Annotate(annotation.Groups{GroupAuthorRead, GroupAuthorWrite, GroupArticleRead})),
	entity.Time("createdAt", "created_at", func(a *Author) *time.Time { return &a.CreatedAt },
		entity.Annotate(annotation.Groups{GroupAuthorRead}, annotation.ReadOnly{})),
)

var ArticleType = entity.MustType("Article", "blog_articles",
	func() entity.Entity { return NewArticle() },
	entity.Identifier("uid", "uid"),
	entity.String("title", "title", func(a *Article) *string { return &a.Title },
		entity.Annotate(annotation.Groups{GroupArticleRead, GroupArticleWrite})),
	entity.String("slug", "slug", func(a *Article) *string { return &a.Slug },
		entity.Annotate(annotation.Groups{GroupArticleRead, GroupArticleWrite})),
	entity.String("body", "body", func(a *Article) *string { return &a.Body },
		entity.Annotate(annotation.Groups{GroupArticleDetail, GroupArticleWrite})),
	entity.Strings("tags", "tags", func(a *Article) *[]string { return &a.Tags },
		entity.Annotate(annotation.Groups{GroupArticleRead, GroupArticleWrite}),
		entity.Hint("string[] free-form tags")),
	entity.Bool("featured", "featured", func(a *Article) *bool { return &a.Featured },
		entity.Annotate(annotation.Groups{GroupArticleRead, GroupArticleWrite})),
	entity.Int("views", "views", func(a *Article) *int64 { return &a.Views },
		entity.Annotate(annotation.Groups{GroupArticleRead}, annotation.ReadOnly{})),
	entity.Decimal("price", "price", func(a *Article) *decimal.Decimal { return &a.Price },
		entity.Annotate(annotation.Groups{GroupArticleRead, GroupArticleWrite})),
	entity.String("status", "status", func(a *Article) *string { return &a.Status },
		entity.Annotate(annotation.Groups{GroupArticleRead, GroupArticleWrite})),
	entity.NullableTime("publishedAt", "published_at", func(a *Article) **time.Time { return &a.PublishedAt },
		entity.Annotate(annotation.Groups{GroupArticleRead, GroupArticleWrite})),
	entity.String("cover", "cover", func(a *Article) *string { return &a.Cover },
		entity.Annotate(annotation.Groups{GroupArticleRead, GroupArticleWrite}, annotation.Image{Width: "800c", Height: 600})),
	entity.String("link", "link", func(a *Article) *string { return &a.Link },
		entity.Annotate(annotation.Groups{GroupArticleDetail}, annotation.RecordURI{Identifier: "tx_blog_article"}, annotation.ReadOnly{})),
	entity.Relation("author", "author_uid", "Author", func(a *Article) **Author { return &a.Author },
		entity.Annotate(annotation.Groups{GroupArticleRead, GroupArticleWrite})),
)

// Catalog returns the entity catalog of the blog domain.
func Catalog() (*entity.Catalog, error) {
	return entity.NewCatalog(PublisherType, AuthorType, ArticleType)
}
