// Package blog is the example domain exposed by the server: publishers,
// authors and articles.
package blog

import (
	"context"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"apiresource/internal/core/apperror"
	"apiresource/internal/core/entity"
)

// Article statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

var statuses = []string{StatusDraft, StatusPublished, StatusArchived}

// Publisher issues articles through its authors.
type Publisher struct {
	entity.Base
	Name     string
	Website  string
	Verified bool
}

func (p *Publisher) EntityName() string { return "Publisher" }

// Validate checks publisher invariants.
func (p *Publisher) Validate(_ context.Context) error {
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidationFailed("Publisher", "name is required").WithDetail("property", "name")
	}
	return nil
}

// Author writes articles.
type Author struct {
	entity.Base
	Name      string
	Email     string
	Rating    float64
	Publisher *Publisher
	CreatedAt time.Time
}

func (a *Author) EntityName() string { return "Author" }

// Validate checks author invariants.
func (a *Author) Validate(_ context.Context) error {
	if strings.TrimSpace(a.Name) == "" {
		return apperror.NewValidationFailed("Author", "name is required").WithDetail("property", "name")
	}
	if a.Email != "" {
		if _, err := mail.ParseAddress(a.Email); err != nil {
			return apperror.NewValidationFailed("Author", "email is invalid").WithDetail("property", "email")
		}
	}
	if a.Rating < 0 || a.Rating > 5 {
		return apperror.NewValidationFailed("Author", "rating must be between 0 and 5").WithDetail("property", "rating")
	}
	return nil
}

// Article is a published piece of writing.
type Article struct {
	entity.Base
	Title       string
	Slug        string
	Body        string
	Tags        []string
	Featured    bool
	Views       int64
	Price       decimal.Decimal
	Status      string
	PublishedAt *time.Time
	Cover       string
	Link        string
	Author      *Author
}

// NewArticle returns an article with default values.
func NewArticle() *Article {
	return &Article{Status: StatusDraft}
}

func (a *Article) EntityName() string { return "Article" }

// Validate checks article invariants.
func (a *Article) Validate(_ context.Context) error {
	if strings.TrimSpace(a.Title) == "" {
		return apperror.NewValidationFailed("Article", "title is required").WithDetail("property", "title")
	}
	if a.Price.IsNegative() {
		return apperror.NewValidationFailed("Article", "price must not be negative").WithDetail("property", "price")
	}
	if !slices.Contains(statuses, a.Status) {
		return apperror.NewValidationFailed("Article", "unknown status").
			WithDetail("property", "status").
			WithDetail("allowed", statuses)
	}
	if a.Status == StatusPublished && a.PublishedAt == nil {
		return apperror.NewValidationFailed("Article", "published articles need publishedAt").WithDetail("property", "publishedAt")
	}
	return nil
}
