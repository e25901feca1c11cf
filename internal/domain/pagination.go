package domain

import (
	"math"
	"net/url"
	"strconv"

	"apiresource/internal/core/apperror"
)

// Page is a 1-based page request.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"itemsPerPage"`
}

// Offset returns the number of rows to skip. It saturates at math.MaxInt.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// LastPage returns the number of the last page for total items (at least 1).
func (p Page) LastPage(total int64) int {
	if p.Size <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// PaginationConfig configures collection pagination.
type PaginationConfig struct {
	ItemsPerPage       int
	MaxItemsPerPage    int
	ClientItemsPerPage bool

	PageParameter         string
	ItemsPerPageParameter string
}

// DefaultPaginationConfig returns sensible defaults.
func DefaultPaginationConfig() PaginationConfig {
	return PaginationConfig{
		ItemsPerPage:          30,
		MaxItemsPerPage:       100,
		ClientItemsPerPage:    true,
		PageParameter:         "page",
		ItemsPerPageParameter: "itemsPerPage",
	}
}

// PageFromParams reads the requested page. resourceDefault overrides the
// configured page size when positive.
func (c PaginationConfig) PageFromParams(params url.Values, resourceDefault int) (Page, error) {
	page := Page{Number: 1, Size: c.ItemsPerPage}
	if resourceDefault > 0 {
		page.Size = resourceDefault
	}

	if raw := params.Get(c.PageParameter); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page{}, apperror.NewValidation("Page should not be less than 1").
				WithDetail("parameter", c.PageParameter)
		}
		page.Number = n
	}

	if c.ClientItemsPerPage {
		if raw := params.Get(c.ItemsPerPageParameter); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return Page{}, apperror.NewValidation("Items per page should be a positive integer").
					WithDetail("parameter", c.ItemsPerPageParameter)
			}
			page.Size = n
		}
	}

	if c.MaxItemsPerPage > 0 && page.Size > c.MaxItemsPerPage {
		page.Size = c.MaxItemsPerPage
	}
	if page.Size < 1 {
		page.Size = 1
	}
	if page.Number-1 > math.MaxInt/page.Size {
		return Page{}, apperror.NewValidation("Page is out of range").
			WithDetail("parameter", c.PageParameter)
	}
	return page, nil
}
