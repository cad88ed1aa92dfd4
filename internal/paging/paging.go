// Package paging holds the 1-based page arithmetic shared by list endpoints.
package paging

import (
	"errors"
	"fmt"
)

// Defaults for list endpoints.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// ErrInvalidPage is returned for a page or page size below 1.
var ErrInvalidPage = errors.New("invalid pagination")

// Params is a requested page.
type Params struct {
	Page    int
	PerPage int
}

// Validate checks p and caps PerPage at maxPerPage (MaxPerPage when zero).
func (p Params) Validate(maxPerPage int) (Params, error) {
	if maxPerPage <= 0 {
		maxPerPage = MaxPerPage
	}
	if p.Page < 1 {
		return p, fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidPage, p.Page)
	}
	if p.PerPage < 1 {
		return p, fmt.Errorf("%w: per_page must be >= 1, got %d", ErrInvalidPage, p.PerPage)
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p, nil
}

// Offset is the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Pages returns ceil(total/perPage), or 0 when there is nothing to show.
func Pages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

// Page is one page of items.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// NewPage assembles a Page from a validated request and the full count.
func NewPage[T any](p Params, items []T, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items: items,
		Pagination: Pagination{
			Page:    p.Page,
			PerPage: p.PerPage,
			Total:   total,
			Pages:   Pages(total, p.PerPage),
		},
	}
}
