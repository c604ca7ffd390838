// Package pagination provides pagination utilities for list endpoints.
package pagination

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination holds pagination parameters.
type Pagination struct {
	Page    int
	PerPage int
}

// New creates a new Pagination with defaults applied.
func New(page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return Pagination{
		Page:    page,
		PerPage: perPage,
	}
}

// FromQuery parses page and per_page query parameters.
func FromQuery(q url.Values) Pagination {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return New(page, perPage)
}

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	return p.PerPage
}

// OrderBy builds a safe ORDER BY clause from a sort string like
// "-created_at,name". Fields not present in allowed (request field to
// column name) are dropped; defaultSort is used when nothing survives.
func OrderBy(sortStr string, allowed map[string]string, defaultSort string) string {
	var parts []string
	for _, part := range strings.Split(sortStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dir := "ASC"
		field := strings.TrimPrefix(part, "+")
		if strings.HasPrefix(part, "-") {
			dir = "DESC"
			field = part[1:]
		}
		if column, ok := allowed[field]; ok {
			parts = append(parts, column+" "+dir)
		}
	}
	if len(parts) == 0 {
		return defaultSort
	}
	return strings.Join(parts, ", ")
}

// Result represents a paginated result set.
type Result[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
}

// NewResult creates a new paginated Result.
func NewResult[T any](data []T, total int64, p Pagination) Result[T] {
	if data == nil {
		data = make([]T, 0)
	}

	totalPages := int(total) / p.PerPage
	if int(total)%p.PerPage > 0 {
		totalPages++
	}

	return Result[T]{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: totalPages,
	}
}
