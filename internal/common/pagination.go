package common

import (
	"net/http"
	"strconv"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPagination fills TotalPages from the item count.
func NewPagination(page, perPage, totalItems int) Pagination {
	p := Pagination{Page: page, PerPage: perPage, TotalItems: totalItems}
	if perPage > 0 {
		p.TotalPages = (totalItems + perPage - 1) / perPage
	}
	return p
}

// ParsePagination extracts page and per-page parameters from query values.
// Both "per_page" and "limit" are accepted; maxPerPage caps the result when positive.
func ParsePagination(r *http.Request, defaultPerPage, maxPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}
	raw := q.Get("per_page")
	if raw == "" {
		raw = q.Get("limit")
	}
	if l, err := strconv.Atoi(raw); err == nil && l > 0 {
		perPage = l
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}
	return
}
