package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	// DefaultPageSize is the default number of items per page when a
	// handler does not specify its own default.
	DefaultPageSize = 20
	// MaxPageSize is the maximum allowed page size, per spec.md §4.B.
	MaxPageSize = 100
)

// OffsetParams holds the parsed page/limit query parameters.
type OffsetParams struct {
	Page   int
	Limit  int
	Offset int // computed from Page and Limit
}

// ParseOffsetParams extracts page/limit pagination parameters from the
// request, defaulting Limit to defaultLimit when the query string omits it.
func ParseOffsetParams(r *http.Request, defaultLimit int) (OffsetParams, error) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPageSize
	}
	p := OffsetParams{Page: 1, Limit: defaultLimit}

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("page must be a positive integer")
		}
		p.Page = n
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, fmt.Errorf("limit must be a positive integer")
		}
		if n > MaxPageSize {
			n = MaxPageSize
		}
		p.Limit = n
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p, nil
}

// OffsetPage is the response body for paginated list results; list handlers
// write it as the whole body, not nested under another key.
type OffsetPage[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// NewOffsetPage builds an OffsetPage from a result set and total count.
func NewOffsetPage[T any](items []T, params OffsetParams, totalItems int) OffsetPage[T] {
	totalPages := 0
	if params.Limit > 0 {
		totalPages = (totalItems + params.Limit - 1) / params.Limit
	}

	return OffsetPage[T]{
		Items:      items,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalItems: totalItems,
		TotalPages: totalPages,
	}
}
