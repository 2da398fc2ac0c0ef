package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
)

// Meta is the pagination block the backend attaches to list responses.
type Meta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page is the canonical list shape handed to the rest of the service.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

type listEnvelope struct {
	Data json.RawMessage `json:"data"`
	Meta *struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		Limit      int `json:"limit"`
		Total      int `json:"total"`
		TotalItems int `json:"total_items"`
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
}

type objectEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// decodeList accepts either a bare JSON array or {"data": [...], "meta": {...}}
// and validates every item.
func decodeList[T any](v *validator.Validate, body []byte) (Page[T], error) {
	var page Page[T]
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return page, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}

	raw := trimmed
	if trimmed[0] == '{' {
		var env listEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return page, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		raw = bytes.TrimSpace(env.Data)
		if env.Meta != nil {
			page.Meta = Meta{
				Page:       env.Meta.Page,
				PerPage:    firstPositive(env.Meta.PerPage, env.Meta.Limit),
				Total:      firstPositive(env.Meta.Total, env.Meta.TotalItems),
				TotalPages: env.Meta.TotalPages,
			}
		}
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		page.Items = []T{}
		return withDefaultMeta(page), nil
	}
	if raw[0] != '[' {
		return page, fmt.Errorf("%w: expected list", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, &page.Items); err != nil {
		return page, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	for i := range page.Items {
		if err := validateItem(v, page.Items[i]); err != nil {
			return page, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return withDefaultMeta(page), nil
}

// decodeOne accepts either a bare object or {"data": {...}}.
func decodeOne[T any](v *validator.Validate, body []byte) (T, error) {
	var out T
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return out, fmt.Errorf("%w: expected object", ErrInvalidPayload)
	}
	var env objectEnvelope
	if err := json.Unmarshal(trimmed, &env); err == nil {
		if data := bytes.TrimSpace(env.Data); len(data) > 0 && data[0] == '{' {
			trimmed = data
		}
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validateItem(v, out); err != nil {
		return out, err
	}
	return out, nil
}

func validateItem(v *validator.Validate, item any) error {
	if v == nil {
		return nil
	}
	if err := v.Struct(item); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if checker, ok := item.(interface{ check() error }); ok {
		if err := checker.check(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return nil
}

func withDefaultMeta[T any](page Page[T]) Page[T] {
	if page.Meta.Total == 0 {
		page.Meta.Total = len(page.Items)
	}
	if page.Meta.Page == 0 {
		page.Meta.Page = 1
	}
	if page.Meta.PerPage == 0 {
		page.Meta.PerPage = len(page.Items)
	}
	if page.Meta.TotalPages == 0 && page.Meta.PerPage > 0 {
		page.Meta.TotalPages = (page.Meta.Total + page.Meta.PerPage - 1) / page.Meta.PerPage
	}
	return page
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
