// Package hscode holds the locally tracked Harmonized System codes: the
// record type, a client for the local catalog API and the service, storage
// and HTTP handler that serve that API.
package hscode

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/shared"
)

// HSCode is a locally tracked classification code. ID is assigned by the
// local catalog and never changes.
type HSCode struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// CreateInput carries the fields of a new code.
type CreateInput struct {
	Code        string `json:"code" validate:"required,max=20,hscode"`
	Description string `json:"description" validate:"required,max=500"`
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Code        *string `json:"code,omitempty" validate:"omitempty,max=20,hscode"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// Empty reports whether the update changes nothing.
func (u UpdateInput) Empty() bool {
	return u.Code == nil && u.Description == nil
}

// ListParams selects one page of codes. Search matches code or description.
type ListParams struct {
	Page   int
	Limit  int
	Search string
}

// Values encodes the params as query parameters.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if s := strings.TrimSpace(p.Search); s != "" {
		v.Set("search", s)
	}
	return v
}

// ParseListParams reads page, limit and search from a query string. Missing
// values are left zero for the service to default.
func ParseListParams(q url.Values) (ListParams, error) {
	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		return ListParams{}, err
	}
	if page > shared.MaxPage {
		return ListParams{}, fmt.Errorf("%w: page must not exceed %d", httpx.ErrValidation, shared.MaxPage)
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return ListParams{}, err
	}
	return ListParams{Page: page, Limit: limit, Search: strings.TrimSpace(q.Get("search"))}, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", httpx.ErrValidation, name)
	}
	return v, nil
}
