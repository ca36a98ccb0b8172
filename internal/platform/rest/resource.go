package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/shared"
)

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T               `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

type envelope struct {
	Data map[string]json.RawMessage `json:"data"`
}

// Resource is typed CRUD over a collection that wraps responses as
// {data: {<listKey>: [...], pagination: {...}}} and {data: {<itemKey>: {...}}}.
// T is the record, C the create input and U the partial update input.
type Resource[T, C, U any] struct {
	client  *Client
	path    string
	listKey string
	itemKey string
}

// NewResource binds a collection path on client.
func NewResource[T, C, U any](client *Client, path, listKey, itemKey string) *Resource[T, C, U] {
	return &Resource[T, C, U]{client: client, path: path, listKey: listKey, itemKey: itemKey}
}

// List fetches one page. query carries page, limit and any filters. A response
// without the list field yields an empty page.
func (r *Resource[T, C, U]) List(ctx context.Context, query url.Values) (Page[T], error) {
	var env envelope
	if err := r.client.Do(ctx, Request{Method: http.MethodGet, Path: r.path, Query: query}, &env); err != nil {
		return Page[T]{}, err
	}

	items := []T{}
	if raw, ok := env.Data[r.listKey]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &items); err != nil {
			return Page[T]{}, httpx.NewError(httpx.ErrTransport, 0, "", fmt.Errorf("decode %s: %w", r.listKey, err))
		}
		if items == nil {
			items = []T{}
		}
	}

	page := Page[T]{Items: items}
	if raw, ok := env.Data["pagination"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &page.Pagination); err != nil {
			return Page[T]{}, httpx.NewError(httpx.ErrTransport, 0, "", fmt.Errorf("decode pagination: %w", err))
		}
	} else {
		pageNum, _ := strconv.Atoi(query.Get("page"))
		limit, _ := strconv.Atoi(query.Get("limit"))
		page.Pagination = shared.NewPagination(pageNum, limit, len(items))
	}
	return page, nil
}

// Get fetches a single record.
func (r *Resource[T, C, U]) Get(ctx context.Context, id string) (T, error) {
	return r.itemCall(ctx, http.MethodGet, id, nil)
}

// Create submits input and returns the stored record.
func (r *Resource[T, C, U]) Create(ctx context.Context, input C) (T, error) {
	return r.itemCall(ctx, http.MethodPost, "", input)
}

// Update applies a partial update and returns the merged record.
func (r *Resource[T, C, U]) Update(ctx context.Context, id string, input U) (T, error) {
	return r.itemCall(ctx, http.MethodPatch, id, input)
}

// Delete removes a record. Deleting an absent record yields httpx.ErrNotFound.
func (r *Resource[T, C, U]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return httpx.NewError(httpx.ErrValidation, 0, "id is required", nil)
	}
	return r.client.Do(ctx, Request{Method: http.MethodDelete, Path: r.itemPath(id)}, nil)
}

func (r *Resource[T, C, U]) itemCall(ctx context.Context, method, id string, body any) (T, error) {
	var zero T
	path := r.path
	if method != http.MethodPost {
		if id == "" {
			return zero, httpx.NewError(httpx.ErrValidation, 0, "id is required", nil)
		}
		path = r.itemPath(id)
	}

	var env envelope
	if err := r.client.Do(ctx, Request{Method: method, Path: path, Body: body}, &env); err != nil {
		return zero, err
	}
	raw, ok := env.Data[r.itemKey]
	if !ok || isNull(raw) {
		return zero, httpx.NewError(httpx.ErrTransport, 0, "", fmt.Errorf("response missing %s", r.itemKey))
	}
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return zero, httpx.NewError(httpx.ErrTransport, 0, "", fmt.Errorf("decode %s: %w", r.itemKey, err))
	}
	return item, nil
}

func (r *Resource[T, C, U]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
