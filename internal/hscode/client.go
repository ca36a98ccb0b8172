package hscode

import (
	"context"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/rest"
)

const (
	collectionPath = "/v1/hs-codes"
	listKey        = "hsCodes"
	itemKey        = "hsCode"
)

// Client is the typed client for the local catalog API. Failures match the
// httpx sentinels: ErrNotFound, ErrValidation (server message verbatim),
// ErrAuthentication and ErrTransport.
type Client struct {
	resource *rest.Resource[HSCode, CreateInput, UpdateInput]
}

// NewClient binds the HS-code collection on rc.
func NewClient(rc *rest.Client) *Client {
	return &Client{resource: rest.NewResource[HSCode, CreateInput, UpdateInput](rc, collectionPath, listKey, itemKey)}
}

// List returns one page of codes matching params.
func (c *Client) List(ctx context.Context, params ListParams) (rest.Page[HSCode], error) {
	return c.resource.List(ctx, params.Values())
}

// Get returns a single code.
func (c *Client) Get(ctx context.Context, id string) (HSCode, error) {
	return c.resource.Get(ctx, id)
}

// Create stores a new code and returns it with its assigned ID.
func (c *Client) Create(ctx context.Context, input CreateInput) (HSCode, error) {
	return c.resource.Create(ctx, input)
}

// Update applies a partial update and returns the merged record.
func (c *Client) Update(ctx context.Context, id string, input UpdateInput) (HSCode, error) {
	return c.resource.Update(ctx, id, input)
}

// Delete removes a code.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.resource.Delete(ctx, id)
}
