// Package fbr reads the tax authority's HS-code catalog and layers the
// caller-side policies around it: credential selection, caching and retry.
package fbr

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/rest"
)

const (
	hsCodesPath = "/api/fbr/hs-codes"

	// DefaultErrorMessage is shown when the authority fails without saying why.
	DefaultErrorMessage = "Failed to fetch HS codes from FBR"
)

// HSCode is a catalog entry as published by the authority.
type HSCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type wireHSCode struct {
	Code        string `json:"hS_CODE"`
	Description string `json:"description"`
}

// Catalog lists the authority's codes visible to a credential.
type Catalog interface {
	ListHSCodes(ctx context.Context, credential string) ([]HSCode, error)
}

// Client calls the authority directly. It never retries; see RetryingCatalog.
type Client struct {
	rest *rest.Client
}

// NewClient wraps rc. rc should be built with ClassifyStatus as its classifier.
func NewClient(rc *rest.Client) *Client {
	return &Client{rest: rc}
}

// NewRESTClient builds the transport for baseURL with the authority's error
// classification.
func NewRESTClient(baseURL string, opts ...rest.Option) *rest.Client {
	return rest.NewClient("fbr", baseURL, append(opts, rest.WithClassifier(ClassifyStatus))...)
}

// ListHSCodes fetches the full catalog. The credential is passed through as a
// bearer token without inspection.
func (c *Client) ListHSCodes(ctx context.Context, credential string) ([]HSCode, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, httpx.NewError(httpx.ErrAuthentication, 0, "FBR credential is not configured", nil)
	}
	var wire []wireHSCode
	err := c.rest.Do(ctx, rest.Request{Method: http.MethodGet, Path: hsCodesPath, Token: credential}, &wire)
	if err != nil {
		return nil, err
	}
	codes := make([]HSCode, 0, len(wire))
	for _, w := range wire {
		codes = append(codes, HSCode{Code: strings.TrimSpace(w.Code), Description: w.Description})
	}
	return codes, nil
}

// ClassifyStatus maps the authority's failures: 401/403 are Authentication,
// anything else Upstream. The message is the body's error field, else its
// message field, else DefaultErrorMessage.
func ClassifyStatus(status int, payload []byte) error {
	message := DefaultErrorMessage
	if body, ok := httpx.ParseErrorBody(payload); ok && (body.Error != "" || body.Message != "") {
		message = firstNonBlank(body.Error, body.Message)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return httpx.NewError(httpx.ErrAuthentication, status, message, nil)
	}
	return httpx.NewError(httpx.ErrUpstream, status, message, fmt.Errorf("fbr status %d", status))
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return DefaultErrorMessage
}
