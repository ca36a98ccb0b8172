package fbr

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
)

func newFBRServer(t *testing.T, status int, body string) (*Client, *atomic.Int32, *atomic.Value) {
	t.Helper()
	var calls atomic.Int32
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		auth.Store(r.Header.Get("Authorization"))
		if r.URL.Path != "/api/fbr/hs-codes" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClient(NewRESTClient(srv.URL)), &calls, &auth
}

func TestListHSCodesNormalisesWireField(t *testing.T) {
	client, _, auth := newFBRServer(t, http.StatusOK,
		`[{"hS_CODE":"0101.2100","description":"Live horses"},{"hS_CODE":" 8471.3010 ","description":"Laptops"}]`)

	codes, err := client.ListHSCodes(context.Background(), "sandbox-token")
	require.NoError(t, err)
	assert.Equal(t, []HSCode{
		{Code: "0101.2100", Description: "Live horses"},
		{Code: "8471.3010", Description: "Laptops"},
	}, codes)
	assert.Equal(t, "Bearer sandbox-token", auth.Load())
}

func TestListHSCodesEmptyCatalog(t *testing.T) {
	client, _, _ := newFBRServer(t, http.StatusOK, `[]`)
	codes, err := client.ListHSCodes(context.Background(), "tok")
	require.NoError(t, err)
	assert.NotNil(t, codes)
	assert.Empty(t, codes)
}

func TestListHSCodesFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    error
		message string
	}{
		{name: "unauthorized with error", status: http.StatusUnauthorized, body: `{"error":"Invalid token"}`, kind: httpx.ErrAuthentication, message: "Invalid token"},
		{name: "forbidden without body", status: http.StatusForbidden, kind: httpx.ErrAuthentication, message: DefaultErrorMessage},
		{name: "error preferred over message", status: http.StatusBadRequest, body: `{"error":"Bad scenario","message":"ignored"}`, kind: httpx.ErrUpstream, message: "Bad scenario"},
		{name: "message fallback", status: http.StatusInternalServerError, body: `{"message":"Service unavailable"}`, kind: httpx.ErrUpstream, message: "Service unavailable"},
		{name: "default message", status: http.StatusBadGateway, body: `<html></html>`, kind: httpx.ErrUpstream, message: DefaultErrorMessage},
		{name: "unparseable success", status: http.StatusOK, body: `{"hS_CODE":`, kind: httpx.ErrTransport},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, calls, _ := newFBRServer(t, tc.status, tc.body)
			_, err := client.ListHSCodes(context.Background(), "tok")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)
			assert.Equal(t, tc.message, httpx.UserMessage(err, ""))
			assert.Equal(t, int32(1), calls.Load(), "the client must not retry")
		})
	}
}

func TestListHSCodesRequiresCredential(t *testing.T) {
	client, calls, _ := newFBRServer(t, http.StatusOK, `[]`)
	_, err := client.ListHSCodes(context.Background(), "  ")
	assert.ErrorIs(t, err, httpx.ErrAuthentication)
	assert.Zero(t, calls.Load())
}

func TestListHSCodesTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(NewRESTClient(srv.URL))
	_, err := client.ListHSCodes(context.Background(), "tok")
	assert.ErrorIs(t, err, httpx.ErrTransport)
}
