// Package rest is a small JSON-over-HTTP client used by the catalog clients.
// It classifies every failure into the httpx error taxonomy.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 8 << 20
	tracerName      = "github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/rest"
)

// TokenSource yields the bearer token attached to outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Classifier turns a non-2xx response into an error.
type Classifier func(status int, payload []byte) error

// Recorder receives one observation per completed call.
type Recorder interface {
	ObserveUpstream(source, outcome string, elapsed time.Duration)
}

// Client issues JSON requests against a single base URL.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	classify   Classifier
	recorder   Recorder
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTokenSource attaches a bearer token to every request.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRateLimit throttles outgoing requests.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithClassifier replaces the default failure classification.
func WithClassifier(fn Classifier) Option {
	return func(c *Client) {
		if fn != nil {
			c.classify = fn
		}
	}
}

// WithRecorder reports call outcomes under the client's name.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithLogger sets the logger used for failed calls.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient constructs a client. name labels spans and metrics.
func NewClient(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		classify:   ClassifyStatus,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Token overrides the client's TokenSource when non-empty.
	Token string
}

// Do sends req and decodes a 2xx body into out. out may be nil.
func (c *Client) Do(ctx context.Context, req Request, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, c.name+" "+req.Method, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, httpx.KindName(err))
			c.logger.Warn("catalog request failed",
				slog.String("client", c.name),
				slog.String("method", req.Method),
				slog.String("path", req.Path),
				slog.String("kind", httpx.KindName(err)),
				slog.Any("error", err))
		}
		if c.recorder != nil {
			c.recorder.ObserveUpstream(c.name, httpx.KindName(err), time.Since(start))
		}
		span.End()
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return httpx.NewError(httpx.ErrTransport, 0, "", fmt.Errorf("rate limit wait: %w", err))
		}
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return httpx.NewError(httpx.ErrTransport, 0, "", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return httpx.NewError(httpx.ErrTransport, resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.classify(resp.StatusCode, payload)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return httpx.NewError(httpx.ErrTransport, resp.StatusCode, "", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, httpx.NewError(httpx.ErrValidation, 0, "", fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, httpx.NewError(httpx.ErrTransport, 0, "", fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	token := req.Token
	if token == "" && c.tokens != nil {
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return nil, httpx.NewError(httpx.ErrAuthentication, 0, "", fmt.Errorf("acquire token: %w", err))
		}
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

// ClassifyStatus is the default classification for the local catalog API:
// 404 is NotFound, 401/403 Authentication, 400/409/422 with a structured body
// Validation, anything else Transport.
func ClassifyStatus(status int, payload []byte) error {
	body, structured := httpx.ParseErrorBody(payload)
	message := body.Text()
	switch {
	case status == http.StatusNotFound:
		return httpx.NewError(httpx.ErrNotFound, status, message, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return httpx.NewError(httpx.ErrAuthentication, status, message, nil)
	case structured && (status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity):
		return httpx.NewError(httpx.ErrValidation, status, message, nil)
	default:
		return httpx.NewError(httpx.ErrTransport, status, message, fmt.Errorf("unexpected status %d", status))
	}
}
