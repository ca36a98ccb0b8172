package console

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/fbr"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/hscode"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/loading"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/rest"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/reconcile"
)

type stubExternal struct {
	mu          sync.Mutex
	credentials []string
	codes       []fbr.HSCode
	err         error
}

func (s *stubExternal) ListHSCodes(ctx context.Context, credential string) ([]fbr.HSCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = append(s.credentials, credential)
	return s.codes, s.err
}

type stubQueue struct {
	reasons []string
	err     error
}

func (s *stubQueue) EnqueueCatalogRefresh(ctx context.Context, reason string) (*asynq.TaskInfo, error) {
	s.reasons = append(s.reasons, reason)
	if s.err != nil {
		return nil, s.err
	}
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

type fixture struct {
	signal   *loading.Signal
	external *stubExternal
	queue    *stubQueue
	handler  *Handler
	router   chi.Router
}

// newFixture serves the console against a real local catalog API backed by
// the in-memory repository.
func newFixture(t *testing.T, account fbr.Account) *fixture {
	t.Helper()
	catalogRouter := chi.NewRouter()
	catalogRouter.Route("/v1/hs-codes", hscode.NewHandler(nil, hscode.NewService(hscode.NewMemoryRepository())).MountRoutes)
	catalog := httptest.NewServer(catalogRouter)
	t.Cleanup(catalog.Close)

	local := hscode.NewClient(rest.NewClient("catalog", catalog.URL))
	external := &stubExternal{codes: []fbr.HSCode{{Code: "0101.2100", Description: "Live horses"}}}
	signal := loading.NewSignal()
	queue := &stubQueue{}
	h := NewHandler(Config{
		Local:      local,
		External:   external,
		Accounts:   fbr.StaticAccount(account),
		Reconciler: reconcile.New(local, external, reconcile.Options{Signal: signal}),
		Refresh:    queue,
		Signal:     signal,
	})
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Route("/api", h.MountRoutes)
	return &fixture{signal: signal, external: external, queue: queue, handler: h, router: r}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

var sandboxAccount = fbr.Account{SandboxToken: "sbx"}

func TestConsoleCodeLifecycle(t *testing.T) {
	f := newFixture(t, sandboxAccount)

	var transitions []bool
	var mu sync.Mutex
	f.signal.Subscribe(func(st loading.State) {
		mu.Lock()
		transitions = append(transitions, st.Busy())
		mu.Unlock()
	})

	rr := f.do(t, http.MethodPost, "/api/hs-codes", `{"code":"0101.2100","description":"Live horses"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created struct {
		Data struct {
			HSCode hscode.HSCode `json:"hsCode"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	id := created.Data.HSCode.ID
	require.NotEmpty(t, id)

	rr = f.do(t, http.MethodGet, "/api/hs-codes?search=horse", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"hsCodes":[{"id":"`+id)
	assert.Contains(t, rr.Body.String(), `"total":1`)

	rr = f.do(t, http.MethodPatch, "/api/hs-codes/"+id, `{"description":"Horses, live"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Horses, live")

	rr = f.do(t, http.MethodGet, "/api/hs-codes/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodDelete, "/api/hs-codes/"+id, "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/hs-codes/"+id, "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	assert.Equal(t, loading.State{}, f.signal.State())
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, transitions)
	assert.False(t, transitions[len(transitions)-1])
}

func TestConsoleRendersServerMessagesVerbatim(t *testing.T) {
	f := newFixture(t, sandboxAccount)

	rr := f.do(t, http.MethodPost, "/api/hs-codes", `{"code":"","description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation failed: code is required", decodeError(t, rr))

	rr = f.do(t, http.MethodPost, "/api/hs-codes", `{"code":"0101.2100","description":"Horses"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = f.do(t, http.MethodPost, "/api/hs-codes", `{"code":"0101.2100","description":"Again"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "duplicate entry: hs code 0101.2100 already exists", decodeError(t, rr))

	rr = f.do(t, http.MethodPost, "/api/hs-codes", `{`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, MessageValidation, decodeError(t, rr))

	rr = f.do(t, http.MethodGet, "/api/hs-codes?page=-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConsoleFBRCodesUseSelectedCredential(t *testing.T) {
	f := newFixture(t, fbr.Account{ProductionToken: "prod", SandboxToken: "sbx", ProductionEnabled: true})

	rr := f.do(t, http.MethodGet, "/api/fbr/hs-codes", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"environment":"production","hsCodes":[{"code":"0101.2100","description":"Live horses"}]}}`, rr.Body.String())
	assert.Equal(t, []string{"prod"}, f.external.credentials)
	assert.Equal(t, loading.State{}, f.signal.State())
}

func TestConsoleFBRErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"authentication with message", httpx.NewError(httpx.ErrAuthentication, 401, "Invalid token", nil), http.StatusUnauthorized, "Invalid token"},
		{"upstream without message", httpx.NewError(httpx.ErrUpstream, 500, "", nil), http.StatusBadGateway, fbr.DefaultErrorMessage},
		{"transport", httpx.NewError(httpx.ErrTransport, 0, "", errors.New("dial tcp: refused")), http.StatusServiceUnavailable, MessageTransport},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, MessageUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, sandboxAccount)
			f.external.err = tc.err
			rr := f.do(t, http.MethodGet, "/api/fbr/hs-codes", "")
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.message, decodeError(t, rr))
			assert.Equal(t, loading.State{}, f.signal.State())
		})
	}
}

func TestConsoleFBRWithoutCredential(t *testing.T) {
	f := newFixture(t, fbr.Account{})
	rr := f.do(t, http.MethodGet, "/api/fbr/hs-codes", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "FBR credential is not configured", decodeError(t, rr))
	assert.Empty(t, f.external.credentials)
}

func TestConsoleReconcile(t *testing.T) {
	f := newFixture(t, sandboxAccount)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/hs-codes", `{"code":"0101.2100","description":"live HORSES"}`).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/hs-codes", `{"code":"9999.0000","description":"Retired"}`).Code)

	rr := f.do(t, http.MethodGet, "/api/hs-codes/reconcile", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		Data struct {
			Counts        map[string]int `json:"counts"`
			ExternalError string         `json:"externalError"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, map[string]int{"matched": 1, "missing_external": 1}, body.Data.Counts)
	assert.Empty(t, body.Data.ExternalError)

	f.external.err = httpx.NewError(httpx.ErrAuthentication, 401, "Invalid token", nil)
	rr = f.do(t, http.MethodGet, "/api/hs-codes/reconcile", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body.Data.Counts = nil // json.Unmarshal merges into an existing map
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Invalid token", body.Data.ExternalError)
	assert.Equal(t, map[string]int{"unverified": 2}, body.Data.Counts)
}

func TestConsoleRefresh(t *testing.T) {
	f := newFixture(t, sandboxAccount)
	rr := f.do(t, http.MethodPost, "/api/fbr/hs-codes/refresh", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"data":{"taskId":"task-1"}}`, rr.Body.String())
	assert.Equal(t, []string{"console"}, f.queue.reasons)

	f.queue.err = errors.New("redis down")
	rr = f.do(t, http.MethodPost, "/api/fbr/hs-codes/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestConsoleLoadingState(t *testing.T) {
	f := newFixture(t, sandboxAccount)
	f.signal.Show("Saving invoice...")
	defer f.signal.Hide()

	rr := f.do(t, http.MethodGet, "/api/loading", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"active":1,"message":"Saving invoice..."}`, rr.Body.String())
}

func TestConsoleLoadingEventsStreamTransitions(t *testing.T) {
	f := newFixture(t, sandboxAccount)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/loading/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan loading.State, 8)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var st loading.State
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &st) == nil {
				events <- st
			}
		}
	}()

	next := func() loading.State {
		select {
		case st, ok := <-events:
			require.True(t, ok, "stream closed")
			return st
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return loading.State{}
		}
	}

	assert.Equal(t, loading.State{}, next())

	f.signal.Show("Submitting invoice...")
	assert.Equal(t, loading.State{Active: 1, Message: "Submitting invoice..."}, next())
	f.signal.Hide()
	assert.Equal(t, loading.State{}, next())
}

func TestConsoleCloseStreamsEndsEventStream(t *testing.T) {
	f := newFixture(t, sandboxAccount)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/loading/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	ended := make(chan struct{})
	go func() {
		defer close(ended)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
		}
	}()

	f.handler.CloseStreams()
	f.handler.CloseStreams()
	select {
	case <-ended:
	case <-ctx.Done():
		t.Fatal("event stream stayed open after CloseStreams")
	}
}
