// Package console is the backend-for-frontend of the invoicing console: it
// fronts the local catalog and the FBR catalog, runs reconciliations and
// exposes the shared busy indicator.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/fbr"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/hscode"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/loading"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/rest"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/reconcile"
)

// Busy indicator messages.
const (
	msgListing     = "Loading HS codes..."
	msgFetchingOne = "Loading HS code..."
	msgCreating    = "Creating HS code..."
	msgUpdating    = "Updating HS code..."
	msgDeleting    = "Deleting HS code..."
	msgFBR         = "Fetching HS codes from FBR..."
	msgReconciling = "Reconciling HS codes..."
)

// LocalCatalog is the local catalog API as seen by the console.
type LocalCatalog interface {
	List(ctx context.Context, params hscode.ListParams) (rest.Page[hscode.HSCode], error)
	Get(ctx context.Context, id string) (hscode.HSCode, error)
	Create(ctx context.Context, input hscode.CreateInput) (hscode.HSCode, error)
	Update(ctx context.Context, id string, input hscode.UpdateInput) (hscode.HSCode, error)
	Delete(ctx context.Context, id string) error
}

// Reconciler compares both catalogs.
type Reconciler interface {
	Reconcile(ctx context.Context, search, credential string) (reconcile.Result, error)
}

// RefreshQueue schedules a background refresh of the cached FBR catalog.
type RefreshQueue interface {
	EnqueueCatalogRefresh(ctx context.Context, reason string) (*asynq.TaskInfo, error)
}

// Config wires a Handler.
type Config struct {
	Local      LocalCatalog
	External   fbr.Catalog
	Accounts   fbr.AccountSource
	Reconciler Reconciler
	// Refresh is optional; without it the refresh route answers 503.
	Refresh RefreshQueue
	Signal  *loading.Signal
	Logger  *slog.Logger
}

type updateArgs struct {
	id    string
	input hscode.UpdateInput
}

// Handler serves the console API.
type Handler struct {
	local      LocalCatalog
	external   fbr.Catalog
	accounts   fbr.AccountSource
	reconciler Reconciler
	refresh    RefreshQueue
	signal     *loading.Signal
	logger     *slog.Logger

	create *loading.Mutation[hscode.CreateInput, hscode.HSCode]
	update *loading.Mutation[updateArgs, hscode.HSCode]
	delete *loading.Mutation[string, struct{}]

	// one query per credential digest
	queries sync.Map

	streamsDone  chan struct{}
	closeStreams sync.Once
}

// NewHandler constructs a Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{
		local:       cfg.Local,
		external:    cfg.External,
		accounts:    cfg.Accounts,
		reconciler:  cfg.Reconciler,
		refresh:     cfg.Refresh,
		signal:      cfg.Signal,
		streamsDone: make(chan struct{}),
		logger:      cfg.Logger,
	}
	h.create = loading.NewMutation(cfg.Signal, msgCreating, cfg.Local.Create)
	h.update = loading.NewMutation(cfg.Signal, msgUpdating, func(ctx context.Context, a updateArgs) (hscode.HSCode, error) {
		return cfg.Local.Update(ctx, a.id, a.input)
	})
	h.delete = loading.NewMutation(cfg.Signal, msgDeleting, func(ctx context.Context, id string) (struct{}, error) {
		return struct{}{}, cfg.Local.Delete(ctx, id)
	})
	return h
}

// MountRoutes attaches the console routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/hs-codes", func(r chi.Router) {
		r.Get("/", h.listCodes)
		r.Post("/", h.createCode)
		r.Get("/reconcile", h.reconcile)
		r.Get("/{id}", h.getCode)
		r.Patch("/{id}", h.updateCode)
		r.Delete("/{id}", h.deleteCode)
	})
	r.Get("/fbr/hs-codes", h.listFBRCodes)
	r.Post("/fbr/hs-codes/refresh", h.refreshFBRCodes)
	r.Get("/loading", h.loadingState)
	r.Get("/loading/events", h.loadingEvents)
}

// Close detaches the long-lived operations from the signal.
func (h *Handler) Close() {
	h.CloseStreams()
	h.create.Close()
	h.update.Close()
	h.delete.Close()
	h.queries.Range(func(_, v any) bool {
		v.(*loading.Query[[]fbr.HSCode]).Close()
		return true
	})
}

// CloseStreams ends every open event stream. Register it with
// http.Server.RegisterOnShutdown so Shutdown does not wait on them.
func (h *Handler) CloseStreams() {
	h.closeStreams.Do(func() { close(h.streamsDone) })
}

type listData struct {
	HSCodes    []hscode.HSCode `json:"hsCodes"`
	Pagination any             `json:"pagination"`
}

type itemData struct {
	HSCode hscode.HSCode `json:"hsCode"`
}

type fbrData struct {
	Environment fbr.Environment `json:"environment"`
	HSCodes     []fbr.HSCode    `json:"hsCodes"`
}

type dataEnvelope struct {
	Data any `json:"data"`
}

func (h *Handler) listCodes(w http.ResponseWriter, r *http.Request) {
	params, err := hscode.ParseListParams(r.URL.Query())
	if err != nil {
		h.fail(w, "list hs codes", err)
		return
	}
	page, err := loading.TrackValue(h.signal, msgListing, func() (rest.Page[hscode.HSCode], error) {
		return h.local.List(r.Context(), params)
	})
	if err != nil {
		h.fail(w, "list hs codes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dataEnvelope{Data: listData{HSCodes: page.Items, Pagination: page.Pagination}})
}

func (h *Handler) getCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	code, err := loading.TrackValue(h.signal, msgFetchingOne, func() (hscode.HSCode, error) {
		return h.local.Get(r.Context(), id)
	})
	if err != nil {
		h.fail(w, "get hs code", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dataEnvelope{Data: itemData{HSCode: code}})
}

func (h *Handler) createCode(w http.ResponseWriter, r *http.Request) {
	var input hscode.CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, "create hs code", fmt.Errorf("%w: malformed request body", httpx.ErrValidation))
		return
	}
	code, err := h.create.Run(r.Context(), input)
	if err != nil {
		h.fail(w, "create hs code", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, dataEnvelope{Data: itemData{HSCode: code}})
}

func (h *Handler) updateCode(w http.ResponseWriter, r *http.Request) {
	var input hscode.UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.fail(w, "update hs code", fmt.Errorf("%w: malformed request body", httpx.ErrValidation))
		return
	}
	code, err := h.update.Run(r.Context(), updateArgs{id: chi.URLParam(r, "id"), input: input})
	if err != nil {
		h.fail(w, "update hs code", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dataEnvelope{Data: itemData{HSCode: code}})
}

func (h *Handler) deleteCode(w http.ResponseWriter, r *http.Request) {
	if _, err := h.delete.Run(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete hs code", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listFBRCodes(w http.ResponseWriter, r *http.Request) {
	cred, err := fbr.ResolveCredential(r.Context(), h.accounts)
	if err != nil {
		h.fail(w, "resolve fbr credential", err)
		return
	}
	codes, err := h.fbrQuery(cred).Fetch(r.Context())
	if err != nil {
		h.fail(w, "list fbr hs codes", err)
		return
	}
	if codes == nil {
		codes = []fbr.HSCode{}
	}
	httpx.JSON(w, http.StatusOK, dataEnvelope{Data: fbrData{Environment: cred.Environment, HSCodes: codes}})
}

func (h *Handler) fbrQuery(cred fbr.Credential) *loading.Query[[]fbr.HSCode] {
	key := fbr.CacheKey(cred.Token)
	if q, ok := h.queries.Load(key); ok {
		return q.(*loading.Query[[]fbr.HSCode])
	}
	q := loading.NewQuery(h.signal, msgFBR, func(ctx context.Context) ([]fbr.HSCode, error) {
		return h.external.ListHSCodes(ctx, cred.Token)
	})
	actual, loaded := h.queries.LoadOrStore(key, q)
	if loaded {
		q.Close()
	}
	return actual.(*loading.Query[[]fbr.HSCode])
}

func (h *Handler) refreshFBRCodes(w http.ResponseWriter, r *http.Request) {
	if h.refresh == nil {
		httpx.Message(w, http.StatusServiceUnavailable, "Background jobs are not configured")
		return
	}
	info, err := h.refresh.EnqueueCatalogRefresh(r.Context(), "console")
	if err != nil {
		h.logger.Error("enqueue catalog refresh", slog.Any("error", err))
		httpx.Message(w, http.StatusServiceUnavailable, "Could not schedule a refresh")
		return
	}
	httpx.JSON(w, http.StatusAccepted, dataEnvelope{Data: map[string]string{"taskId": info.ID}})
}

type reconcileData struct {
	reconcile.Result
	LocalError    string `json:"localError,omitempty"`
	ExternalError string `json:"externalError,omitempty"`
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	cred, err := fbr.ResolveCredential(r.Context(), h.accounts)
	if err != nil {
		h.fail(w, "resolve fbr credential", err)
		return
	}
	search := r.URL.Query().Get("search")
	res, err := loading.TrackValue(h.signal, msgReconciling, func() (reconcile.Result, error) {
		return h.reconciler.Reconcile(r.Context(), search, cred.Token)
	})
	if err != nil {
		h.fail(w, "reconcile hs codes", err)
		return
	}
	body := reconcileData{Result: res}
	if res.LocalErr != nil {
		body.LocalError = messageFor(res.LocalErr)
	}
	if res.ExternalErr != nil {
		body.ExternalError = messageFor(res.ExternalErr)
	}
	httpx.JSON(w, http.StatusOK, dataEnvelope{Data: body})
}

func (h *Handler) loadingState(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.signal.State())
}
