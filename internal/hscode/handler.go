package hscode

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/shared"
)

// Handler serves the local catalog API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the collection routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type listData struct {
	HSCodes    []HSCode          `json:"hsCodes"`
	Pagination shared.Pagination `json:"pagination"`
}

type itemData struct {
	HSCode HSCode `json:"hsCode"`
}

type dataEnvelope struct {
	Data any `json:"data"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params, err := ParseListParams(r.URL.Query())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	codes, pagination, err := h.service.List(r.Context(), params)
	if err != nil {
		h.fail(w, "list hs codes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dataEnvelope{Data: listData{HSCodes: codes, Pagination: pagination}})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	code, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get hs code", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dataEnvelope{Data: itemData{HSCode: code}})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", httpx.ErrValidation))
		return
	}
	code, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.fail(w, "create hs code", err)
		return
	}
	h.logger.Info("hs code created", slog.String("id", code.ID), slog.String("code", code.Code))
	httpx.JSON(w, http.StatusCreated, dataEnvelope{Data: itemData{HSCode: code}})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", httpx.ErrValidation))
		return
	}
	code, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.fail(w, "update hs code", err)
		return
	}
	httpx.JSON(w, http.StatusOK, dataEnvelope{Data: itemData{HSCode: code}})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete hs code", err)
		return
	}
	h.logger.Info("hs code deleted", slog.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrDuplicate) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
