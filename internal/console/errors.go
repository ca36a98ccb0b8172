package console

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/fbr"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
)

// Fallback messages used when a failure carries no server-supplied text.
const (
	MessageValidation     = "Please check the submitted values"
	MessageNotFound       = "HS code not found"
	MessageAuthentication = "Authentication failed"
	MessageTransport      = "Service is unreachable, please try again"
	MessageUnknown        = "Something went wrong"
)

type errorClass struct {
	kind     error
	status   int
	fallback string
}

// Checked in order; the first matching kind decides the response.
var errorClasses = []errorClass{
	{httpx.ErrValidation, http.StatusBadRequest, MessageValidation},
	{httpx.ErrDuplicate, http.StatusBadRequest, MessageValidation},
	{httpx.ErrNotFound, http.StatusNotFound, MessageNotFound},
	{httpx.ErrAuthentication, http.StatusUnauthorized, MessageAuthentication},
	{httpx.ErrUpstream, http.StatusBadGateway, fbr.DefaultErrorMessage},
	{httpx.ErrTransport, http.StatusServiceUnavailable, MessageTransport},
}

func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.kind) {
			return c.status, httpx.UserMessage(err, c.fallback)
		}
	}
	return http.StatusInternalServerError, MessageUnknown
}

func messageFor(err error) string {
	_, msg := classify(err)
	return msg
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status, msg := classify(err)
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error(op, slog.String("kind", httpx.KindName(err)), slog.Any("error", err))
	case status == http.StatusUnauthorized:
		h.logger.Warn(op, slog.Any("error", err))
	}
	httpx.Message(w, status, msg)
}
