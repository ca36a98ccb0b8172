package console

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/loading"
	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/platform/httpx"
)

// keepAliveInterval spaces SSE comments that keep idle proxies from closing
// the stream.
var keepAliveInterval = 25 * time.Second

// loadingEvents streams the busy indicator as server-sent events. The current
// state is sent first; a slow client only ever sees the latest state.
func (h *Handler) loadingEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Message(w, http.StatusInternalServerError, "Streaming is not supported")
		return
	}

	// the server's write timeout would otherwise end the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	updates := make(chan loading.State, 1)
	unsubscribe := h.signal.Subscribe(func(st loading.State) {
		select {
		case updates <- st:
		default:
			// replace the undelivered state with the newer one
			select {
			case <-updates:
			default:
			}
			updates <- st
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, h.signal.State()); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.streamsDone:
			return
		case st := <-updates:
			if err := writeEvent(w, st); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, st loading.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: loading\ndata: %s\n\n", data)
	return err
}
