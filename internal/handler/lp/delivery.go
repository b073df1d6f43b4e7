package lp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/im-signaling-service/config"
	"github.com/webitel/im-signaling-service/infra/server/http/interceptors"
	"github.com/webitel/im-signaling-service/internal/domain/event"
	"github.com/webitel/im-signaling-service/internal/domain/model"
	lpmarshaller "github.com/webitel/im-signaling-service/internal/handler/marshaller/lp"
	"github.com/webitel/im-signaling-service/internal/service"
)

const (
	Transport = "lp"

	// maxBatch bounds how many queued events one response carries.
	maxBatch = 16
)

type LPHandler struct {
	lifecycle service.Lifecycler
	timeout   time.Duration
}

func NewLPHandler(lifecycle service.Lifecycler, cfg *config.Config) *LPHandler {
	timeout := cfg.Delivery.PollTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LPHandler{
		lifecycle: lifecycle,
		timeout:   timeout,
	}
}

// Poll handles the long-polling request on a user's personal channel.
// It holds the connection until an event arrives or timeout occurs.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	// 1. Extract Identity.
	userID, ok := model.ParseUserID(chi.URLParam(r, "userID"))
	if !ok {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	// 2. Temporary Subscription.
	// We create a connector that will live only for the duration of this HTTP request.
	meta, _ := interceptors.GetConnectMetadata(r.Context())
	meta.Transport = Transport

	conn := h.lifecycle.Connect(r.Context(), meta)
	defer h.lifecycle.Disconnect(conn)
	h.lifecycle.Register(conn, userID)

	var events []event.Eventer

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	// 3. Wait for data or timeout.
	for len(events) == 0 {
		select {
		case <-r.Context().Done():
			// Client disconnected.
			return

		case <-conn.Done():
			// Server shutting down.
			w.WriteHeader(http.StatusServiceUnavailable)
			return

		case <-timer.C:
			// Standard Long-Polling timeout to prevent hanging connections.
			w.WriteHeader(http.StatusNoContent)
			return

		case <-conn.Ready():
			// Take everything queued, up to one batch.
			// This minimizes the number of subsequent HTTP requests.
			for len(events) < maxBatch {
				ev, ok := conn.Next()
				if !ok {
					break
				}
				events = append(events, ev)
			}
		}
	}

	// 4. Final transmission.
	data, err := lpmarshaller.MarshallEvents(events)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
