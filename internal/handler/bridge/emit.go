package bridge

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/webitel/im-signaling-service/internal/domain/call"
	"github.com/webitel/im-signaling-service/internal/domain/model"
	"github.com/webitel/im-signaling-service/internal/service"
	"github.com/webitel/im-signaling-service/internal/service/dto"
	"github.com/webitel/im-signaling-service/internal/service/mapper"
)

// maxBodySize bounds an /emit request body.
const maxBodySize = 1 << 20

// StatsProvider exposes hub counters.
type StatsProvider interface {
	Stats() model.HubStats
}

// Response is the acknowledgement of the bridge endpoints.
type Response struct {
	Ok    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// BridgeHandler lets trusted systems inject events without a live connection.
type BridgeHandler struct {
	logger     *slog.Logger
	dispatcher service.Dispatcher
	stats      StatsProvider
}

func NewBridgeHandler(logger *slog.Logger, dispatcher service.Dispatcher, stats StatsProvider) *BridgeHandler {
	return &BridgeHandler{
		logger:     logger,
		dispatcher: dispatcher,
		stats:      stats,
	}
}

// Emit routes `{event, data}` through the router on behalf of no connection.
func (h *BridgeHandler) Emit(w http.ResponseWriter, r *http.Request) {
	env, err := dto.DecodeEnvelope(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, &Response{Code: mapper.CodeInvalidFrame, Error: err.Error()})
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), nil, env.Event, env.Data); err != nil {
		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("EMIT_FAILED", "event", env.Event, "err", err)
		}
		writeJSON(w, status, &Response{Code: mapper.ErrorCode(err), Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, &Response{Ok: true})
}

func (h *BridgeHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, &Response{Ok: true})
}

func (h *BridgeHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Stats())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrMissingEventName):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnresolvableRecipient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, call.ErrInvalidTransition), errors.Is(err, call.ErrCallNotFound):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
