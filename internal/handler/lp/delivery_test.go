package lp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webitel/im-signaling-service/config"
	httpsrv "github.com/webitel/im-signaling-service/infra/server/http"
	"github.com/webitel/im-signaling-service/internal/domain/event"
	"github.com/webitel/im-signaling-service/internal/domain/registry"
	"github.com/webitel/im-signaling-service/internal/domain/room"
	lpmarshaller "github.com/webitel/im-signaling-service/internal/handler/marshaller/lp"
	"github.com/webitel/im-signaling-service/internal/service"
)

func newLPServer(t *testing.T, timeout time.Duration) (*httptest.Server, *registry.Hub) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	cfg := &config.Config{
		HTTP:     config.HTTPConfig{AllowedOrigins: []string{"*"}},
		Delivery: config.DeliveryConfig{PollTimeout: timeout},
	}

	hub := registry.NewHub()
	lifecycle := service.NewLifecycle(hub, room.NewDirectory(), logger)

	srv := httpsrv.New(cfg, logger, nil)
	RegisterRoutes(srv, NewLPHandler(lifecycle, cfg))

	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)
	return ts, hub
}

func TestLP_Poll_Returns_Queued_Events(t *testing.T) {
	req := require.New(t)
	ts, hub := newLPServer(t, 5*time.Second)

	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := http.Get(ts.URL + "/poll/9")
		done <- result{resp, err}
	}()

	// When the poller is registered and an event for 9 is delivered
	req.Eventually(func() bool { return hub.IsConnected("9") }, 2*time.Second, 10*time.Millisecond)
	ev := event.NewSystemEvent("message:new", event.Message, event.PriorityNormal, map[string]any{"text": "hi"})
	req.Equal(1, hub.Deliver(ev, hub.Lookup("9")))

	// Then the poll answers with a batch
	res := <-done
	req.NoError(res.err)
	defer res.resp.Body.Close()
	req.Equal(http.StatusOK, res.resp.StatusCode)

	var body lpmarshaller.Response
	req.NoError(json.NewDecoder(res.resp.Body).Decode(&body))
	req.Len(body.Events, 1)
	req.Equal("message:new", body.Events[0].Type)
	req.Equal(ev.GetID(), body.Events[0].ID)

	// And the temporary subscription is gone
	req.Eventually(func() bool { return !hub.IsConnected("9") }, 2*time.Second, 10*time.Millisecond)
}

func TestLP_Poll_Times_Out_Empty(t *testing.T) {
	req := require.New(t)
	ts, hub := newLPServer(t, 50*time.Millisecond)

	resp, err := http.Get(ts.URL + "/poll/9")

	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusNoContent, resp.StatusCode)
	req.Zero(hub.Stats().TotalConnections)
}

func TestLP_Poll_Server_Shutdown(t *testing.T) {
	req := require.New(t)
	ts, hub := newLPServer(t, 5*time.Second)

	done := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Get(ts.URL + "/poll/9")
		if err == nil {
			done <- resp
		}
		close(done)
	}()
	req.Eventually(func() bool { return hub.IsConnected("9") }, 2*time.Second, 10*time.Millisecond)

	hub.Shutdown()

	resp, ok := <-done
	req.True(ok)
	resp.Body.Close()
	req.NotEqual(http.StatusNoContent, resp.StatusCode)
}

func TestLP_Poll_Rejects_Bad_User(t *testing.T) {
	req := require.New(t)
	ts, _ := newLPServer(t, time.Second)

	resp, err := http.Get(ts.URL + "/poll/undefined")

	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}
