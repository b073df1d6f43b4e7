package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/webitel/im-signaling-service/config"
	"github.com/webitel/im-signaling-service/infra/server/http/interceptors"
)

// Server is the single HTTP listener carrying the websocket endpoint, the
// bridge API and the metrics endpoint.
type Server struct {
	Router chi.Router
	Cors   *cors.Cors

	srv      *http.Server
	listener net.Listener
	logger   *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) *Server {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		c.Handler,
		interceptors.NewMetadataInterceptor,
	)

	if reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	return &Server{
		Router: r,
		Cors:   c,
		srv: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           r,
			ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		},
		logger: logger,
	}
}

// CheckOrigin applies the CORS origin policy to websocket upgrades.
// Non-browser clients send no Origin and are accepted.
func (s *Server) CheckOrigin(r *http.Request) bool {
	if r.Header.Get("Origin") == "" {
		return true
	}
	return s.Cors.OriginAllowed(r)
}

// Start binds the listener synchronously so a busy port fails the app start.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.srv.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVER_FAILED", "err", err)
		}
	}()

	s.logger.Info("HTTP_SERVER_STARTED", "addr", ln.Addr().String())
	return nil
}

// Stop stops accepting requests and waits for in-flight ones. Hijacked
// websocket connections are not tracked here; the hub closes them.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP_SERVER_STOPPING")
	return s.srv.Shutdown(ctx)
}

// Addr returns the bound address, the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.srv.Addr
}
