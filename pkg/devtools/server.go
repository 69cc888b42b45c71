// Package devtools serves an introspection endpoint for a running engine:
// Prometheus metrics, health, and a websocket stream of engine events for
// live inspection. It attaches to the engine through tangle.Hooks and
// never touches the graph itself.
package devtools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tangle-tui/tangle/pkg/tangle"
)

const (
	// Events buffered per websocket client. A client that falls this far
	// behind starts losing events rather than stalling the engine.
	clientBuffer = 64

	// Events kept for replay to newly connected clients.
	backlogSize = 128

	writeTimeout = 5 * time.Second
)

// Event is one engine occurrence, streamed to websocket clients as JSON.
type Event struct {
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	ID        uint64    `json:"id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Duration  float64   `json:"duration_ms,omitempty"`
	Writes    int       `json:"writes,omitempty"`
	Consumers int       `json:"consumers,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Config configures the devtools server.
type Config struct {
	// Addr is the listen address (default: "127.0.0.1:6363").
	Addr string

	// Logger for server events. Default: slog.Default().
	Logger *slog.Logger

	// Gatherer backs the /metrics endpoint.
	// Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server exposes engine internals over HTTP.
type Server struct {
	addr   string
	logger *slog.Logger
	router chi.Router
	hub    *hub

	upgrader websocket.Upgrader
}

// NewServer builds a devtools server. Wire its Hooks into the engine to
// start the event stream.
func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6363"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		addr:   cfg.Addr,
		logger: cfg.Logger.With("component", "devtools"),
		hub:    newHub(cfg.Logger),
		upgrader: websocket.Upgrader{
			// Local inspection endpoint, not an app surface.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWS)
	s.router = r
	return s
}

// Hooks returns engine hooks that feed the event stream. Compose with
// metrics hooks via tangle.MergeHooks.
func (s *Server) Hooks() tangle.Hooks {
	return tangle.Hooks{
		OnSignalWrite: func(id uint64) {
			s.hub.publish(Event{Time: time.Now(), Kind: "signal_write", ID: id})
		},
		OnMemoRecompute: func(id uint64, d time.Duration) {
			s.hub.publish(Event{Time: time.Now(), Kind: "memo_recompute", ID: id, Duration: durationMS(d)})
		},
		OnEffectRun: func(id uint64, name string, d time.Duration) {
			s.hub.publish(Event{Time: time.Now(), Kind: "effect_run", ID: id, Name: name, Duration: durationMS(d)})
		},
		OnBatchDrain: func(writes, consumers int) {
			s.hub.publish(Event{Time: time.Now(), Kind: "batch_drain", Writes: writes, Consumers: consumers})
		},
		OnError: func(err error) {
			s.hub.publish(Event{Time: time.Now(), Kind: "error", Error: err.Error()})
		},
	}
}

// Handler returns the server's HTTP handler, for embedding in an existing
// mux or for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("devtools listening", "addr", s.addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.closeAll()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.clientCount(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	c := s.hub.register(conn)
	s.logger.Debug("devtools client connected", "remote", conn.RemoteAddr())

	go c.writeLoop()
	c.readLoop()
	s.hub.unregister(c)
	s.logger.Debug("devtools client disconnected", "remote", conn.RemoteAddr())
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
