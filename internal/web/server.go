// Package web serves the energy dashboard: the HTML page, a JSON API over
// the engine, CSV/JSON downloads, a websocket feed and Prometheus metrics.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/energy"
	"github.com/sweeney/energy-dashboard/internal/engine"
	"github.com/sweeney/energy-dashboard/internal/status"
)

const readHeaderTimeout = 10 * time.Second

// Engine is the state engine surface the server needs.
type Engine interface {
	Snapshot() energy.RealTime
	Appliances() []energy.Appliance
	Appliance(id int) (energy.Appliance, error)
	Summary() energy.ApplianceSummary
	Breakdown() []energy.TypePower
	History() []energy.HistoricalRecord
	HistorySummary() energy.HistorySummary
	Reference() engine.Reference
	Dataset() energy.Dataset
	ToggleAppliance(id int) (engine.ToggleResult, error)
	StartRealtime()
	StopRealtime()
	RealtimeRunning() bool
}

// Server serves the dashboard over HTTP.
type Server struct {
	httpServer *http.Server
	engine     Engine
	tracker    *status.Tracker
	hub        *Hub
	log        *zap.Logger
}

// New creates a Server. hub may be nil, which disables /ws.
func New(addr string, eng Engine, tracker *status.Tracker, hub *Hub, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{engine: eng, tracker: tracker, hub: hub, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /health/live", s.handleLive)

	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/appliances", s.handleAppliances)
	mux.HandleFunc("GET /api/appliances/{id}", s.handleAppliance)
	mux.HandleFunc("POST /api/appliances/{id}/toggle", s.handleToggle)
	mux.HandleFunc("GET /api/breakdown", s.handleBreakdown)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/reference", s.handleReference)
	mux.HandleFunc("GET /api/realtime", s.handleRealtime)
	mux.HandleFunc("POST /api/realtime/start", s.handleRealtimeStart)
	mux.HandleFunc("POST /api/realtime/stop", s.handleRealtimeStop)
	mux.HandleFunc("POST /api/visibility", s.handleVisibility)

	mux.HandleFunc("GET /export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /export.json", s.handleExportJSON)

	if hub != nil {
		mux.HandleFunc("GET /ws", s.handleWS)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.recoverer(s.logRequests(mux)),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, s.pageData()); err != nil {
		s.log.Error("render index", zap.Error(err))
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}
