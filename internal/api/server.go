// Package api serves the live aircraft picture over HTTP: a JSON REST API,
// a websocket feed and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/unklstewy/ads-btrack/internal/db"
	"github.com/unklstewy/ads-btrack/pkg/adsb"
)

// Source is the read side of the aircraft store.
type Source interface {
	Aircraft() []adsb.Aircraft
	Lookup(id adsb.Identity) (adsb.Aircraft, bool)
	Snapshot() iter.Seq2[adsb.Identity, *adsb.Position]
	Len() int
}

// HistorySource returns stored positions of one aircraft.
type HistorySource interface {
	GetPositionHistory(ctx context.Context, id adsb.Identity, since time.Time) ([]db.PositionRecord, error)
}

// DefaultHistoryWindow is how far back /history looks without ?since=.
const DefaultHistoryWindow = time.Hour

// Options configures a Server.
type Options struct {
	// AllowedOrigins lists the CORS origins (default: all)
	AllowedOrigins []string

	// PushInterval is the websocket update period (default: 1 second)
	PushInterval time.Duration

	// Metrics is served on /metrics when set
	Metrics http.Handler

	// Stats adds fields to the /api/v1/stats response
	Stats func() map[string]any

	// History serves /api/v1/aircraft/{icao}/history when set
	History HistorySource

	// Logger receives request errors (default: slog.Default)
	Logger *slog.Logger
}

// Server holds the HTTP router and its dependencies
type Server struct {
	router  *chi.Mux
	source  Source
	opts    Options
	logger  *slog.Logger
	started time.Time

	upgrader websocket.Upgrader
}

// New creates a Server reading from source.
func New(source Source, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.PushInterval <= 0 {
		opts.PushInterval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:  chi.NewRouter(),
		source:  source,
		opts:    opts,
		logger:  logger,
		started: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/aircraft", s.handleGetAircraft)
		r.Get("/aircraft/{icao}", s.handleGetAircraftByICAO)
		r.Get("/positions", s.handleGetPositions)
		r.Get("/stats", s.handleGetStats)

		if s.opts.History != nil {
			r.Get("/aircraft/{icao}/history", s.handleGetHistory)
		}
	})

	r.Get("/ws", s.handleWebSocket)

	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

// aircraftList is the body of /api/v1/aircraft and of each websocket update.
type aircraftList struct {
	Aircraft   []adsb.Aircraft `json:"aircraft"`
	Count      int             `json:"count"`
	Positioned int             `json:"positioned"`
	Time       time.Time       `json:"time"`
}

func (s *Server) snapshot() aircraftList {
	list := s.source.Aircraft()
	positioned := 0
	for _, ac := range list {
		if ac.Position != nil {
			positioned++
		}
	}
	return aircraftList{
		Aircraft:   list,
		Count:      len(list),
		Positioned: positioned,
		Time:       time.Now().UTC(),
	}
}

func (s *Server) handleGetAircraft(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("positioned") == "true" {
		list := s.snapshot()
		filtered := make([]adsb.Aircraft, 0, list.Positioned)
		for _, ac := range list.Aircraft {
			if ac.Position != nil {
				filtered = append(filtered, ac)
			}
		}
		list.Aircraft = filtered
		list.Count = len(filtered)
		respondJSON(w, http.StatusOK, list)
		return
	}

	respondJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleGetAircraftByICAO(w http.ResponseWriter, r *http.Request) {
	icao := chi.URLParam(r, "icao")

	id, err := adsb.ParseIdentity(icao)
	if err != nil {
		http.Error(w, "Invalid ICAO address", http.StatusBadRequest)
		return
	}

	aircraft, ok := s.source.Lookup(id)
	if !ok {
		http.Error(w, "Aircraft not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, aircraft)
}

// position is one entry of /api/v1/positions.
type position struct {
	ICAO     adsb.Identity  `json:"icao"`
	Position *adsb.Position `json:"position"`
}

// handleGetPositions streams the store snapshot: every tracked identity
// with its resolved position, or null.
func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	list := make([]position, 0, s.source.Len())
	for id, pos := range s.source.Snapshot() {
		list = append(list, position{ICAO: id, Position: pos})
	}
	respondJSON(w, http.StatusOK, list)
}

// handleGetHistory returns recorded positions of one aircraft. The window
// is ?since= as a Go duration (e.g. 15m), default one hour.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := adsb.ParseIdentity(chi.URLParam(r, "icao"))
	if err != nil {
		http.Error(w, "Invalid ICAO address", http.StatusBadRequest)
		return
	}

	window := DefaultHistoryWindow
	if v := r.URL.Query().Get("since"); v != "" {
		window, err = time.ParseDuration(v)
		if err != nil || window <= 0 {
			http.Error(w, "Invalid since duration", http.StatusBadRequest)
			return
		}
	}

	history, err := s.opts.History.GetPositionHistory(r.Context(), id, time.Now().Add(-window))
	if err != nil {
		s.logger.Warn("history query failed", "icao", id.String(), "error", err)
		http.Error(w, "History unavailable", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []db.PositionRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"icao":      id,
		"positions": history,
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"tracked":        s.source.Len(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.opts.Stats != nil {
		for k, v := range s.opts.Stats() {
			stats[k] = v
		}
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleWebSocket pushes the aircraft list every PushInterval until the
// client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("unable to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames; a read error means the peer is gone.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.PushInterval)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(s.snapshot()); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			return
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
