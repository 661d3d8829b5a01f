// Package api provides REST endpoints for decoded OGN data: device
// descriptors, latest aircraft sightings, receiver state, the beacon archive
// and an on-demand decoder.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ogn_parser/internal/ddb"
	"ogn_parser/internal/state"
	"ogn_parser/internal/storage"
)

// DescriptorLookup resolves device addresses. *ddb.Provider implements it.
type DescriptorLookup interface {
	FindDescriptor(address string) (ddb.Descriptor, bool)
}

// SightingFunc fetches the latest sighting of an aircraft, returning nil when
// there is none. cache.Client.GetAircraft and storage.PostgresDB.GetSighting
// both fit.
type SightingFunc func(ctx context.Context, address string) (*storage.AircraftSighting, error)

// ReceiverStore returns the merged state of a receiver. *storage.PostgresDB
// implements it.
type ReceiverStore interface {
	GetReceiver(ctx context.Context, name string) (*storage.ReceiverState, error)
}

// Archive queries archived lines. *storage.SQLiteDB implements it.
type Archive interface {
	Query(p storage.QueryParams) ([]storage.ArchivedBeacon, error)
	GetStats() (*storage.Stats, error)
}

// History summarises the long-term beacon history. *storage.ClickHouseDB
// implements it.
type History interface {
	GetHistoryStats(ctx context.Context) (*storage.HistoryStats, error)
}

// Sources are the backends the server reads from. Nil sources make their
// endpoints answer 503.
type Sources struct {
	Descriptors DescriptorLookup
	Sightings   []SightingFunc // Tried in order until one has the aircraft.
	Receivers   ReceiverStore
	Archive     Archive
	History     History
	Tracker     *state.Tracker
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// Server serves the REST API.
type Server struct {
	src         Sources
	port        int
	authEnabled bool
	apiKeys     map[string]bool
	logger      *log.Logger
	now         func() time.Time
}

// NewServer creates an API server.
func NewServer(src Sources, cfg Config, logger *log.Logger) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		src:         src,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
		logger:      logger,
		now:         time.Now,
	}
}

// Run serves on the configured port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)
	r.Mount("/api/v1", s.Router())

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("api listening", "addr", srv.Addr, "auth", s.authEnabled)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Router returns the API routes for mounting under /api/v1.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Health check (no auth required).
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.authEnabled {
			r.Use(s.authMiddleware)
		}

		r.Get("/descriptor/{address}", s.handleGetDescriptor)
		r.Get("/aircraft", s.handleActiveAircraft)
		r.Get("/aircraft/{address}", s.handleGetAircraft)
		r.Get("/receiver/{name}", s.handleGetReceiver)
		r.Get("/beacons", s.handleQueryBeacons)
		r.Get("/stats", s.handleStats)
		r.Post("/decode", s.handleDecode)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"bytes", ww.BytesWritten(), "duration", time.Since(start))
	})
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")

		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
