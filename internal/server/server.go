package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dukerupert/calwidget/internal/config"
	"github.com/dukerupert/calwidget/internal/handler"
	"github.com/dukerupert/calwidget/internal/hook"
	"github.com/dukerupert/calwidget/internal/metrics"
	"github.com/dukerupert/calwidget/internal/middleware"
	ws "github.com/dukerupert/calwidget/internal/websocket"
	"github.com/dukerupert/calwidget/internal/widget"
)

const (
	calendarsPath = "/calendars"
	assetsPath    = "/assets"
)

type Server struct {
	cfg         *config.Config
	db          *sql.DB
	hub         *ws.Hub
	bus         *hook.Bus
	registry    *widget.Registry
	metrics     *metrics.Metrics
	calendarH   *handler.CalendarHandler
	rateLimiter *middleware.RateLimiter
	apiKeys     *middleware.APIKeyChecker
	logger      *slog.Logger
}

func New(cfg *config.Config, db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	m := metrics.New()
	hub.OnClientCount(m.SetWebsocketClients)

	bus := hook.NewBus()
	registry := widget.NewRegistry(cfg.Widgets, widget.Options{
		DB:        db,
		Bus:       bus,
		Logger:    logger.With("component", "widget"),
		BasePath:  calendarsPath,
		AssetPath: assetsPath,
	})

	s := &Server{
		cfg:         cfg,
		db:          db,
		hub:         hub,
		bus:         bus,
		registry:    registry,
		metrics:     m,
		calendarH:   handler.NewCalendarHandler(registry, hub, m, logger.With("component", "calendar")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
	if cfg.Auth.Method == "apikey" {
		s.apiKeys = middleware.NewAPIKeyChecker(cfg.Auth.APIKeyHash)
	}
	return s
}

// Registry returns the widget registry so callers can attach scopes and
// filters before serving.
func (s *Server) Registry() *widget.Registry {
	return s.registry
}

// Bus returns the hook bus the widgets fire their query events on.
func (s *Server) Bus() *hook.Bus {
	return s.bus
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())
	outerMux.Handle("GET "+assetsPath+"/", middleware.Compress(http.StripPrefix(assetsPath, widget.AssetHandler())))

	var socket http.Handler = ws.HandleWebSocket(s.hub, nil)
	if s.apiKeys != nil {
		socket = middleware.RequireAPIKey(s.apiKeys)(socket)
	}
	outerMux.Handle("GET /ws", socket)

	calendarMux := http.NewServeMux()
	s.registerCalendarRoutes(calendarMux)

	var calendars http.Handler = calendarMux
	if s.apiKeys != nil {
		calendars = middleware.RequireAPIKey(s.apiKeys)(calendars)
	}
	calendars = middleware.Compress(calendars)
	outerMux.Handle(calendarsPath, calendars)
	outerMux.Handle(calendarsPath+"/", calendars)

	handler := s.metrics.InstrumentHandler(outerMux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(handler)
}

func (s *Server) registerCalendarRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+calendarsPath, s.calendarH.List)
	mux.HandleFunc("GET "+calendarsPath+"/{alias}", s.calendarH.Page)

	// Event fetches come from every open calendar on every view change.
	mux.HandleFunc("GET "+calendarsPath+"/{alias}/events", s.rateLimited(s.calendarH.Events))
	mux.HandleFunc("POST "+calendarsPath+"/{alias}/events", s.rateLimited(s.calendarH.Events))
	mux.HandleFunc("POST "+calendarsPath+"/{alias}/filter", s.rateLimited(s.calendarH.Filter))
	mux.HandleFunc("PUT "+calendarsPath+"/{alias}/events/{id}", s.rateLimited(s.calendarH.Move))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "database unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"widgets": len(s.registry.Aliases()),
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ClientKey, s.cfg.Server.RateLimit, time.Minute)
	wrapped := rl(h)
	return wrapped.ServeHTTP
}
