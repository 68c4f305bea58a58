package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-dispatch/internal/auth"
	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/hub"
)

// Server is the HTTP and websocket surface of the dispatch core.
type Server struct {
	cfg      config.ServerConfig
	coord    *dispatch.Coordinator
	hub      *hub.Hub
	auth     *auth.Manager
	logger   *slog.Logger
	mux      *mux.Router
	upgrader websocket.Upgrader
}

func NewServer(cfg config.ServerConfig, coord *dispatch.Coordinator, h *hub.Hub, am *auth.Manager, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		coord:  coord,
		hub:    h,
		auth:   am,
		logger: logger,
		mux:    mux.NewRouter(),
		upgrader: websocket.Upgrader{
			// cross-origin is policed by CORS config, not the upgrader
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/rides", s.handleCreateRide).Methods(http.MethodPost)
	api.HandleFunc("/rides", s.handleListRides).Methods(http.MethodGet)
	api.HandleFunc("/rides/available", s.handleAvailableRides).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}", s.handleGetRide).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}", s.handleUpdateRide).Methods(http.MethodPatch)
	api.HandleFunc("/rides/{id}", s.handleCancelRide).Methods(http.MethodDelete)
	api.HandleFunc("/rides/{id}/rate", s.handleRateRide).Methods(http.MethodPost)
	api.HandleFunc("/drivers/location", s.handleDriverLocation).Methods(http.MethodPatch)
	api.HandleFunc("/drivers/availability", s.handleDriverAvailability).Methods(http.MethodPut)
}

// Handler wraps the router with CORS for the browser clients.
func (s *Server) Handler() http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
	)(s.mux)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
