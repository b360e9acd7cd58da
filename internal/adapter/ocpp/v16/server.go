package v16

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/ports"
)

// Subprotocol is the OCPP 1.6-J WebSocket subprotocol identifier.
const Subprotocol = "ocpp1.6"

// ServerConfig carries the listener settings.
type ServerConfig struct {
	Addr string
	// AllowUnknownStations lets stations connect before any boot has been
	// recorded. When false, ids without a station row are refused at
	// upgrade time.
	AllowUnknownStations bool
	// AllowedOrigins is an exact-match Origin allowlist; empty allows any.
	AllowedOrigins []string
	Session        SessionConfig
}

// Server is the OCPP WebSocket listener. Each accepted connection becomes a
// Session registered under the station id taken from the URL path.
type Server struct {
	cfg      ServerConfig
	registry *StationRegistry
	router   *Router
	stations ports.StationService
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	log      *zap.Logger
}

func NewServer(cfg ServerConfig, registry *StationRegistry, router *Router, stations ports.StationService, log *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		router:   router,
		stations: stations,
		log:      log,
	}
	s.upgrader = websocket.Upgrader{
		Subprotocols: []string{Subprotocol},
		CheckOrigin:  s.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleConnection)
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the listener's routing for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Start blocks serving connections until Shutdown.
func (s *Server) Start() error {
	s.log.Info("Starting OCPP 1.6 WebSocket server", zap.String("addr", s.cfg.Addr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, then drains and closes every live
// session. Stations are expected to reconnect elsewhere.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	s.registry.CloseAll(ctx, websocket.CloseGoingAway, "server shutting down")
	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Chargers are not browsers; most send no Origin at all.
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleConnection upgrades /{stationId} to a WebSocket session.
func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	stationID := strings.Trim(r.URL.Path, "/")
	if stationID == "" || strings.Contains(stationID, "/") {
		http.Error(w, "station id must be a single path segment", http.StatusBadRequest)
		return
	}

	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}

	if !offersSubprotocol(r, Subprotocol) {
		s.log.Warn("Connection refused: missing ocpp1.6 subprotocol",
			zap.String("station_id", stationID),
			zap.String("remote_addr", r.RemoteAddr),
		)
		http.Error(w, "subprotocol ocpp1.6 required", http.StatusBadRequest)
		return
	}

	if !s.cfg.AllowUnknownStations {
		station, err := s.stations.GetStation(r.Context(), stationID)
		if err != nil {
			http.Error(w, "station lookup failed", http.StatusServiceUnavailable)
			return
		}
		if station == nil {
			s.log.Warn("Connection refused: unknown station", zap.String("station_id", stationID))
			http.Error(w, "unknown station", http.StatusForbidden)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Warn("WebSocket upgrade failed", zap.String("station_id", stationID), zap.Error(err))
		return
	}

	sess := NewSession(stationID, conn, s.router, s.cfg.Session, s.log)
	sess.SetOnClose(func(closed *Session) {
		s.registry.Detach(closed)
	})

	if prior := s.registry.Attach(sess); prior != nil {
		// Same station reconnected; the newer socket wins.
		go prior.Evict()
	}

	s.log.Info("Station connected",
		zap.String("station_id", stationID),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("subprotocol", conn.Subprotocol()),
	)
	sess.Start()
}

func offersSubprotocol(r *http.Request, want string) bool {
	for _, p := range websocket.Subprotocols(r) {
		if p == want {
			return true
		}
	}
	return false
}
