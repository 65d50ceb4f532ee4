package http

import (
	"net/http"
	"time"

	"agenci/game"
	"agenci/ws"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

type Options struct {
	AllowedOrigins []string
	PublicURL      string
	// CreateRate and CreateBurst limit room creation and joins per IP.
	CreateRate  rate.Limit
	CreateBurst int
}

type Server struct {
	router   *mux.Router
	handler  http.Handler
	handlers *Handlers
	limiters []*RateLimiter
}

func NewServer(lobby *game.Lobby, engine *game.Engine, wsManager *ws.Manager, lobbyManager *ws.LobbyManager, opts Options) *Server {
	server := &Server{
		router:   mux.NewRouter(),
		handlers: NewHandlers(lobby, engine, wsManager, lobbyManager, opts),
	}

	server.setupRoutes(opts)
	// wrap outside the router so preflight and unmatched requests are covered
	server.handler = LoggingMiddleware(SecurityHeadersMiddleware(CORSMiddleware(opts.AllowedOrigins)(server.router)))
	return server
}

func (s *Server) setupRoutes(opts Options) {
	createLimiter := NewRateLimiter(opts.CreateRate, opts.CreateBurst)
	joinLimiter := NewRateLimiter(opts.CreateRate, opts.CreateBurst)
	s.limiters = append(s.limiters, createLimiter, joinLimiter)

	s.router.HandleFunc("/", s.handlers.Health).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.Handle("/rooms", createLimiter.Middleware(http.HandlerFunc(s.handlers.CreateRoom))).Methods("POST")
	api.HandleFunc("/rooms", s.handlers.ListRooms).Methods("GET")
	api.HandleFunc("/rooms/{roomId}", s.handlers.GetRoom).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/fields", s.handlers.GetFields).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/players", s.handlers.GetPlayers).Methods("GET")
	api.HandleFunc("/rooms/{roomId}/events", s.handlers.ListEvents).Methods("GET")
	api.Handle("/rooms/{roomId}/join", joinLimiter.Middleware(http.HandlerFunc(s.handlers.JoinRoom))).Methods("POST")
	api.HandleFunc("/rooms/{roomId}/stage", s.handlers.AdvanceStage).Methods("POST")
	api.HandleFunc("/rooms/{roomId}/turn", s.handlers.ToggleTurn).Methods("POST")
	api.HandleFunc("/rooms/{roomId}/qr", s.handlers.RoomQR).Methods("GET")

	api.HandleFunc("/fields/{fieldId}", s.handlers.GetField).Methods("GET")
	api.HandleFunc("/fields/{fieldId}/reveal", s.handlers.RevealField).Methods("POST")

	api.HandleFunc("/players/{playerId}", s.handlers.GetPlayer).Methods("GET")

	s.router.HandleFunc("/ws", s.handlers.HandleWebSocket)
	s.router.HandleFunc("/ws/lobby", s.handlers.HandleLobbyWebSocket)

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.NotFoundHandler = notFound
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.Stop()
	}
}

func (s *Server) GetHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
