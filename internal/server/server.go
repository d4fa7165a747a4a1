package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mwalsh/linkhub/internal/handler"
	"github.com/mwalsh/linkhub/internal/middleware"
	"github.com/mwalsh/linkhub/internal/store"
	"github.com/mwalsh/linkhub/internal/upload"
	ws "github.com/mwalsh/linkhub/internal/websocket"
)

// Config carries the server's wiring-time options.
type Config struct {
	UploadDir     string
	SecureCookies bool
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	profileH     *handler.ProfileHandler
	linkH        *handler.LinkHandler
	sessionStore *store.SessionStore
	uploadDir    string
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) (*Server, error) {
	userStore := store.NewUserStore(db)
	linkStore := store.NewLinkStore(db)
	sessionStore := store.NewSessionStore(db)

	uploads, err := upload.NewStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, cfg.SecureCookies, logger.With("component", "auth")),
		profileH:     handler.NewProfileHandler(userStore, linkStore, uploads, hub, logger.With("component", "profile")),
		linkH:        handler.NewLinkHandler(linkStore, hub, logger.With("component", "link")),
		sessionStore: sessionStore,
		uploadDir:    cfg.UploadDir,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimited(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("GET /api/profile/{username}", s.profileH.Public)
	outerMux.HandleFunc("GET /api/platforms", s.linkH.Platforms)
	outerMux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Everything else requires a live session
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/user", s.authH.CurrentUser)

	mux.HandleFunc("GET /api/profile", s.profileH.Me)
	mux.HandleFunc("PATCH /api/profile", s.profileH.Update)
	mux.HandleFunc("DELETE /api/profile/image", s.profileH.DeleteImage)

	mux.HandleFunc("POST /api/links", s.linkH.Create)
	mux.HandleFunc("PUT /api/links/reorder", s.linkH.Reorder)
	mux.HandleFunc("PATCH /api/links/{id}", s.linkH.Update)
	mux.HandleFunc("DELETE /api/links/{id}", s.linkH.Delete)

	// Live preview feed for the admin dashboard
	mux.HandleFunc("GET /ws", ws.Handle(s.hub, s.logger.With("component", "websocket")))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
