package web

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-sms-relay/internal/config"
	"telegram-sms-relay/internal/usecase"
)

// Server exposes the admin API over HTTP. It mirrors the bot's admin
// surface: stats, per-user log, bonus grants, and the backup export.
type Server struct {
	statsUC usecase.StatsUseCase
	adminUC usecase.AdminUseCase
	auth    *AuthManager
	apiKey  string

	httpSrv *http.Server
	log     *zerolog.Logger
}

func NewServer(cfg config.WebConfig, statsUC usecase.StatsUseCase, adminUC usecase.AdminUseCase, dev bool, logger *zerolog.Logger) *Server {
	s := &Server{
		statsUC: statsUC,
		adminUC: adminUC,
		auth:    NewAuthManager(cfg.JWTSecret, !dev, cfg.SessionTTL),
		apiKey:  cfg.APIKey,
		log:     logger,
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.loginHandler())
		r.Post("/logout", s.logoutHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Get("/stats", statsHandler(s.statsUC))
			r.Get("/backup", backupHandler(s.adminUC))
			r.Route("/users/{id}", func(r chi.Router) {
				r.Get("/log", userLogHandler(s.adminUC))
				r.Post("/bonus", grantBonusHandler(s.adminUC))
			})
		})
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("admin api listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// keyMatches compares in constant time so the API key cannot be probed.
func (s *Server) keyMatches(candidate string) bool {
	if s.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(s.apiKey)) == 1
}

func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
