package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/naffles/nft-staking-rewards/internal/config"
	"github.com/naffles/nft-staking-rewards/internal/db"
	"github.com/naffles/nft-staking-rewards/internal/services"
	"github.com/rs/zerolog/log"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 30 * time.Second
)

// Server exposes the admin and read endpoints of the reward engine
type Server struct {
	cfg     *config.APIConfig
	service *services.Service
	db      db.DbInterface
	router  *chi.Mux
	srv     *http.Server
}

func New(cfg *config.APIConfig, service *services.Service, dbClient db.DbInterface) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		db:      dbClient,
		router:  chi.NewRouter(),
	}
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		// a manual batch can run for the whole request timeout
		WriteTimeout: cfg.RequestTimeout + readHeaderTimeout,
		IdleTimeout:  idleTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))

	s.router.Get("/healthcheck", s.handleHealthcheck)

	s.router.Get("/distribution/status", s.handleDistributionStatus)
	s.router.Get("/users/{userId}/rewards", s.handleUserRewards)
	s.router.Get("/contracts/{contractId}/performance", s.handleContractPerformance)
	s.router.Get("/rewards/monthly", s.handleMonthlySummary)

	s.router.Group(func(r chi.Router) {
		r.Use(s.adminOnly)

		r.Post("/distribute", s.handleDistribute)
		r.Post("/reconcile", s.handleReconcile)
		r.Get("/anomalies", s.handleAnomalies)
		r.Post("/positions", s.handleStake)
		r.Post("/positions/{positionId}/verify", s.handleVerifyPosition)
		r.Post("/positions/{positionId}/unstake", s.handleUnstake)
	})
}

// Handler returns the router, used by tests to serve requests without a listener
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("Starting API server")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down API server")
	return s.srv.Shutdown(ctx)
}
