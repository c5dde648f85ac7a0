// Package api is the HTTP boundary: webhook ingestion, incident reads, the
// approve-merge write, and health reporting. Handlers translate policy
// decisions and provider errors into status codes; all domain logic lives in
// the packages below.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/resilix/resilix/pkg/config"
	"github.com/resilix/resilix/pkg/orchestrator"
	"github.com/resilix/resilix/pkg/session"
)

// Server holds the boundary dependencies.
type Server struct {
	cfg    *config.Settings
	store  session.Store
	orch   *orchestrator.Orchestrator
	db     *sql.DB
	logger *slog.Logger
}

// NewServer creates the API server.
func NewServer(cfg *config.Settings, store session.Store, orch *orchestrator.Orchestrator) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		orch:   orch,
		logger: slog.Default(),
	}
}

// WithDatabase attaches the pool behind the database session backend so
// /health can report its connectivity and statistics.
func (s *Server) WithDatabase(db *sql.DB) *Server {
	s.db = db
	return s
}

// Router builds the gin engine with CORS, routes, and optional static
// frontend serving.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(s.cfg.CORSAllowedOrigins) == 1 && s.cfg.CORSAllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.cfg.CORSAllowedOrigins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	router.Use(cors.New(corsConfig))

	router.POST("/webhook/prometheus", s.PrometheusWebhook)
	router.GET("/incidents", s.ListIncidents)
	router.GET("/incidents/:id", s.GetIncident)
	router.POST("/incidents/:id/approve-merge", s.ApproveMerge)
	router.GET("/health", s.Health)

	if s.cfg.FrontendDistDir != "" {
		router.Static("/app", s.cfg.FrontendDistDir)
	}

	return router
}
