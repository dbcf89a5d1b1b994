// Package api hosts the HTTP edge of the case service: the gin router,
// authentication and rate-limit middleware, the case endpoints, and the
// health/readiness probes.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kingbora/easy-law-sub001/pkg/common/config"
	"github.com/kingbora/easy-law-sub001/pkg/observability"
	"github.com/kingbora/easy-law-sub001/pkg/services"
)

// Server represents the API server
type Server struct {
	router  *gin.Engine
	server  *http.Server
	cfg     config.APIConfig
	logger  observability.Logger
	metrics observability.MetricsClient
	cases   services.CaseService
	health  *HealthChecker
}

// NewServer creates the API server and wires all routes and middleware.
func NewServer(cfg config.APIConfig, cases services.CaseService, health *HealthChecker, logger observability.Logger, metrics observability.MetricsClient) *Server {
	if logger == nil {
		logger = observability.NewStandardLogger("api-server")
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	if health == nil {
		health = NewHealthChecker(logger)
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	if cfg.LogRequests {
		router.Use(RequestLogger(logger))
	}
	router.Use(MetricsMiddleware(metrics))
	if cfg.EnableCORS {
		router.Use(CORSMiddleware(cfg.CORSOrigins))
	}
	if cfg.RateLimit.Enabled {
		router.Use(RateLimiter(NewRateLimiterStorage(cfg.RateLimit)))
	}

	s := &Server{
		router:  router,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		cases:   cases,
		health:  health,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes() {
	// Probes stay outside authentication so orchestrators can reach them.
	s.router.GET("/health", s.health.HealthHandler)
	s.router.GET("/healthz", s.health.LivenessHandler)
	s.router.GET("/readyz", s.health.ReadinessHandler)

	if s.cfg.EnableSwagger {
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	baseURL := s.cfg.BaseURL
	if baseURL == "" {
		baseURL = "/api/v1"
	}
	v1 := s.router.Group(baseURL)
	v1.Use(AuthMiddleware(s.cfg.Auth, s.logger))

	NewCaseAPI(s.cases, s.logger).RegisterRoutes(v1)
}

// Router exposes the gin engine for in-process test servers
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start begins listening and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("API server listening", map[string]interface{}{
		"address": s.server.Addr,
		"tls":     s.cfg.TLSCertFile != "",
	})
	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		return s.server.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API server shutting down", nil)
	return s.server.Shutdown(ctx)
}
