package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmbus/internal/admin"
	api "github.com/GriffinCanCode/shmbus/internal/api/http"
	"github.com/GriffinCanCode/shmbus/internal/api/middleware"
	"github.com/GriffinCanCode/shmbus/internal/infrastructure/config"
	"github.com/GriffinCanCode/shmbus/internal/infrastructure/logging"
	"github.com/GriffinCanCode/shmbus/internal/infrastructure/monitoring"
)

// shutdownTimeout bounds graceful shutdown
const shutdownTimeout = 5 * time.Second

// Options carries collaborators shared with the rest of the process.
// Zero values are replaced with private defaults.
type Options struct {
	Logger *logging.Logger
	// Metrics and Gatherer must come from the same registry
	Metrics  *monitoring.Metrics
	Gatherer prometheus.Gatherer
}

// Server wraps the status endpoint and its dependencies
type Server struct {
	router  *gin.Engine
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	metrics, gatherer := opts.Metrics, opts.Gatherer
	if metrics == nil || gatherer == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, gatherer = monitoring.NewMetrics(reg), reg
	}

	ns := cfg.Bus.Namespace()
	logger.Info("Initializing status server",
		zap.String("addr", cfg.Server.Address()),
		zap.String("dir", ns.Dir),
		zap.String("prefix", ns.Prefix),
	)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(logger))
	router.Use(monitoring.Middleware(metrics))
	if cors := middleware.DefaultCORSConfig(cfg.Server.CORSOrigins); cors.Enabled() {
		logger.Info("CORS enabled", zap.Strings("origins", cors.AllowOrigins))
		router.Use(middleware.CORS(cors))
	}
	if cfg.Server.RateLimit > 0 {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit,
			Burst:             cfg.Server.RateBurst,
		}))
	}

	// Create handlers
	handlers := api.NewHandlers(admin.NewManager(ns, logger), logger)
	metricsHandlers := api.NewMetricsHandlers(metrics, gatherer)

	// Register routes
	router.GET("/health", handlers.Health)
	router.GET("/objects", handlers.ListObjects)
	router.GET("/objects/:name", handlers.GetObject)

	// Metrics endpoints
	router.GET("/metrics", metricsHandlers.Prometheus)
	router.GET("/metrics/json", metricsHandlers.JSON)

	return &Server{
		router:  router,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on the configured address and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Server.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
