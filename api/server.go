// Package api serves a read-only HTTP view of the wheel application state:
// the cluster, registered circuits, queued and finalized computations,
// spins and the administrative audit trail.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/TOBY0001/encrypted-wheel/app"
	"github.com/TOBY0001/encrypted-wheel/app/health"
)

// Config holds server configuration
type Config struct {
	Host            string
	Port            string
	CORSOrigins     []string
	RateLimitRPS    int
	RequestTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            "1317",
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimitRPS:    50,
		RequestTimeout:  10 * time.Second,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MetricsEnabled:  true,
	}
}

// Server is the query server.
type Server struct {
	logger  log.Logger
	app     *app.App
	checker *health.Checker
	config  Config
	router  *gin.Engine
}

// NewServer builds the router. checker may be nil, in which case the health
// routes are not served.
func NewServer(logger log.Logger, a *app.App, checker *health.Checker, config Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		logger:  logger.With("module", "api"),
		app:     a,
		checker: checker,
		config:  config,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	s.router = gin.New()

	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(SecurityHeadersMiddleware())
	s.router.Use(LoggerMiddleware(s.logger))
	if s.config.RateLimitRPS > 0 {
		s.router.Use(RateLimitMiddleware(s.config.RateLimitRPS))
	}
	if s.config.RequestTimeout > 0 {
		s.router.Use(TimeoutMiddleware(s.config.RequestTimeout))
	}

	if s.checker != nil {
		healthRouter := newHealthRouter(s.checker)
		s.router.GET("/health", gin.WrapH(healthRouter))
		s.router.GET("/health/ready", gin.WrapH(healthRouter))
		s.router.GET("/health/detailed", gin.WrapH(healthRouter))
	}
	if s.config.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.registerRoutes()
}

// Handler returns the router wrapped with CORS handling and response
// compression.
func (s *Server) Handler() http.Handler {
	return handlers.CompressHandler(cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	}).Handler(s.router))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.config.Host, s.config.Port),
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting query server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("query server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down query server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("query server shutdown: %w", err)
	}
	return nil
}
