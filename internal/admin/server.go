// Package admin serves the operator HTTP API: health, metrics, sessions and
// service state.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/amoylab/mdprovider/internal/common/cnst"
	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/internal/notifier"
	"github.com/amoylab/mdprovider/internal/session"
	"github.com/amoylab/mdprovider/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// Server is the admin HTTP server
type Server struct {
	logger   *zap.Logger
	cfg      config.AdminConfig
	router   *gin.Engine
	pub      *core.PubContext
	metrics  *metrics.Metrics
	store    session.Store
	notifier notifier.Notifier
	level    *zap.AtomicLevel
}

// Option configures optional dependencies of the admin server
type Option func(*Server)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithSessionStore exposes the mirrored session metadata on /sessions/store
func WithSessionStore(store session.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithNotifier routes service state changes through n so every provider
// instance watching it applies them.
func WithNotifier(n notifier.Notifier) Option {
	return func(s *Server) { s.notifier = n }
}

// WithLogLevel exposes level on GET/PUT /log/level
func WithLogLevel(level zap.AtomicLevel) Option {
	return func(s *Server) { s.level = &level }
}

// NewServer creates the admin server and registers its routes
func NewServer(logger *zap.Logger, cfg config.AdminConfig, pub *core.PubContext, opts ...Option) *Server {
	s := &Server{
		logger: logger.Named("admin"),
		cfg:    cfg,
		router: gin.New(),
		pub:    pub,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(otelgin.Middleware(cnst.AppName + "-admin"))
	s.router.Use(s.loggerMiddleware())
	s.router.Use(s.recoveryMiddleware())
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health_check", s.handleHealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	s.router.GET("/sessions", s.handleListSessions)
	s.router.GET("/sessions/store", s.handleListStoredSessions)
	s.router.GET("/services", s.handleListServices)
	s.router.POST("/services/:name/state", s.handleSetServiceState)
	if s.level != nil {
		s.router.GET("/log/level", gin.WrapH(s.level))
		s.router.PUT("/log/level", gin.WrapH(s.level))
	}
}

// Handler returns the gin engine, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin server started", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down admin server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// loggerMiddleware logs every admin request
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("admin request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("remote_addr", c.Request.RemoteAddr),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// recoveryMiddleware recovers from panics and returns 500 error
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
