package http

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/dukerupert/imgbed"
	"github.com/dukerupert/imgbed/internal/metrics"
	"github.com/dukerupert/imgbed/internal/middleware"
	"github.com/dukerupert/imgbed/internal/validation"
	"github.com/dukerupert/imgbed/worker"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetadataTimeout bounds metadata writes and lookups.
const DefaultMetadataTimeout = 10 * time.Second

// Server represents the HTTP server with all its dependencies.
type Server struct {
	echo   *echo.Echo
	ln     net.Listener
	logger *slog.Logger

	// Configuration
	Addr            string
	MetadataTimeout time.Duration

	// Domain services
	blobStore       imgbed.BlobStore
	metadataService imgbed.MetadataService
	tasks           imgbed.TaskRunner

	// Observability
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	uploadLimiter *middleware.RateLimiter
	readyCheck    func(ctx context.Context) error
}

// Config holds the configuration for creating a new Server.
type Config struct {
	Addr   string
	Logger *slog.Logger

	// BlobStore holds the file bytes. A nil store means credentials are
	// missing: uploads and retrievals answer with a configuration error.
	BlobStore imgbed.BlobStore

	// MetadataService is optional. When nil, uploads record nothing and
	// /info answers 404.
	MetadataService imgbed.MetadataService
	MetadataTimeout time.Duration

	// Tasks runs metadata writes after the upload response. When nil,
	// tasks run inline.
	Tasks imgbed.TaskRunner

	// Metrics and the gatherer served on /metrics. Both are optional.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	// Upload rate limit per client IP, in uploads per second. Zero
	// disables limiting.
	UploadRateLimit float64
	UploadRateBurst int

	// ReadyCheck reports whether dependencies are reachable.
	ReadyCheck func(ctx context.Context) error
}

// NewServer creates a new HTTP server with the given configuration.
func NewServer(cfg Config) *Server {
	s := &Server{
		Addr:            cfg.Addr,
		MetadataTimeout: cfg.MetadataTimeout,
		logger:          cfg.Logger,
		blobStore:       cfg.BlobStore,
		metadataService: cfg.MetadataService,
		tasks:           cfg.Tasks,
		metrics:         cfg.Metrics,
		gatherer:        cfg.Gatherer,
		readyCheck:      cfg.ReadyCheck,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.MetadataTimeout == 0 {
		s.MetadataTimeout = DefaultMetadataTimeout
	}
	if s.tasks == nil {
		// A pool that is never started runs every task on the caller.
		s.tasks = worker.NewPool(s.logger, s.metrics, worker.DefaultConfig())
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if cfg.UploadRateLimit > 0 {
		s.uploadLimiter = middleware.NewRateLimiter(s.logger, middleware.RateLimitConfig{
			Rate:  cfg.UploadRateLimit,
			Burst: cfg.UploadRateBurst,
		})
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = validation.NewValidator()

	// Register middleware and routes
	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// Echo returns the underlying Echo instance.
// Use sparingly - prefer registering routes through Server methods.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Open starts the HTTP server.
func (s *Server) Open() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		if err := s.echo.Server.Serve(s.ln); err != nil {
			s.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("server started",
		slog.String("addr", s.Addr),
		slog.String("storage", s.storageName()),
	)
	return nil
}

// Close gracefully shuts down the HTTP server.
func (s *Server) Close(ctx context.Context) error {
	if s.uploadLimiter != nil {
		s.uploadLimiter.Shutdown()
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// URL returns the URL of the server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

func (s *Server) storageName() string {
	if s.blobStore == nil {
		return "unconfigured"
	}
	return s.blobStore.Name()
}
