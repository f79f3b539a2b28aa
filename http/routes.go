package http

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes sets up all routes for the server.
// All routes are defined in this single file for easy navigation.
func (s *Server) registerRoutes() {
	// Health check routes
	s.echo.GET("/health", s.handleHealthCheck)
	s.echo.GET("/health/live", s.handleLivenessCheck)
	s.echo.GET("/health/ready", s.handleReadinessCheck)

	// Prometheus scrape endpoint
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	// Upload
	var uploadMiddleware []echo.MiddlewareFunc
	if s.uploadLimiter != nil {
		uploadMiddleware = append(uploadMiddleware, s.uploadLimiter.Middleware())
	}
	s.echo.POST("/upload", s.handleUpload, uploadMiddleware...)

	// Retrieval
	s.echo.GET(fileRoute, s.handleFile)
	s.echo.HEAD(fileRoute, s.handleFile)

	// Upload metadata
	s.echo.GET("/info/:reference", s.handleInfo)
}
