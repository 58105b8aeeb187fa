// Package api exposes the provenance service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/originmark/provenance/internal/config"
	"github.com/originmark/provenance/internal/logger"
)

// Router assembles the gin engine for the service.
type Router struct {
	cfg      *config.Config
	handlers *Handlers
	logger   logger.Logger
	metrics  http.Handler
}

// NewRouter creates a Router. metricsHandler serves the prometheus registry
// and may be nil to disable the endpoint.
func NewRouter(cfg *config.Config, handlers *Handlers, metricsHandler http.Handler, log logger.Logger) *Router {
	return &Router{
		cfg:      cfg,
		handlers: handlers,
		logger:   log,
		metrics:  metricsHandler,
	}
}

// Setup builds the engine with middleware and all service routes.
func (r *Router) Setup() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(r.requestLogger())

	engine.GET("/health", r.handlers.Health)
	if r.metrics != nil {
		engine.GET("/metrics", gin.WrapH(r.metrics))
	}

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/content/register", r.handlers.RegisterContent)
		v1.GET("/content/:hash", r.handlers.GetContent)
		v1.POST("/content/:hash/manifest", r.handlers.UpdateManifest)
		v1.POST("/content/:hash/revoke", r.handlers.RevokeContent)
		v1.POST("/content/:hash/bindings", r.handlers.BindPlatform)
		v1.GET("/content/:hash/verifications", r.handlers.ListVerifications)

		v1.GET("/resolve/:platform/:id", r.handlers.ResolveByPlatform)

		v1.POST("/manifests", r.handlers.CreateManifest)

		v1.POST("/verify", r.handlers.Verify)
		v1.POST("/proof", r.handlers.Proof)

		v1.GET("/jobs", r.handlers.ListJobs)
		v1.GET("/jobs/stats", r.handlers.JobStats)
		v1.GET("/jobs/:id", r.handlers.GetJob)

		v1.GET("/stats", r.handlers.ServiceStats)
	}

	return engine
}

// requestLogger logs one line per request with latency and status.
func (r *Router) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		r.logger.Debug("request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)))
	}
}
