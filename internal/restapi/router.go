// Package restapi is the REST surface (§6): one file per resource
// group, each a thin gin adapter over the Policy Engine (C4), Global
// Controller Supervisor (C6), Actor Host (C3) and State Store (C1) —
// handlers never touch the store directly except through the typed
// adapters, matching the teacher's service-wraps-storage layering
// (internal/app/httpapi/handler.go dispatches to service structs, not
// storage, the same way Server's handlers below dispatch to Engine/
// Controllers/Store).
package restapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sdslabs/policyctl/internal/actorhost"
	"github.com/sdslabs/policyctl/internal/config"
	"github.com/sdslabs/policyctl/internal/globalcontroller"
	"github.com/sdslabs/policyctl/internal/metrics"
	"github.com/sdslabs/policyctl/internal/metricsub"
	"github.com/sdslabs/policyctl/internal/policyengine"
	"github.com/sdslabs/policyctl/internal/store"
	"github.com/sdslabs/policyctl/internal/tenantdir"
	"github.com/sdslabs/policyctl/pkg/logger"
)

// Server holds every collaborator the REST surface dispatches to.
type Server struct {
	Store       store.StateStore
	Engine      *policyengine.Engine
	Controllers *globalcontroller.Supervisor
	Host        *actorhost.Host
	Metrics     *metricsub.Manager
	TenantDir   *tenantdir.Directory
	Config      *config.Config
	Validator   Validator
	Log         *logger.Logger
	Telemetry   *metrics.Metrics
}

// NewRouter builds the gin.Engine for the whole REST surface, wiring
// the auth, request-logging and request-metrics middleware ahead of
// every route group, and exposing the collected series at /metrics the
// same way the teacher mounts promhttp.Handler alongside its own
// request-logging middleware.
func NewRouter(s *Server) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.Log))
	if s.Telemetry != nil {
		r.Use(requestMetrics(s.Telemetry))
	}
	r.Use(authMiddleware(s.Validator, s.Config.REST.AuthDisabled, s.Log))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	if s.Telemetry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.registerFilterRoutes(r)
	s.registerMetricRoutes(r)
	s.registerNodeRoutes(r)
	s.registerTenantRoutes(r)
	s.registerObjectTypeRoutes(r)
	s.registerPolicyRoutes(r)
	s.registerControllerRoutes(r)

	return r
}

// requestMetrics records one RequestsTotal/RequestDuration observation
// per request and tracks in-flight count, mirroring the teacher's
// infrastructure/middleware.MetricsMiddleware (there built for
// gorilla/mux; here a gin.HandlerFunc around the same call chain).
func requestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.IncrementInFlight()
		defer m.DecrementInFlight()

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RecordHTTPRequest(c.Request.Method, path, status, duration)
	}
}

// requestLogger logs method/path/status/latency at Info, the same
// fields the teacher's middleware attaches around its handler chain.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("request handled")
	}
}
