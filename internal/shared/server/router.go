package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kyc-backend/internal/services/health"
	"kyc-backend/internal/shared/config"
	"kyc-backend/internal/shared/metrics"
	"kyc-backend/internal/shared/server/middleware"
	"kyc-backend/internal/shared/server/respond"
)

// RouteRegistrar attaches a feature's routes under /api/v1.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Config  config.Config
	Health  *health.Service
	Metrics *metrics.Metrics
	Routes  []RouteRegistrar
	// RateLimits overrides DefaultRateLimits when non-nil.
	RateLimits map[string]middleware.RateLimitRule
	// RateStore defaults to an in-process bucket per instance.
	RateStore middleware.RateStore
}

// DefaultRateLimits keeps model-backed routes to a trickle per operator.
func DefaultRateLimits() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		middleware.LLMRateLimitGroup: {Rate: 0.2, Burst: 5},
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Config.Env != "dev" && deps.Config.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	limits := deps.RateLimits
	if limits == nil {
		limits = DefaultRateLimits()
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.OperatorAuth(deps.Config.Env, deps.Config.OperatorAPIKey),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    limits,
			GroupFor: middleware.GroupByCost,
			Limiter:  deps.RateStore,
		}),
	)

	if deps.Metrics != nil {
		r.GET("/metrics", deps.Metrics.Handler())
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		st := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, st)
	})
	for _, routes := range deps.Routes {
		routes.RegisterRoutes(api)
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})
	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
