package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/traillog/traillog/backend/go-services/internal/restaurants"
	"github.com/traillog/traillog/backend/go-services/internal/sessions"
	"github.com/traillog/traillog/backend/go-services/internal/tokens"
	"github.com/traillog/traillog/backend/go-services/internal/trips"
	"github.com/traillog/traillog/backend/go-services/internal/users"
	"github.com/traillog/traillog/backend/go-services/pkg/middleware"
)

// ReadinessCheck reports whether one dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Deps are the services the HTTP surface is built from.
type Deps struct {
	Users       *users.Service
	Trips       *trips.Service
	Restaurants *restaurants.Service
	Sessions    *sessions.Service
	Issuer      *tokens.Issuer
	Blacklist   *sessions.Blacklist
	// Verifier checks bearer tokens, typically a ChainVerifier of Issuer and
	// the external provider.
	Verifier   middleware.Verifier
	RefreshTTL time.Duration
	// RateLimit is installed before every route when set.
	RateLimit gin.HandlerFunc
	Checks    map[string]ReadinessCheck
}

var startTime = time.Now()

// NewRouter registers every route of the service on a new engine.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors())
	if d.RateLimit != nil {
		r.Use(d.RateLimit)
	}

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	r.GET("/ready", readiness(d.Checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterSwagger(r)

	NewAuthHandler(d.Users, d.Sessions, d.Issuer, d.Blacklist, d.RefreshTTL).Register(r.Group("/"))

	api := r.Group("/api/v1", middleware.AuthMiddleware(d.Verifier, d.Blacklist), CurrentUser(d.Users))
	NewUsersHandler(d.Users, d.Sessions).Register(api)
	NewTripsHandler(d.Trips).Register(api)
	NewRestaurantsHandler(d.Restaurants).Register(api)
	return r
}

// readiness returns 200 only when every check passes.
func readiness(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{}
		for name, check := range checks {
			deps[name] = check(ctx) == nil
			ready = ready && deps[name]
		}
		status, label := http.StatusOK, "ready"
		if !ready {
			status, label = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": time.Since(startTime).String()})
	}
}

// cors sets permissive headers and answers preflight requests.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
