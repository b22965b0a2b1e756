package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traillog/traillog/backend/go-services/internal/models"
	"github.com/traillog/traillog/backend/go-services/internal/tokens"
	"github.com/traillog/traillog/backend/go-services/internal/users"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
	"github.com/traillog/traillog/backend/go-services/pkg/middleware"
)

const userKey = "user"

// CurrentUser resolves the verified token to a local user. Locally issued
// tokens carry the user id as subject; tokens of the external provider are
// mapped through UpsertFromClaims. Must run after middleware.AuthMiddleware.
func CurrentUser(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.Claims(c)
		var (
			u   *models.User
			err error
		)
		if iss, _ := claims["iss"].(string); iss == tokens.IssuerName {
			u, err = svc.Get(c.Request.Context(), middleware.Subject(c))
		} else {
			u, err = svc.UpsertFromClaims(c.Request.Context(), claims)
		}
		if err != nil {
			logger.Errorf("resolving user failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
			return
		}
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// user returns the user set by CurrentUser.
func user(c *gin.Context) *models.User {
	u, _ := c.MustGet(userKey).(*models.User)
	return u
}
