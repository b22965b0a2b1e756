package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/traillog/traillog/backend/go-services/internal/models"
	"github.com/traillog/traillog/backend/go-services/internal/sessions"
	"github.com/traillog/traillog/backend/go-services/internal/tokens"
	"github.com/traillog/traillog/backend/go-services/internal/users"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
)

// LoginRequest is the password login body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	users      *users.Service
	sessions   *sessions.Service
	issuer     *tokens.Issuer
	blacklist  *sessions.Blacklist
	refreshTTL time.Duration
}

func NewAuthHandler(u *users.Service, s *sessions.Service, issuer *tokens.Issuer, blacklist *sessions.Blacklist, refreshTTL time.Duration) *AuthHandler {
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &AuthHandler{users: u, sessions: s, issuer: issuer, blacklist: blacklist, refreshTTL: refreshTTL}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/register", h.SignUp)
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

// SignUp creates a local account and logs it in.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req users.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.issue(c, http.StatusCreated, u)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.issue(c, http.StatusOK, u)
}

// issue creates a refresh session and an access token for u.
func (h *AuthHandler) issue(c *gin.Context, status int, u *models.User) {
	rft, err := h.sessions.CreateSession(c.Request.Context(), u.ID, h.refreshTTL)
	if err != nil {
		writeError(c, fmt.Errorf("create session: %w", err))
		return
	}
	access, err := h.issuer.GenerateAccessToken(u)
	if err != nil {
		writeError(c, fmt.Errorf("create access token: %w", err))
		return
	}
	c.JSON(status, gin.H{
		"accessToken":  access,
		"refreshToken": rft,
		"expiresIn":    int(h.issuer.TTL().Seconds()),
		"user":         u,
	})
}

// Refresh exchanges a refresh token for a new access token and a new
// refresh token. The presented refresh token stops working.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	sess, next, err := h.sessions.Rotate(ctx, req.RefreshToken, h.refreshTTL)
	if err != nil {
		writeError(c, fmt.Errorf("rotate refresh token: %w", err))
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	u, err := h.users.Get(ctx, sess.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if u == nil {
		// the account was deleted after the session was issued
		_ = h.sessions.DeleteRefresh(ctx, next)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	access, err := h.issuer.GenerateAccessToken(u)
	if err != nil {
		writeError(c, fmt.Errorf("create access token: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": next,
		"expiresIn":    int(h.issuer.TTL().Seconds()),
	})
}

// Logout invalidates the refresh token and blacklists the bearer access
// token, when one is supplied, until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var at string
	if n, _ := fmt.Sscanf(c.GetHeader("Authorization"), "Bearer %s", &at); n == 1 {
		if exp, err := tokens.ExpiresAt(at); err == nil {
			if err := h.blacklist.Revoke(c.Request.Context(), at, time.Until(exp)); err != nil {
				logger.Errorf("failed to blacklist access token: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to blacklist access token"})
				return
			}
		}
	}
	if err := h.sessions.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		writeError(c, fmt.Errorf("remove session: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}
