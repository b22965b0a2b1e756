package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traillog/traillog/backend/go-services/internal/apperr"
	"github.com/traillog/traillog/backend/go-services/internal/sessions"
	"github.com/traillog/traillog/backend/go-services/internal/users"
	"github.com/traillog/traillog/backend/go-services/pkg/logger"
)

type UsersHandler struct {
	users    *users.Service
	sessions *sessions.Service
}

func NewUsersHandler(u *users.Service, s *sessions.Service) *UsersHandler {
	return &UsersHandler{users: u, sessions: s}
}

// Register expects rg to authenticate requests and run CurrentUser.
func (h *UsersHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
	rg.GET("/users/:id", h.Get)
	rg.DELETE("/users/:id", h.Delete)
	rg.POST("/users/:id/follow/:tripId", h.Follow)
	rg.DELETE("/users/:id/follow/:tripId", h.Unfollow)
}

func (h *UsersHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": user(c)})
}

func (h *UsersHandler) Get(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if u == nil {
		writeError(c, apperr.NotFound("user", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, u)
}

// Delete removes an account and ends its refresh sessions. Its trips move
// to the sentinel user.
func (h *UsersHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.users.Delete(c.Request.Context(), user(c).ID, id); err != nil {
		writeError(c, err)
		return
	}
	if err := h.sessions.RevokeUser(c.Request.Context(), id); err != nil {
		// refresh then fails on the missing user, so this only leaves stale records
		logger.Warnf("user %s deleted but sessions not revoked: %v", id, err)
	}
	c.Status(http.StatusNoContent)
}

func (h *UsersHandler) Follow(c *gin.Context) {
	if !h.self(c) {
		return
	}
	u, err := h.users.FollowTrip(c.Request.Context(), c.Param("id"), c.Param("tripId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UsersHandler) Unfollow(c *gin.Context) {
	if !h.self(c) {
		return
	}
	u, err := h.users.UnfollowTrip(c.Request.Context(), c.Param("id"), c.Param("tripId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// self rejects requests on another user's follow list.
func (h *UsersHandler) self(c *gin.Context) bool {
	if user(c).ID != c.Param("id") {
		writeError(c, apperr.ErrForbidden)
		return false
	}
	return true
}
