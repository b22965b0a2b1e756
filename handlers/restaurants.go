package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traillog/traillog/backend/go-services/internal/restaurants"
)

type RestaurantsHandler struct {
	restaurants *restaurants.Service
}

func NewRestaurantsHandler(r *restaurants.Service) *RestaurantsHandler {
	return &RestaurantsHandler{restaurants: r}
}

// Register expects rg to authenticate requests and run CurrentUser.
func (h *RestaurantsHandler) Register(rg *gin.RouterGroup) {
	r := rg.Group("/restaurants")
	r.GET("", h.List)
	r.POST("", h.Create)
	r.GET("/nearest", h.Nearest)
	r.GET("/:id", h.Get)
	r.DELETE("/:id", h.Delete)
}

func (h *RestaurantsHandler) List(c *gin.Context) {
	out, err := h.restaurants.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *RestaurantsHandler) Create(c *gin.Context) {
	var in restaurants.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.restaurants.Create(c.Request.Context(), user(c).ID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *RestaurantsHandler) Get(c *gin.Context) {
	r, err := h.restaurants.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *RestaurantsHandler) Delete(c *gin.Context) {
	if err := h.restaurants.Delete(c.Request.Context(), user(c).ID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RestaurantsHandler) Nearest(c *gin.Context) {
	lat, lng, n, err := geoQuery(c, 1)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.restaurants.Nearest(c.Request.Context(), lat, lng, n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
