package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traillog/traillog/backend/go-services/internal/apperr"
	"github.com/traillog/traillog/backend/go-services/internal/trips"
)

// maxImageSize bounds multipart image uploads.
const maxImageSize = 10 << 20

type TripsHandler struct {
	trips *trips.Service
}

func NewTripsHandler(t *trips.Service) *TripsHandler { return &TripsHandler{trips: t} }

// Register expects rg to authenticate requests and run CurrentUser.
func (h *TripsHandler) Register(rg *gin.RouterGroup) {
	t := rg.Group("/trips")
	t.GET("", h.List)
	t.POST("", h.Create)
	t.GET("/nearby", h.Nearby)
	t.GET("/:id", h.Get)
	t.PUT("/:id", h.Update)
	t.DELETE("/:id", h.Delete)
	t.POST("/:id/images", h.UploadImage)
	t.GET("/:id/images/url", h.ImageURL)
	t.GET("/:id/closest-restaurant", h.ClosestRestaurant)
}

// List returns all trips, or the trips of ?creator= when given.
func (h *TripsHandler) List(c *gin.Context) {
	var (
		out any
		err error
	)
	if creator := c.Query("creator"); creator != "" {
		out, err = h.trips.ListByCreator(c.Request.Context(), creator)
	} else {
		out, err = h.trips.List(c.Request.Context())
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *TripsHandler) Create(c *gin.Context) {
	var in trips.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.trips.Create(c.Request.Context(), user(c).ID, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TripsHandler) Get(c *gin.Context) {
	t, err := h.trips.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TripsHandler) Update(c *gin.Context) {
	var in trips.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	t, err := h.trips.Update(c.Request.Context(), user(c).ID, c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TripsHandler) Delete(c *gin.Context) {
	if err := h.trips.Delete(c.Request.Context(), user(c).ID, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage stores the multipart field "image" and records its key on the trip.
func (h *TripsHandler) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		writeError(c, apperr.Invalid("multipart field image is required"))
		return
	}
	if fh.Size > maxImageSize {
		writeError(c, apperr.Invalid("image exceeds %d bytes", maxImageSize))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	t, err := h.trips.AttachImage(c.Request.Context(), user(c).ID, c.Param("id"), fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// ImageURL returns a short-lived download URL for ?key=.
func (h *TripsHandler) ImageURL(c *gin.Context) {
	url, err := h.trips.ImageURL(c.Request.Context(), c.Param("id"), c.Query("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *TripsHandler) ClosestRestaurant(c *gin.Context) {
	r, err := h.trips.ClosestRestaurant(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if r == nil {
		writeError(c, apperr.NotFound("restaurant near trip", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *TripsHandler) Nearby(c *gin.Context) {
	lat, lng, n, err := geoQuery(c, 10)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := h.trips.Nearby(c.Request.Context(), lat, lng, n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
