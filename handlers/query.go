package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/traillog/traillog/backend/go-services/internal/apperr"
)

// geoQuery reads ?lat=&lng=&n= with n defaulting to def.
func geoQuery(c *gin.Context, def int) (lat, lng float64, n int, err error) {
	if lat, err = strconv.ParseFloat(c.Query("lat"), 64); err != nil {
		return 0, 0, 0, apperr.Invalid("lat must be a number")
	}
	if lng, err = strconv.ParseFloat(c.Query("lng"), 64); err != nil {
		return 0, 0, 0, apperr.Invalid("lng must be a number")
	}
	n = def
	if raw := c.Query("n"); raw != "" {
		if n, err = strconv.Atoi(raw); err != nil {
			return 0, 0, 0, apperr.Invalid("n must be an integer")
		}
	}
	return lat, lng, n, nil
}
