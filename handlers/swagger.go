package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})
	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>traillog API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "traillog", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" } },
    "schemas": {
      "Credentials": { "type": "object", "properties": { "username": {"type":"string"}, "password": {"type":"string"} } },
      "Register": { "type": "object", "properties": { "username": {"type":"string"}, "email": {"type":"string"}, "password": {"type":"string"} } },
      "Refresh": { "type": "object", "properties": { "refreshToken": {"type":"string"} } },
      "Coordinates": { "type": "object", "properties": { "lat": {"type":"number"}, "lng": {"type":"number"} } },
      "TripInput": { "type": "object", "properties": { "title": {"type":"string"}, "description": {"type":"string"}, "start": {"$ref":"#/components/schemas/Coordinates"}, "end": {"$ref":"#/components/schemas/Coordinates"}, "durationMinutes": {"type":"integer"} } },
      "RestaurantInput": { "type": "object", "properties": { "name": {"type":"string"}, "cuisine": {"type":"string"}, "address": {"type":"string"}, "lat": {"type":"number"}, "lng": {"type":"number"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/auth/register": { "post": { "summary": "Create an account", "security": [], "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Register"} } } }, "responses": { "201": { "description": "tokens and user" }, "409": { "description": "username taken" } } } },
    "/auth/login": { "post": { "summary": "Password login", "security": [], "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Credentials"} } } }, "responses": { "200": { "description": "tokens and user" }, "401": { "description": "invalid credentials" } } } },
    "/auth/refresh": { "post": { "summary": "Refresh access token", "security": [], "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Refresh"} } } }, "responses": { "200": { "description": "new access token and rotated refresh token" }, "401": { "description": "invalid refresh" } } } },
    "/auth/logout": { "post": { "summary": "Invalidate refresh token and revoke the bearer token", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Refresh"} } } }, "responses": { "200": { "description": "logged out" } } } },
    "/api/v1/me": { "get": { "summary": "Current user", "responses": { "200": { "description": "user" } } } },
    "/api/v1/users/{id}": {
      "get": { "summary": "Get a user", "responses": { "200": { "description": "user" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete an account, its trips move to the sentinel user", "responses": { "204": { "description": "deleted" }, "403": { "description": "forbidden" } } }
    },
    "/api/v1/users/{id}/follow/{tripId}": {
      "post": { "summary": "Follow a trip", "responses": { "200": { "description": "user" } } },
      "delete": { "summary": "Unfollow a trip", "responses": { "200": { "description": "user" } } }
    },
    "/api/v1/trips": {
      "get": { "summary": "List trips, optionally by ?creator=", "responses": { "200": { "description": "trips" } } },
      "post": { "summary": "Create a trip", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/TripInput"} } } }, "responses": { "201": { "description": "trip" } } }
    },
    "/api/v1/trips/nearby": { "get": { "summary": "Trips closest to ?lat&lng, at most ?n", "responses": { "200": { "description": "trips" } } } },
    "/api/v1/trips/{id}": {
      "get": { "summary": "Get a trip", "responses": { "200": { "description": "trip" }, "404": { "description": "not found" } } },
      "put": { "summary": "Update a trip", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/TripInput"} } } }, "responses": { "200": { "description": "trip" }, "403": { "description": "not the creator" } } },
      "delete": { "summary": "Delete a trip", "responses": { "204": { "description": "deleted" } } }
    },
    "/api/v1/trips/{id}/images": { "post": { "summary": "Upload an image (multipart field image)", "responses": { "201": { "description": "trip" }, "503": { "description": "storage not configured" } } } },
    "/api/v1/trips/{id}/images/url": { "get": { "summary": "Presigned URL of image ?key", "responses": { "200": { "description": "url" } } } },
    "/api/v1/trips/{id}/closest-restaurant": { "get": { "summary": "Restaurant closest to the trip midpoint", "responses": { "200": { "description": "restaurant" }, "404": { "description": "none" } } } },
    "/api/v1/restaurants": {
      "get": { "summary": "List restaurants", "responses": { "200": { "description": "restaurants" } } },
      "post": { "summary": "Create a restaurant", "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/RestaurantInput"} } } }, "responses": { "201": { "description": "restaurant" } } }
    },
    "/api/v1/restaurants/nearest": { "get": { "summary": "Restaurants closest to ?lat&lng, at most ?n", "responses": { "200": { "description": "restaurants" } } } },
    "/api/v1/restaurants/{id}": {
      "get": { "summary": "Get a restaurant", "responses": { "200": { "description": "restaurant" } } },
      "delete": { "summary": "Delete a restaurant", "responses": { "204": { "description": "deleted" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
