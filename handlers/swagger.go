package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the sync service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>tracksync — Swagger</title>
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

// Minimal OpenAPI document describing the sync and directory endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "tracksync", "version": "v0.1.0" },
  "paths": {
    "/api/v1/sync/users": {
      "post": {
        "summary": "Run one user reconciliation against the Trackimo API",
        "responses": {
          "200": { "description": "run completed (may include per-user errors)" },
          "401": { "description": "Trackimo authentication failed" },
          "409": { "description": "another sync run is in progress" },
          "500": { "description": "precondition fetch failed" }
        }
      }
    },
    "/api/v1/users": {
      "get": { "summary": "List reconciled users", "responses": { "200": { "description": "user list" } } }
    },
    "/api/v1/users/{nif}": {
      "get": { "summary": "Get one user", "responses": { "200": { "description": "user" }, "404": { "description": "unknown nif" } } },
      "put": { "summary": "Set the user plan (admin)", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"plan":{"type":"string"}}}}}}, "responses": { "200": { "description": "updated user" } } },
      "delete": { "summary": "Deactivate a user (soft delete)", "responses": { "200": { "description": "deactivated user" } } }
    },
    "/api/v1/users/{nif}/devices": {
      "get": { "summary": "List device projections for a user", "responses": { "200": { "description": "device list" } } }
    },
    "/api/v1/users/{nif}/changes": {
      "get": { "summary": "Read the audit trail for a user", "responses": { "200": { "description": "change log entries" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
