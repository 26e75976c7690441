package server

import (
	"github.com/labstack/echo/v4"

	"github.com/trellis-kg/trellis/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api")

	// Ingestion routes
	apiRoutes.POST("/datasets/:dataset/documents", routes.IngestDocumentsHandler)
	apiRoutes.GET("/runs/:id", routes.GetRunHandler)

	// Retrieval routes
	apiRoutes.POST("/search", routes.SearchHandler)
}
