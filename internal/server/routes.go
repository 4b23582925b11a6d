package server

import (
	"github.com/MohammadH3218/encryptgate-copilot/internal/server/middleware"
	"github.com/MohammadH3218/encryptgate-copilot/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Question routes
	apiRoutes.POST("/questions", routes.AskQuestionHandler)
	apiRoutes.POST("/questions/stream", routes.AskQuestionStreamHandler)

	// Message routes
	apiRoutes.POST("/messages", routes.IngestMessageHandler)
	apiRoutes.POST("/messages/context-score", routes.ContextScoreHandler)
}
