package router

import (
	"myGreenStorefront/internal/middleware"
	"myGreenStorefront/internal/rest"

	"github.com/labstack/echo/v4"
)

func SetupPersonalizationRoutes(api *echo.Group, handler *rest.PersonalizationHandler) {
	p := api.Group("/personalization", middleware.SessionMiddleware())

	p.POST("/events", handler.RecordEvent)
	p.POST("/feedback", handler.RecordFeedback)
	p.POST("/impressions", handler.RecordImpressions)
	p.POST("/clicks", handler.RecordClick)

	p.GET("/score/:product_id", handler.Score)
	p.GET("/recommendations", handler.Recommendations)
	p.GET("/sections", handler.Sections)
	p.GET("/profile", handler.Profile)
	p.GET("/history", handler.History)
	p.GET("/metrics", handler.Metrics)

	p.GET("/settings", handler.GetSettings)
	p.PUT("/settings", handler.UpdateSettings)
	p.DELETE("", handler.Clear)
}
