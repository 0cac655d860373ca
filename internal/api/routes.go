package api

import (
	"slices"

	"estate/server/config"
	"estate/server/internal/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with its middleware and routes.
func NewRouter(handler *Handler, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(handler.logger))

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
	}
	if len(cfg.CORSOrigins) == 0 || slices.Contains(cfg.CORSOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	router.Use(cors.New(corsConfig))
	router.Use(auth.Middleware(cfg.JWTSecret))

	SetupRoutes(router, handler)
	return router
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.POST("/auth/token", handler.IssueToken)

		properties := api.Group("/properties")
		properties.POST("", handler.CreateProperty)
		properties.GET("", handler.ListProperties)
		properties.GET("/geojson", handler.GetPropertiesGeoJSON)
		properties.POST("/import", handler.ImportProperties)
		properties.GET("/:id", handler.GetProperty)
		properties.PATCH("/:id", handler.UpdateProperty)
		properties.DELETE("/:id", handler.DeleteProperty)
		properties.POST("/:id/duplicate", handler.DuplicateProperty)
		properties.POST("/:id/cancel", handler.CancelProperty)
		properties.POST("/:id/sold", handler.MarkPropertySold)
		properties.GET("/:id/offers", handler.ListPropertyOffers)
		properties.GET("/:id/audit", handler.GetPropertyAudit)

		offers := api.Group("/offers")
		offers.POST("", handler.CreateOffer)
		offers.GET("/:id", handler.GetOffer)
		offers.PATCH("/:id", handler.UpdateOffer)
		offers.DELETE("/:id", handler.DeleteOffer)
		offers.POST("/:id/accept", handler.AcceptOffer)

		api.POST("/property-types", handler.CreatePropertyType)
		api.GET("/property-types", handler.ListPropertyTypes)
		api.POST("/tags", handler.CreateTag)
		api.GET("/tags", handler.ListTags)
		api.POST("/partners", handler.CreatePartner)
		api.GET("/partners", handler.ListPartners)
		api.POST("/users", handler.CreateUser)
		api.GET("/users", handler.ListUsers)
	}
}
