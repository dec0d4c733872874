package routes

import (
	"cloudnest/controllers"
	"cloudnest/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterShareRoutes registers the anonymous share-link endpoints and the
// owner's listing. Owners create and revoke links under /folders and /files.
func RegisterShareRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	shareController := controllers.NewShareController(container.Shares, container.Listing, container.Uploads)

	owned := rg.Group("/shares")
	owned.Use(middleware.AuthMiddleware(container.JWTSecret))
	{
		owned.GET("", shareController.ListShares)
	}

	public := rg.Group("/public/shares")
	public.Use(middleware.RateLimit(container.Limiter, "share"))
	{
		public.GET("/:token", shareController.ResolveShare)
		public.GET("/:token/download", shareController.DownloadShare)
	}
}
