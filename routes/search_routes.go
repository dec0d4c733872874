package routes

import (
	"cloudnest/controllers"
	"cloudnest/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterSearchRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	searchController := controllers.NewSearchController(container.Search)

	search := rg.Group("/search")
	search.Use(middleware.AuthMiddleware(container.JWTSecret))
	{
		search.GET("", searchController.Search) // GET /search?q=term&limit=50
	}
}
