package routes

import (
	"cloudnest/controllers"
	"cloudnest/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterFolderRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	folderController := controllers.NewFolderController(container.Tree, container.Listing, container.Breadcrumbs, container.Shares)

	folders := rg.Group("/folders")
	folders.Use(middleware.AuthMiddleware(container.JWTSecret))
	{
		folders.POST("", folderController.CreateFolder)               // POST /folders
		folders.GET("", folderController.ListRoot)                    // GET /folders?sort=name&order=asc
		folders.GET("/:id", folderController.GetFolder)               // GET /folders/:id
		folders.GET("/:id/breadcrumbs", folderController.Breadcrumbs) // GET /folders/:id/breadcrumbs
		folders.PATCH("/:id", folderController.UpdateFolder)          // PATCH /folders/:id (rename and/or move)
		folders.DELETE("/:id", folderController.DeleteFolder)         // DELETE /folders/:id (empty folders only)
		folders.POST("/:id/share", folderController.ShareFolder)      // POST /folders/:id/share
		folders.DELETE("/:id/share", folderController.UnshareFolder)  // DELETE /folders/:id/share
	}
}
