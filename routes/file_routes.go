package routes

import (
	"cloudnest/controllers"
	"cloudnest/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterFileRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	fileController := controllers.NewFileController(container.Tree, container.Uploads, container.Shares)

	files := rg.Group("/files")
	files.Use(middleware.AuthMiddleware(container.JWTSecret))
	{
		files.POST("/upload", fileController.UploadFiles)       // POST /files/upload (files[], relativePath[], folder_id)
		files.GET("/:id", fileController.GetFile)               // GET /files/:id
		files.PATCH("/:id", fileController.UpdateFile)          // PATCH /files/:id (rename and/or move)
		files.DELETE("/:id", fileController.DeleteFile)         // DELETE /files/:id
		files.GET("/:id/download", fileController.DownloadFile) // GET /files/:id/download
		files.GET("/:id/preview", fileController.PreviewFile)   // GET /files/:id/preview
		files.GET("/:id/thumbnail", fileController.Thumbnail)   // GET /files/:id/thumbnail
		files.POST("/:id/share", fileController.ShareFile)      // POST /files/:id/share
		files.DELETE("/:id/share", fileController.UnshareFile)  // DELETE /files/:id/share
	}
}
