package routes

import (
	"cloudnest/controllers"
	"cloudnest/middleware"
	"cloudnest/models"

	"github.com/gin-gonic/gin"
)

func RegisterAdminRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	adminController := controllers.NewAdminController(container.Quota, container.Shares)

	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(container.JWTSecret), middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/quota/reconcile", adminController.ReconcileQuota)
		admin.POST("/shares/sweep", adminController.SweepShares)
	}
}
