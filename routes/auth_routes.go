package routes

import (
	"cloudnest/controllers"
	"cloudnest/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterAuthRoutes(rg *gin.RouterGroup, container *ServiceContainer) {
	authController := controllers.NewAuthController(container.Auth, container.Quota, container.CookieSecure)
	limited := middleware.RateLimit(container.Limiter, "auth")

	auth := rg.Group("/auth")
	{
		auth.POST("/register", limited, authController.Register)
		auth.POST("/login", limited, authController.Login)
		auth.POST("/logout", authController.Logout)

		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(container.JWTSecret))
		{
			protected.GET("/me", authController.Me)       // GET /auth/me
			protected.GET("/quota", authController.Quota) // GET /auth/quota
		}
	}
}
