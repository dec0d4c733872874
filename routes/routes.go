package routes

import (
	"cloudnest/media"
	"cloudnest/middleware"
	"cloudnest/ratelimit"
	"cloudnest/repository"
	"cloudnest/services"
	"cloudnest/storage"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ServiceContainer holds all services and dependencies the routes need.
type ServiceContainer struct {
	JWTSecret    string
	CookieSecure bool

	Auth        *services.AuthService
	Tree        *services.TreeService
	Listing     *services.ListingService
	Breadcrumbs *services.BreadcrumbResolver
	Quota       *services.QuotaService
	Shares      *services.ShareService
	Uploads     *services.UploadService
	Search      *services.SearchService
	Limiter     ratelimit.Limiter
}

// Dependencies are the backends the services are built on.
type Dependencies struct {
	Store     *repository.Store
	Objects   storage.ObjectStorage
	Inspector media.Inspector
	Limiter   ratelimit.Limiter

	Auth         services.AuthConfig
	MaxFileSize  int64
	CookieSecure bool
}

// NewServiceContainer wires every service onto the given backends.
func NewServiceContainer(deps Dependencies) *ServiceContainer {
	quota := services.NewQuotaService(deps.Store.Users)
	shares := services.NewShareService(deps.Store)
	breadcrumbs := services.NewBreadcrumbResolver(deps.Store.Folders)
	tree := services.NewTreeService(deps.Store, deps.Objects, quota, shares)

	return &ServiceContainer{
		JWTSecret:    deps.Auth.JWTSecret,
		CookieSecure: deps.CookieSecure,
		Auth:         services.NewAuthService(deps.Store.Users, deps.Auth),
		Tree:         tree,
		Listing:      services.NewListingService(deps.Store, shares),
		Breadcrumbs:  breadcrumbs,
		Quota:        quota,
		Shares:       shares,
		Uploads:      services.NewUploadService(deps.Store, tree, quota, deps.Objects, deps.Inspector, deps.MaxFileSize),
		Search:       services.NewSearchService(deps.Store),
		Limiter:      deps.Limiter,
	}
}

// SetupRoutes configures all API routes on the given group.
func SetupRoutes(api *gin.RouterGroup, container *ServiceContainer) {
	RegisterAuthRoutes(api, container)
	RegisterFolderRoutes(api, container)
	RegisterFileRoutes(api, container)
	RegisterSearchRoutes(api, container)
	RegisterShareRoutes(api, container)
	RegisterAdminRoutes(api, container)
}

// NewRouter builds the gin engine: middleware, /health and /api.
func NewRouter(container *ServiceContainer, allowedOrigins []string, maxMultipartMemory int64) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(allowedOrigins))
	if maxMultipartMemory > 0 {
		router.MaxMultipartMemory = maxMultipartMemory
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	api := router.Group("/api")
	SetupRoutes(api, container)

	return router
}
