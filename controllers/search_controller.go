package controllers

import (
	"cloudnest/services"
	"cloudnest/utils"

	"github.com/gin-gonic/gin"
)

type SearchController struct {
	search *services.SearchService
}

func NewSearchController(search *services.SearchService) *SearchController {
	return &SearchController{search: search}
}

// Search handles GET /search?q=...&limit=...
func (sc *SearchController) Search(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := sc.search.Search(c.Request.Context(), userID, c.Query("q"), queryLimit(c))
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Search completed", result)
}
