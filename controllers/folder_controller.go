package controllers

import (
	"cloudnest/models"
	"cloudnest/services"
	"cloudnest/utils"

	"github.com/gin-gonic/gin"
)

type FolderController struct {
	tree        *services.TreeService
	listing     *services.ListingService
	breadcrumbs *services.BreadcrumbResolver
	shares      *services.ShareService
}

func NewFolderController(tree *services.TreeService, listing *services.ListingService, breadcrumbs *services.BreadcrumbResolver, shares *services.ShareService) *FolderController {
	return &FolderController{
		tree:        tree,
		listing:     listing,
		breadcrumbs: breadcrumbs,
		shares:      shares,
	}
}

// CreateFolder handles POST /folders.
func (fc *FolderController) CreateFolder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req struct {
		Name     string  `json:"name" binding:"required"`
		ParentID *string `json:"parent_id,omitempty"`
	}
	if !bindJSON(c, &req) {
		return
	}

	folder, err := fc.tree.CreateFolder(c.Request.Context(), userID, req.Name, req.ParentID)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.CreatedResponse(c, "Folder created successfully", folder)
}

// ListRoot handles GET /folders: the caller's root listing.
func (fc *FolderController) ListRoot(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	listing, err := fc.listing.ListChildren(c.Request.Context(), userID, nil, c.Query("sort"), c.Query("order"))
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Folder contents retrieved", listing)
}

// GetFolder handles GET /folders/:id with the folder, its breadcrumb trail
// and its children.
func (fc *FolderController) GetFolder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	folderID := c.Param("id")

	folder, err := fc.tree.GetFolder(ctx, userID, folderID)
	if err != nil {
		handleError(c, err)
		return
	}

	crumbs, err := fc.breadcrumbs.ResolvePath(ctx, userID, &folderID)
	if err != nil {
		handleError(c, err)
		return
	}

	listing, err := fc.listing.ListChildren(ctx, userID, &folderID, c.Query("sort"), c.Query("order"))
	if err != nil {
		handleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Folder retrieved", gin.H{
		"folder":      folder,
		"breadcrumbs": crumbs,
		"folders":     listing.Folders,
		"files":       listing.Files,
	})
}

// Breadcrumbs handles GET /folders/:id/breadcrumbs.
func (fc *FolderController) Breadcrumbs(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	folderID := c.Param("id")
	crumbs, err := fc.breadcrumbs.ResolvePath(c.Request.Context(), userID, &folderID)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Breadcrumbs retrieved", crumbs)
}

// UpdateFolder handles PATCH /folders/:id. An omitted parent_id keeps the
// folder where it is; an empty one moves it to the root.
func (fc *FolderController) UpdateFolder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req struct {
		Name     string  `json:"name,omitempty"`
		ParentID *string `json:"parent_id,omitempty"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == "" && req.ParentID == nil {
		utils.BadRequestResponse(c, "Nothing to update", nil)
		return
	}

	folder, err := fc.tree.RenameOrMoveFolder(c.Request.Context(), userID, c.Param("id"), req.Name, req.ParentID)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Folder updated successfully", folder)
}

// DeleteFolder handles DELETE /folders/:id. Only empty folders can go.
func (fc *FolderController) DeleteFolder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	folder, err := fc.tree.DeleteFolder(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Folder deleted successfully", folder)
}

func (fc *FolderController) ShareFolder(c *gin.Context) {
	issueShare(c, fc.shares, models.TargetFolder)
}

func (fc *FolderController) UnshareFolder(c *gin.Context) {
	revokeShare(c, fc.shares, models.TargetFolder)
}
