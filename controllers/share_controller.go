package controllers

import (
	"cloudnest/models"
	"cloudnest/services"
	"cloudnest/utils"

	"github.com/gin-gonic/gin"
)

// ShareController serves the anonymous side of share links and the owner's
// list of them.
type ShareController struct {
	shares  *services.ShareService
	listing *services.ListingService
	uploads *services.UploadService
}

func NewShareController(shares *services.ShareService, listing *services.ListingService, uploads *services.UploadService) *ShareController {
	return &ShareController{shares: shares, listing: listing, uploads: uploads}
}

// ListShares handles GET /shares: the caller's links, newest first. The
// optional type query narrows it to file or folder links.
func (sc *ShareController) ListShares(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	items, err := sc.shares.ListOwned(c.Request.Context(), userID, models.TargetType(c.Query("type")))
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Shared items retrieved", gin.H{
		"shares": items,
		"count":  len(items),
	})
}

// ResolveShare handles GET /public/shares/:token. Every call counts as one
// access. Folder shares include the folder's immediate children.
func (sc *ShareController) ResolveShare(c *gin.Context) {
	ctx := c.Request.Context()

	resolved, err := sc.shares.Resolve(ctx, c.Param("token"))
	if err != nil {
		handleError(c, err)
		return
	}

	data := gin.H{
		"owner":       resolved.Owner,
		"target_type": resolved.Link.TargetType,
		"expires_at":  resolved.Link.ExpiresAt,
	}

	if resolved.File != nil {
		data["file"] = resolved.File
		utils.SuccessResponse(c, "Shared file retrieved", data)
		return
	}

	folderID := resolved.Folder.ID
	listing, err := sc.listing.ListChildren(ctx, resolved.Link.OwnerID, &folderID, c.Query("sort"), c.Query("order"))
	if err != nil {
		handleError(c, err)
		return
	}
	// children carry the owner's own share tokens; visitors only get the
	// one they came with
	for i := range listing.Folders {
		listing.Folders[i].ShareToken = ""
	}
	for i := range listing.Files {
		listing.Files[i].ShareToken = ""
	}

	data["folder"] = resolved.Folder
	data["folders"] = listing.Folders
	data["files"] = listing.Files
	utils.SuccessResponse(c, "Shared folder retrieved", data)
}

// DownloadShare handles GET /public/shares/:token/download for file shares.
// The download consumes one access.
func (sc *ShareController) DownloadShare(c *gin.Context) {
	ctx := c.Request.Context()

	resolved, err := sc.shares.Resolve(ctx, c.Param("token"))
	if err != nil {
		handleError(c, err)
		return
	}
	if resolved.Link.TargetType != models.TargetFile {
		utils.BadRequestResponse(c, "Only shared files can be downloaded", nil)
		return
	}

	file, rc, err := sc.uploads.Open(ctx, resolved.Link.OwnerID, resolved.File.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()

	serveContent(c, file, rc, "attachment")
}
