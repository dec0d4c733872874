package controllers

import (
	"cloudnest/models"
	"cloudnest/services"
	"cloudnest/utils"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type FileController struct {
	tree    *services.TreeService
	uploads *services.UploadService
	shares  *services.ShareService
}

func NewFileController(tree *services.TreeService, uploads *services.UploadService, shares *services.ShareService) *FileController {
	return &FileController{tree: tree, uploads: uploads, shares: shares}
}

// UploadFiles handles POST /files/upload. The multipart form carries
// files[], an optional relativePath[] with one entry per file, and an
// optional folder_id.
func (fc *FileController) UploadFiles(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, "Invalid multipart form", nil)
		return
	}

	files := form.File["files[]"]
	relativePaths := form.Value["relativePath[]"]

	if len(files) == 0 {
		utils.BadRequestResponse(c, "No files provided", nil)
		return
	}
	if len(relativePaths) > 0 && len(files) != len(relativePaths) {
		utils.BadRequestResponse(c, "Files and relative paths count mismatch", nil)
		return
	}

	folderID := optionalID(c.PostForm("folder_id"))

	reqs := make([]services.UploadRequest, 0, len(files))
	for i, header := range files {
		f, err := header.Open()
		if err != nil {
			closeAll(reqs)
			utils.BadRequestResponse(c, "Failed to read uploaded file: "+header.Filename, nil)
			return
		}

		req := services.UploadRequest{
			OwnerID:  userID,
			FolderID: folderID,
			Filename: header.Filename,
			Content:  f,
			Size:     header.Size,
		}
		if len(relativePaths) > 0 {
			req.RelativePath = relativePaths[i]
		}
		reqs = append(reqs, req)
	}
	defer closeAll(reqs)

	uploaded, err := fc.uploads.UploadMany(c.Request.Context(), userID, reqs)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.CreatedResponse(c, "Files uploaded successfully", gin.H{
		"files": uploaded,
		"count": len(uploaded),
	})
}

func closeAll(reqs []services.UploadRequest) {
	for _, req := range reqs {
		if f, ok := req.Content.(multipart.File); ok {
			f.Close()
		}
	}
}

// GetFile handles GET /files/:id.
func (fc *FileController) GetFile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	file, err := fc.tree.GetFile(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "File retrieved", file)
}

// UpdateFile handles PATCH /files/:id. An omitted folder_id keeps the file
// where it is; an empty one moves it to the root.
func (fc *FileController) UpdateFile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req struct {
		Name     string  `json:"name,omitempty"`
		FolderID *string `json:"folder_id,omitempty"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if req.Name == "" && req.FolderID == nil {
		utils.BadRequestResponse(c, "Nothing to update", nil)
		return
	}

	file, err := fc.tree.RenameOrMoveFile(c.Request.Context(), userID, c.Param("id"), req.Name, req.FolderID)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "File updated successfully", file)
}

// DeleteFile handles DELETE /files/:id.
func (fc *FileController) DeleteFile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	file, err := fc.tree.DeleteFile(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "File deleted successfully", models.NewFileView(file))
}

// DownloadFile streams the content as an attachment.
func (fc *FileController) DownloadFile(c *gin.Context) {
	fc.stream(c, "attachment")
}

// PreviewFile streams the content for inline display.
func (fc *FileController) PreviewFile(c *gin.Context) {
	fc.stream(c, "inline")
}

func (fc *FileController) stream(c *gin.Context, disposition string) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	file, rc, err := fc.uploads.Open(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()

	serveContent(c, file, rc, disposition)
}

// Thumbnail handles GET /files/:id/thumbnail.
func (fc *FileController) Thumbnail(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	rc, err := fc.uploads.OpenThumbnail(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, -1, "image/jpeg", rc, nil)
}

func (fc *FileController) ShareFile(c *gin.Context) {
	issueShare(c, fc.shares, models.TargetFile)
}

func (fc *FileController) UnshareFile(c *gin.Context) {
	revokeShare(c, fc.shares, models.TargetFile)
}

// inlineSafe lists the types a browser may render from the API origin.
// Anything else is sent as an opaque download.
func inlineSafe(mimeType string) bool {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	switch {
	case base == "image/svg+xml":
		return false
	case strings.HasPrefix(base, "image/"), strings.HasPrefix(base, "video/"), strings.HasPrefix(base, "audio/"):
		return true
	default:
		return base == "application/pdf" || base == "text/plain"
	}
}

func serveContent(c *gin.Context, file *models.File, content io.Reader, disposition string) {
	contentType := file.MimeType
	if !inlineSafe(contentType) {
		disposition = "attachment"
		contentType = "application/octet-stream"
	}

	headers := map[string]string{
		"Content-Disposition":     fmt.Sprintf("%s; filename*=UTF-8''%s", disposition, url.PathEscape(file.OriginalName)),
		"Content-Security-Policy": "sandbox",
		"X-Content-Type-Options":  "nosniff",
	}
	c.DataFromReader(http.StatusOK, file.FileSize, contentType, content, headers)
	if len(c.Errors) > 0 {
		log.Warn().Str("file_id", file.ID).Str("errors", c.Errors.String()).Msg("File stream interrupted")
	}
}
