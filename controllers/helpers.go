package controllers

import (
	"cloudnest/middleware"
	"cloudnest/models"
	"cloudnest/services"
	"cloudnest/utils"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// requireUser returns the authenticated caller or writes a 401.
func requireUser(c *gin.Context) (string, bool) {
	userID := middleware.UserID(c)
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return "", false
	}
	return userID, true
}

// handleError maps a service error onto the response envelope. Internal
// errors are logged and reported without detail.
func handleError(c *gin.Context, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = services.Internal("unexpected error", err)
	}

	switch svcErr.Kind {
	case services.KindNotFound:
		utils.NotFoundResponse(c, svcErr.Message)
	case services.KindConflict:
		utils.ConflictResponse(c, svcErr.Message, nil)
	case services.KindNotEmpty:
		utils.ConflictResponse(c, svcErr.Message, gin.H{"code": "not_empty"})
	case services.KindBadRequest:
		utils.BadRequestResponse(c, svcErr.Message, nil)
	case services.KindForbidden:
		utils.ForbiddenResponse(c, svcErr.Message)
	case services.KindUnauthorized:
		utils.UnauthorizedResponse(c, svcErr.Message)
	case services.KindGone:
		utils.GoneResponse(c, svcErr.Message)
	case services.KindTooLarge:
		utils.PayloadTooLargeResponse(c, svcErr.Message)
	case services.KindLimitReached:
		if svcErr.Remaining != nil {
			utils.InsufficientStorageResponse(c, svcErr.Message, gin.H{"remaining": *svcErr.Remaining})
			return
		}
		utils.TooManyRequestsResponse(c, svcErr.Message)
	default:
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("user_id", middleware.UserID(c)).
			Msg("Request failed")
		utils.InternalServerErrorResponse(c, "Internal server error", nil)
	}
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, "Invalid request data", err.Error())
		return false
	}
	return true
}

func optionalID(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

type shareRequest struct {
	ExpiresIn string `json:"expires_in,omitempty"` // Go duration, e.g. "72h"
	MaxAccess *int64 `json:"max_access,omitempty"`
}

func (r shareRequest) options() (services.ShareOptions, error) {
	opts := services.ShareOptions{MaxAccess: r.MaxAccess}
	if r.ExpiresIn != "" {
		d, err := time.ParseDuration(r.ExpiresIn)
		if err != nil {
			return opts, fmt.Errorf("invalid expires_in: %w", err)
		}
		opts.ExpiresIn = &d
	}
	return opts, nil
}

// issueShare and revokeShare back the owner-side share endpoints of both
// folders and files.
func issueShare(c *gin.Context, shares *services.ShareService, targetType models.TargetType) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req shareRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	opts, err := req.options()
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	link, err := shares.Issue(c.Request.Context(), userID, targetType, c.Param("id"), opts)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Share link ready", link)
}

func revokeShare(c *gin.Context, shares *services.ShareService, targetType models.TargetType) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := shares.Revoke(c.Request.Context(), userID, targetType, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Share link revoked", nil)
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}
