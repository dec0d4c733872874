package controllers

import (
	"cloudnest/services"
	"cloudnest/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AdminController struct {
	quota  *services.QuotaService
	shares *services.ShareService
}

func NewAdminController(quota *services.QuotaService, shares *services.ShareService) *AdminController {
	return &AdminController{quota: quota, shares: shares}
}

// ReconcileQuota recomputes every user's storage usage from their files.
func (ac *AdminController) ReconcileQuota(c *gin.Context) {
	updated, err := ac.quota.RecomputeAll(c.Request.Context())
	if err != nil {
		handleError(c, services.Internal("quota reconciliation failed", err))
		return
	}
	log.Info().Int("users", updated).Msg("Quota reconciled on request")
	utils.SuccessResponse(c, "Storage usage recomputed", gin.H{"users_updated": updated})
}

func (ac *AdminController) SweepShares(c *gin.Context) {
	removed, err := ac.shares.SweepExpired(c.Request.Context())
	if err != nil {
		handleError(c, services.Internal("share sweep failed", err))
		return
	}
	utils.SuccessResponse(c, "Expired share links removed", gin.H{"removed": removed})
}
