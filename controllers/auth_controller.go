package controllers

import (
	"cloudnest/middleware"
	"cloudnest/services"
	"cloudnest/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	auth         *services.AuthService
	quota        *services.QuotaService
	cookieSecure bool
}

func NewAuthController(auth *services.AuthService, quota *services.QuotaService, cookieSecure bool) *AuthController {
	return &AuthController{auth: auth, quota: quota, cookieSecure: cookieSecure}
}

func (ac *AuthController) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookieName, token, maxAge, "/", "", ac.cookieSecure, true)
}

func (ac *AuthController) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Name     string `json:"name" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	user, err := ac.auth.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.CreatedResponse(c, "Account created successfully", user)
}

func (ac *AuthController) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	token, user, err := ac.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}

	ac.setSessionCookie(c, token, int(ac.auth.TokenTTL().Seconds()))
	utils.SuccessResponse(c, "Login successful", gin.H{
		"token": token,
		"user":  user,
	})
}

func (ac *AuthController) Logout(c *gin.Context) {
	ac.setSessionCookie(c, "", -1)
	utils.SuccessResponse(c, "Logged out", nil)
}

func (ac *AuthController) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := ac.auth.Profile(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Profile retrieved", user)
}

func (ac *AuthController) Quota(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	status, err := ac.quota.Status(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	utils.SuccessResponse(c, "Storage usage retrieved", status)
}
