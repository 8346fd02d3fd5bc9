package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
	"github.com/AnupamNeon/Chat-app/internal/middleware"
	"github.com/AnupamNeon/Chat-app/internal/service"
	"github.com/AnupamNeon/Chat-app/pkg/response"
)

// AuthHandler exposes signup, login, logout and profile endpoints.
type AuthHandler struct {
	authService  *service.AuthService
	cookieMaxAge time.Duration
	cookieSecure bool
}

func NewAuthHandler(authService *service.AuthService, cookieMaxAge time.Duration, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieMaxAge: cookieMaxAge,
		cookieSecure: cookieSecure,
	}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req service.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Wrap(apperr.KindInvalidArgument, "invalid request body", err))
		return
	}

	user, token, err := h.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookie(c, token)
	response.JSON(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Wrap(apperr.KindInvalidArgument, "invalid request body", err))
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setSessionCookie(c, token)
	response.JSON(c, http.StatusOK, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.GetUserID(c)
	token := middleware.GetToken(c)
	if err := h.authService.Logout(c.Request.Context(), userID, token); err != nil {
		response.Error(c, err)
		return
	}

	h.clearSessionCookie(c)
	response.Message(c, http.StatusOK, "logged out successfully")
}

func (h *AuthHandler) Check(c *gin.Context) {
	user, err := h.authService.Check(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Wrap(apperr.KindInvalidArgument, "invalid request body", err))
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookie, token, int(h.cookieMaxAge.Seconds()), "/", "", h.cookieSecure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.cookieSecure, true)
}
