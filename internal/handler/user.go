package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
	"github.com/AnupamNeon/Chat-app/internal/middleware"
	"github.com/AnupamNeon/Chat-app/internal/service"
	"github.com/AnupamNeon/Chat-app/pkg/response"
)

// UserHandler exposes the sidebar and profile endpoints.
type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Sidebar lists every other user with unread counts and last messages.
func (h *UserHandler) Sidebar(c *gin.Context) {
	entries, err := h.userService.Sidebar(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	user, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}

// UpdateStatus flips the caller's own presence flag.
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		IsOnline *bool `json:"isOnline" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Wrap(apperr.KindInvalidArgument, "invalid request body", err))
		return
	}

	user, err := h.userService.UpdateStatus(c.Request.Context(), middleware.GetUserID(c), *req.IsOnline)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user)
}
