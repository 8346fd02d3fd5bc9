package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
	"github.com/AnupamNeon/Chat-app/internal/middleware"
	"github.com/AnupamNeon/Chat-app/internal/service"
	"github.com/AnupamNeon/Chat-app/pkg/response"
)

// MessageHandler exposes the thread, send, read receipt and search
// endpoints.
type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// List serves one ascending page of the thread with the peer in the
// path.
func (h *MessageHandler) List(c *gin.Context) {
	peerID, ok := pathID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	pageData, err := h.messageService.List(c.Request.Context(), middleware.GetUserID(c), peerID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pageData)
}

func (h *MessageHandler) Send(c *gin.Context) {
	peerID, ok := pathID(c)
	if !ok {
		return
	}
	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperr.Wrap(apperr.KindInvalidArgument, "invalid request body", err))
		return
	}

	msg, err := h.messageService.Send(c.Request.Context(), middleware.GetUserID(c), peerID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, msg)
}

// MarkRead flips the message in the path to read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, ok := pathID(c)
	if !ok {
		return
	}

	msg, err := h.messageService.MarkRead(c.Request.Context(), middleware.GetUserID(c), messageID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, msg)
}

// MarkAllRead clears the unread count against the peer in the path.
func (h *MessageHandler) MarkAllRead(c *gin.Context) {
	peerID, ok := pathID(c)
	if !ok {
		return
	}

	count, err := h.messageService.MarkAllRead(c.Request.Context(), middleware.GetUserID(c), peerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "messages marked as read", "count": count})
}

func (h *MessageHandler) Search(c *gin.Context) {
	results, err := h.messageService.Search(c.Request.Context(), middleware.GetUserID(c), c.Query("query"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results)
}

// pathID parses the :id path segment, answering the request itself on
// bad input.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, apperr.New(apperr.KindInvalidArgument, "invalid id"))
		return 0, false
	}
	return id, true
}
