package handler

import (
	"net/http"

	"Meetzy/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChatHandler interface {
	ClearChat(c *gin.Context)
	ClearAllChats(c *gin.Context)
	DeleteChat(c *gin.Context)
	SetArchived(c *gin.Context)
	SetChatPinned(c *gin.Context)
	SetFavorite(c *gin.Context)
	SetMuted(c *gin.Context)
	LockChat(c *gin.Context)
	BlockUser(c *gin.Context)
	UnblockUser(c *gin.Context)
	UpdateDisappearing(c *gin.Context)
}

type chatHandler struct {
	state     *service.ChatState
	scheduler *service.DisappearingScheduler
	logger    *zap.Logger
}

func NewChatHandler(state *service.ChatState, scheduler *service.DisappearingScheduler, logger *zap.Logger) ChatHandler {
	return &chatHandler{
		state:     state,
		scheduler: scheduler,
		logger:    logger,
	}
}

type conversationRequest struct {
	ConversationKey string `json:"conversationKey"`
}

type flagRequest struct {
	ConversationKey string `json:"conversationKey"`
	Value           bool   `json:"value"`
}

func (h *chatHandler) bindConversation(c *gin.Context) (string, string, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return "", "", false
	}
	var req conversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConversationKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CONVERSATION_KEY_REQUIRED"})
		return "", "", false
	}
	return userID, req.ConversationKey, true
}

func (h *chatHandler) bindFlag(c *gin.Context) (string, flagRequest, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return "", flagRequest{}, false
	}
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConversationKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CONVERSATION_KEY_REQUIRED"})
		return "", flagRequest{}, false
	}
	return userID, req, true
}

func (h *chatHandler) ClearChat(c *gin.Context) {
	userID, key, ok := h.bindConversation(c)
	if !ok {
		return
	}
	if err := h.state.ClearChat(c.Request.Context(), userID, key); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": key})
}

func (h *chatHandler) ClearAllChats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.state.ClearAllChats(c.Request.Context(), userID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": "all"})
}

func (h *chatHandler) DeleteChat(c *gin.Context) {
	userID, key, ok := h.bindConversation(c)
	if !ok {
		return
	}
	if err := h.state.DeleteChat(c.Request.Context(), userID, key); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": key})
}

func (h *chatHandler) SetArchived(c *gin.Context) {
	userID, req, ok := h.bindFlag(c)
	if !ok {
		return
	}
	if err := h.state.SetArchived(c.Request.Context(), userID, req.ConversationKey, req.Value); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": req.Value})
}

func (h *chatHandler) SetChatPinned(c *gin.Context) {
	userID, req, ok := h.bindFlag(c)
	if !ok {
		return
	}
	if err := h.state.SetChatPinned(c.Request.Context(), userID, req.ConversationKey, req.Value); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": req.Value})
}

func (h *chatHandler) SetFavorite(c *gin.Context) {
	userID, req, ok := h.bindFlag(c)
	if !ok {
		return
	}
	if err := h.state.SetFavorite(c.Request.Context(), userID, req.ConversationKey, req.Value); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": req.Value})
}

func (h *chatHandler) SetMuted(c *gin.Context) {
	userID, req, ok := h.bindFlag(c)
	if !ok {
		return
	}
	if err := h.state.SetMuted(c.Request.Context(), userID, req.ConversationKey, req.Value); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": req.Value})
}

type lockRequest struct {
	ConversationKey string `json:"conversationKey"`
	Pin             string `json:"pin"`
}

func (h *chatHandler) LockChat(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConversationKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CONVERSATION_KEY_REQUIRED"})
		return
	}
	if err := h.state.LockChat(c.Request.Context(), userID, req.ConversationKey, req.Pin); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": req.Pin != ""})
}

type blockRequest struct {
	UserID string `json:"userId"`
}

func (h *chatHandler) BlockUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_BODY"})
		return
	}
	if err := h.state.Block(c.Request.Context(), userID, req.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": req.UserID})
}

func (h *chatHandler) UnblockUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_BODY"})
		return
	}
	if err := h.state.Unblock(c.Request.Context(), userID, req.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unblocked": req.UserID})
}

type disappearingRequest struct {
	ConversationKey string `json:"conversationKey"`
	Enabled         bool   `json:"enabled"`
	Duration        string `json:"duration"`
}

func (h *chatHandler) UpdateDisappearing(c *gin.Context) {
	_, ok := currentUser(c)
	if !ok {
		return
	}
	var req disappearingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConversationKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CONVERSATION_KEY_REQUIRED"})
		return
	}
	setting, err := h.scheduler.UpdateSetting(c.Request.Context(), req.ConversationKey, req.Enabled, req.Duration)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}
