package handler

import (
	"net/http"
	"strconv"

	"Meetzy/internal/model"
	"Meetzy/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type MessageHandler interface {
	SendMessage(c *gin.Context)
	GetFeed(c *gin.Context)
	MarkRead(c *gin.Context)
	ToggleStar(c *gin.Context)
	ToggleReaction(c *gin.Context)
	EditMessage(c *gin.Context)
	PinMessage(c *gin.Context)
	UnpinMessage(c *gin.Context)
	DeleteMessage(c *gin.Context)
	ForwardMessage(c *gin.Context)
}

type messageHandler struct {
	dispatcher *service.DeliveryDispatcher
	ledger     *service.ActionLedger
	visibility *service.VisibilityFilter
	receipts   *service.ReadReceipts
	logger     *zap.Logger
}

func NewMessageHandler(
	dispatcher *service.DeliveryDispatcher,
	ledger *service.ActionLedger,
	visibility *service.VisibilityFilter,
	receipts *service.ReadReceipts,
	logger *zap.Logger,
) MessageHandler {
	return &messageHandler{
		dispatcher: dispatcher,
		ledger:     ledger,
		visibility: visibility,
		receipts:   receipts,
		logger:     logger,
	}
}

type sendMessageRequest struct {
	RecipientID string              `json:"recipientId"`
	GroupID     string              `json:"groupId"`
	BroadcastID string              `json:"broadcastId"`
	Type        string              `json:"type"`
	Content     *string             `json:"content"`
	Files       []model.FileRef     `json:"files"`
	ParentID    *primitive.ObjectID `json:"parentId"`
	Mentions    []string            `json:"mentions"`
	Metadata    map[string]any      `json:"metadata"`
	IsEncrypted bool                `json:"isEncrypted"`
}

func (h *messageHandler) SendMessage(c *gin.Context) {
	senderID, ok := currentUser(c)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_BODY"})
		return
	}

	result, err := h.dispatcher.Send(c.Request.Context(), service.SendInput{
		SenderID: senderID,
		Target: service.SendTarget{
			RecipientID: req.RecipientID,
			GroupID:     req.GroupID,
			BroadcastID: req.BroadcastID,
		},
		Type:        req.Type,
		Content:     req.Content,
		Files:       req.Files,
		ParentID:    req.ParentID,
		Mentions:    req.Mentions,
		Metadata:    req.Metadata,
		IsEncrypted: req.IsEncrypted,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *messageHandler) GetFeed(c *gin.Context) {
	viewerID, ok := currentUser(c)
	if !ok {
		return
	}

	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "0"), 10, 64)

	page, err := h.visibility.Fetch(c.Request.Context(), service.FeedRequest{
		ViewerID: viewerID,
		Target: service.SendTarget{
			RecipientID: c.Query("recipientId"),
			GroupID:     c.Query("groupId"),
			BroadcastID: c.Query("broadcastId"),
		},
		IsAnnouncement: c.Query("announcement") == "true",
		Offset:         offset,
		Limit:          limit,
		LockPin:        lockPin(c),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// lockPin extracts the unlock attempt for a locked conversation. The pin
// query parameter is authoritative; the X-Chat-Pin header is a fallback so
// the pin can stay out of access logs.
func lockPin(c *gin.Context) string {
	if pin := c.Query("pin"); pin != "" {
		return pin
	}
	return c.GetHeader("X-Chat-Pin")
}

type markReadRequest struct {
	MessageIDs []string `json:"messageIds"`
}

func (h *messageHandler) MarkRead(c *gin.Context) {
	viewerID, ok := currentUser(c)
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_BODY"})
		return
	}

	ids := make([]primitive.ObjectID, 0, len(req.MessageIDs))
	for _, hex := range req.MessageIDs {
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_MESSAGE_ID"})
			return
		}
		ids = append(ids, id)
	}

	if err := h.receipts.MarkSeen(c.Request.Context(), viewerID, ids); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"read": len(ids)})
}

func (h *messageHandler) ToggleStar(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := messageID(c)
	if !ok {
		return
	}

	outcome, err := h.ledger.ToggleStar(c.Request.Context(), actorID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type reactionRequest struct {
	Emoji string `json:"emoji"`
}

func (h *messageHandler) ToggleReaction(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := messageID(c)
	if !ok {
		return
	}

	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_BODY"})
		return
	}

	outcome, err := h.ledger.ToggleReaction(c.Request.Context(), actorID, id, req.Emoji)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type editRequest struct {
	Content string `json:"content"`
}

func (h *messageHandler) EditMessage(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := messageID(c)
	if !ok {
		return
	}

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_BODY"})
		return
	}

	outcome, err := h.ledger.RecordEdit(c.Request.Context(), actorID, id, req.Content)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *messageHandler) PinMessage(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := messageID(c)
	if !ok {
		return
	}

	outcome, err := h.ledger.RecordPin(c.Request.Context(), actorID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *messageHandler) UnpinMessage(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := messageID(c)
	if !ok {
		return
	}

	outcome, err := h.ledger.RecordUnpin(c.Request.Context(), actorID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *messageHandler) DeleteMessage(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := messageID(c)
	if !ok {
		return
	}

	scope := model.DeleteScope(c.DefaultQuery("scope", string(model.DeleteForMe)))

	outcome, err := h.ledger.RecordDelete(c.Request.Context(), actorID, id, scope)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type forwardRequest struct {
	To []string `json:"to"`
}

func (h *messageHandler) ForwardMessage(c *gin.Context) {
	actorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := messageID(c)
	if !ok {
		return
	}

	var req forwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_BODY"})
		return
	}

	// The ledger entry authorizes and records the forward; the copies are
	// then dispatched as fresh sends.
	if _, err := h.ledger.RecordForward(c.Request.Context(), actorID, id, req.To); err != nil {
		respondError(c, h.logger, err)
		return
	}

	result, err := h.dispatcher.Forward(c.Request.Context(), actorID, id, req.To)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
