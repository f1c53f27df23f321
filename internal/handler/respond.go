package handler

import (
	"errors"
	"net/http"

	"Meetzy/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// currentUser extracts the caller identity. Identity arrives pre-verified
// from the gateway; an absent header is a client error, not an auth failure.
func currentUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "USER_ID_REQUIRED",
		})
		return "", false
	}
	return userID, true
}

// respondError maps a service error onto the HTTP reply. Internal failures
// get a correlation id so the log line can be found without leaking the
// cause to the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := service.HTTPStatus(err)
	code := service.Code(err)

	if status == http.StatusInternalServerError {
		correlationID := uuid.New().String()
		logger.Error("request failed",
			zap.String("correlation_id", correlationID),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{
			"error":         "INTERNAL",
			"correlationId": correlationID,
		})
		return
	}

	var se *service.Error
	message := ""
	if errors.As(err, &se) {
		message = se.Message
	}
	c.JSON(status, gin.H{
		"error":   code,
		"message": message,
	})
}

// messageID parses the :messageId path parameter.
func messageID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "INVALID_MESSAGE_ID",
		})
		return primitive.NilObjectID, false
	}
	return id, true
}
