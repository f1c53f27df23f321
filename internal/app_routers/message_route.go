package approuters

import (
	"Meetzy/internal/configuration"

	"github.com/gin-gonic/gin"
)

// MessageRouters sets up the message API routes
func MessageRouters(router *gin.Engine, container *configuration.Container) {
	h := container.MessageHandler

	messages := router.Group("/mz/api/messages")
	{
		messages.POST("", h.SendMessage)
		messages.GET("", h.GetFeed)
		messages.POST("/read", h.MarkRead)

		messages.POST("/:messageId/star", h.ToggleStar)
		messages.POST("/:messageId/reaction", h.ToggleReaction)
		messages.PATCH("/:messageId", h.EditMessage)
		messages.POST("/:messageId/pin", h.PinMessage)
		messages.DELETE("/:messageId/pin", h.UnpinMessage)
		messages.DELETE("/:messageId", h.DeleteMessage)
		messages.POST("/:messageId/forward", h.ForwardMessage)
	}
}
