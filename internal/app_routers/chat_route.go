package approuters

import (
	"Meetzy/internal/configuration"

	"github.com/gin-gonic/gin"
)

// ChatRouters sets up the per-conversation state routes
func ChatRouters(router *gin.Engine, container *configuration.Container) {
	h := container.ChatHandler

	chats := router.Group("/mz/api/chats")
	{
		chats.POST("/clear", h.ClearChat)
		chats.POST("/clear-all", h.ClearAllChats)
		chats.POST("/delete", h.DeleteChat)
		chats.PUT("/archive", h.SetArchived)
		chats.PUT("/pin", h.SetChatPinned)
		chats.PUT("/favorite", h.SetFavorite)
		chats.PUT("/mute", h.SetMuted)
		chats.PUT("/lock", h.LockChat)
		chats.PUT("/disappearing", h.UpdateDisappearing)
		chats.POST("/block", h.BlockUser)
		chats.POST("/unblock", h.UnblockUser)
	}
}
