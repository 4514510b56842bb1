package handlers

import (
	"net/http"

	"bizportal/internal/database"
	"bizportal/internal/services"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	ConversationID string `json:"conversation_id" binding:"omitempty,uuid"`
	Message        string `json:"message" binding:"required,max=4000"`
}

func PostChat(c *gin.Context) {
	var req chatRequest
	if !bindJSON(c, &req) {
		return
	}
	var completer services.Completer
	if deps.AI != nil {
		completer = deps.AI
	}
	reply, err := services.Chat(c.Request.Context(), database.DB, completer, actor(c), req.ConversationID, req.Message, now())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func GetConversation(c *gin.Context) {
	msgs, err := services.ConversationMessages(c.Request.Context(), database.DB, actor(c), c.Param("conversation_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": c.Param("conversation_id"), "messages": msgs})
}
