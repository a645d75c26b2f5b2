package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"streetart_marketplace/internal/service"
	"streetart_marketplace/pkg/logger"
)

type ConversationHandler struct {
	conversationService service.ConversationService
	log                 logger.Logger
}

func NewConversationHandler(conversationService service.ConversationService, log logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		log:                 log,
	}
}

func (h *ConversationHandler) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	conversations, err := h.conversationService.ListConversations(c.Request.Context(), a)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, conversations)
}

type CreateConversationRequest struct {
	ArtistID    uuid.UUID  `json:"artist_id" binding:"required"`
	WallOwnerID uuid.UUID  `json:"wall_owner_id" binding:"required"`
	ProjectID   *uuid.UUID `json:"project_id"`
}

func (h *ConversationHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	conversation, err := h.conversationService.CreateConversation(c.Request.Context(), a, req.ArtistID, req.WallOwnerID, req.ProjectID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

func (h *ConversationHandler) GetMessages(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	messages, err := h.conversationService.ListMessages(c.Request.Context(), a, conversationID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

type SendMessageRequest struct {
	Content  string  `json:"content"`
	ClientID *string `json:"client_id"`
}

func (h *ConversationHandler) SendMessage(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	message, err := h.conversationService.SendMessage(c.Request.Context(), a, conversationID, req.Content, req.ClientID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if message == nil {
		// пустое сообщение принимается и игнорируется
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusCreated, message)
}
