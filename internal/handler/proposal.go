package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/service"
	"streetart_marketplace/pkg/logger"
)

type ProposalHandler struct {
	lifecycle service.LifecycleService
	log       logger.Logger
}

func NewProposalHandler(lifecycle service.LifecycleService, log logger.Logger) *ProposalHandler {
	return &ProposalHandler{
		lifecycle: lifecycle,
		log:       log,
	}
}

// List возвращает предложения пользователя вместе с проектами.
func (h *ProposalHandler) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	listing, err := h.lifecycle.ListForActor(c.Request.Context(), a)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

type CreateProposalRequest struct {
	ArtistID    uuid.UUID `json:"artist_id" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Description *string   `json:"description"`
	Budget      *int64    `json:"budget"`
}

func (h *ProposalHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	var req CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	proposal, err := h.lifecycle.CreateProposal(c.Request.Context(), a, domain.NewProposal{
		ArtistID:    req.ArtistID,
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, proposal)
}

func (h *ProposalHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}

	proposal, err := h.lifecycle.GetProposal(c.Request.Context(), a, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

func (h *ProposalHandler) Decide(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proposal ID"})
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	decision, err := h.lifecycle.DecideProposal(c.Request.Context(), a, id, req.Decision)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, decision)
}
