package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"streetart_marketplace/internal/service"
	"streetart_marketplace/pkg/logger"
)

type ProjectHandler struct {
	lifecycle service.LifecycleService
	log       logger.Logger
}

func NewProjectHandler(lifecycle service.LifecycleService, log logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		lifecycle: lifecycle,
		log:       log,
	}
}

func (h *ProjectHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return
	}

	project, err := h.lifecycle.GetProject(c.Request.Context(), a, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, project)
}

type UpdateProjectStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *ProjectHandler) UpdateStatus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return
	}

	var req UpdateProjectStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	project, err := h.lifecycle.AdvanceProject(c.Request.Context(), a, id, req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, project)
}
