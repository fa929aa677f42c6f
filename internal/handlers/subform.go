package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nestform/nestform-backend/internal/services"
)

type SubformHandler struct {
	schemaService  services.SchemaService
	cleanupService services.CleanupService
}

func NewSubformHandler(schemaService services.SchemaService, cleanupService services.CleanupService) *SubformHandler {
	return &SubformHandler{schemaService: schemaService, cleanupService: cleanupService}
}

type createSubformRequest struct {
	SectionID       *uuid.UUID `json:"section_id"`
	ParentSubformID *uuid.UUID `json:"parent_subform_id"`
	Title           string     `json:"title" binding:"required"`
}

func (sh *SubformHandler) CreateSubform(c *gin.Context) {
	var req createSubformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	subform, err := sh.schemaService.CreateSubform(c.Request.Context(), nil, services.CreateSubformInput{
		SectionID:       req.SectionID,
		ParentSubformID: req.ParentSubformID,
		Title:           req.Title,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"subform": subform})
}

func (sh *SubformHandler) DeleteSubform(c *gin.Context) {
	subformID, err := uuid.Parse(c.Param("subformId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := sh.cleanupService.DeleteSubformWithCleanup(c.Request.Context(), nil, subformID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": subformID})
}
