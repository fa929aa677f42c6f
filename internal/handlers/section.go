package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nestform/nestform-backend/internal/services"
)

type SectionHandler struct {
	schemaService  services.SchemaService
	cleanupService services.CleanupService
}

func NewSectionHandler(schemaService services.SchemaService, cleanupService services.CleanupService) *SectionHandler {
	return &SectionHandler{schemaService: schemaService, cleanupService: cleanupService}
}

type createSectionRequest struct {
	FormID        uuid.UUID `json:"form_id" binding:"required"`
	Title         string    `json:"title" binding:"required"`
	Columns       int       `json:"columns"`
	IsVisible     *bool     `json:"is_visible"`
	IsCollapsible *bool     `json:"is_collapsible"`
}

func (sh *SectionHandler) CreateSection(c *gin.Context) {
	var req createSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	section, err := sh.schemaService.CreateSection(c.Request.Context(), nil, services.CreateSectionInput{
		FormID:        req.FormID,
		Title:         req.Title,
		Columns:       req.Columns,
		IsVisible:     req.IsVisible,
		IsCollapsible: req.IsCollapsible,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"section": section})
}

type updateSectionRequest struct {
	Title         *string `json:"title"`
	Columns       *int    `json:"columns"`
	IsVisible     *bool   `json:"is_visible"`
	IsCollapsible *bool   `json:"is_collapsible"`
}

func (sh *SectionHandler) UpdateSection(c *gin.Context) {
	sectionID, err := uuid.Parse(c.Param("sectionId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req updateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	section, err := sh.schemaService.UpdateSection(c.Request.Context(), nil, sectionID, services.UpdateSectionInput{
		Title:         req.Title,
		Columns:       req.Columns,
		IsVisible:     req.IsVisible,
		IsCollapsible: req.IsCollapsible,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"section": section})
}

func (sh *SectionHandler) CountSectionItems(c *gin.Context) {
	sectionID, err := uuid.Parse(c.Param("sectionId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	count, err := sh.schemaService.CountSectionItems(c.Request.Context(), nil, sectionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"counts": count})
}

func (sh *SectionHandler) DeleteSection(c *gin.Context) {
	sectionID, err := uuid.Parse(c.Param("sectionId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := sh.cleanupService.DeleteSectionWithCleanup(c.Request.Context(), nil, sectionID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": sectionID})
}
