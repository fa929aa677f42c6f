package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nestform/nestform-backend/internal/services"
)

type FieldHandler struct {
	schemaService  services.SchemaService
	cleanupService services.CleanupService
}

func NewFieldHandler(schemaService services.SchemaService, cleanupService services.CleanupService) *FieldHandler {
	return &FieldHandler{schemaService: schemaService, cleanupService: cleanupService}
}

type fieldRequest struct {
	SectionID  *uuid.UUID     `json:"section_id"`
	SubformID  *uuid.UUID     `json:"subform_id"`
	FieldType  string         `json:"field_type"`
	Label      string         `json:"label"`
	IsRequired *bool          `json:"is_required"`
	Options    datatypes.JSON `json:"options"`
	Validation datatypes.JSON `json:"validation"`
	Lookup     datatypes.JSON `json:"lookup"`
}

func (req fieldRequest) toInput() services.FieldInput {
	return services.FieldInput{
		SectionID:  req.SectionID,
		SubformID:  req.SubformID,
		FieldType:  req.FieldType,
		Label:      req.Label,
		IsRequired: req.IsRequired,
		Options:    req.Options,
		Validation: req.Validation,
		Lookup:     req.Lookup,
	}
}

func (fh *FieldHandler) CreateField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	field, err := fh.schemaService.CreateField(c.Request.Context(), nil, req.toInput())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"field": field})
}

func (fh *FieldHandler) UpdateField(c *gin.Context) {
	fieldID, err := uuid.Parse(c.Param("fieldId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	field, err := fh.schemaService.UpdateField(c.Request.Context(), nil, fieldID, req.toInput())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"field": field})
}

func (fh *FieldHandler) DeleteField(c *gin.Context) {
	fieldID, err := uuid.Parse(c.Param("fieldId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := fh.cleanupService.DeleteFieldWithCleanup(c.Request.Context(), nil, fieldID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": fieldID})
}
