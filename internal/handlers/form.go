package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nestform/nestform-backend/internal/services"
)

type FormHandler struct {
	schemaService  services.SchemaService
	cleanupService services.CleanupService
}

func NewFormHandler(schemaService services.SchemaService, cleanupService services.CleanupService) *FormHandler {
	return &FormHandler{schemaService: schemaService, cleanupService: cleanupService}
}

type createFormRequest struct {
	ModuleID    uuid.UUID      `json:"module_id" binding:"required"`
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description"`
	IsUserForm  bool           `json:"is_user_form"`
	Settings    datatypes.JSON `json:"settings"`
}

func (fh *FormHandler) CreateForm(c *gin.Context) {
	var req createFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	form, err := fh.schemaService.CreateForm(c.Request.Context(), nil, services.CreateFormInput{
		ModuleID:    req.ModuleID,
		Name:        req.Name,
		Description: req.Description,
		IsUserForm:  req.IsUserForm,
		Settings:    req.Settings,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"form": form})
}

func (fh *FormHandler) GetForm(c *gin.Context) {
	formID, err := uuid.Parse(c.Param("formId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	form, err := fh.schemaService.GetForm(c.Request.Context(), nil, formID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"form": form})
}

func (fh *FormHandler) ListFormsByModule(c *gin.Context) {
	moduleID, err := uuid.Parse(c.Param("moduleId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	forms, err := fh.schemaService.ListFormsByModule(c.Request.Context(), nil, moduleID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"forms": forms})
}

type updateFormRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	IsUserForm  *bool          `json:"is_user_form"`
	IsPublished *bool          `json:"is_published"`
	Settings    datatypes.JSON `json:"settings"`
}

func (fh *FormHandler) UpdateForm(c *gin.Context) {
	formID, err := uuid.Parse(c.Param("formId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req updateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	form, err := fh.schemaService.UpdateForm(c.Request.Context(), nil, formID, services.UpdateFormInput{
		Name:        req.Name,
		Description: req.Description,
		IsUserForm:  req.IsUserForm,
		IsPublished: req.IsPublished,
		Settings:    req.Settings,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"form": form})
}

func (fh *FormHandler) DeleteForm(c *gin.Context) {
	formID, err := uuid.Parse(c.Param("formId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := fh.cleanupService.DeleteFormWithCleanup(c.Request.Context(), nil, formID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": formID})
}
