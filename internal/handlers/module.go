package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nestform/nestform-backend/internal/services"
)

type ModuleHandler struct {
	schemaService  services.SchemaService
	cleanupService services.CleanupService
}

func NewModuleHandler(schemaService services.SchemaService, cleanupService services.CleanupService) *ModuleHandler {
	return &ModuleHandler{schemaService: schemaService, cleanupService: cleanupService}
}

type createModuleRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
	ModuleType  string     `json:"module_type"`
}

func (mh *ModuleHandler) CreateModule(c *gin.Context) {
	var req createModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	module, err := mh.schemaService.CreateModule(c.Request.Context(), nil, services.CreateModuleInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		ModuleType:  req.ModuleType,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"module": module})
}

func (mh *ModuleHandler) GetModuleTree(c *gin.Context) {
	tree, err := mh.schemaService.GetModuleTree(c.Request.Context(), nil)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	if c.Query("flat") == "true" {
		RespondOK(c, gin.H{"modules": services.FlattenModuleTree(tree)})
		return
	}
	RespondOK(c, gin.H{"modules": tree})
}

func (mh *ModuleHandler) GetModule(c *gin.Context) {
	moduleID, err := uuid.Parse(c.Param("moduleId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	module, err := mh.schemaService.GetModule(c.Request.Context(), nil, moduleID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"module": module})
}

type updateModuleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ModuleType  *string `json:"module_type"`
	IsActive    *bool   `json:"is_active"`
	SortOrder   *int    `json:"sort_order"`
}

func (mh *ModuleHandler) UpdateModule(c *gin.Context) {
	moduleID, err := uuid.Parse(c.Param("moduleId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req updateModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	module, err := mh.schemaService.UpdateModule(c.Request.Context(), nil, moduleID, services.UpdateModuleInput{
		Name:        req.Name,
		Description: req.Description,
		ModuleType:  req.ModuleType,
		IsActive:    req.IsActive,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"module": module})
}

func (mh *ModuleHandler) DeleteModule(c *gin.Context) {
	moduleID, err := uuid.Parse(c.Param("moduleId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := mh.cleanupService.DeleteModuleWithCleanup(c.Request.Context(), nil, moduleID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": moduleID})
}
