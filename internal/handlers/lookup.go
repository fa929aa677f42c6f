package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nestform/nestform-backend/internal/services"
)

type LookupHandler struct {
	lookupService services.LookupService
}

func NewLookupHandler(lookupService services.LookupService) *LookupHandler {
	return &LookupHandler{lookupService: lookupService}
}

func (lh *LookupHandler) GetLookupSources(c *gin.Context) {
	formID, err := uuid.Parse(c.Param("formId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	sources, err := lh.lookupService.GetLookupSources(c.Request.Context(), nil, formID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"sources": sources})
}

func (lh *LookupHandler) GetLinkedRecords(c *gin.Context) {
	formID, err := uuid.Parse(c.Param("formId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	linked, err := lh.lookupService.GetLinkedRecords(c.Request.Context(), nil, formID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"linked_forms": linked})
}
