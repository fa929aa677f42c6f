package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nestform/nestform-backend/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondServiceError maps the service error taxonomy onto HTTP
// statuses so every handler fails the same way.
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case apperr.IsKind(err, apperr.KindNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case apperr.IsKind(err, apperr.KindValidation):
		RespondError(c, http.StatusBadRequest, "validation", err)
	case apperr.IsKind(err, apperr.KindMaxNestingExceeded):
		RespondError(c, http.StatusUnprocessableEntity, "max_nesting_exceeded", err)
	case apperr.IsKind(err, apperr.KindPartitionExhausted):
		RespondError(c, http.StatusConflict, "partition_exhausted", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal", err)
	}
}
