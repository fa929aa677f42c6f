package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nestform/nestform-backend/internal/repos"
	"github.com/nestform/nestform-backend/internal/requestdata"
	"github.com/nestform/nestform-backend/internal/services"
)

type RecordHandler struct {
	recordService services.RecordService
}

func NewRecordHandler(recordService services.RecordService) *RecordHandler {
	return &RecordHandler{recordService: recordService}
}

type createRecordRequest struct {
	RecordData map[string]any `json:"record_data"`
	Status     string         `json:"status"`
	EmployeeID string         `json:"employee_id"`
	Amount     *float64       `json:"amount"`
	Date       *time.Time     `json:"date"`
	UserID     *uuid.UUID     `json:"user_id"`
}

func (rh *RecordHandler) CreateRecord(c *gin.Context) {
	formID, err := uuid.Parse(c.Param("formId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req createRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	meta := services.RecordMeta{
		Status:     req.Status,
		EmployeeID: req.EmployeeID,
		Amount:     req.Amount,
		Date:       req.Date,
		UserID:     req.UserID,
	}
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil && rd.UserID != uuid.Nil {
		meta.SubmittedBy = rd.UserID.String()
	}

	record, err := rh.recordService.CreateRecord(c.Request.Context(), nil, formID, req.RecordData, meta)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"record": record})
}

func (rh *RecordHandler) ListRecords(c *gin.Context) {
	formID, err := uuid.Parse(c.Param("formId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	opts := services.ListRecordsOptions{
		RecordFilter: repos.RecordFilter{
			Status:     c.Query("status"),
			EmployeeID: c.Query("employee_id"),
			SortBy:     c.Query("sort_by"),
			SortOrder:  c.Query("sort_order"),
		},
		Search: c.Query("search"),
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		opts.UserID = &userID
	}
	if raw := c.Query("date_from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		opts.DateFrom = &from
	}
	if raw := c.Query("date_to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		opts.DateTo = &to
	}
	opts.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	opts.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	page, err := rh.recordService.ListRecords(c.Request.Context(), nil, formID, opts)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, page)
}

func (rh *RecordHandler) GetRecord(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("recordId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	record, err := rh.recordService.GetRecord(c.Request.Context(), nil, recordID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

type updateRecordRequest struct {
	RecordData map[string]any `json:"record_data"`
	Status     *string        `json:"status"`
	EmployeeID *string        `json:"employee_id"`
	Amount     *float64       `json:"amount"`
	Date       *time.Time     `json:"date"`
}

func (rh *RecordHandler) UpdateRecord(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("recordId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	record, err := rh.recordService.UpdateRecord(c.Request.Context(), nil, recordID, services.RecordPatch{
		RecordData: req.RecordData,
		Status:     req.Status,
		EmployeeID: req.EmployeeID,
		Amount:     req.Amount,
		Date:       req.Date,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

func (rh *RecordHandler) DeleteRecord(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("recordId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := rh.recordService.DeleteRecord(c.Request.Context(), nil, recordID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": recordID})
}

func (rh *RecordHandler) CountRecords(c *gin.Context) {
	formID, err := uuid.Parse(c.Param("formId"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	count, err := rh.recordService.CountRecords(c.Request.Context(), nil, formID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"count": count})
}
