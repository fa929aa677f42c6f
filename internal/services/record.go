package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/apperr"
	"github.com/nestform/nestform-backend/internal/config"
	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/repos"
	"github.com/nestform/nestform-backend/internal/types"
)

// RecordMeta carries the flat columns stored alongside the JSON
// document.
type RecordMeta struct {
	SubmittedBy string
	Status      string
	EmployeeID  string
	Amount      *float64
	Date        *time.Time
	UserID      *uuid.UUID
}

// RecordPatch is a partial update: record_data keys are merged into the
// existing document, flat columns replace when set.
type RecordPatch struct {
	RecordData map[string]any
	Status     *string
	EmployeeID *string
	Amount     *float64
	Date       *time.Time
}

// ListRecordsOptions adds the post-pagination substring search on top
// of the storage-level filter.
type ListRecordsOptions struct {
	repos.RecordFilter
	Search string
}

// RecordPage is a list result plus the schema snapshot the UI renders
// the records with.
type RecordPage struct {
	Records []*types.FormRecord `json:"records"`
	Total   int64               `json:"total"`
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
	Form    *types.Form         `json:"form,omitempty"`
}

type RecordService interface {
	CreateRecord(ctx context.Context, tx *gorm.DB, formID uuid.UUID, recordData map[string]any, meta RecordMeta) (*types.FormRecord, error)
	ListRecords(ctx context.Context, tx *gorm.DB, formID uuid.UUID, opts ListRecordsOptions) (*RecordPage, error)
	GetRecord(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) (*types.FormRecord, error)
	UpdateRecord(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, patch RecordPatch) (*types.FormRecord, error)
	DeleteRecord(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) error
	CountRecords(ctx context.Context, tx *gorm.DB, formID uuid.UUID) (int64, error)
}

type recordService struct {
	db         *gorm.DB
	log        *logger.Logger
	cfg        config.Config
	recordRepo repos.RecordRepo
	partition  PartitionService
	schema     SchemaService
}

func NewRecordService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg config.Config,
	recordRepo repos.RecordRepo,
	partition PartitionService,
	schema SchemaService,
) RecordService {
	return &recordService{
		db:         db,
		log:        baseLog.With("service", "RecordService"),
		cfg:        cfg,
		recordRepo: recordRepo,
		partition:  partition,
		schema:     schema,
	}
}

func (rs *recordService) CreateRecord(ctx context.Context, tx *gorm.DB, formID uuid.UUID, recordData map[string]any, meta RecordMeta) (*types.FormRecord, error) {
	table, err := rs.partition.ResolvePartition(ctx, tx, formID)
	if err != nil {
		return nil, err
	}
	if recordData == nil {
		recordData = map[string]any{}
	}
	status := meta.Status
	if status == "" {
		status = types.RecordStatusSubmitted
	}

	now := time.Now()
	record := &types.FormRecord{
		ID:          uuid.New(),
		FormID:      formID,
		RecordData:  recordData,
		SubmittedBy: meta.SubmittedBy,
		Status:      status,
		EmployeeID:  meta.EmployeeID,
		Amount:      meta.Amount,
		Date:        meta.Date,
		UserID:      meta.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := rs.recordRepo.Create(ctx, tx, table, []*types.FormRecord{record}); err != nil {
		rs.log.Error("CreateRecord failed", "error", err, "form_id", formID, "partition", table)
		return nil, fmt.Errorf("create record: %w", err)
	}
	return record, nil
}

func (rs *recordService) ListRecords(ctx context.Context, tx *gorm.DB, formID uuid.UUID, opts ListRecordsOptions) (*RecordPage, error) {
	// GetForm also applies the module allow-list, so an inaccessible
	// form reads as absent here.
	form, err := rs.schema.GetForm(ctx, tx, formID)
	if err != nil {
		return nil, err
	}

	table, err := rs.partition.ResolvePartition(ctx, tx, formID)
	if err != nil {
		return nil, err
	}
	records, total, err := rs.recordRepo.List(ctx, tx, table, formID, opts.RecordFilter)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	// Substring search scans the stringified document of the already
	// paginated page; record_data is not indexed.
	if opts.Search != "" {
		records = filterRecordsBySearch(records, opts.Search)
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 20
	}
	return &RecordPage{
		Records: records,
		Total:   total,
		Page:    page,
		Limit:   limit,
		Form:    form,
	}, nil
}

func filterRecordsBySearch(records []*types.FormRecord, search string) []*types.FormRecord {
	needle := strings.ToLower(search)
	matched := make([]*types.FormRecord, 0, len(records))
	for _, r := range records {
		raw, err := json.Marshal(r.RecordData)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(raw)), needle) {
			matched = append(matched, r)
		}
	}
	return matched
}

// locate probes the partitions in fixed order until the record is
// found. Valid only because record ids are unique across partitions.
func (rs *recordService) locate(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) (string, *types.FormRecord, error) {
	for _, table := range rs.cfg.PartitionTables() {
		record, err := rs.recordRepo.GetByID(ctx, tx, table, recordID)
		if err != nil {
			return "", nil, fmt.Errorf("probe partition %s: %w", table, err)
		}
		if record != nil {
			return table, record, nil
		}
	}
	return "", nil, apperr.NotFound("record", recordID)
}

func (rs *recordService) GetRecord(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) (*types.FormRecord, error) {
	_, record, err := rs.locate(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (rs *recordService) UpdateRecord(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, patch RecordPatch) (*types.FormRecord, error) {
	table, record, err := rs.locate(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}

	if record.RecordData == nil {
		record.RecordData = map[string]any{}
	}
	for key, value := range patch.RecordData {
		record.RecordData[key] = value
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.EmployeeID != nil {
		record.EmployeeID = *patch.EmployeeID
	}
	if patch.Amount != nil {
		record.Amount = patch.Amount
	}
	if patch.Date != nil {
		record.Date = patch.Date
	}
	record.UpdatedAt = time.Now()

	if err := rs.recordRepo.Save(ctx, tx, table, record); err != nil {
		rs.log.Error("UpdateRecord failed", "error", err, "record_id", recordID, "partition", table)
		return nil, fmt.Errorf("update record: %w", err)
	}
	return record, nil
}

func (rs *recordService) DeleteRecord(ctx context.Context, tx *gorm.DB, recordID uuid.UUID) error {
	table, _, err := rs.locate(ctx, tx, recordID)
	if err != nil {
		return err
	}
	if err := rs.recordRepo.DeleteByID(ctx, tx, table, recordID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (rs *recordService) CountRecords(ctx context.Context, tx *gorm.DB, formID uuid.UUID) (int64, error) {
	table, err := rs.partition.ResolvePartition(ctx, tx, formID)
	if err != nil {
		return 0, err
	}
	return rs.recordRepo.CountByFormID(ctx, tx, table, formID)
}
