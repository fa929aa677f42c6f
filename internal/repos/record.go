package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/types"
)

// RecordFilter is the storage-level filter for listing records.
// Substring search is deliberately not here: it is applied after
// pagination by the service layer.
type RecordFilter struct {
	Status     string
	EmployeeID string
	UserID     *uuid.UUID
	DateFrom   *time.Time
	DateTo     *time.Time
	SortBy     string
	SortOrder  string
	Page       int
	Limit      int
}

var recordSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"date":       "date",
	"amount":     "amount",
	"status":     "status",
}

// RecordRepo is one generic repository over all N partition tables.
// Every method takes the partition table name resolved by the caller;
// there is no per-partition dispatch anywhere else.
type RecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, table string, records []*types.FormRecord) ([]*types.FormRecord, error)
	GetByID(ctx context.Context, tx *gorm.DB, table string, recordID uuid.UUID) (*types.FormRecord, error)
	List(ctx context.Context, tx *gorm.DB, table string, formID uuid.UUID, filter RecordFilter) ([]*types.FormRecord, int64, error)
	ListBatch(ctx context.Context, tx *gorm.DB, table string, formID uuid.UUID, afterID uuid.UUID, limit int) ([]*types.FormRecord, error)
	Save(ctx context.Context, tx *gorm.DB, table string, record *types.FormRecord) error
	DeleteByID(ctx context.Context, tx *gorm.DB, table string, recordID uuid.UUID) error
	DeleteByFormID(ctx context.Context, tx *gorm.DB, table string, formID uuid.UUID) error
	CountByFormID(ctx context.Context, tx *gorm.DB, table string, formID uuid.UUID) (int64, error)
}

type recordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
	return &recordRepo{db: db, log: baseLog.With("repo", "RecordRepo")}
}

func (rr *recordRepo) Create(ctx context.Context, tx *gorm.DB, table string, records []*types.FormRecord) ([]*types.FormRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	if len(records) == 0 {
		return []*types.FormRecord{}, nil
	}
	if err := transaction.WithContext(ctx).Table(table).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (rr *recordRepo) GetByID(ctx context.Context, tx *gorm.DB, table string, recordID uuid.UUID) (*types.FormRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var record types.FormRecord
	err := transaction.WithContext(ctx).
		Table(table).
		Where("id = ?", recordID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (rr *recordRepo) List(ctx context.Context, tx *gorm.DB, table string, formID uuid.UUID, filter RecordFilter) ([]*types.FormRecord, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}

	query := transaction.WithContext(ctx).
		Table(table).
		Where("form_id = ?", formID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.EmployeeID != "" {
		query = query.Where("employee_id = ?", filter.EmployeeID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.DateFrom != nil {
		query = query.Where("date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("date <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortColumn, ok := recordSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	direction := "DESC"
	if filter.SortOrder == "asc" {
		direction = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	var results []*types.FormRecord
	if err := query.
		Order(sortColumn + " " + direction).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// ListBatch pages through a form's records by ascending id. Used by
// cleanup so it never loads a whole partition at once.
func (rr *recordRepo) ListBatch(ctx context.Context, tx *gorm.DB, table string, formID uuid.UUID, afterID uuid.UUID, limit int) ([]*types.FormRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	query := transaction.WithContext(ctx).
		Table(table).
		Where("form_id = ?", formID)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	var results []*types.FormRecord
	if err := query.Order("id ASC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recordRepo) Save(ctx context.Context, tx *gorm.DB, table string, record *types.FormRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).Table(table).Save(record).Error
}

func (rr *recordRepo) DeleteByID(ctx context.Context, tx *gorm.DB, table string, recordID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Table(table).
		Where("id = ?", recordID).
		Delete(&types.FormRecord{}).Error
}

func (rr *recordRepo) DeleteByFormID(ctx context.Context, tx *gorm.DB, table string, formID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Table(table).
		Where("form_id = ?", formID).
		Delete(&types.FormRecord{}).Error
}

func (rr *recordRepo) CountByFormID(ctx context.Context, tx *gorm.DB, table string, formID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Table(table).
		Where("form_id = ?", formID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
