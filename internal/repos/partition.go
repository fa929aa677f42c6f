package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/types"
)

type PartitionMappingRepo interface {
	GetByFormID(ctx context.Context, tx *gorm.DB, formID uuid.UUID) (*types.PartitionMapping, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.PartitionMapping, error)
	Create(ctx context.Context, tx *gorm.DB, mapping *types.PartitionMapping) error
	UpdateStorageTable(ctx context.Context, tx *gorm.DB, formID uuid.UUID, storageTable string) error
	DeleteByFormIDs(ctx context.Context, tx *gorm.DB, formIDs []uuid.UUID) error
	ReleaseStorageTableExcept(ctx context.Context, tx *gorm.DB, storageTable string, keepFormID uuid.UUID) error
}

type partitionMappingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPartitionMappingRepo(db *gorm.DB, baseLog *logger.Logger) PartitionMappingRepo {
	return &partitionMappingRepo{db: db, log: baseLog.With("repo", "PartitionMappingRepo")}
}

func (pr *partitionMappingRepo) GetByFormID(ctx context.Context, tx *gorm.DB, formID uuid.UUID) (*types.PartitionMapping, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var mapping types.PartitionMapping
	err := transaction.WithContext(ctx).
		Where("form_id = ?", formID).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (pr *partitionMappingRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.PartitionMapping, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var results []*types.PartitionMapping
	if err := transaction.WithContext(ctx).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *partitionMappingRepo) Create(ctx context.Context, tx *gorm.DB, mapping *types.PartitionMapping) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	return transaction.WithContext(ctx).Create(mapping).Error
}

func (pr *partitionMappingRepo) UpdateStorageTable(ctx context.Context, tx *gorm.DB, formID uuid.UUID, storageTable string) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.PartitionMapping{}).
		Where("form_id = ?", formID).
		Update("storage_table", storageTable).Error
}

func (pr *partitionMappingRepo) DeleteByFormIDs(ctx context.Context, tx *gorm.DB, formIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if len(formIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("form_id IN ?", formIDs).
		Delete(&types.PartitionMapping{}).Error
}

// ReleaseStorageTableExcept evicts any stale holder of a partition
// before it is reassigned. Used when the reserved partition changes
// hands on an is_user_form flip.
func (pr *partitionMappingRepo) ReleaseStorageTableExcept(ctx context.Context, tx *gorm.DB, storageTable string, keepFormID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	return transaction.WithContext(ctx).
		Where("storage_table = ? AND form_id <> ?", storageTable, keepFormID).
		Delete(&types.PartitionMapping{}).Error
}
