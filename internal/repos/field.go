package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/types"
)

type FieldRepo interface {
	Create(ctx context.Context, tx *gorm.DB, fields []*types.FormField) ([]*types.FormField, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, fieldIDs []uuid.UUID) ([]*types.FormField, error)
	ListBySectionIDs(ctx context.Context, tx *gorm.DB, sectionIDs []uuid.UUID) ([]*types.FormField, error)
	ListBySubformIDs(ctx context.Context, tx *gorm.DB, subformIDs []uuid.UUID) ([]*types.FormField, error)
	ListLookupFields(ctx context.Context, tx *gorm.DB) ([]*types.FormField, error)
	Save(ctx context.Context, tx *gorm.DB, field *types.FormField) error
	UpdateSortOrder(ctx context.Context, tx *gorm.DB, fieldID uuid.UUID, sortOrder int) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, fieldIDs []uuid.UUID) error
}

type fieldRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFieldRepo(db *gorm.DB, baseLog *logger.Logger) FieldRepo {
	return &fieldRepo{db: db, log: baseLog.With("repo", "FieldRepo")}
}

func (fr *fieldRepo) Create(ctx context.Context, tx *gorm.DB, fields []*types.FormField) ([]*types.FormField, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	if len(fields) == 0 {
		return []*types.FormField{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&fields).Error; err != nil {
		return nil, err
	}
	return fields, nil
}

func (fr *fieldRepo) GetByIDs(ctx context.Context, tx *gorm.DB, fieldIDs []uuid.UUID) ([]*types.FormField, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	var results []*types.FormField
	if len(fieldIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", fieldIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *fieldRepo) ListBySectionIDs(ctx context.Context, tx *gorm.DB, sectionIDs []uuid.UUID) ([]*types.FormField, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	var results []*types.FormField
	if len(sectionIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("section_id IN ?", sectionIDs).
		Order("sort_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *fieldRepo) ListBySubformIDs(ctx context.Context, tx *gorm.DB, subformIDs []uuid.UUID) ([]*types.FormField, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	var results []*types.FormField
	if len(subformIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("subform_id IN ?", subformIDs).
		Order("sort_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *fieldRepo) ListLookupFields(ctx context.Context, tx *gorm.DB) ([]*types.FormField, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	var results []*types.FormField
	if err := transaction.WithContext(ctx).
		Where("field_type = ?", types.FieldTypeLookup).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *fieldRepo) Save(ctx context.Context, tx *gorm.DB, field *types.FormField) error {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	return transaction.WithContext(ctx).Save(field).Error
}

func (fr *fieldRepo) UpdateSortOrder(ctx context.Context, tx *gorm.DB, fieldID uuid.UUID, sortOrder int) error {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.FormField{}).
		Where("id = ?", fieldID).
		Update("sort_order", sortOrder).Error
}

func (fr *fieldRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, fieldIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	if len(fieldIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", fieldIDs).
		Delete(&types.FormField{}).Error
}
