package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/types"
)

type SubformRepo interface {
	Create(ctx context.Context, tx *gorm.DB, subforms []*types.Subform) ([]*types.Subform, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, subformIDs []uuid.UUID) ([]*types.Subform, error)
	ListBySectionIDs(ctx context.Context, tx *gorm.DB, sectionIDs []uuid.UUID) ([]*types.Subform, error)
	ListByParentIDs(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]*types.Subform, error)
	Save(ctx context.Context, tx *gorm.DB, subform *types.Subform) error
	UpdateSortOrder(ctx context.Context, tx *gorm.DB, subformID uuid.UUID, sortOrder int) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, subformIDs []uuid.UUID) error
}

type subformRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubformRepo(db *gorm.DB, baseLog *logger.Logger) SubformRepo {
	return &subformRepo{db: db, log: baseLog.With("repo", "SubformRepo")}
}

func (sr *subformRepo) Create(ctx context.Context, tx *gorm.DB, subforms []*types.Subform) ([]*types.Subform, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(subforms) == 0 {
		return []*types.Subform{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&subforms).Error; err != nil {
		return nil, err
	}
	return subforms, nil
}

func (sr *subformRepo) GetByIDs(ctx context.Context, tx *gorm.DB, subformIDs []uuid.UUID) ([]*types.Subform, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.Subform
	if len(subformIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", subformIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *subformRepo) ListBySectionIDs(ctx context.Context, tx *gorm.DB, sectionIDs []uuid.UUID) ([]*types.Subform, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.Subform
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

func (sr *subformRepo) ListByParentIDs(ctx context.Context, tx *gorm.DB, parentIDs []uuid.UUID) ([]*types.Subform, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.Subform
	if len(parentIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("parent_subform_id IN ?", parentIDs).
		Order("sort_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *subformRepo) Save(ctx context.Context, tx *gorm.DB, subform *types.Subform) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).Save(subform).Error
}

func (sr *subformRepo) UpdateSortOrder(ctx context.Context, tx *gorm.DB, subformID uuid.UUID, sortOrder int) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Subform{}).
		Where("id = ?", subformID).
		Update("sort_order", sortOrder).Error
}

func (sr *subformRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, subformIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(subformIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", subformIDs).
		Delete(&types.Subform{}).Error
}
