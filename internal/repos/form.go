package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/types"
)

type FormRepo interface {
	Create(ctx context.Context, tx *gorm.DB, forms []*types.Form) ([]*types.Form, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, formIDs []uuid.UUID) ([]*types.Form, error)
	ListByModuleIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uuid.UUID) ([]*types.Form, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Form, error)
	Save(ctx context.Context, tx *gorm.DB, form *types.Form) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, formIDs []uuid.UUID) error
}

type formRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFormRepo(db *gorm.DB, baseLog *logger.Logger) FormRepo {
	return &formRepo{db: db, log: baseLog.With("repo", "FormRepo")}
}

func (fr *formRepo) Create(ctx context.Context, tx *gorm.DB, forms []*types.Form) ([]*types.Form, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	if len(forms) == 0 {
		return []*types.Form{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&forms).Error; err != nil {
		return nil, err
	}
	return forms, nil
}

func (fr *formRepo) GetByIDs(ctx context.Context, tx *gorm.DB, formIDs []uuid.UUID) ([]*types.Form, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	var results []*types.Form
	if len(formIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", formIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *formRepo) ListByModuleIDs(ctx context.Context, tx *gorm.DB, moduleIDs []uuid.UUID) ([]*types.Form, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	var results []*types.Form
	if len(moduleIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("module_id IN ?", moduleIDs).
		Order("sort_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *formRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Form, error) {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	var results []*types.Form
	if err := transaction.WithContext(ctx).
		Order("sort_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (fr *formRepo) Save(ctx context.Context, tx *gorm.DB, form *types.Form) error {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	return transaction.WithContext(ctx).Save(form).Error
}

func (fr *formRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, formIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = fr.db
	}
	if len(formIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", formIDs).
		Delete(&types.Form{}).Error
}
