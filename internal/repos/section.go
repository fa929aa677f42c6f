package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/types"
)

type SectionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sections []*types.FormSection) ([]*types.FormSection, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, sectionIDs []uuid.UUID) ([]*types.FormSection, error)
	ListByFormIDs(ctx context.Context, tx *gorm.DB, formIDs []uuid.UUID) ([]*types.FormSection, error)
	Save(ctx context.Context, tx *gorm.DB, section *types.FormSection) error
	UpdateSortOrder(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID, sortOrder int) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, sectionIDs []uuid.UUID) error
}

type sectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSectionRepo(db *gorm.DB, baseLog *logger.Logger) SectionRepo {
	return &sectionRepo{db: db, log: baseLog.With("repo", "SectionRepo")}
}

func (sr *sectionRepo) Create(ctx context.Context, tx *gorm.DB, sections []*types.FormSection) ([]*types.FormSection, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(sections) == 0 {
		return []*types.FormSection{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&sections).Error; err != nil {
		return nil, err
	}
	return sections, nil
}

func (sr *sectionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, sectionIDs []uuid.UUID) ([]*types.FormSection, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.FormSection
	if len(sectionIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", sectionIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *sectionRepo) ListByFormIDs(ctx context.Context, tx *gorm.DB, formIDs []uuid.UUID) ([]*types.FormSection, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var results []*types.FormSection
	if len(formIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("form_id IN ?", formIDs).
		Order("sort_order ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *sectionRepo) Save(ctx context.Context, tx *gorm.DB, section *types.FormSection) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).Save(section).Error
}

func (sr *sectionRepo) UpdateSortOrder(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID, sortOrder int) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.FormSection{}).
		Where("id = ?", sectionID).
		Update("sort_order", sortOrder).Error
}

func (sr *sectionRepo) DeleteByIDs(ctx context.Context, tx *gorm.DB, sectionIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	if len(sectionIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", sectionIDs).
		Delete(&types.FormSection{}).Error
}
