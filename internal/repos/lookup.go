package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/types"
)

type LookupRepo interface {
	UpsertSource(ctx context.Context, tx *gorm.DB, source *types.LookupSource) error
	GetSourcesByIDs(ctx context.Context, tx *gorm.DB, sourceIDs []string) ([]*types.LookupSource, error)
	UpsertRelation(ctx context.Context, tx *gorm.DB, relation *types.LookupFieldRelation) error
	ListRelationsByFieldIDs(ctx context.Context, tx *gorm.DB, fieldIDs []uuid.UUID) ([]*types.LookupFieldRelation, error)
	ListRelationsBySourceIDs(ctx context.Context, tx *gorm.DB, sourceIDs []string) ([]*types.LookupFieldRelation, error)
	DeleteRelationsByFieldIDs(ctx context.Context, tx *gorm.DB, fieldIDs []uuid.UUID) error
}

type lookupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLookupRepo(db *gorm.DB, baseLog *logger.Logger) LookupRepo {
	return &lookupRepo{db: db, log: baseLog.With("repo", "LookupRepo")}
}

// UpsertSource materializes a source if absent and refreshes its name
// otherwise. Safe to call repeatedly for the same id.
func (lr *lookupRepo) UpsertSource(ctx context.Context, tx *gorm.DB, source *types.LookupSource) error {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "updated_at"}),
		}).
		Create(source).Error
}

func (lr *lookupRepo) GetSourcesByIDs(ctx context.Context, tx *gorm.DB, sourceIDs []string) ([]*types.LookupSource, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}
	var results []*types.LookupSource
	if len(sourceIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", sourceIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpsertRelation relies on the deterministic relation id: a repeat
// index of the same (source, field) pair updates the existing row
// instead of duplicating it.
func (lr *lookupRepo) UpsertRelation(ctx context.Context, tx *gorm.DB, relation *types.LookupFieldRelation) error {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"lookup_source_id", "form_field_id", "form_id", "module_id",
				"display_field", "value_field", "multiple", "filters", "updated_at",
			}),
		}).
		Create(relation).Error
}

func (lr *lookupRepo) ListRelationsByFieldIDs(ctx context.Context, tx *gorm.DB, fieldIDs []uuid.UUID) ([]*types.LookupFieldRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}
	var results []*types.LookupFieldRelation
	if len(fieldIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("form_field_id IN ?", fieldIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (lr *lookupRepo) ListRelationsBySourceIDs(ctx context.Context, tx *gorm.DB, sourceIDs []string) ([]*types.LookupFieldRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}
	var results []*types.LookupFieldRelation
	if len(sourceIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("lookup_source_id IN ?", sourceIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (lr *lookupRepo) DeleteRelationsByFieldIDs(ctx context.Context, tx *gorm.DB, fieldIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = lr.db
	}
	if len(fieldIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("form_field_id IN ?", fieldIDs).
		Delete(&types.LookupFieldRelation{}).Error
}
