package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/apperr"
	"github.com/nestform/nestform-backend/internal/config"
	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/repos"
	"github.com/nestform/nestform-backend/internal/types"
)

// CleanupService deletes schema nodes together with everything that
// references them: nested subtrees, lookup relations, stored record
// keys, and partition mappings. Record scrubbing runs before the schema
// delete and is idempotent, so a retried call converges.
type CleanupService interface {
	DeleteFieldWithCleanup(ctx context.Context, tx *gorm.DB, fieldID uuid.UUID) error
	DeleteSubformWithCleanup(ctx context.Context, tx *gorm.DB, subformID uuid.UUID) error
	DeleteSectionWithCleanup(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID) error
	DeleteFormWithCleanup(ctx context.Context, tx *gorm.DB, formID uuid.UUID) error
	DeleteModuleWithCleanup(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) error
	ScrubRecordKeys(ctx context.Context, formID uuid.UUID, keys []uuid.UUID) error
}

type cleanupService struct {
	db          *gorm.DB
	log         *logger.Logger
	cfg         config.Config
	moduleRepo  repos.ModuleRepo
	formRepo    repos.FormRepo
	sectionRepo repos.SectionRepo
	fieldRepo   repos.FieldRepo
	subformRepo repos.SubformRepo
	mappingRepo repos.PartitionMappingRepo
	recordRepo  repos.RecordRepo
	lookupRepo  repos.LookupRepo
}

func NewCleanupService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg config.Config,
	moduleRepo repos.ModuleRepo,
	formRepo repos.FormRepo,
	sectionRepo repos.SectionRepo,
	fieldRepo repos.FieldRepo,
	subformRepo repos.SubformRepo,
	mappingRepo repos.PartitionMappingRepo,
	recordRepo repos.RecordRepo,
	lookupRepo repos.LookupRepo,
) CleanupService {
	return &cleanupService{
		db:          db,
		log:         baseLog.With("service", "CleanupService"),
		cfg:         cfg,
		moduleRepo:  moduleRepo,
		formRepo:    formRepo,
		sectionRepo: sectionRepo,
		fieldRepo:   fieldRepo,
		subformRepo: subformRepo,
		mappingRepo: mappingRepo,
		recordRepo:  recordRepo,
		lookupRepo:  lookupRepo,
	}
}

// ScrubRecordKeys removes the given field keys from every record of the
// form. It runs on the base connection in batches, outside any caller
// transaction: a gorm transaction is a single connection and the batch
// workers run concurrently.
func (cs *cleanupService) ScrubRecordKeys(ctx context.Context, formID uuid.UUID, keys []uuid.UUID) error {
	if len(keys) == 0 {
		return nil
	}
	mapping, err := cs.mappingRepo.GetByFormID(ctx, nil, formID)
	if err != nil {
		return fmt.Errorf("load partition mapping: %w", err)
	}
	if mapping == nil {
		// No partition claimed means no records were ever written.
		return nil
	}
	table := mapping.StorageTable

	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k.String()] = struct{}{}
	}

	scrubbed := 0
	afterID := uuid.Nil
	for {
		batch, err := cs.recordRepo.ListBatch(ctx, nil, table, formID, afterID, cs.cfg.CleanupBatchSize)
		if err != nil {
			return fmt.Errorf("list record batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(cs.cfg.CleanupConcurrency)
		for _, record := range batch {
			record := record
			dirty := false
			for key := range keySet {
				if _, ok := record.RecordData[key]; ok {
					delete(record.RecordData, key)
					dirty = true
				}
			}
			if !dirty {
				continue
			}
			scrubbed++
			group.Go(func() error {
				return cs.recordRepo.Save(groupCtx, nil, table, record)
			})
		}
		if err := group.Wait(); err != nil {
			return fmt.Errorf("scrub record batch: %w", err)
		}
	}
	if scrubbed > 0 {
		cs.log.Info("Scrubbed record keys", "form_id", formID, "keys", len(keys), "records", scrubbed)
	}
	return nil
}

func (cs *cleanupService) DeleteFieldWithCleanup(ctx context.Context, tx *gorm.DB, fieldID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = cs.db
	}
	fields, err := cs.fieldRepo.GetByIDs(ctx, transaction, []uuid.UUID{fieldID})
	if err != nil {
		return fmt.Errorf("load field: %w", err)
	}
	if len(fields) == 0 {
		return apperr.NotFound("field", fieldID)
	}
	field := fields[0]

	formID, err := cs.fieldFormID(ctx, transaction, field)
	if err != nil {
		return err
	}
	if err := cs.ScrubRecordKeys(ctx, formID, []uuid.UUID{fieldID}); err != nil {
		return err
	}

	err = transaction.Transaction(func(txn *gorm.DB) error {
		if err := cs.lookupRepo.DeleteRelationsByFieldIDs(ctx, txn, []uuid.UUID{fieldID}); err != nil {
			return err
		}
		if err := cs.fieldRepo.DeleteByIDs(ctx, txn, []uuid.UUID{fieldID}); err != nil {
			return err
		}
		return cs.renumberFields(ctx, txn, field.SectionID, field.SubformID)
	})
	if err != nil {
		cs.log.Error("DeleteFieldWithCleanup failed", "error", err, "field_id", fieldID)
		return fmt.Errorf("delete field: %w", err)
	}
	return nil
}

func (cs *cleanupService) DeleteSubformWithCleanup(ctx context.Context, tx *gorm.DB, subformID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = cs.db
	}
	subforms, err := cs.subformRepo.GetByIDs(ctx, transaction, []uuid.UUID{subformID})
	if err != nil {
		return fmt.Errorf("load subform: %w", err)
	}
	if len(subforms) == 0 {
		return apperr.NotFound("subform", subformID)
	}
	subform := subforms[0]

	sectionID, err := resolveSubformSectionID(ctx, transaction, cs.subformRepo, subformID, cs.cfg.MaxSubformDepth)
	if err != nil {
		return err
	}
	formID, err := cs.sectionFormID(ctx, transaction, sectionID)
	if err != nil {
		return err
	}

	treeIDs, fieldIDs, err := collectSubformSubtree(ctx, transaction, cs.fieldRepo, cs.subformRepo, []uuid.UUID{subformID})
	if err != nil {
		return err
	}
	if err := cs.ScrubRecordKeys(ctx, formID, fieldIDs); err != nil {
		return err
	}

	err = transaction.Transaction(func(txn *gorm.DB) error {
		if err := cs.lookupRepo.DeleteRelationsByFieldIDs(ctx, txn, fieldIDs); err != nil {
			return err
		}
		if err := cs.fieldRepo.DeleteByIDs(ctx, txn, fieldIDs); err != nil {
			return err
		}
		if err := cs.subformRepo.DeleteByIDs(ctx, txn, treeIDs); err != nil {
			return err
		}
		return cs.renumberSubforms(ctx, txn, subform.SectionID, subform.ParentSubformID)
	})
	if err != nil {
		cs.log.Error("DeleteSubformWithCleanup failed", "error", err, "subform_id", subformID)
		return fmt.Errorf("delete subform: %w", err)
	}
	return nil
}

func (cs *cleanupService) DeleteSectionWithCleanup(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = cs.db
	}
	sections, err := cs.sectionRepo.GetByIDs(ctx, transaction, []uuid.UUID{sectionID})
	if err != nil {
		return fmt.Errorf("load section: %w", err)
	}
	if len(sections) == 0 {
		return apperr.NotFound("section", sectionID)
	}
	section := sections[0]

	fieldIDs, subformIDs, err := collectSectionItems(ctx, transaction, cs.fieldRepo, cs.subformRepo, []uuid.UUID{sectionID})
	if err != nil {
		return err
	}
	if err := cs.ScrubRecordKeys(ctx, section.FormID, fieldIDs); err != nil {
		return err
	}

	err = transaction.Transaction(func(txn *gorm.DB) error {
		if err := cs.lookupRepo.DeleteRelationsByFieldIDs(ctx, txn, fieldIDs); err != nil {
			return err
		}
		if err := cs.fieldRepo.DeleteByIDs(ctx, txn, fieldIDs); err != nil {
			return err
		}
		if err := cs.subformRepo.DeleteByIDs(ctx, txn, subformIDs); err != nil {
			return err
		}
		if err := cs.sectionRepo.DeleteByIDs(ctx, txn, []uuid.UUID{sectionID}); err != nil {
			return err
		}
		return cs.renumberSections(ctx, txn, section.FormID)
	})
	if err != nil {
		cs.log.Error("DeleteSectionWithCleanup failed", "error", err, "section_id", sectionID)
		return fmt.Errorf("delete section: %w", err)
	}
	return nil
}

func (cs *cleanupService) DeleteFormWithCleanup(ctx context.Context, tx *gorm.DB, formID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = cs.db
	}
	forms, err := cs.formRepo.GetByIDs(ctx, transaction, []uuid.UUID{formID})
	if err != nil {
		return fmt.Errorf("load form: %w", err)
	}
	if len(forms) == 0 {
		return apperr.NotFound("form", formID)
	}
	form := forms[0]

	sections, err := cs.sectionRepo.ListByFormIDs(ctx, transaction, []uuid.UUID{formID})
	if err != nil {
		return fmt.Errorf("list sections: %w", err)
	}
	sectionIDs := sectionIDsOf(sections)
	fieldIDs, subformIDs, err := collectSectionItems(ctx, transaction, cs.fieldRepo, cs.subformRepo, sectionIDs)
	if err != nil {
		return err
	}

	mapping, err := cs.mappingRepo.GetByFormID(ctx, transaction, formID)
	if err != nil {
		return fmt.Errorf("load partition mapping: %w", err)
	}

	err = transaction.Transaction(func(txn *gorm.DB) error {
		if mapping != nil {
			if err := cs.recordRepo.DeleteByFormID(ctx, txn, mapping.StorageTable, formID); err != nil {
				return err
			}
			// Frees the partition for the next claimant.
			if err := cs.mappingRepo.DeleteByFormIDs(ctx, txn, []uuid.UUID{formID}); err != nil {
				return err
			}
		}
		if err := cs.lookupRepo.DeleteRelationsByFieldIDs(ctx, txn, fieldIDs); err != nil {
			return err
		}
		if err := cs.fieldRepo.DeleteByIDs(ctx, txn, fieldIDs); err != nil {
			return err
		}
		if err := cs.subformRepo.DeleteByIDs(ctx, txn, subformIDs); err != nil {
			return err
		}
		if err := cs.sectionRepo.DeleteByIDs(ctx, txn, sectionIDs); err != nil {
			return err
		}
		if err := cs.formRepo.DeleteByIDs(ctx, txn, []uuid.UUID{formID}); err != nil {
			return err
		}
		return cs.renumberForms(ctx, txn, form.ModuleID)
	})
	if err != nil {
		cs.log.Error("DeleteFormWithCleanup failed", "error", err, "form_id", formID)
		return fmt.Errorf("delete form: %w", err)
	}
	cs.log.Info("Deleted form", "form_id", formID, "fields", len(fieldIDs), "subforms", len(subformIDs))
	return nil
}

func (cs *cleanupService) DeleteModuleWithCleanup(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = cs.db
	}
	modules, err := cs.moduleRepo.GetByIDs(ctx, transaction, []uuid.UUID{moduleID})
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	if len(modules) == 0 {
		return apperr.NotFound("module", moduleID)
	}
	module := modules[0]

	// Depth-first over the module subtree, children before parents.
	subtree := []uuid.UUID{moduleID}
	frontier := []uuid.UUID{moduleID}
	for len(frontier) > 0 {
		children, err := cs.moduleRepo.ListByParentIDs(ctx, transaction, frontier)
		if err != nil {
			return fmt.Errorf("list child modules: %w", err)
		}
		frontier = frontier[:0]
		for _, child := range children {
			subtree = append(subtree, child.ID)
			frontier = append(frontier, child.ID)
		}
	}

	forms, err := cs.formRepo.ListByModuleIDs(ctx, transaction, subtree)
	if err != nil {
		return fmt.Errorf("list module forms: %w", err)
	}
	for _, f := range forms {
		if err := cs.DeleteFormWithCleanup(ctx, transaction, f.ID); err != nil {
			return err
		}
	}

	err = transaction.Transaction(func(txn *gorm.DB) error {
		if err := cs.moduleRepo.DeleteByIDs(ctx, txn, subtree); err != nil {
			return err
		}
		return cs.renumberModules(ctx, txn, module.ParentID)
	})
	if err != nil {
		cs.log.Error("DeleteModuleWithCleanup failed", "error", err, "module_id", moduleID)
		return fmt.Errorf("delete module: %w", err)
	}
	cs.log.Info("Deleted module", "module_id", moduleID, "modules", len(subtree), "forms", len(forms))
	return nil
}

func (cs *cleanupService) fieldFormID(ctx context.Context, transaction *gorm.DB, field *types.FormField) (uuid.UUID, error) {
	var sectionID uuid.UUID
	switch {
	case field.SectionID != nil:
		sectionID = *field.SectionID
	case field.SubformID != nil:
		var err error
		sectionID, err = resolveSubformSectionID(ctx, transaction, cs.subformRepo, *field.SubformID, cs.cfg.MaxSubformDepth)
		if err != nil {
			return uuid.Nil, err
		}
	default:
		return uuid.Nil, fmt.Errorf("field %s has no owner", field.ID)
	}
	return cs.sectionFormID(ctx, transaction, sectionID)
}

func (cs *cleanupService) sectionFormID(ctx context.Context, transaction *gorm.DB, sectionID uuid.UUID) (uuid.UUID, error) {
	sections, err := cs.sectionRepo.GetByIDs(ctx, transaction, []uuid.UUID{sectionID})
	if err != nil {
		return uuid.Nil, err
	}
	if len(sections) == 0 {
		return uuid.Nil, fmt.Errorf("section %s not found", sectionID)
	}
	return sections[0].FormID, nil
}

// Sibling renumbering keeps sort_order contiguous from zero after a
// delete, so appends at len(siblings) stay correct.

func (cs *cleanupService) renumberSections(ctx context.Context, txn *gorm.DB, formID uuid.UUID) error {
	remaining, err := cs.sectionRepo.ListByFormIDs(ctx, txn, []uuid.UUID{formID})
	if err != nil {
		return err
	}
	for i, s := range remaining {
		if s.SortOrder == i {
			continue
		}
		if err := cs.sectionRepo.UpdateSortOrder(ctx, txn, s.ID, i); err != nil {
			return err
		}
	}
	return nil
}

func (cs *cleanupService) renumberFields(ctx context.Context, txn *gorm.DB, sectionID, subformID *uuid.UUID) error {
	var remaining []*types.FormField
	var err error
	if sectionID != nil {
		remaining, err = cs.fieldRepo.ListBySectionIDs(ctx, txn, []uuid.UUID{*sectionID})
	} else if subformID != nil {
		remaining, err = cs.fieldRepo.ListBySubformIDs(ctx, txn, []uuid.UUID{*subformID})
	}
	if err != nil {
		return err
	}
	for i, f := range remaining {
		if f.SortOrder == i {
			continue
		}
		if err := cs.fieldRepo.UpdateSortOrder(ctx, txn, f.ID, i); err != nil {
			return err
		}
	}
	return nil
}

func (cs *cleanupService) renumberSubforms(ctx context.Context, txn *gorm.DB, sectionID, parentSubformID *uuid.UUID) error {
	var remaining []*types.Subform
	var err error
	if sectionID != nil {
		remaining, err = cs.subformRepo.ListBySectionIDs(ctx, txn, []uuid.UUID{*sectionID})
	} else if parentSubformID != nil {
		remaining, err = cs.subformRepo.ListByParentIDs(ctx, txn, []uuid.UUID{*parentSubformID})
	}
	if err != nil {
		return err
	}
	for i, sf := range remaining {
		if sf.SortOrder == i {
			continue
		}
		if err := cs.subformRepo.UpdateSortOrder(ctx, txn, sf.ID, i); err != nil {
			return err
		}
	}
	return nil
}

func (cs *cleanupService) renumberForms(ctx context.Context, txn *gorm.DB, moduleID uuid.UUID) error {
	remaining, err := cs.formRepo.ListByModuleIDs(ctx, txn, []uuid.UUID{moduleID})
	if err != nil {
		return err
	}
	for i, f := range remaining {
		if f.SortOrder == i {
			continue
		}
		f.SortOrder = i
		if err := cs.formRepo.Save(ctx, txn, f); err != nil {
			return err
		}
	}
	return nil
}

func (cs *cleanupService) renumberModules(ctx context.Context, txn *gorm.DB, parentID *uuid.UUID) error {
	var remaining []*types.Module
	var err error
	if parentID != nil {
		remaining, err = cs.moduleRepo.ListByParentIDs(ctx, txn, []uuid.UUID{*parentID})
	} else {
		all, lerr := cs.moduleRepo.ListAll(ctx, txn)
		if lerr != nil {
			return lerr
		}
		for _, m := range all {
			if m.ParentID == nil {
				remaining = append(remaining, m)
			}
		}
	}
	if err != nil {
		return err
	}
	for i, m := range remaining {
		if m.SortOrder == i {
			continue
		}
		m.SortOrder = i
		if err := cs.moduleRepo.Save(ctx, txn, m); err != nil {
			return err
		}
	}
	return nil
}
