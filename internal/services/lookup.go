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

// LookupSourceInfo is one aggregated entry of the "what feeds this
// form" query.
type LookupSourceInfo struct {
	SourceID    string `json:"source_id"`
	SourceType  string `json:"source_type"`
	Name        string `json:"name"`
	Breadcrumb  string `json:"breadcrumb"`
	RecordCount int64  `json:"record_count"`
	FieldCount  int    `json:"field_count"`
}

// LinkedFormInfo is one aggregated entry of the inverse "what consumes
// this form" query.
type LinkedFormInfo struct {
	FormID     uuid.UUID `json:"form_id"`
	FormName   string    `json:"form_name"`
	ModuleID   uuid.UUID `json:"module_id"`
	ModuleName string    `json:"module_name"`
	FieldCount int       `json:"field_count"`
}

type LookupService interface {
	FieldIndexer
	ReindexAll(ctx context.Context, tx *gorm.DB) error
	GetLookupSources(ctx context.Context, tx *gorm.DB, formID uuid.UUID) ([]*LookupSourceInfo, error)
	GetLinkedRecords(ctx context.Context, tx *gorm.DB, formID uuid.UUID) ([]*LinkedFormInfo, error)
}

type lookupService struct {
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

func NewLookupService(
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
) LookupService {
	return &lookupService{
		db:          db,
		log:         baseLog.With("service", "LookupService"),
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

// IndexField maintains the relation rows for a lookup field. It is
// best-effort: any resolution failure is logged and swallowed so field
// creation is never blocked by relation bookkeeping.
func (ls *lookupService) IndexField(ctx context.Context, tx *gorm.DB, field *types.FormField) error {
	if field.FieldType != types.FieldTypeLookup {
		return nil
	}
	lookupCfg := field.LookupConfig()
	if lookupCfg == nil {
		return nil
	}

	if err := ls.indexLookupField(ctx, tx, field, lookupCfg); err != nil {
		resErr := apperr.RelationResolutionFailed(field.ID, err)
		ls.log.Warn("Skipping lookup relation", "error", resErr, "field_id", field.ID, "source_id", lookupCfg.SourceID)
	}
	return nil
}

// ReindexAll rebuilds the relation rows for every lookup field.
// Relation ids are deterministic per (source, field) pair, so a rebuild
// converges on the same rows it would have written incrementally.
func (ls *lookupService) ReindexAll(ctx context.Context, tx *gorm.DB) error {
	transaction := tx
	if transaction == nil {
		transaction = ls.db
	}
	fields, err := ls.fieldRepo.ListLookupFields(ctx, transaction)
	if err != nil {
		return fmt.Errorf("list lookup fields: %w", err)
	}
	for _, field := range fields {
		if err := ls.IndexField(ctx, transaction, field); err != nil {
			return err
		}
	}
	ls.log.Info("Reindexed lookup relations", "fields", len(fields))
	return nil
}

func (ls *lookupService) indexLookupField(ctx context.Context, tx *gorm.DB, field *types.FormField, lookupCfg *types.LookupConfig) error {
	formID, moduleID, err := ls.resolveFieldOwner(ctx, tx, field)
	if err != nil {
		return err
	}

	source, err := ls.materializeSource(ctx, tx, lookupCfg.SourceID)
	if err != nil {
		return err
	}

	var filters []byte
	if len(lookupCfg.Filters) > 0 {
		filters, err = json.Marshal(lookupCfg.Filters)
		if err != nil {
			return fmt.Errorf("marshal filters: %w", err)
		}
	}

	now := time.Now()
	relation := &types.LookupFieldRelation{
		ID:             types.LookupRelationID(source.ID, field.ID),
		LookupSourceID: source.ID,
		FormFieldID:    field.ID,
		FormID:         formID,
		ModuleID:       moduleID,
		DisplayField:   lookupCfg.DisplayField,
		ValueField:     lookupCfg.ValueField,
		Multiple:       lookupCfg.Multiple,
		Filters:        filters,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return ls.lookupRepo.UpsertRelation(ctx, tx, relation)
}

// resolveFieldOwner finds the form and module a field belongs to,
// walking up through its subform chain when needed.
func (ls *lookupService) resolveFieldOwner(ctx context.Context, tx *gorm.DB, field *types.FormField) (uuid.UUID, uuid.UUID, error) {
	var sectionID uuid.UUID
	switch {
	case field.SectionID != nil:
		sectionID = *field.SectionID
	case field.SubformID != nil:
		var err error
		sectionID, err = resolveSubformSectionID(ctx, tx, ls.subformRepo, *field.SubformID, ls.cfg.MaxSubformDepth)
		if err != nil {
			return uuid.Nil, uuid.Nil, err
		}
	default:
		return uuid.Nil, uuid.Nil, fmt.Errorf("field %s has no owner", field.ID)
	}

	sections, err := ls.sectionRepo.GetByIDs(ctx, tx, []uuid.UUID{sectionID})
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if len(sections) == 0 {
		return uuid.Nil, uuid.Nil, fmt.Errorf("section %s not found", sectionID)
	}
	forms, err := ls.formRepo.GetByIDs(ctx, tx, []uuid.UUID{sections[0].FormID})
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if len(forms) == 0 {
		return uuid.Nil, uuid.Nil, fmt.Errorf("form %s not found", sections[0].FormID)
	}
	return forms[0].ID, forms[0].ModuleID, nil
}

// materializeSource resolves or lazily creates the LookupSource row for
// a raw source id.
func (ls *lookupService) materializeSource(ctx context.Context, tx *gorm.DB, sourceID string) (*types.LookupSource, error) {
	sourceType, refID, ok := types.ParseLookupSourceID(sourceID)
	if !ok {
		return nil, fmt.Errorf("malformed lookup source id %q", sourceID)
	}

	var name, description string
	switch sourceType {
	case types.LookupSourceForm:
		forms, err := ls.formRepo.GetByIDs(ctx, tx, []uuid.UUID{refID})
		if err != nil {
			return nil, err
		}
		if len(forms) == 0 {
			return nil, fmt.Errorf("lookup source form %s not found", refID)
		}
		name, description = forms[0].Name, forms[0].Description
	case types.LookupSourceModule:
		modules, err := ls.moduleRepo.GetByIDs(ctx, tx, []uuid.UUID{refID})
		if err != nil {
			return nil, err
		}
		if len(modules) == 0 {
			return nil, fmt.Errorf("lookup source module %s not found", refID)
		}
		name, description = modules[0].Name, modules[0].Description
	}

	now := time.Now()
	source := &types.LookupSource{
		ID:          sourceID,
		SourceType:  sourceType,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := ls.lookupRepo.UpsertSource(ctx, tx, source); err != nil {
		return nil, err
	}
	return source, nil
}

func (ls *lookupService) GetLookupSources(ctx context.Context, tx *gorm.DB, formID uuid.UUID) ([]*LookupSourceInfo, error) {
	transaction := tx
	if transaction == nil {
		transaction = ls.db
	}

	forms, err := ls.formRepo.GetByIDs(ctx, transaction, []uuid.UUID{formID})
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if len(forms) == 0 {
		return nil, apperr.NotFound("form", formID)
	}

	sections, err := ls.sectionRepo.ListByFormIDs(ctx, transaction, []uuid.UUID{formID})
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	fieldIDs, _, err := collectSectionItems(ctx, transaction, ls.fieldRepo, ls.subformRepo, sectionIDsOf(sections))
	if err != nil {
		return nil, err
	}
	fields, err := ls.fieldRepo.GetByIDs(ctx, transaction, fieldIDs)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}

	var lookupFieldIDs []uuid.UUID
	for _, f := range fields {
		if f.FieldType == types.FieldTypeLookup && f.LookupConfig() != nil {
			lookupFieldIDs = append(lookupFieldIDs, f.ID)
		}
	}
	relations, err := ls.lookupRepo.ListRelationsByFieldIDs(ctx, transaction, lookupFieldIDs)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}

	seen := make(map[string]struct{})
	var infos []*LookupSourceInfo
	for _, rel := range relations {
		if _, dup := seen[rel.LookupSourceID]; dup {
			continue
		}
		seen[rel.LookupSourceID] = struct{}{}
		info, err := ls.describeSource(ctx, transaction, rel.LookupSourceID)
		if err != nil {
			ls.log.Warn("Skipping unresolvable lookup source", "error", err, "source_id", rel.LookupSourceID)
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (ls *lookupService) describeSource(ctx context.Context, transaction *gorm.DB, sourceID string) (*LookupSourceInfo, error) {
	sourceType, refID, ok := types.ParseLookupSourceID(sourceID)
	if !ok {
		return nil, fmt.Errorf("malformed lookup source id %q", sourceID)
	}

	info := &LookupSourceInfo{SourceID: sourceID, SourceType: sourceType}
	switch sourceType {
	case types.LookupSourceForm:
		forms, err := ls.formRepo.GetByIDs(ctx, transaction, []uuid.UUID{refID})
		if err != nil {
			return nil, err
		}
		if len(forms) == 0 {
			return nil, fmt.Errorf("source form %s not found", refID)
		}
		form := forms[0]
		info.Name = form.Name
		breadcrumb, err := ls.moduleBreadcrumb(ctx, transaction, form.ModuleID)
		if err != nil {
			return nil, err
		}
		info.Breadcrumb = breadcrumb + " / " + form.Name
		if err := ls.accumulateFormStats(ctx, transaction, form.ID, info); err != nil {
			return nil, err
		}
	case types.LookupSourceModule:
		modules, err := ls.moduleRepo.GetByIDs(ctx, transaction, []uuid.UUID{refID})
		if err != nil {
			return nil, err
		}
		if len(modules) == 0 {
			return nil, fmt.Errorf("source module %s not found", refID)
		}
		info.Name = modules[0].Name
		breadcrumb, err := ls.moduleBreadcrumb(ctx, transaction, refID)
		if err != nil {
			return nil, err
		}
		info.Breadcrumb = breadcrumb
		forms, err := ls.formRepo.ListByModuleIDs(ctx, transaction, []uuid.UUID{refID})
		if err != nil {
			return nil, err
		}
		for _, f := range forms {
			if err := ls.accumulateFormStats(ctx, transaction, f.ID, info); err != nil {
				return nil, err
			}
		}
	}
	return info, nil
}

// accumulateFormStats adds one form's record and field counts to the
// running totals. A form with no partition mapping has no records yet;
// describing it must not trigger a lazy partition claim.
func (ls *lookupService) accumulateFormStats(ctx context.Context, transaction *gorm.DB, formID uuid.UUID, info *LookupSourceInfo) error {
	mapping, err := ls.mappingRepo.GetByFormID(ctx, transaction, formID)
	if err != nil {
		return err
	}
	if mapping != nil {
		count, err := ls.recordRepo.CountByFormID(ctx, transaction, mapping.StorageTable, formID)
		if err != nil {
			return err
		}
		info.RecordCount += count
	}

	sections, err := ls.sectionRepo.ListByFormIDs(ctx, transaction, []uuid.UUID{formID})
	if err != nil {
		return err
	}
	fieldIDs, _, err := collectSectionItems(ctx, transaction, ls.fieldRepo, ls.subformRepo, sectionIDsOf(sections))
	if err != nil {
		return err
	}
	info.FieldCount += len(fieldIDs)
	return nil
}

func (ls *lookupService) moduleBreadcrumb(ctx context.Context, transaction *gorm.DB, moduleID uuid.UUID) (string, error) {
	var names []string
	current := moduleID
	for hop := 0; hop < 32; hop++ {
		modules, err := ls.moduleRepo.GetByIDs(ctx, transaction, []uuid.UUID{current})
		if err != nil {
			return "", err
		}
		if len(modules) == 0 {
			break
		}
		names = append([]string{modules[0].Name}, names...)
		if modules[0].ParentID == nil {
			break
		}
		current = *modules[0].ParentID
	}
	return strings.Join(names, " / "), nil
}

func (ls *lookupService) GetLinkedRecords(ctx context.Context, tx *gorm.DB, formID uuid.UUID) ([]*LinkedFormInfo, error) {
	transaction := tx
	if transaction == nil {
		transaction = ls.db
	}

	forms, err := ls.formRepo.GetByIDs(ctx, transaction, []uuid.UUID{formID})
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if len(forms) == 0 {
		return nil, apperr.NotFound("form", formID)
	}
	form := forms[0]

	// Fields point at this form either directly or through its module.
	sourceIDs := []string{
		"form_" + form.ID.String(),
		"module_" + form.ModuleID.String(),
	}
	relations, err := ls.lookupRepo.ListRelationsBySourceIDs(ctx, transaction, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}

	counts := make(map[uuid.UUID]int)
	for _, rel := range relations {
		counts[rel.FormID]++
	}
	referencingIDs := make([]uuid.UUID, 0, len(counts))
	for id := range counts {
		referencingIDs = append(referencingIDs, id)
	}
	referencingForms, err := ls.formRepo.GetByIDs(ctx, transaction, referencingIDs)
	if err != nil {
		return nil, fmt.Errorf("load referencing forms: %w", err)
	}

	moduleIDs := make([]uuid.UUID, 0, len(referencingForms))
	for _, f := range referencingForms {
		moduleIDs = append(moduleIDs, f.ModuleID)
	}
	modules, err := ls.moduleRepo.GetByIDs(ctx, transaction, moduleIDs)
	if err != nil {
		return nil, fmt.Errorf("load referencing modules: %w", err)
	}
	moduleNames := make(map[uuid.UUID]string, len(modules))
	for _, m := range modules {
		moduleNames[m.ID] = m.Name
	}

	infos := make([]*LinkedFormInfo, 0, len(referencingForms))
	for _, f := range referencingForms {
		infos = append(infos, &LinkedFormInfo{
			FormID:     f.ID,
			FormName:   f.Name,
			ModuleID:   f.ModuleID,
			ModuleName: moduleNames[f.ModuleID],
			FieldCount: counts[f.ID],
		})
	}
	return infos, nil
}

func sectionIDsOf(sections []*types.FormSection) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(sections))
	for _, s := range sections {
		ids = append(ids, s.ID)
	}
	return ids
}
