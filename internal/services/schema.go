package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/apperr"
	"github.com/nestform/nestform-backend/internal/config"
	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/repos"
	"github.com/nestform/nestform-backend/internal/requestdata"
	"github.com/nestform/nestform-backend/internal/types"
)

// FieldIndexer receives fields after create/update so lookup relations
// can be maintained. Implemented by LookupService; indexing is
// best-effort and never blocks the schema mutation.
type FieldIndexer interface {
	IndexField(ctx context.Context, tx *gorm.DB, field *types.FormField) error
}

type CreateModuleInput struct {
	Name        string
	Description string
	ParentID    *uuid.UUID
	ModuleType  string
}

type UpdateModuleInput struct {
	Name        *string
	Description *string
	ModuleType  *string
	IsActive    *bool
	SortOrder   *int
}

type CreateFormInput struct {
	ModuleID    uuid.UUID
	Name        string
	Description string
	IsUserForm  bool
	Settings    datatypes.JSON
}

type UpdateFormInput struct {
	Name        *string
	Description *string
	IsUserForm  *bool
	IsPublished *bool
	Settings    datatypes.JSON
}

type CreateSectionInput struct {
	FormID        uuid.UUID
	Title         string
	Columns       int
	IsVisible     *bool
	IsCollapsible *bool
}

type UpdateSectionInput struct {
	Title         *string
	Columns       *int
	IsVisible     *bool
	IsCollapsible *bool
}

type FieldInput struct {
	SectionID  *uuid.UUID
	SubformID  *uuid.UUID
	FieldType  string
	Label      string
	IsRequired *bool
	Options    datatypes.JSON
	Validation datatypes.JSON
	Lookup     datatypes.JSON
}

type CreateSubformInput struct {
	SectionID       *uuid.UUID
	ParentSubformID *uuid.UUID
	Title           string
}

// SectionItemCount is the recursive tally of everything under a
// section, nested subforms included.
type SectionItemCount struct {
	Fields   int `json:"fields"`
	Subforms int `json:"subforms"`
}

type SchemaService interface {
	CreateModule(ctx context.Context, tx *gorm.DB, input CreateModuleInput) (*types.Module, error)
	GetModuleTree(ctx context.Context, tx *gorm.DB) ([]*types.Module, error)
	GetModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (*types.Module, error)
	UpdateModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, input UpdateModuleInput) (*types.Module, error)

	CreateForm(ctx context.Context, tx *gorm.DB, input CreateFormInput) (*types.Form, error)
	GetForm(ctx context.Context, tx *gorm.DB, formID uuid.UUID) (*types.Form, error)
	ListFormsByModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Form, error)
	UpdateForm(ctx context.Context, tx *gorm.DB, formID uuid.UUID, input UpdateFormInput) (*types.Form, error)

	CreateSection(ctx context.Context, tx *gorm.DB, input CreateSectionInput) (*types.FormSection, error)
	UpdateSection(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID, input UpdateSectionInput) (*types.FormSection, error)

	CreateField(ctx context.Context, tx *gorm.DB, input FieldInput) (*types.FormField, error)
	UpdateField(ctx context.Context, tx *gorm.DB, fieldID uuid.UUID, input FieldInput) (*types.FormField, error)

	CreateSubform(ctx context.Context, tx *gorm.DB, input CreateSubformInput) (*types.Subform, error)

	CountSectionItems(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID) (SectionItemCount, error)
}

type schemaService struct {
	db          *gorm.DB
	log         *logger.Logger
	cfg         config.Config
	moduleRepo  repos.ModuleRepo
	formRepo    repos.FormRepo
	sectionRepo repos.SectionRepo
	fieldRepo   repos.FieldRepo
	subformRepo repos.SubformRepo
	partition   PartitionService
	indexer     FieldIndexer
	access      AccessProvider
}

func NewSchemaService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg config.Config,
	moduleRepo repos.ModuleRepo,
	formRepo repos.FormRepo,
	sectionRepo repos.SectionRepo,
	fieldRepo repos.FieldRepo,
	subformRepo repos.SubformRepo,
	partition PartitionService,
	indexer FieldIndexer,
	access AccessProvider,
) SchemaService {
	return &schemaService{
		db:          db,
		log:         baseLog.With("service", "SchemaService"),
		cfg:         cfg,
		moduleRepo:  moduleRepo,
		formRepo:    formRepo,
		sectionRepo: sectionRepo,
		fieldRepo:   fieldRepo,
		subformRepo: subformRepo,
		partition:   partition,
		indexer:     indexer,
		access:      access,
	}
}

// BuildModuleTree assembles the hierarchy from flat rows: map every row
// by id, attach each to its parent's children, compute level as the
// distance from the nearest ancestor with no parent, and derive path
// from the name chain. Rows whose parent is missing become roots.
func BuildModuleTree(flat []*types.Module) []*types.Module {
	byID := make(map[uuid.UUID]*types.Module, len(flat))
	for _, m := range flat {
		m.Children = nil
		byID[m.ID] = m
	}

	var roots []*types.Module
	for _, m := range flat {
		if m.ParentID != nil {
			if parent, ok := byID[*m.ParentID]; ok {
				parent.Children = append(parent.Children, m)
				continue
			}
		}
		roots = append(roots, m)
	}

	var annotate func(m *types.Module, level int, parentPath string)
	annotate = func(m *types.Module, level int, parentPath string) {
		m.Level = level
		m.Path = parentPath + "/" + m.Name
		sort.SliceStable(m.Children, func(i, j int) bool {
			return m.Children[i].SortOrder < m.Children[j].SortOrder
		})
		for _, child := range m.Children {
			annotate(child, level+1, m.Path)
		}
	}
	sort.SliceStable(roots, func(i, j int) bool {
		return roots[i].SortOrder < roots[j].SortOrder
	})
	for _, root := range roots {
		annotate(root, 0, "")
	}
	return roots
}

// FlattenModuleTree is the inverse of BuildModuleTree, in depth-first
// order. Listing UIs want a flat slice with levels already computed.
func FlattenModuleTree(tree []*types.Module) []*types.Module {
	var flat []*types.Module
	var walk func(nodes []*types.Module)
	walk = func(nodes []*types.Module) {
		for _, n := range nodes {
			flat = append(flat, n)
			walk(n.Children)
		}
	}
	walk(tree)
	return flat
}

func (ss *schemaService) accessibleSet(ctx context.Context) (map[uuid.UUID]struct{}, error) {
	if ss.access == nil {
		return nil, nil
	}
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, nil
	}
	return ss.access.AccessibleModuleIDs(ctx, rd.UserID)
}

func (ss *schemaService) CreateModule(ctx context.Context, tx *gorm.DB, input CreateModuleInput) (*types.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	if input.Name == "" {
		return nil, apperr.Validation("module name is required")
	}
	moduleType := input.ModuleType
	if moduleType == "" {
		moduleType = types.ModuleTypeStandard
	}

	level := 0
	path := "/" + input.Name
	if input.ParentID != nil {
		parents, err := ss.moduleRepo.GetByIDs(ctx, transaction, []uuid.UUID{*input.ParentID})
		if err != nil {
			return nil, fmt.Errorf("load parent module: %w", err)
		}
		if len(parents) == 0 {
			return nil, apperr.NotFound("module", *input.ParentID)
		}
		level = parents[0].Level + 1
		path = parents[0].Path + "/" + input.Name
	}

	siblings, err := ss.siblingModules(ctx, transaction, input.ParentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	module := &types.Module{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		ParentID:    input.ParentID,
		ModuleType:  moduleType,
		Level:       level,
		Path:        path,
		SortOrder:   len(siblings),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = transaction.Transaction(func(txn *gorm.DB) error {
		if _, err := ss.moduleRepo.Create(ctx, txn, []*types.Module{module}); err != nil {
			return err
		}
		// Onboarding convenience: a module starts with one form.
		_, err := ss.createFormInternal(ctx, txn, CreateFormInput{
			ModuleID: module.ID,
			Name:     "General",
		})
		return err
	})
	if err != nil {
		ss.log.Error("CreateModule failed", "error", err, "name", input.Name)
		return nil, fmt.Errorf("create module: %w", err)
	}
	return module, nil
}

func (ss *schemaService) siblingModules(ctx context.Context, transaction *gorm.DB, parentID *uuid.UUID) ([]*types.Module, error) {
	if parentID != nil {
		return ss.moduleRepo.ListByParentIDs(ctx, transaction, []uuid.UUID{*parentID})
	}
	all, err := ss.moduleRepo.ListAll(ctx, transaction)
	if err != nil {
		return nil, err
	}
	var roots []*types.Module
	for _, m := range all {
		if m.ParentID == nil {
			roots = append(roots, m)
		}
	}
	return roots, nil
}

func (ss *schemaService) GetModuleTree(ctx context.Context, tx *gorm.DB) ([]*types.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	all, err := ss.moduleRepo.ListAll(ctx, transaction)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	allowed, err := ss.accessibleSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accessible modules: %w", err)
	}
	if allowed != nil {
		filtered := all[:0]
		for _, m := range all {
			if moduleAllowed(allowed, m.ID) {
				filtered = append(filtered, m)
			}
		}
		all = filtered
	}
	return BuildModuleTree(all), nil
}

func (ss *schemaService) GetModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) (*types.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	modules, err := ss.moduleRepo.GetByIDs(ctx, transaction, []uuid.UUID{moduleID})
	if err != nil {
		return nil, fmt.Errorf("load module: %w", err)
	}
	if len(modules) == 0 {
		return nil, apperr.NotFound("module", moduleID)
	}
	module := modules[0]

	forms, err := ss.ListFormsByModule(ctx, transaction, moduleID)
	if err != nil {
		return nil, err
	}
	module.Forms = forms
	return module, nil
}

func (ss *schemaService) UpdateModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID, input UpdateModuleInput) (*types.Module, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	modules, err := ss.moduleRepo.GetByIDs(ctx, transaction, []uuid.UUID{moduleID})
	if err != nil {
		return nil, fmt.Errorf("load module: %w", err)
	}
	if len(modules) == 0 {
		return nil, apperr.NotFound("module", moduleID)
	}
	module := modules[0]

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperr.Validation("module name is required")
		}
		module.Name = *input.Name
	}
	if input.Description != nil {
		module.Description = *input.Description
	}
	if input.ModuleType != nil {
		module.ModuleType = *input.ModuleType
	}
	if input.IsActive != nil {
		module.IsActive = *input.IsActive
	}
	if input.SortOrder != nil {
		module.SortOrder = *input.SortOrder
	}
	module.UpdatedAt = time.Now()

	if err := ss.moduleRepo.Save(ctx, transaction, module); err != nil {
		return nil, fmt.Errorf("save module: %w", err)
	}
	return module, nil
}

func (ss *schemaService) CreateForm(ctx context.Context, tx *gorm.DB, input CreateFormInput) (*types.Form, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	modules, err := ss.moduleRepo.GetByIDs(ctx, transaction, []uuid.UUID{input.ModuleID})
	if err != nil {
		return nil, fmt.Errorf("load module: %w", err)
	}
	if len(modules) == 0 {
		return nil, apperr.NotFound("module", input.ModuleID)
	}

	var form *types.Form
	err = transaction.Transaction(func(txn *gorm.DB) error {
		form, err = ss.createFormInternal(ctx, txn, input)
		return err
	})
	if err != nil {
		ss.log.Error("CreateForm failed", "error", err, "module_id", input.ModuleID)
		return nil, fmt.Errorf("create form: %w", err)
	}

	// A user form claims the reserved partition immediately; regular
	// forms are assigned lazily on first record write.
	if form.IsUserForm {
		if _, err := ss.partition.ResolvePartition(ctx, transaction, form.ID); err != nil {
			return nil, err
		}
	}
	return form, nil
}

func (ss *schemaService) createFormInternal(ctx context.Context, txn *gorm.DB, input CreateFormInput) (*types.Form, error) {
	if input.Name == "" {
		return nil, apperr.Validation("form name is required")
	}
	siblings, err := ss.formRepo.ListByModuleIDs(ctx, txn, []uuid.UUID{input.ModuleID})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	form := &types.Form{
		ID:          uuid.New(),
		ModuleID:    input.ModuleID,
		Name:        input.Name,
		Description: input.Description,
		IsUserForm:  input.IsUserForm,
		Settings:    input.Settings,
		SortOrder:   len(siblings),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := ss.formRepo.Create(ctx, txn, []*types.Form{form}); err != nil {
		return nil, err
	}

	// Every form starts with one section.
	section := &types.FormSection{
		ID:        uuid.New(),
		FormID:    form.ID,
		Title:     "Details",
		Columns:   1,
		IsVisible: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := ss.sectionRepo.Create(ctx, txn, []*types.FormSection{section}); err != nil {
		return nil, err
	}
	form.Sections = []*types.FormSection{section}
	return form, nil
}

func (ss *schemaService) GetForm(ctx context.Context, tx *gorm.DB, formID uuid.UUID) (*types.Form, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	forms, err := ss.formRepo.GetByIDs(ctx, transaction, []uuid.UUID{formID})
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if len(forms) == 0 {
		return nil, apperr.NotFound("form", formID)
	}
	form := forms[0]

	allowed, err := ss.accessibleSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accessible modules: %w", err)
	}
	if !moduleAllowed(allowed, form.ModuleID) {
		return nil, apperr.NotFound("form", formID)
	}

	if err := ss.hydrateForms(ctx, transaction, []*types.Form{form}); err != nil {
		return nil, err
	}
	return form, nil
}

func (ss *schemaService) ListFormsByModule(ctx context.Context, tx *gorm.DB, moduleID uuid.UUID) ([]*types.Form, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	allowed, err := ss.accessibleSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accessible modules: %w", err)
	}
	if !moduleAllowed(allowed, moduleID) {
		return []*types.Form{}, nil
	}
	forms, err := ss.formRepo.ListByModuleIDs(ctx, transaction, []uuid.UUID{moduleID})
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	if err := ss.hydrateForms(ctx, transaction, forms); err != nil {
		return nil, err
	}
	return forms, nil
}

func (ss *schemaService) UpdateForm(ctx context.Context, tx *gorm.DB, formID uuid.UUID, input UpdateFormInput) (*types.Form, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	forms, err := ss.formRepo.GetByIDs(ctx, transaction, []uuid.UUID{formID})
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if len(forms) == 0 {
		return nil, apperr.NotFound("form", formID)
	}
	form := forms[0]

	userFormChanged := false
	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperr.Validation("form name is required")
		}
		form.Name = *input.Name
	}
	if input.Description != nil {
		form.Description = *input.Description
	}
	if input.IsPublished != nil {
		form.IsPublished = *input.IsPublished
	}
	if input.Settings != nil {
		form.Settings = input.Settings
	}
	if input.IsUserForm != nil && *input.IsUserForm != form.IsUserForm {
		form.IsUserForm = *input.IsUserForm
		userFormChanged = true
	}
	form.UpdatedAt = time.Now()

	if err := ss.formRepo.Save(ctx, transaction, form); err != nil {
		return nil, fmt.Errorf("save form: %w", err)
	}

	// Flipping is_user_form reassigns the partition immediately rather
	// than waiting for the next record write.
	if userFormChanged {
		if _, err := ss.partition.ResolvePartition(ctx, transaction, form.ID); err != nil {
			return nil, err
		}
	}
	return form, nil
}

func (ss *schemaService) CreateSection(ctx context.Context, tx *gorm.DB, input CreateSectionInput) (*types.FormSection, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	if input.Title == "" {
		return nil, apperr.Validation("section title is required")
	}
	forms, err := ss.formRepo.GetByIDs(ctx, transaction, []uuid.UUID{input.FormID})
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	if len(forms) == 0 {
		return nil, apperr.NotFound("form", input.FormID)
	}
	siblings, err := ss.sectionRepo.ListByFormIDs(ctx, transaction, []uuid.UUID{input.FormID})
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	columns := input.Columns
	if columns < 1 {
		columns = 1
	}
	isVisible := true
	if input.IsVisible != nil {
		isVisible = *input.IsVisible
	}
	isCollapsible := false
	if input.IsCollapsible != nil {
		isCollapsible = *input.IsCollapsible
	}

	now := time.Now()
	section := &types.FormSection{
		ID:            uuid.New(),
		FormID:        input.FormID,
		Title:         input.Title,
		SortOrder:     len(siblings),
		Columns:       columns,
		IsVisible:     isVisible,
		IsCollapsible: isCollapsible,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := ss.sectionRepo.Create(ctx, transaction, []*types.FormSection{section}); err != nil {
		return nil, fmt.Errorf("create section: %w", err)
	}
	return section, nil
}

func (ss *schemaService) UpdateSection(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID, input UpdateSectionInput) (*types.FormSection, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	sections, err := ss.sectionRepo.GetByIDs(ctx, transaction, []uuid.UUID{sectionID})
	if err != nil {
		return nil, fmt.Errorf("load section: %w", err)
	}
	if len(sections) == 0 {
		return nil, apperr.NotFound("section", sectionID)
	}
	section := sections[0]

	if input.Title != nil {
		if *input.Title == "" {
			return nil, apperr.Validation("section title is required")
		}
		section.Title = *input.Title
	}
	if input.Columns != nil && *input.Columns >= 1 {
		section.Columns = *input.Columns
	}
	if input.IsVisible != nil {
		section.IsVisible = *input.IsVisible
	}
	if input.IsCollapsible != nil {
		section.IsCollapsible = *input.IsCollapsible
	}
	section.UpdatedAt = time.Now()

	if err := ss.sectionRepo.Save(ctx, transaction, section); err != nil {
		return nil, fmt.Errorf("save section: %w", err)
	}
	return section, nil
}

func (ss *schemaService) CreateField(ctx context.Context, tx *gorm.DB, input FieldInput) (*types.FormField, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	if err := validateFieldOwnership(input.SectionID, input.SubformID); err != nil {
		return nil, err
	}
	if input.Label == "" {
		return nil, apperr.Validation("field label is required")
	}
	if input.FieldType == "" {
		return nil, apperr.Validation("field type is required")
	}

	var siblings []*types.FormField
	var err error
	if input.SectionID != nil {
		sections, serr := ss.sectionRepo.GetByIDs(ctx, transaction, []uuid.UUID{*input.SectionID})
		if serr != nil {
			return nil, fmt.Errorf("load section: %w", serr)
		}
		if len(sections) == 0 {
			return nil, apperr.NotFound("section", *input.SectionID)
		}
		siblings, err = ss.fieldRepo.ListBySectionIDs(ctx, transaction, []uuid.UUID{*input.SectionID})
	} else {
		subforms, serr := ss.subformRepo.GetByIDs(ctx, transaction, []uuid.UUID{*input.SubformID})
		if serr != nil {
			return nil, fmt.Errorf("load subform: %w", serr)
		}
		if len(subforms) == 0 {
			return nil, apperr.NotFound("subform", *input.SubformID)
		}
		siblings, err = ss.fieldRepo.ListBySubformIDs(ctx, transaction, []uuid.UUID{*input.SubformID})
	}
	if err != nil {
		return nil, fmt.Errorf("list sibling fields: %w", err)
	}

	now := time.Now()
	field := &types.FormField{
		ID:         uuid.New(),
		SectionID:  input.SectionID,
		SubformID:  input.SubformID,
		FieldType:  input.FieldType,
		Label:      input.Label,
		SortOrder:  len(siblings),
		Options:    input.Options,
		Validation: input.Validation,
		Lookup:     input.Lookup,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if input.IsRequired != nil {
		field.IsRequired = *input.IsRequired
	}
	if _, err := ss.fieldRepo.Create(ctx, transaction, []*types.FormField{field}); err != nil {
		return nil, fmt.Errorf("create field: %w", err)
	}

	ss.indexFieldBestEffort(ctx, transaction, field)
	return field, nil
}

func (ss *schemaService) UpdateField(ctx context.Context, tx *gorm.DB, fieldID uuid.UUID, input FieldInput) (*types.FormField, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	fields, err := ss.fieldRepo.GetByIDs(ctx, transaction, []uuid.UUID{fieldID})
	if err != nil {
		return nil, fmt.Errorf("load field: %w", err)
	}
	if len(fields) == 0 {
		return nil, apperr.NotFound("field", fieldID)
	}
	field := fields[0]

	if input.Label != "" {
		field.Label = input.Label
	}
	if input.FieldType != "" {
		field.FieldType = input.FieldType
	}
	if input.IsRequired != nil {
		field.IsRequired = *input.IsRequired
	}
	if input.Options != nil {
		field.Options = input.Options
	}
	if input.Validation != nil {
		field.Validation = input.Validation
	}
	if input.Lookup != nil {
		field.Lookup = input.Lookup
	}
	field.UpdatedAt = time.Now()

	if err := ss.fieldRepo.Save(ctx, transaction, field); err != nil {
		return nil, fmt.Errorf("save field: %w", err)
	}

	ss.indexFieldBestEffort(ctx, transaction, field)
	return field, nil
}

func (ss *schemaService) indexFieldBestEffort(ctx context.Context, transaction *gorm.DB, field *types.FormField) {
	if ss.indexer == nil {
		return
	}
	if err := ss.indexer.IndexField(ctx, transaction, field); err != nil {
		// Relation bookkeeping must never block field mutation.
		ss.log.Warn("Lookup relation indexing failed", "error", err, "field_id", field.ID)
	}
}

func (ss *schemaService) CreateSubform(ctx context.Context, tx *gorm.DB, input CreateSubformInput) (*types.Subform, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	if err := validateFieldOwnership(input.SectionID, input.ParentSubformID); err != nil {
		return nil, apperr.Validation("subform must belong to exactly one section or parent subform")
	}
	if input.Title == "" {
		return nil, apperr.Validation("subform title is required")
	}

	level := 0
	var siblings []*types.Subform
	var err error
	if input.SectionID != nil {
		sections, serr := ss.sectionRepo.GetByIDs(ctx, transaction, []uuid.UUID{*input.SectionID})
		if serr != nil {
			return nil, fmt.Errorf("load section: %w", serr)
		}
		if len(sections) == 0 {
			return nil, apperr.NotFound("section", *input.SectionID)
		}
		siblings, err = ss.subformRepo.ListBySectionIDs(ctx, transaction, []uuid.UUID{*input.SectionID})
	} else {
		parents, serr := ss.subformRepo.GetByIDs(ctx, transaction, []uuid.UUID{*input.ParentSubformID})
		if serr != nil {
			return nil, fmt.Errorf("load parent subform: %w", serr)
		}
		if len(parents) == 0 {
			return nil, apperr.NotFound("subform", *input.ParentSubformID)
		}
		level = parents[0].Level + 1
		siblings, err = ss.subformRepo.ListByParentIDs(ctx, transaction, []uuid.UUID{*input.ParentSubformID})
	}
	if err != nil {
		return nil, fmt.Errorf("list sibling subforms: %w", err)
	}

	// The cap is enforced here, at creation, and nowhere else.
	if level >= ss.cfg.MaxSubformDepth {
		return nil, apperr.MaxNestingExceeded(level, ss.cfg.MaxSubformDepth)
	}

	now := time.Now()
	subform := &types.Subform{
		ID:              uuid.New(),
		SectionID:       input.SectionID,
		ParentSubformID: input.ParentSubformID,
		Title:           input.Title,
		Level:           level,
		SortOrder:       len(siblings),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := ss.subformRepo.Create(ctx, transaction, []*types.Subform{subform}); err != nil {
		return nil, fmt.Errorf("create subform: %w", err)
	}
	return subform, nil
}

func (ss *schemaService) CountSectionItems(ctx context.Context, tx *gorm.DB, sectionID uuid.UUID) (SectionItemCount, error) {
	transaction := tx
	if transaction == nil {
		transaction = ss.db
	}
	sections, err := ss.sectionRepo.GetByIDs(ctx, transaction, []uuid.UUID{sectionID})
	if err != nil {
		return SectionItemCount{}, fmt.Errorf("load section: %w", err)
	}
	if len(sections) == 0 {
		return SectionItemCount{}, apperr.NotFound("section", sectionID)
	}

	count := SectionItemCount{}
	fields, err := ss.fieldRepo.ListBySectionIDs(ctx, transaction, []uuid.UUID{sectionID})
	if err != nil {
		return SectionItemCount{}, err
	}
	count.Fields += len(fields)

	frontier, err := ss.subformRepo.ListBySectionIDs(ctx, transaction, []uuid.UUID{sectionID})
	if err != nil {
		return SectionItemCount{}, err
	}
	for len(frontier) > 0 {
		count.Subforms += len(frontier)
		ids := subformIDs(frontier)
		subFields, err := ss.fieldRepo.ListBySubformIDs(ctx, transaction, ids)
		if err != nil {
			return SectionItemCount{}, err
		}
		count.Fields += len(subFields)
		frontier, err = ss.subformRepo.ListByParentIDs(ctx, transaction, ids)
		if err != nil {
			return SectionItemCount{}, err
		}
	}
	return count, nil
}

// hydrateForms populates sections, fields, and the full subform tree
// for a batch of forms with one query per level instead of one per
// node.
func (ss *schemaService) hydrateForms(ctx context.Context, transaction *gorm.DB, forms []*types.Form) error {
	if len(forms) == 0 {
		return nil
	}
	formIDs := make([]uuid.UUID, 0, len(forms))
	formByID := make(map[uuid.UUID]*types.Form, len(forms))
	for _, f := range forms {
		f.Sections = nil
		formIDs = append(formIDs, f.ID)
		formByID[f.ID] = f
	}

	sections, err := ss.sectionRepo.ListByFormIDs(ctx, transaction, formIDs)
	if err != nil {
		return fmt.Errorf("list sections: %w", err)
	}
	sectionIDs := make([]uuid.UUID, 0, len(sections))
	sectionByID := make(map[uuid.UUID]*types.FormSection, len(sections))
	for _, s := range sections {
		s.Fields = nil
		s.Subforms = nil
		sectionIDs = append(sectionIDs, s.ID)
		sectionByID[s.ID] = s
		formByID[s.FormID].Sections = append(formByID[s.FormID].Sections, s)
	}

	sectionFields, err := ss.fieldRepo.ListBySectionIDs(ctx, transaction, sectionIDs)
	if err != nil {
		return fmt.Errorf("list section fields: %w", err)
	}
	for _, f := range sectionFields {
		if s, ok := sectionByID[*f.SectionID]; ok {
			s.Fields = append(s.Fields, f)
		}
	}

	frontier, err := ss.subformRepo.ListBySectionIDs(ctx, transaction, sectionIDs)
	if err != nil {
		return fmt.Errorf("list subforms: %w", err)
	}
	for _, sf := range frontier {
		sf.Fields = nil
		sf.Children = nil
		if s, ok := sectionByID[*sf.SectionID]; ok {
			s.Subforms = append(s.Subforms, sf)
		}
	}

	subformByID := make(map[uuid.UUID]*types.Subform)
	for len(frontier) > 0 {
		ids := subformIDs(frontier)
		for _, sf := range frontier {
			subformByID[sf.ID] = sf
		}
		fields, err := ss.fieldRepo.ListBySubformIDs(ctx, transaction, ids)
		if err != nil {
			return fmt.Errorf("list subform fields: %w", err)
		}
		for _, f := range fields {
			if sf, ok := subformByID[*f.SubformID]; ok {
				sf.Fields = append(sf.Fields, f)
			}
		}
		children, err := ss.subformRepo.ListByParentIDs(ctx, transaction, ids)
		if err != nil {
			return fmt.Errorf("list child subforms: %w", err)
		}
		for _, child := range children {
			child.Fields = nil
			child.Children = nil
			if parent, ok := subformByID[*child.ParentSubformID]; ok {
				parent.Children = append(parent.Children, child)
			}
		}
		frontier = children
	}
	return nil
}

func validateFieldOwnership(sectionID, subformID *uuid.UUID) error {
	if sectionID != nil && subformID != nil {
		return apperr.Validation("field must belong to exactly one of section or subform, not both")
	}
	if sectionID == nil && subformID == nil {
		return apperr.Validation("field must belong to a section or a subform")
	}
	return nil
}

func subformIDs(subforms []*types.Subform) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(subforms))
	for _, sf := range subforms {
		ids = append(ids, sf.ID)
	}
	return ids
}
