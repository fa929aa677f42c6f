package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nestform/nestform-backend/internal/types"
)

func lookupJSON(t *testing.T, cfg types.LookupConfig) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal lookup config: %v", err)
	}
	return raw
}

func createLookupField(t *testing.T, env *testEnv, sectionID uuid.UUID, sourceID string) *types.FormField {
	t.Helper()
	field, err := env.schema.CreateField(t.Context(), nil, FieldInput{
		SectionID: &sectionID,
		FieldType: types.FieldTypeLookup,
		Label:     "Reference",
		Lookup: lookupJSON(t, types.LookupConfig{
			SourceID:     sourceID,
			DisplayField: "name",
			ValueField:   "id",
		}),
	})
	if err != nil {
		t.Fatalf("create lookup field: %v", err)
	}
	return field
}

func TestLookupFieldCreatesRelation(t *testing.T) {
	env := newTestEnv(t)
	sourceModule := env.mustCreateModule(t, "Vendors")
	sourceForm := env.mustModuleForm(t, sourceModule.ID)
	consumerModule := env.mustCreateModule(t, "Purchasing")
	consumerForm := env.mustModuleForm(t, consumerModule.ID)
	got, err := env.schema.GetForm(t.Context(), nil, consumerForm.ID)
	if err != nil {
		t.Fatalf("get consumer form: %v", err)
	}

	sourceID := "form_" + sourceForm.ID.String()
	field := createLookupField(t, env, got.Sections[0].ID, sourceID)

	relations, err := env.lookupRepo.ListRelationsByFieldIDs(t.Context(), nil, []uuid.UUID{field.ID})
	if err != nil {
		t.Fatalf("list relations: %v", err)
	}
	if len(relations) != 1 {
		t.Fatalf("expected one relation, got %d", len(relations))
	}
	rel := relations[0]
	if rel.LookupSourceID != sourceID {
		t.Fatalf("relation source = %q", rel.LookupSourceID)
	}
	if rel.FormID != consumerForm.ID || rel.ModuleID != consumerModule.ID {
		t.Fatalf("relation owner wrong: %+v", rel)
	}
	if rel.ID != types.LookupRelationID(sourceID, field.ID) {
		t.Fatalf("relation id not deterministic")
	}

	sources, err := env.lookupRepo.GetSourcesByIDs(t.Context(), nil, []string{sourceID})
	if err != nil {
		t.Fatalf("load sources: %v", err)
	}
	if len(sources) != 1 || sources[0].Name != sourceForm.Name {
		t.Fatalf("source not materialized from referenced form: %+v", sources)
	}
}

func TestReindexingFieldKeepsSingleRelation(t *testing.T) {
	env := newTestEnv(t)
	sourceModule := env.mustCreateModule(t, "Catalog")
	sourceForm := env.mustModuleForm(t, sourceModule.ID)
	consumerModule := env.mustCreateModule(t, "Orders")
	consumerForm := env.mustModuleForm(t, consumerModule.ID)
	got, err := env.schema.GetForm(t.Context(), nil, consumerForm.ID)
	if err != nil {
		t.Fatalf("get consumer form: %v", err)
	}

	sourceID := "form_" + sourceForm.ID.String()
	field := createLookupField(t, env, got.Sections[0].ID, sourceID)

	// Update re-runs indexing; the deterministic id makes it an upsert.
	if _, err := env.schema.UpdateField(t.Context(), nil, field.ID, FieldInput{
		Label: "Item reference",
		Lookup: lookupJSON(t, types.LookupConfig{
			SourceID:     sourceID,
			DisplayField: "title",
		}),
	}); err != nil {
		t.Fatalf("update field: %v", err)
	}
	if err := env.lookup.ReindexAll(t.Context(), nil); err != nil {
		t.Fatalf("reindex all: %v", err)
	}

	relations, err := env.lookupRepo.ListRelationsByFieldIDs(t.Context(), nil, []uuid.UUID{field.ID})
	if err != nil {
		t.Fatalf("list relations: %v", err)
	}
	if len(relations) != 1 {
		t.Fatalf("expected one relation after reindex, got %d", len(relations))
	}
	if relations[0].DisplayField != "title" {
		t.Fatalf("relation not refreshed on update: %+v", relations[0])
	}
}

func TestGetLookupSourcesAggregatesCounts(t *testing.T) {
	env := newTestEnv(t)
	sourceModule := env.mustCreateModule(t, "Employees")
	sourceForm := env.mustModuleForm(t, sourceModule.ID)
	consumerModule := env.mustCreateModule(t, "Payroll")
	consumerForm := env.mustModuleForm(t, consumerModule.ID)
	got, err := env.schema.GetForm(t.Context(), nil, consumerForm.ID)
	if err != nil {
		t.Fatalf("get consumer form: %v", err)
	}

	sourceID := "form_" + sourceForm.ID.String()
	createLookupField(t, env, got.Sections[0].ID, sourceID)

	for i := 0; i < 3; i++ {
		if _, err := env.records.CreateRecord(t.Context(), nil, sourceForm.ID, map[string]any{}, RecordMeta{}); err != nil {
			t.Fatalf("seed source record %d: %v", i, err)
		}
	}

	sources, err := env.lookup.GetLookupSources(t.Context(), nil, consumerForm.ID)
	if err != nil {
		t.Fatalf("get lookup sources: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("expected one source, got %d", len(sources))
	}
	info := sources[0]
	if info.SourceID != sourceID || info.SourceType != types.LookupSourceForm {
		t.Fatalf("source identity wrong: %+v", info)
	}
	if info.RecordCount != 3 {
		t.Fatalf("record count = %d", info.RecordCount)
	}
	if info.Breadcrumb != "Employees / General" {
		t.Fatalf("breadcrumb = %q", info.Breadcrumb)
	}
}

func TestGetLinkedRecordsFindsConsumers(t *testing.T) {
	env := newTestEnv(t)
	sourceModule := env.mustCreateModule(t, "Sites")
	sourceForm := env.mustModuleForm(t, sourceModule.ID)
	consumerModule := env.mustCreateModule(t, "Inspections")
	consumerForm := env.mustModuleForm(t, consumerModule.ID)
	got, err := env.schema.GetForm(t.Context(), nil, consumerForm.ID)
	if err != nil {
		t.Fatalf("get consumer form: %v", err)
	}
	sectionID := got.Sections[0].ID

	createLookupField(t, env, sectionID, "form_"+sourceForm.ID.String())
	createLookupField(t, env, sectionID, "module_"+sourceModule.ID.String())

	linked, err := env.lookup.GetLinkedRecords(t.Context(), nil, sourceForm.ID)
	if err != nil {
		t.Fatalf("get linked records: %v", err)
	}
	if len(linked) != 1 {
		t.Fatalf("expected one linked form, got %d", len(linked))
	}
	info := linked[0]
	if info.FormID != consumerForm.ID || info.ModuleID != consumerModule.ID {
		t.Fatalf("linked form identity wrong: %+v", info)
	}
	// Both the direct form reference and the module-wide reference
	// resolve to this source form.
	if info.FieldCount != 2 {
		t.Fatalf("field count = %d", info.FieldCount)
	}
	if info.FormName != "General" || info.ModuleName != "Inspections" {
		t.Fatalf("linked form names wrong: %+v", info)
	}
}

func TestDeleteFieldRemovesRelation(t *testing.T) {
	env := newTestEnv(t)
	sourceModule := env.mustCreateModule(t, "Parts")
	sourceForm := env.mustModuleForm(t, sourceModule.ID)
	consumerModule := env.mustCreateModule(t, "Repairs")
	consumerForm := env.mustModuleForm(t, consumerModule.ID)
	got, err := env.schema.GetForm(t.Context(), nil, consumerForm.ID)
	if err != nil {
		t.Fatalf("get consumer form: %v", err)
	}

	field := createLookupField(t, env, got.Sections[0].ID, "form_"+sourceForm.ID.String())
	if err := env.cleanup.DeleteFieldWithCleanup(t.Context(), nil, field.ID); err != nil {
		t.Fatalf("delete field: %v", err)
	}
	relations, err := env.lookupRepo.ListRelationsByFieldIDs(t.Context(), nil, []uuid.UUID{field.ID})
	if err != nil {
		t.Fatalf("list relations: %v", err)
	}
	if len(relations) != 0 {
		t.Fatalf("relation survived field delete: %d rows", len(relations))
	}
}
