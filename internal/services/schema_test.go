package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/nestform/nestform-backend/internal/apperr"
	"github.com/nestform/nestform-backend/internal/requestdata"
)

func TestCreateModuleSeedsDefaults(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Operations")

	got, err := env.schema.GetModule(t.Context(), nil, module.ID)
	if err != nil {
		t.Fatalf("get module: %v", err)
	}
	if len(got.Forms) != 1 {
		t.Fatalf("expected one seeded form, got %d", len(got.Forms))
	}
	form := got.Forms[0]
	if form.Name != "General" {
		t.Fatalf("seeded form name = %q", form.Name)
	}
	if len(form.Sections) != 1 || form.Sections[0].Title != "Details" {
		t.Fatalf("seeded form should carry one Details section, got %+v", form.Sections)
	}
}

func TestModuleTreeLevelsAndPaths(t *testing.T) {
	env := newTestEnv(t)
	root := env.mustCreateModule(t, "Plant")
	child, err := env.schema.CreateModule(t.Context(), nil, CreateModuleInput{
		Name:     "Line A",
		ParentID: &root.ID,
	})
	if err != nil {
		t.Fatalf("create child module: %v", err)
	}
	grandchild, err := env.schema.CreateModule(t.Context(), nil, CreateModuleInput{
		Name:     "Station 3",
		ParentID: &child.ID,
	})
	if err != nil {
		t.Fatalf("create grandchild module: %v", err)
	}

	tree, err := env.schema.GetModuleTree(t.Context(), nil)
	if err != nil {
		t.Fatalf("get module tree: %v", err)
	}
	if len(tree) != 1 {
		t.Fatalf("expected one root, got %d", len(tree))
	}
	if tree[0].Level != 0 || tree[0].Path != "/Plant" {
		t.Fatalf("root annotation wrong: level=%d path=%q", tree[0].Level, tree[0].Path)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].ID != child.ID {
		t.Fatalf("child not attached under root")
	}
	gc := tree[0].Children[0].Children
	if len(gc) != 1 || gc[0].ID != grandchild.ID {
		t.Fatalf("grandchild not attached under child")
	}
	if gc[0].Level != 2 || gc[0].Path != "/Plant/Line A/Station 3" {
		t.Fatalf("grandchild annotation wrong: level=%d path=%q", gc[0].Level, gc[0].Path)
	}

	flat := FlattenModuleTree(tree)
	if len(flat) != 3 {
		t.Fatalf("flatten returned %d modules", len(flat))
	}
}

func TestFieldOwnershipIsExclusive(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Safety")
	form := env.mustModuleForm(t, module.ID)
	got, err := env.schema.GetForm(t.Context(), nil, form.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	sectionID := got.Sections[0].ID

	subform, err := env.schema.CreateSubform(t.Context(), nil, CreateSubformInput{
		SectionID: &sectionID,
		Title:     "Incidents",
	})
	if err != nil {
		t.Fatalf("create subform: %v", err)
	}

	_, err = env.schema.CreateField(t.Context(), nil, FieldInput{
		SectionID: &sectionID,
		SubformID: &subform.ID,
		FieldType: "text",
		Label:     "Both owners",
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("both owners should fail validation, got %v", err)
	}

	_, err = env.schema.CreateField(t.Context(), nil, FieldInput{
		FieldType: "text",
		Label:     "No owner",
	})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("no owner should fail validation, got %v", err)
	}
}

func TestUpdateFieldPreservesRequiredFlag(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Intake")
	form := env.mustModuleForm(t, module.ID)
	got, err := env.schema.GetForm(t.Context(), nil, form.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	sectionID := got.Sections[0].ID

	required := true
	field, err := env.schema.CreateField(t.Context(), nil, FieldInput{
		SectionID:  &sectionID,
		FieldType:  "text",
		Label:      "Reporter",
		IsRequired: &required,
	})
	if err != nil {
		t.Fatalf("create field: %v", err)
	}
	if !field.IsRequired {
		t.Fatalf("field should be created required")
	}

	// A rename that says nothing about the flag must leave it alone.
	updated, err := env.schema.UpdateField(t.Context(), nil, field.ID, FieldInput{
		Label: "Reported by",
	})
	if err != nil {
		t.Fatalf("update field: %v", err)
	}
	if !updated.IsRequired {
		t.Fatalf("rename cleared the required flag")
	}

	optional := false
	updated, err = env.schema.UpdateField(t.Context(), nil, field.ID, FieldInput{IsRequired: &optional})
	if err != nil {
		t.Fatalf("update field: %v", err)
	}
	if updated.IsRequired {
		t.Fatalf("explicit false should clear the flag")
	}
}

func TestSubformDepthCap(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Audit")
	form := env.mustModuleForm(t, module.ID)
	got, err := env.schema.GetForm(t.Context(), nil, form.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	sectionID := got.Sections[0].ID

	parent, err := env.schema.CreateSubform(t.Context(), nil, CreateSubformInput{
		SectionID: &sectionID,
		Title:     "Level 0",
	})
	if err != nil {
		t.Fatalf("create root subform: %v", err)
	}
	for level := 1; level < env.cfg.MaxSubformDepth; level++ {
		parent, err = env.schema.CreateSubform(t.Context(), nil, CreateSubformInput{
			ParentSubformID: &parent.ID,
			Title:           "Nested",
		})
		if err != nil {
			t.Fatalf("create subform at level %d: %v", level, err)
		}
		if parent.Level != level {
			t.Fatalf("subform level = %d, want %d", parent.Level, level)
		}
	}

	before, err := env.schema.CountSectionItems(t.Context(), nil, sectionID)
	if err != nil {
		t.Fatalf("count before: %v", err)
	}
	_, err = env.schema.CreateSubform(t.Context(), nil, CreateSubformInput{
		ParentSubformID: &parent.ID,
		Title:           "Too deep",
	})
	if !apperr.IsKind(err, apperr.KindMaxNestingExceeded) {
		t.Fatalf("expected MaxNestingExceeded, got %v", err)
	}
	after, err := env.schema.CountSectionItems(t.Context(), nil, sectionID)
	if err != nil {
		t.Fatalf("count after: %v", err)
	}
	if after != before {
		t.Fatalf("rejected create mutated the tree: before=%+v after=%+v", before, after)
	}
}

func TestCountSectionItemsWalksNestedSubforms(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Quality")
	form := env.mustModuleForm(t, module.ID)
	got, err := env.schema.GetForm(t.Context(), nil, form.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	sectionID := got.Sections[0].ID

	for _, label := range []string{"Inspector", "Shift"} {
		if _, err := env.schema.CreateField(t.Context(), nil, FieldInput{
			SectionID: &sectionID,
			FieldType: "text",
			Label:     label,
		}); err != nil {
			t.Fatalf("create section field %q: %v", label, err)
		}
	}
	subform, err := env.schema.CreateSubform(t.Context(), nil, CreateSubformInput{
		SectionID: &sectionID,
		Title:     "Defects",
	})
	if err != nil {
		t.Fatalf("create subform: %v", err)
	}
	nested, err := env.schema.CreateSubform(t.Context(), nil, CreateSubformInput{
		ParentSubformID: &subform.ID,
		Title:           "Photos",
	})
	if err != nil {
		t.Fatalf("create nested subform: %v", err)
	}
	if _, err := env.schema.CreateField(t.Context(), nil, FieldInput{
		SubformID: &nested.ID,
		FieldType: "file",
		Label:     "Photo",
	}); err != nil {
		t.Fatalf("create nested field: %v", err)
	}

	count, err := env.schema.CountSectionItems(t.Context(), nil, sectionID)
	if err != nil {
		t.Fatalf("count section items: %v", err)
	}
	if count.Fields != 3 || count.Subforms != 2 {
		t.Fatalf("counts = %+v, want 3 fields and 2 subforms", count)
	}
}

func TestHydratedFormCarriesSubformTree(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Logistics")
	form := env.mustModuleForm(t, module.ID)
	got, err := env.schema.GetForm(t.Context(), nil, form.ID)
	if err != nil {
		t.Fatalf("get form: %v", err)
	}
	sectionID := got.Sections[0].ID

	subform, err := env.schema.CreateSubform(t.Context(), nil, CreateSubformInput{
		SectionID: &sectionID,
		Title:     "Stops",
	})
	if err != nil {
		t.Fatalf("create subform: %v", err)
	}
	if _, err := env.schema.CreateField(t.Context(), nil, FieldInput{
		SubformID: &subform.ID,
		FieldType: "text",
		Label:     "Address",
	}); err != nil {
		t.Fatalf("create subform field: %v", err)
	}
	child, err := env.schema.CreateSubform(t.Context(), nil, CreateSubformInput{
		ParentSubformID: &subform.ID,
		Title:           "Packages",
	})
	if err != nil {
		t.Fatalf("create child subform: %v", err)
	}

	hydrated, err := env.schema.GetForm(t.Context(), nil, form.ID)
	if err != nil {
		t.Fatalf("rehydrate form: %v", err)
	}
	section := hydrated.Sections[0]
	if len(section.Subforms) != 1 || section.Subforms[0].ID != subform.ID {
		t.Fatalf("subform not hydrated under its section")
	}
	hydratedSub := section.Subforms[0]
	if len(hydratedSub.Fields) != 1 || hydratedSub.Fields[0].Label != "Address" {
		t.Fatalf("subform fields not hydrated: %+v", hydratedSub.Fields)
	}
	if len(hydratedSub.Children) != 1 || hydratedSub.Children[0].ID != child.ID {
		t.Fatalf("nested subform not hydrated: %+v", hydratedSub.Children)
	}
}

func TestAccessFilteringHidesModules(t *testing.T) {
	env := newTestEnv(t)
	visible := env.mustCreateModule(t, "Visible")
	hidden := env.mustCreateModule(t, "Hidden")
	hiddenForm := env.mustModuleForm(t, hidden.ID)

	userID := uuid.New()
	env.withAccess(StaticAccess{Sets: map[uuid.UUID]map[uuid.UUID]struct{}{
		userID: {visible.ID: {}},
	}})
	ctx := requestdata.WithRequestData(t.Context(), &requestdata.RequestData{UserID: userID})

	tree, err := env.schema.GetModuleTree(ctx, nil)
	if err != nil {
		t.Fatalf("get module tree: %v", err)
	}
	if len(tree) != 1 || tree[0].ID != visible.ID {
		t.Fatalf("allow-list not applied to tree: %+v", tree)
	}

	if _, err := env.schema.GetForm(ctx, nil, hiddenForm.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("inaccessible form should read as absent, got %v", err)
	}

	forms, err := env.schema.ListFormsByModule(ctx, nil, hidden.ID)
	if err != nil {
		t.Fatalf("list hidden module forms: %v", err)
	}
	if len(forms) != 0 {
		t.Fatalf("hidden module leaked %d forms", len(forms))
	}
}
