package services

import (
	"testing"

	"github.com/nestform/nestform-backend/internal/apperr"
)

func TestResolvePartitionIsStable(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Maintenance")
	form := env.mustModuleForm(t, module.ID)

	first, err := env.partition.ResolvePartition(t.Context(), nil, form.ID)
	if err != nil {
		t.Fatalf("resolve partition: %v", err)
	}
	if first != env.cfg.PartitionTable(1) {
		t.Fatalf("expected first claim to take %s, got %s", env.cfg.PartitionTable(1), first)
	}
	for i := 0; i < 3; i++ {
		again, err := env.partition.ResolvePartition(t.Context(), nil, form.ID)
		if err != nil {
			t.Fatalf("resolve partition again: %v", err)
		}
		if again != first {
			t.Fatalf("mapping drifted: %s then %s", first, again)
		}
	}
}

func TestSequentialClaimsAreDistinct(t *testing.T) {
	env := newTestEnv(t)
	seen := map[string]bool{}
	for _, name := range []string{"HR", "Finance", "Fleet"} {
		module := env.mustCreateModule(t, name)
		form := env.mustModuleForm(t, module.ID)
		table, err := env.partition.ResolvePartition(t.Context(), nil, form.ID)
		if err != nil {
			t.Fatalf("resolve partition for %s: %v", name, err)
		}
		if table == env.cfg.ReservedTable() {
			t.Fatalf("regular form %s claimed the reserved partition", name)
		}
		if seen[table] {
			t.Fatalf("partition %s claimed twice", table)
		}
		seen[table] = true
	}
}

func TestUserFormHoldsReservedPartition(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "People")
	form := env.mustModuleForm(t, module.ID)

	isUser := true
	if _, err := env.schema.UpdateForm(t.Context(), nil, form.ID, UpdateFormInput{IsUserForm: &isUser}); err != nil {
		t.Fatalf("flag user form: %v", err)
	}
	mapping, err := env.mappingRepo.GetByFormID(t.Context(), nil, form.ID)
	if err != nil {
		t.Fatalf("load mapping: %v", err)
	}
	if mapping == nil || mapping.StorageTable != env.cfg.ReservedTable() {
		t.Fatalf("user form not on reserved partition: %+v", mapping)
	}
}

func TestReservedPartitionMovesWithFlag(t *testing.T) {
	env := newTestEnv(t)
	moduleA := env.mustCreateModule(t, "Alpha")
	moduleB := env.mustCreateModule(t, "Beta")
	formA := env.mustModuleForm(t, moduleA.ID)
	formB := env.mustModuleForm(t, moduleB.ID)

	isUser := true
	if _, err := env.schema.UpdateForm(t.Context(), nil, formA.ID, UpdateFormInput{IsUserForm: &isUser}); err != nil {
		t.Fatalf("flag form A: %v", err)
	}
	if _, err := env.schema.UpdateForm(t.Context(), nil, formB.ID, UpdateFormInput{IsUserForm: &isUser}); err != nil {
		t.Fatalf("flag form B: %v", err)
	}

	mappingB, err := env.mappingRepo.GetByFormID(t.Context(), nil, formB.ID)
	if err != nil {
		t.Fatalf("load mapping B: %v", err)
	}
	if mappingB == nil || mappingB.StorageTable != env.cfg.ReservedTable() {
		t.Fatalf("form B should hold the reserved partition, got %+v", mappingB)
	}

	// The evicted form lost its mapping and re-claims a regular slot on
	// its next partition resolution.
	mappingA, err := env.mappingRepo.GetByFormID(t.Context(), nil, formA.ID)
	if err != nil {
		t.Fatalf("load mapping A: %v", err)
	}
	if mappingA != nil {
		t.Fatalf("evicted form should have no mapping, got %+v", mappingA)
	}
	notUser := false
	if _, err := env.schema.UpdateForm(t.Context(), nil, formA.ID, UpdateFormInput{IsUserForm: &notUser}); err != nil {
		t.Fatalf("unflag form A: %v", err)
	}
	table, err := env.partition.ResolvePartition(t.Context(), nil, formA.ID)
	if err != nil {
		t.Fatalf("re-resolve form A: %v", err)
	}
	if table == env.cfg.ReservedTable() {
		t.Fatalf("unflagged form must not hold the reserved partition")
	}
}

func TestUserFormFlipBackClaimsRegularSlot(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Gamma")
	form := env.mustModuleForm(t, module.ID)

	isUser := true
	if _, err := env.schema.UpdateForm(t.Context(), nil, form.ID, UpdateFormInput{IsUserForm: &isUser}); err != nil {
		t.Fatalf("flag user form: %v", err)
	}
	notUser := false
	if _, err := env.schema.UpdateForm(t.Context(), nil, form.ID, UpdateFormInput{IsUserForm: &notUser}); err != nil {
		t.Fatalf("unflag user form: %v", err)
	}
	mapping, err := env.mappingRepo.GetByFormID(t.Context(), nil, form.ID)
	if err != nil {
		t.Fatalf("load mapping: %v", err)
	}
	if mapping == nil {
		t.Fatalf("flip-back should leave a mapping in place")
	}
	if mapping.StorageTable == env.cfg.ReservedTable() {
		t.Fatalf("flip-back left the form on the reserved partition")
	}
}

func TestPartitionPoolExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.PartitionCount = 3
	cfg.ReservedPartition = 3
	env := newTestEnvWithConfig(t, cfg)

	for _, name := range []string{"One", "Two"} {
		module := env.mustCreateModule(t, name)
		form := env.mustModuleForm(t, module.ID)
		if _, err := env.partition.ResolvePartition(t.Context(), nil, form.ID); err != nil {
			t.Fatalf("claim for %s: %v", name, err)
		}
	}

	module := env.mustCreateModule(t, "Three")
	form := env.mustModuleForm(t, module.ID)
	_, err := env.partition.ResolvePartition(t.Context(), nil, form.ID)
	if err == nil {
		t.Fatalf("expected exhaustion error with no free partitions")
	}
	if !apperr.IsKind(err, apperr.KindPartitionExhausted) {
		t.Fatalf("expected PartitionExhausted, got %v", err)
	}
}

func TestFreedPartitionIsReclaimed(t *testing.T) {
	cfg := testConfig()
	cfg.PartitionCount = 2
	cfg.ReservedPartition = 2
	env := newTestEnvWithConfig(t, cfg)

	moduleA := env.mustCreateModule(t, "Old")
	formA := env.mustModuleForm(t, moduleA.ID)
	table, err := env.partition.ResolvePartition(t.Context(), nil, formA.ID)
	if err != nil {
		t.Fatalf("claim for old form: %v", err)
	}

	if err := env.cleanup.DeleteFormWithCleanup(t.Context(), nil, formA.ID); err != nil {
		t.Fatalf("delete old form: %v", err)
	}

	moduleB := env.mustCreateModule(t, "New")
	formB := env.mustModuleForm(t, moduleB.ID)
	reclaimed, err := env.partition.ResolvePartition(t.Context(), nil, formB.ID)
	if err != nil {
		t.Fatalf("claim for new form: %v", err)
	}
	if reclaimed != table {
		t.Fatalf("expected freed partition %s to be reclaimed, got %s", table, reclaimed)
	}
}
