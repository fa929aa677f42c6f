package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/config"
	"github.com/nestform/nestform-backend/internal/db"
	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/repos"
	"github.com/nestform/nestform-backend/internal/types"
)

// testEnv wires the whole service stack over an in-memory database so
// tests exercise real queries instead of mocks.
type testEnv struct {
	db  *gorm.DB
	cfg config.Config

	moduleRepo  repos.ModuleRepo
	formRepo    repos.FormRepo
	sectionRepo repos.SectionRepo
	fieldRepo   repos.FieldRepo
	subformRepo repos.SubformRepo
	mappingRepo repos.PartitionMappingRepo
	recordRepo  repos.RecordRepo
	lookupRepo  repos.LookupRepo

	partition PartitionService
	lookup    LookupService
	schema    SchemaService
	records   RecordService
	cleanup   CleanupService
}

func testConfig() config.Config {
	return config.Config{
		PartitionCount:     15,
		ReservedPartition:  15,
		MaxSubformDepth:    5,
		CleanupBatchSize:   50,
		CleanupConcurrency: 1,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, testConfig())
}

func newTestEnvWithConfig(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	err = gdb.AutoMigrate(
		&types.Module{},
		&types.Form{},
		&types.FormSection{},
		&types.FormField{},
		&types.Subform{},
		&types.PartitionMapping{},
		&types.LookupSource{},
		&types.LookupFieldRelation{},
	)
	if err != nil {
		t.Fatalf("migrate schema tables: %v", err)
	}
	if err := db.MigratePartitions(gdb, cfg); err != nil {
		t.Fatalf("migrate partitions: %v", err)
	}

	log := logger.NewNop()
	env := &testEnv{
		db:          gdb,
		cfg:         cfg,
		moduleRepo:  repos.NewModuleRepo(gdb, log),
		formRepo:    repos.NewFormRepo(gdb, log),
		sectionRepo: repos.NewSectionRepo(gdb, log),
		fieldRepo:   repos.NewFieldRepo(gdb, log),
		subformRepo: repos.NewSubformRepo(gdb, log),
		mappingRepo: repos.NewPartitionMappingRepo(gdb, log),
		recordRepo:  repos.NewRecordRepo(gdb, log),
		lookupRepo:  repos.NewLookupRepo(gdb, log),
	}
	env.partition = NewPartitionService(gdb, log, cfg, env.formRepo, env.mappingRepo)
	env.lookup = NewLookupService(gdb, log, cfg, env.moduleRepo, env.formRepo, env.sectionRepo, env.fieldRepo, env.subformRepo, env.mappingRepo, env.recordRepo, env.lookupRepo)
	env.schema = NewSchemaService(gdb, log, cfg, env.moduleRepo, env.formRepo, env.sectionRepo, env.fieldRepo, env.subformRepo, env.partition, env.lookup, UnrestrictedAccess{})
	env.records = NewRecordService(gdb, log, cfg, env.recordRepo, env.partition, env.schema)
	env.cleanup = NewCleanupService(gdb, log, cfg, env.moduleRepo, env.formRepo, env.sectionRepo, env.fieldRepo, env.subformRepo, env.mappingRepo, env.recordRepo, env.lookupRepo)
	return env
}

// withAccess rebuilds the schema-facing services with a restricted
// access provider.
func (env *testEnv) withAccess(access AccessProvider) {
	log := logger.NewNop()
	env.schema = NewSchemaService(env.db, log, env.cfg, env.moduleRepo, env.formRepo, env.sectionRepo, env.fieldRepo, env.subformRepo, env.partition, env.lookup, access)
	env.records = NewRecordService(env.db, log, env.cfg, env.recordRepo, env.partition, env.schema)
}

// mustCreateModule is the common fixture: a module with its
// auto-created form and section.
func (env *testEnv) mustCreateModule(t *testing.T, name string) *types.Module {
	t.Helper()
	module, err := env.schema.CreateModule(t.Context(), nil, CreateModuleInput{Name: name})
	if err != nil {
		t.Fatalf("create module %q: %v", name, err)
	}
	return module
}

func (env *testEnv) mustModuleForm(t *testing.T, moduleID uuid.UUID) *types.Form {
	t.Helper()
	forms, err := env.formRepo.ListByModuleIDs(t.Context(), nil, []uuid.UUID{moduleID})
	if err != nil {
		t.Fatalf("list forms: %v", err)
	}
	if len(forms) == 0 {
		t.Fatalf("no form for module %s", moduleID)
	}
	return forms[0]
}
