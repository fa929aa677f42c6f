package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nestform/nestform-backend/internal/config"
	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/types"
	"github.com/nestform/nestform-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "nestform", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll(cfg config.Config) error {
	s.log.Info("Auto migrating schema tables...")
	err := s.db.AutoMigrate(
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
		s.log.Error("Auto migration failed for schema tables", "error", err)
		return err
	}
	return MigratePartitions(s.db, cfg)
}

// MigratePartitions creates the N physically-identical record tables.
// Every partition shares the FormRecord shape and differs only by
// table name.
func MigratePartitions(gdb *gorm.DB, cfg config.Config) error {
	for _, table := range cfg.PartitionTables() {
		if err := gdb.Table(table).AutoMigrate(&types.FormRecord{}); err != nil {
			return fmt.Errorf("migrate partition %s: %w", table, err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
