package config

import (
	"fmt"

	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/utils"
)

// Config carries the engine-level knobs that used to be hardcoded in the
// storage layer. The partition pool is fixed at startup; the last index
// is reserved for the single user form.
type Config struct {
	JWTSecretKey string

	PartitionCount     int
	ReservedPartition  int
	MaxSubformDepth    int
	CleanupBatchSize   int
	CleanupConcurrency int
}

func Load(log *logger.Logger) Config {
	cfg := Config{
		JWTSecretKey:       utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		PartitionCount:     utils.GetEnvAsInt("PARTITION_COUNT", 15, log),
		ReservedPartition:  utils.GetEnvAsInt("RESERVED_PARTITION", 15, log),
		MaxSubformDepth:    utils.GetEnvAsInt("MAX_SUBFORM_DEPTH", 5, log),
		CleanupBatchSize:   utils.GetEnvAsInt("CLEANUP_BATCH_SIZE", 200, log),
		CleanupConcurrency: utils.GetEnvAsInt("CLEANUP_CONCURRENCY", 4, log),
	}
	if cfg.ReservedPartition < 1 || cfg.ReservedPartition > cfg.PartitionCount {
		cfg.ReservedPartition = cfg.PartitionCount
	}
	// A batch size or worker limit below 1 would stall scrubbing.
	if cfg.CleanupBatchSize < 1 {
		cfg.CleanupBatchSize = 1
	}
	if cfg.CleanupConcurrency < 1 {
		cfg.CleanupConcurrency = 1
	}
	return cfg
}

// PartitionTable returns the physical table name for a 1-based partition
// index.
func (c Config) PartitionTable(idx int) string {
	return fmt.Sprintf("form_records_%d", idx)
}

// ReservedTable is the partition held exclusively by the current user
// form.
func (c Config) ReservedTable() string {
	return c.PartitionTable(c.ReservedPartition)
}

// PartitionTables lists every partition table in probe order.
func (c Config) PartitionTables() []string {
	tables := make([]string, 0, c.PartitionCount)
	for i := 1; i <= c.PartitionCount; i++ {
		tables = append(tables, c.PartitionTable(i))
	}
	return tables
}

// RegularTables lists the non-reserved partitions in claim order.
func (c Config) RegularTables() []string {
	tables := make([]string, 0, c.PartitionCount-1)
	for i := 1; i <= c.PartitionCount; i++ {
		if i == c.ReservedPartition {
			continue
		}
		tables = append(tables, c.PartitionTable(i))
	}
	return tables
}
