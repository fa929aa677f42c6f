package config

import "testing"

func TestLoadClampsCleanupKnobs(t *testing.T) {
	t.Setenv("CLEANUP_BATCH_SIZE", "0")
	t.Setenv("CLEANUP_CONCURRENCY", "-2")

	cfg := Load(nil)
	if cfg.CleanupBatchSize != 1 {
		t.Fatalf("batch size = %d, want clamp to 1", cfg.CleanupBatchSize)
	}
	if cfg.CleanupConcurrency != 1 {
		t.Fatalf("concurrency = %d, want clamp to 1", cfg.CleanupConcurrency)
	}
}

func TestPartitionTableNaming(t *testing.T) {
	cfg := Config{PartitionCount: 15, ReservedPartition: 15}
	if got := cfg.PartitionTable(1); got != "form_records_1" {
		t.Fatalf("first partition table = %q", got)
	}
	if got := cfg.ReservedTable(); got != "form_records_15" {
		t.Fatalf("reserved table = %q", got)
	}
}

func TestRegularTablesExcludeReserved(t *testing.T) {
	cfg := Config{PartitionCount: 4, ReservedPartition: 4}

	all := cfg.PartitionTables()
	if len(all) != 4 {
		t.Fatalf("partition tables = %d", len(all))
	}
	regular := cfg.RegularTables()
	if len(regular) != 3 {
		t.Fatalf("regular tables = %d", len(regular))
	}
	for _, table := range regular {
		if table == cfg.ReservedTable() {
			t.Fatalf("reserved table leaked into regular pool")
		}
	}
}

func TestRegularTablesWithMidPoolReservation(t *testing.T) {
	cfg := Config{PartitionCount: 5, ReservedPartition: 3}
	regular := cfg.RegularTables()
	want := []string{"form_records_1", "form_records_2", "form_records_4", "form_records_5"}
	if len(regular) != len(want) {
		t.Fatalf("regular tables = %v", regular)
	}
	for i, table := range want {
		if regular[i] != table {
			t.Fatalf("regular[%d] = %q, want %q", i, regular[i], table)
		}
	}
}
