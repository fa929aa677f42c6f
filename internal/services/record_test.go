package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nestform/nestform-backend/internal/apperr"
	"github.com/nestform/nestform-backend/internal/repos"
	"github.com/nestform/nestform-backend/internal/types"
)

func entryData(fieldID uuid.UUID, label, value string) map[string]any {
	entry := types.RecordEntry{
		FieldID: fieldID.String(),
		Label:   label,
		Type:    "text",
		Value:   value,
	}
	return map[string]any{fieldID.String(): entry.EntryMap()}
}

func TestRecordRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Claims")
	form := env.mustModuleForm(t, module.ID)
	fieldID := uuid.New()

	created, err := env.records.CreateRecord(t.Context(), nil, form.ID, entryData(fieldID, "Claimant", "Jordan"), RecordMeta{
		SubmittedBy: "tester",
		EmployeeID:  "E-100",
	})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if created.Status != types.RecordStatusSubmitted {
		t.Fatalf("default status = %q", created.Status)
	}

	got, err := env.records.GetRecord(t.Context(), nil, created.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	entry, ok := got.RecordData[fieldID.String()].(map[string]any)
	if !ok {
		t.Fatalf("record data shape changed: %T", got.RecordData[fieldID.String()])
	}
	if entry["value"] != "Jordan" {
		t.Fatalf("stored value = %v", entry["value"])
	}
	if got.EmployeeID != "E-100" || got.SubmittedBy != "tester" {
		t.Fatalf("flat columns lost: %+v", got)
	}
}

func TestUpdateRecordMergesDocument(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Invoices")
	form := env.mustModuleForm(t, module.ID)
	keepField := uuid.New()
	patchField := uuid.New()

	data := entryData(keepField, "Vendor", "Acme")
	for k, v := range entryData(patchField, "Total", "100") {
		data[k] = v
	}
	created, err := env.records.CreateRecord(t.Context(), nil, form.ID, data, RecordMeta{})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}

	approved := types.RecordStatusApproved
	updated, err := env.records.UpdateRecord(t.Context(), nil, created.ID, RecordPatch{
		RecordData: entryData(patchField, "Total", "250"),
		Status:     &approved,
	})
	if err != nil {
		t.Fatalf("update record: %v", err)
	}
	if updated.Status != types.RecordStatusApproved {
		t.Fatalf("status not updated: %q", updated.Status)
	}
	kept, ok := updated.RecordData[keepField.String()].(map[string]any)
	if !ok || kept["value"] != "Acme" {
		t.Fatalf("untouched key lost on merge: %v", updated.RecordData[keepField.String()])
	}
	patched, ok := updated.RecordData[patchField.String()].(map[string]any)
	if !ok || patched["value"] != "250" {
		t.Fatalf("patched key not replaced: %v", updated.RecordData[patchField.String()])
	}
}

func TestGetRecordProbesAcrossPartitions(t *testing.T) {
	env := newTestEnv(t)
	var recordIDs []uuid.UUID
	for _, name := range []string{"First", "Second", "Third"} {
		module := env.mustCreateModule(t, name)
		form := env.mustModuleForm(t, module.ID)
		record, err := env.records.CreateRecord(t.Context(), nil, form.ID, map[string]any{}, RecordMeta{})
		if err != nil {
			t.Fatalf("create record in %s: %v", name, err)
		}
		recordIDs = append(recordIDs, record.ID)
	}

	// Each form landed in a different partition; lookup by bare record
	// id must find all of them.
	for _, id := range recordIDs {
		if _, err := env.records.GetRecord(t.Context(), nil, id); err != nil {
			t.Fatalf("get record %s: %v", id, err)
		}
	}

	if _, err := env.records.GetRecord(t.Context(), nil, uuid.New()); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("unknown record should be NotFound, got %v", err)
	}
}

func TestDeleteRecord(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Tickets")
	form := env.mustModuleForm(t, module.ID)
	record, err := env.records.CreateRecord(t.Context(), nil, form.ID, map[string]any{}, RecordMeta{})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	if err := env.records.DeleteRecord(t.Context(), nil, record.ID); err != nil {
		t.Fatalf("delete record: %v", err)
	}
	if _, err := env.records.GetRecord(t.Context(), nil, record.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("deleted record should be NotFound, got %v", err)
	}
}

func TestListRecordsFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Expenses")
	form := env.mustModuleForm(t, module.ID)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		status := types.RecordStatusSubmitted
		if i%2 == 1 {
			status = types.RecordStatusApproved
		}
		date := base.AddDate(0, 0, i)
		if _, err := env.records.CreateRecord(t.Context(), nil, form.ID, map[string]any{}, RecordMeta{
			Status: status,
			Date:   &date,
		}); err != nil {
			t.Fatalf("seed record %d: %v", i, err)
		}
	}

	page, err := env.records.ListRecords(t.Context(), nil, form.ID, ListRecordsOptions{
		RecordFilter: repos.RecordFilter{Status: types.RecordStatusApproved},
	})
	if err != nil {
		t.Fatalf("list approved: %v", err)
	}
	if page.Total != 2 || len(page.Records) != 2 {
		t.Fatalf("approved filter: total=%d rows=%d", page.Total, len(page.Records))
	}

	from := base.AddDate(0, 0, 3)
	page, err = env.records.ListRecords(t.Context(), nil, form.ID, ListRecordsOptions{
		RecordFilter: repos.RecordFilter{DateFrom: &from},
	})
	if err != nil {
		t.Fatalf("list by date: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("date filter total = %d", page.Total)
	}

	page, err = env.records.ListRecords(t.Context(), nil, form.ID, ListRecordsOptions{
		RecordFilter: repos.RecordFilter{Page: 2, Limit: 2, SortBy: "date", SortOrder: "asc"},
	})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if page.Total != 5 || len(page.Records) != 2 || page.Page != 2 {
		t.Fatalf("pagination: total=%d rows=%d page=%d", page.Total, len(page.Records), page.Page)
	}
	if page.Form == nil || page.Form.ID != form.ID {
		t.Fatalf("list should carry the schema snapshot")
	}
}

func TestListRecordsSearchScansCurrentPage(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Registry")
	form := env.mustModuleForm(t, module.ID)
	fieldID := uuid.New()

	for _, value := range []string{"alpha unit", "beta unit", "gamma unit"} {
		if _, err := env.records.CreateRecord(t.Context(), nil, form.ID, entryData(fieldID, "Unit", value), RecordMeta{}); err != nil {
			t.Fatalf("seed record %q: %v", value, err)
		}
	}

	page, err := env.records.ListRecords(t.Context(), nil, form.ID, ListRecordsOptions{Search: "BETA"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page.Records) != 1 {
		t.Fatalf("search matched %d records", len(page.Records))
	}
	// Total stays the storage-level count: the substring scan narrows
	// only the returned page.
	if page.Total != 3 {
		t.Fatalf("search should not change total, got %d", page.Total)
	}
}

func TestCountRecords(t *testing.T) {
	env := newTestEnv(t)
	module := env.mustCreateModule(t, "Counter")
	form := env.mustModuleForm(t, module.ID)
	for i := 0; i < 4; i++ {
		if _, err := env.records.CreateRecord(t.Context(), nil, form.ID, map[string]any{}, RecordMeta{}); err != nil {
			t.Fatalf("seed record %d: %v", i, err)
		}
	}
	count, err := env.records.CountRecords(t.Context(), nil, form.ID)
	if err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 4 {
		t.Fatalf("count = %d", count)
	}
}
