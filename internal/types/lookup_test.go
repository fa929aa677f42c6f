package types

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseLookupSourceID(t *testing.T) {
	formID := uuid.New()
	moduleID := uuid.New()

	sourceType, refID, ok := ParseLookupSourceID("form_" + formID.String())
	if !ok || sourceType != LookupSourceForm || refID != formID {
		t.Fatalf("form source parsed wrong: %q %s %v", sourceType, refID, ok)
	}

	sourceType, refID, ok = ParseLookupSourceID("module_" + moduleID.String())
	if !ok || sourceType != LookupSourceModule || refID != moduleID {
		t.Fatalf("module source parsed wrong: %q %s %v", sourceType, refID, ok)
	}

	for _, bad := range []string{"", "form_", "form_not-a-uuid", "view_" + formID.String(), formID.String()} {
		if _, _, ok := ParseLookupSourceID(bad); ok {
			t.Fatalf("malformed source id %q accepted", bad)
		}
	}
}

func TestLookupRelationIDIsDeterministic(t *testing.T) {
	fieldID := uuid.New()
	sourceID := "form_" + uuid.New().String()

	first := LookupRelationID(sourceID, fieldID)
	second := LookupRelationID(sourceID, fieldID)
	if first != second {
		t.Fatalf("same pair produced different ids: %s vs %s", first, second)
	}
	other := LookupRelationID(sourceID, uuid.New())
	if other == first {
		t.Fatalf("different fields collided on relation id")
	}
}

func TestFieldLookupConfigDecoding(t *testing.T) {
	field := &FormField{Lookup: []byte(`{"sourceId":"form_abc","displayField":"name","multiple":true}`)}
	cfg := field.LookupConfig()
	if cfg == nil {
		t.Fatalf("config should decode")
	}
	if cfg.SourceID != "form_abc" || cfg.DisplayField != "name" || !cfg.Multiple {
		t.Fatalf("decoded config wrong: %+v", cfg)
	}

	for _, raw := range []string{"", "{}", `{"displayField":"name"}`, "not json"} {
		field := &FormField{Lookup: []byte(raw)}
		if field.LookupConfig() != nil {
			t.Fatalf("lookup %q should decode to nil config", raw)
		}
	}
}
