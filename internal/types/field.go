package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const FieldTypeLookup = "lookup"

// LookupConfig is the typed view of a lookup field's `lookup` JSON
// column. SourceID is prefixed "form_" or "module_" depending on
// whether the source is a single form or a whole module.
type LookupConfig struct {
	SourceID     string         `json:"sourceId"`
	DisplayField string         `json:"displayField,omitempty"`
	ValueField   string         `json:"valueField,omitempty"`
	Multiple     bool           `json:"multiple,omitempty"`
	Searchable   bool           `json:"searchable,omitempty"`
	Filters      map[string]any `json:"filters,omitempty"`
	FieldMapping map[string]any `json:"fieldMapping,omitempty"`
}

// FormField is a single schema-defined data point. Exactly one of
// SectionID and SubformID is set.
type FormField struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SectionID  *uuid.UUID     `gorm:"type:uuid;index" json:"section_id,omitempty"`
	SubformID  *uuid.UUID     `gorm:"type:uuid;index" json:"subform_id,omitempty"`
	FieldType  string         `gorm:"column:field_type;not null;index" json:"field_type"`
	Label      string         `gorm:"column:label;not null" json:"label"`
	IsRequired bool           `gorm:"column:is_required;not null;default:false" json:"is_required"`
	SortOrder  int            `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	Options    datatypes.JSON `gorm:"column:options" json:"options,omitempty"`
	Validation datatypes.JSON `gorm:"column:validation" json:"validation,omitempty"`
	Lookup     datatypes.JSON `gorm:"column:lookup" json:"lookup,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (FormField) TableName() string { return "form_field" }

// LookupConfig decodes the raw lookup column. Returns nil when the
// field carries no lookup configuration.
func (f *FormField) LookupConfig() *LookupConfig {
	if len(f.Lookup) == 0 {
		return nil
	}
	var cfg LookupConfig
	if err := json.Unmarshal(f.Lookup, &cfg); err != nil {
		return nil
	}
	if cfg.SourceID == "" {
		return nil
	}
	return &cfg
}
