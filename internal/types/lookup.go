package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	LookupSourceForm   = "form"
	LookupSourceModule = "module"

	lookupSourceFormPrefix   = "form_"
	lookupSourceModulePrefix = "module_"
)

// lookupRelationNamespace seeds the deterministic relation ids so an
// upsert for the same (source, field) pair always lands on one row.
var lookupRelationNamespace = uuid.MustParse("9f2dd1f5-3b0a-4ce0-92d4-47c0c6a07a10")

// ParseLookupSourceID splits a raw source id ("form_<uuid>" or
// "module_<uuid>") into its type and referenced id.
func ParseLookupSourceID(sourceID string) (sourceType string, refID uuid.UUID, ok bool) {
	var raw string
	switch {
	case strings.HasPrefix(sourceID, lookupSourceFormPrefix):
		sourceType = LookupSourceForm
		raw = strings.TrimPrefix(sourceID, lookupSourceFormPrefix)
	case strings.HasPrefix(sourceID, lookupSourceModulePrefix):
		sourceType = LookupSourceModule
		raw = strings.TrimPrefix(sourceID, lookupSourceModulePrefix)
	default:
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, false
	}
	return sourceType, id, true
}

// LookupRelationID derives the deterministic relation id for a
// (sourceId, fieldId) pair.
func LookupRelationID(sourceID string, fieldID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(lookupRelationNamespace, []byte(sourceID+":"+fieldID.String()))
}

// LookupSource is the lazily-materialized description of a lookup
// target. Its primary key is the raw prefixed source id.
type LookupSource struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	SourceType  string    `gorm:"column:source_type;not null" json:"source_type"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description" json:"description"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (LookupSource) TableName() string { return "lookup_source" }

// LookupFieldRelation links one lookup field to its source.
type LookupFieldRelation struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LookupSourceID string         `gorm:"column:lookup_source_id;not null;index" json:"lookup_source_id"`
	FormFieldID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"form_field_id"`
	FormID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"form_id"`
	ModuleID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	DisplayField   string         `gorm:"column:display_field" json:"display_field"`
	ValueField     string         `gorm:"column:value_field" json:"value_field"`
	Multiple       bool           `gorm:"column:multiple;not null;default:false" json:"multiple"`
	Filters        datatypes.JSON `gorm:"column:filters" json:"filters,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (LookupFieldRelation) TableName() string { return "lookup_field_relation" }
