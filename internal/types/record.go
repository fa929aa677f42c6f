package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RecordStatusSubmitted = "submitted"
	RecordStatusApproved  = "approved"
	RecordStatusRejected  = "rejected"
)

// RecordEntry is the value payload stored under each field key of a
// record's data document.
type RecordEntry struct {
	FieldID      string `json:"fieldId"`
	Label        string `json:"label"`
	Type         string `json:"type"`
	Value        any    `json:"value"`
	SectionID    string `json:"sectionId,omitempty"`
	SectionTitle string `json:"sectionTitle,omitempty"`
}

// FormRecord is one submitted document. It carries no TableName: every
// query addresses one of the physical partition tables explicitly, and
// all partitions share this shape. RecordData is semi-structured and
// may drift from the live schema; keys for deleted fields linger until
// cleanup, keys for new fields are simply absent.
type FormRecord struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	FormID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"form_id"`
	RecordData  datatypes.JSONMap `gorm:"column:record_data" json:"record_data"`
	SubmittedBy string            `gorm:"column:submitted_by" json:"submitted_by"`
	Status      string            `gorm:"column:status;not null;default:'submitted';index" json:"status"`
	EmployeeID  string            `gorm:"column:employee_id;index" json:"employee_id,omitempty"`
	Amount      *float64          `gorm:"column:amount" json:"amount,omitempty"`
	Date        *time.Time        `gorm:"column:date;index" json:"date,omitempty"`
	UserID      *uuid.UUID        `gorm:"type:uuid;index" json:"user_id,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

// EntryMap converts a RecordEntry to the map shape stored in
// RecordData, so entries built in Go round-trip identically to entries
// submitted as raw JSON.
func (e RecordEntry) EntryMap() map[string]any {
	m := map[string]any{
		"fieldId": e.FieldID,
		"label":   e.Label,
		"type":    e.Type,
		"value":   e.Value,
	}
	if e.SectionID != "" {
		m["sectionId"] = e.SectionID
	}
	if e.SectionTitle != "" {
		m["sectionTitle"] = e.SectionTitle
	}
	return m
}
