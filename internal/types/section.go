package types

import (
	"time"

	"github.com/google/uuid"
)

// FormSection is an ordered grouping of fields and subforms inside a
// form. SortOrder is kept contiguous 0..k-1 across siblings.
type FormSection struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FormID        uuid.UUID `gorm:"type:uuid;not null;index" json:"form_id"`
	Title         string    `gorm:"column:title;not null" json:"title"`
	SortOrder     int       `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	Columns       int       `gorm:"column:columns;not null;default:1" json:"columns"`
	IsVisible     bool      `gorm:"column:is_visible;not null;default:true" json:"is_visible"`
	IsCollapsible bool      `gorm:"column:is_collapsible;not null;default:false" json:"is_collapsible"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`

	Fields   []*FormField `gorm:"-" json:"fields,omitempty"`
	Subforms []*Subform   `gorm:"-" json:"subforms,omitempty"`
}

func (FormSection) TableName() string { return "form_section" }
