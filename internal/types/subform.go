package types

import (
	"time"

	"github.com/google/uuid"
)

// Subform is a recursively-nestable grouping of fields inside a
// section. Level is 0 at the section root and increments per nesting;
// the depth cap is enforced at creation time, not retroactively.
// Exactly one of SectionID and ParentSubformID is set.
type Subform struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SectionID       *uuid.UUID `gorm:"type:uuid;index" json:"section_id,omitempty"`
	ParentSubformID *uuid.UUID `gorm:"type:uuid;index" json:"parent_subform_id,omitempty"`
	Title           string     `gorm:"column:title;not null" json:"title"`
	Level           int        `gorm:"column:level;not null;default:0" json:"level"`
	SortOrder       int        `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`

	Fields   []*FormField `gorm:"-" json:"fields,omitempty"`
	Children []*Subform   `gorm:"-" json:"children,omitempty"`
}

func (Subform) TableName() string { return "form_subform" }
