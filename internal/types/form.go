package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Form is the unit that owns a partition assignment. Records submitted
// against a form live in whichever partition the mapping resolves to.
type Form struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModuleID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Description string         `gorm:"column:description" json:"description"`
	IsUserForm  bool           `gorm:"column:is_user_form;not null;default:false" json:"is_user_form"`
	IsPublished bool           `gorm:"column:is_published;not null;default:false" json:"is_published"`
	Settings    datatypes.JSON `gorm:"column:settings" json:"settings,omitempty"`
	SortOrder   int            `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`

	Sections []*FormSection `gorm:"-" json:"sections,omitempty"`
}

func (Form) TableName() string { return "form" }
