package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	ModuleTypeMaster   = "master"
	ModuleTypeChild    = "child"
	ModuleTypeStandard = "standard"
)

// Module is a node in the organizational hierarchy that groups forms.
// Level and Path are derived from the parent chain when the tree is
// built, never written by callers.
type Module struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Description string     `gorm:"column:description" json:"description"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	ModuleType  string     `gorm:"column:module_type;not null;default:'standard'" json:"module_type"`
	Level       int        `gorm:"column:level;not null;default:0" json:"level"`
	Path        string     `gorm:"column:path" json:"path"`
	SortOrder   int        `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`

	Children []*Module `gorm:"-" json:"children,omitempty"`
	Forms    []*Form   `gorm:"-" json:"forms,omitempty"`
}

func (Module) TableName() string { return "module" }
