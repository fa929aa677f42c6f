package types

import (
	"time"

	"github.com/google/uuid"
)

// PartitionMapping pins a form to one physical partition table. The
// unique index on StorageTable is what makes concurrent first-claims
// safe: losers get a duplicate-key error and retry the next candidate.
type PartitionMapping struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FormID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"form_id"`
	StorageTable string    `gorm:"column:storage_table;not null;uniqueIndex" json:"storage_table"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (PartitionMapping) TableName() string { return "partition_mapping" }
