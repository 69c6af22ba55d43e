package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlanVersion is an immutable snapshot of a Plan's job tree.
type PlanVersion struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	PlanID        uint   `gorm:"not null;uniqueIndex:idx_plan_version"`
	VersionNumber int    `gorm:"not null;uniqueIndex:idx_plan_version"`
	SchemaVersion int    `gorm:"not null"`
	Snapshot      datatypes.JSON
	ChangeType    string `gorm:"size:32"`
	Summary       string `gorm:"type:text"`
	CreatedAt     time.Time
}
