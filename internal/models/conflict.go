package models

import (
	"time"

	"gorm.io/datatypes"
)

// Conflict types.
const (
	ConflictCapacity   = "capacity"
	ConflictSkill      = "skill"
	ConflictEquipment  = "equipment"
	ConflictDependency = "dependency"
	ConflictOverlap    = "overlap"
)

// Severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Conflict statuses. Resolved and ignored are terminal.
const (
	ConflictOpen     = "open"
	ConflictResolved = "resolved"
	ConflictIgnored  = "ignored"
)

// Conflict is a persisted finding of a plan scan.
type Conflict struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	PlanID          uint   `gorm:"not null;index"`
	ScanID          string `gorm:"size:36;index"`
	Type            string `gorm:"size:16;not null"`
	Severity        string `gorm:"size:8;not null"`
	Description     string `gorm:"type:text"`
	DayID           *uint
	AffectedJobIDs  datatypes.JSONSlice[uint]
	AffectedUserIDs datatypes.JSONSlice[uint]
	Status          string `gorm:"size:16;default:open;index"`
	Resolution      string `gorm:"type:text"`
	ResolvedBy      *uint
	ResolvedAt      *time.Time
	CreatedAt       time.Time
}
