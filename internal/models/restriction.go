package models

import (
	"time"

	"gorm.io/datatypes"
)

// EquipmentRestriction constrains when and by whom equipment may be worked
// on. Payload holds the type-specific rule; a restriction without dates is
// permanent.
type EquipmentRestriction struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	EquipmentID uint   `gorm:"not null;index"`
	Type        string `gorm:"size:24;not null"`
	Payload     datatypes.JSON
	StartDate   *time.Time
	EndDate     *time.Time
	Reason      string `gorm:"type:text"`
	CreatedAt   time.Time
}

// ActiveOn reports whether the restriction applies on date.
func (r *EquipmentRestriction) ActiveOn(date time.Time) bool {
	if r.StartDate != nil && date.Before(*r.StartDate) {
		return false
	}
	if r.EndDate != nil && date.After(*r.EndDate) {
		return false
	}
	return true
}
