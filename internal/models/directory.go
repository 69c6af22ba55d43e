package models

import "time"

// User is a worker from the user directory. The engine only reads it.
type User struct {
	ID     uint   `gorm:"primaryKey;autoIncrement"`
	Name   string `gorm:"size:128;not null"`
	Role   string `gorm:"size:32;index"`
	Shift  string `gorm:"size:16"`
	Active bool   `gorm:"not null"`
}

// Leave statuses.
const (
	LeavePending  = "pending"
	LeaveApproved = "approved"
	LeaveRejected = "rejected"
)

// Leave is an absence record. Only approved leave blocks assignment.
type Leave struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"not null;index"`
	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`
	Status    string    `gorm:"size:16;default:pending"`
	Reason    string    `gorm:"type:text"`
}

// Covers reports whether the leave is approved and spans date.
func (l *Leave) Covers(date time.Time) bool {
	if l.Status != LeaveApproved {
		return false
	}
	return !date.Before(l.StartDate) && !date.After(l.EndDate)
}

// Equipment is an item from the equipment directory.
type Equipment struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Name     string `gorm:"size:128;not null"`
	Type     string `gorm:"size:64;index"`
	Location string `gorm:"size:64"`
}

// Material is an entry of the material catalog.
type Material struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Code string `gorm:"size:32;uniqueIndex"`
	Name string `gorm:"size:128;not null"`
	Unit string `gorm:"size:16"`
}
