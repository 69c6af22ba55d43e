package models

import "time"

// Plan statuses.
const (
	PlanDraft     = "draft"
	PlanPublished = "published"
	PlanArchived  = "archived"
)

// Plan is one week of scheduled maintenance work. It is the aggregate root
// for its Days, their Jobs, and the Jobs' Assignments and Materials.
type Plan struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	WeekStart   time.Time `gorm:"not null;uniqueIndex"`
	WeekEnd     time.Time `gorm:"not null"`
	Status      string    `gorm:"size:16;default:draft;index"`
	Notes       string    `gorm:"type:text"`
	ValidatedAt *time.Time
	PublishedAt *time.Time
	ArchivedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Days []Day `gorm:"foreignKey:PlanID"`
}

// Day is a single calendar date inside a Plan.
type Day struct {
	ID     uint      `gorm:"primaryKey;autoIncrement"`
	PlanID uint      `gorm:"not null;index"`
	Date   time.Time `gorm:"not null"`
	Notes  string    `gorm:"type:text"`

	Jobs []Job `gorm:"foreignKey:DayID"`
}
