package models

import (
	"time"

	"gorm.io/datatypes"
)

// Template is a reusable blueprint for Jobs. Jobs keep a weak reference to
// the template they were created from.
type Template struct {
	ID                     uint    `gorm:"primaryKey;autoIncrement"`
	Name                   string  `gorm:"size:128;not null;uniqueIndex"`
	JobType                string  `gorm:"size:16;not null"`
	EquipmentID            *uint   `gorm:"index"`
	EquipmentType          string  `gorm:"size:64"`
	Berth                  string  `gorm:"size:32"`
	Description            string  `gorm:"type:text"`
	EstimatedHours         float64 `gorm:"not null"`
	Priority               string  `gorm:"size:16;default:normal"`
	Recurrence             string  `gorm:"size:64"` // 5-field cron expression
	DefaultTeamSize        int     `gorm:"default:1"`
	RequiredCertifications datatypes.JSONSlice[string]
	CreatedAt              time.Time
	UpdatedAt              time.Time

	Materials []TemplateMaterial      `gorm:"foreignKey:TemplateID"`
	Checklist []TemplateChecklistItem `gorm:"foreignKey:TemplateID"`
}

// TemplateMaterial is the default material list of a Template.
type TemplateMaterial struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	TemplateID uint    `gorm:"not null;index"`
	MaterialID uint    `gorm:"not null"`
	Quantity   float64 `gorm:"not null"`
}

// Checklist answer types.
const (
	AnswerPassFail = "pass_fail"
	AnswerYesNo    = "yes_no"
	AnswerNumeric  = "numeric"
	AnswerText     = "text"
)

// TemplateChecklistItem is one question a worker answers while doing a Job.
type TemplateChecklistItem struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TemplateID uint   `gorm:"not null;index"`
	Position   int    `gorm:"not null"`
	Question   string `gorm:"type:text;not null"`
	AnswerType string `gorm:"size:16;default:pass_fail"`
	Required   bool   `gorm:"not null"`
	Critical   bool   `gorm:"not null"`
}

// ChecklistResponse records a worker's answer to a checklist item on a Job.
type ChecklistResponse struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	JobID           uint   `gorm:"not null;uniqueIndex:idx_response_job_item"`
	ChecklistItemID uint   `gorm:"not null;uniqueIndex:idx_response_job_item"`
	Value           string `gorm:"size:256"`
	Passed          *bool
	Notes           string `gorm:"type:text"`
	SubmittedBy     uint
	SubmittedAt     time.Time
}
