package models

import (
	"fmt"
	"time"
)

// Job types.
const (
	JobPreventive = "preventive"
	JobDefect     = "defect"
	JobInspection = "inspection"
)

// Job statuses.
const (
	JobPending    = "pending"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobCancelled  = "cancelled"
)

// Job is one unit of scheduled maintenance work on a Day.
//
// A Job with IsSplit set is an inert anchor: its hours are carried by the
// parts that reference it through SplitFromID and it is skipped by capacity
// and conflict accounting.
type Job struct {
	ID                 uint    `gorm:"primaryKey;autoIncrement"`
	DayID              uint    `gorm:"not null;index"`
	JobType            string  `gorm:"size:16;not null"`
	EquipmentID        *uint   `gorm:"index"`
	TemplateID         *uint   `gorm:"index"`
	Description        string  `gorm:"type:text"`
	Berth              string  `gorm:"size:32"`
	EstimatedHours     float64 `gorm:"not null"`
	Priority           string  `gorm:"size:16;default:normal"`
	StartTime          string  `gorm:"size:5"` // HH:MM, empty when unslotted
	EndTime            string  `gorm:"size:5"`
	Status             string  `gorm:"size:16;default:pending;index"`
	ActualHours        *float64
	IsSplit            bool  `gorm:"not null"`
	SplitFromID        *uint `gorm:"index"`
	SplitPart          int
	ChecklistCompleted bool `gorm:"not null"`
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Assignments []JobAssignment `gorm:"foreignKey:JobID"`
	Materials   []JobMaterial   `gorm:"foreignKey:JobID"`
}

// HasSlot reports whether the job carries an explicit time slot.
func (j *Job) HasSlot() bool {
	return j.StartTime != "" && j.EndTime != ""
}

// Slot returns the job's time slot in minutes after midnight. ok is false
// when the job has no slot or the slot does not parse.
func (j *Job) Slot() (start, end int, ok bool) {
	if !j.HasSlot() {
		return 0, 0, false
	}
	start, err1 := ParseClock(j.StartTime)
	end, err2 := ParseClock(j.EndTime)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}

// ParseClock converts "HH:MM" to minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// JobAssignment puts a worker on a Job.
type JobAssignment struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	JobID     uint `gorm:"not null;uniqueIndex:idx_assignment_job_user"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_assignment_job_user;index"`
	IsLead    bool `gorm:"not null"`
	CreatedAt time.Time
}

// JobMaterial is a quantity of catalog material reserved for a Job.
type JobMaterial struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	JobID      uint    `gorm:"not null;index"`
	MaterialID uint    `gorm:"not null"`
	Quantity   float64 `gorm:"not null"`
}

// JobDependency types.
const (
	DepFinishToStart = "finish_to_start"
	DepStartToStart  = "start_to_start"
)

// JobDependency orders two jobs: JobID may not start until DependsOnJobID
// has finished (finish_to_start) or started (start_to_start), plus LagMinutes.
type JobDependency struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	JobID          uint   `gorm:"not null;uniqueIndex:idx_dependency_edge"`
	DependsOnJobID uint   `gorm:"not null;uniqueIndex:idx_dependency_edge;index"`
	Type           string `gorm:"size:24;default:finish_to_start"`
	LagMinutes     int
	CreatedAt      time.Time
}
