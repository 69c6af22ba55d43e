// Package version keeps immutable snapshots of a plan's job tree and can
// diff two snapshots or restore one.
package version

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/dependency"
	"github.com/zulandar/drydock/internal/models"
)

// SchemaV1 identifies the PlanSnapshotV1 layout.
const SchemaV1 = 1

// PlanSnapshotV1 is a self-contained copy of a plan's days, jobs,
// assignments, materials and dependency edges. It does not follow the live
// schema; reading it after a schema change goes through Decode.
type PlanSnapshotV1 struct {
	Schema       int                  `json:"schema"`
	PlanID       uint                 `json:"plan_id"`
	WeekStart    time.Time            `json:"week_start"`
	WeekEnd      time.Time            `json:"week_end"`
	Status       string               `json:"status"`
	Notes        string               `json:"notes,omitempty"`
	Days         []DaySnapshot        `json:"days"`
	Dependencies []DependencySnapshot `json:"dependencies,omitempty"`
}

type DaySnapshot struct {
	ID    uint          `json:"id"`
	Date  time.Time     `json:"date"`
	Notes string        `json:"notes,omitempty"`
	Jobs  []JobSnapshot `json:"jobs"`
}

type JobSnapshot struct {
	ID                 uint                 `json:"id"`
	JobType            string               `json:"job_type"`
	EquipmentID        *uint                `json:"equipment_id,omitempty"`
	TemplateID         *uint                `json:"template_id,omitempty"`
	Description        string               `json:"description,omitempty"`
	Berth              string               `json:"berth,omitempty"`
	EstimatedHours     float64              `json:"estimated_hours"`
	Priority           string               `json:"priority"`
	StartTime          string               `json:"start_time,omitempty"`
	EndTime            string               `json:"end_time,omitempty"`
	Status             string               `json:"status"`
	ActualHours        *float64             `json:"actual_hours,omitempty"`
	IsSplit            bool                 `json:"is_split"`
	SplitFromID        *uint                `json:"split_from_id,omitempty"`
	SplitPart          int                  `json:"split_part,omitempty"`
	ChecklistCompleted bool                 `json:"checklist_completed"`
	CompletedAt        *time.Time           `json:"completed_at,omitempty"`
	Assignments        []AssignmentSnapshot `json:"assignments"`
	Materials          []MaterialSnapshot   `json:"materials"`
}

type AssignmentSnapshot struct {
	UserID uint `json:"user_id"`
	IsLead bool `json:"is_lead"`
}

type MaterialSnapshot struct {
	MaterialID uint    `json:"material_id"`
	Quantity   float64 `json:"quantity"`
}

type DependencySnapshot struct {
	JobID          uint   `json:"job_id"`
	DependsOnJobID uint   `json:"depends_on_job_id"`
	Type           string `json:"type"`
	LagMinutes     int    `json:"lag_minutes,omitempty"`
}

// Jobs returns every job in the snapshot keyed by ID, with the date of the
// day holding it.
func (s *PlanSnapshotV1) Jobs() map[uint]PlacedJob {
	out := map[uint]PlacedJob{}
	for _, d := range s.Days {
		for _, j := range d.Jobs {
			out[j.ID] = PlacedJob{JobSnapshot: j, Date: d.Date}
		}
	}
	return out
}

// PlacedJob is a job snapshot with its day's date.
type PlacedJob struct {
	JobSnapshot
	Date time.Time
}

// Encode serialises s, stamping the schema.
func Encode(s *PlanSnapshotV1) ([]byte, error) {
	s.Schema = SchemaV1
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("version: encode snapshot: %w", err)
	}
	return data, nil
}

// Decode reads a stored snapshot, dispatching on its schema field.
func Decode(data []byte) (*PlanSnapshotV1, error) {
	var head struct {
		Schema int `json:"schema"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("version: %w", apperr.Validation("malformed snapshot: %v", err))
	}
	switch head.Schema {
	case SchemaV1:
		var s PlanSnapshotV1
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("version: %w", apperr.Validation("malformed v1 snapshot: %v", err))
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("version: %w", apperr.Validation("unsupported snapshot schema %d", head.Schema))
	}
}

// Build walks Plan, Days, Jobs, Assignments and Materials into a snapshot.
// Days are ordered by date, jobs by ID, assignments by user and materials by
// material, so equal plans give equal snapshots.
func Build(db *gorm.DB, planID uint) (*PlanSnapshotV1, error) {
	var plan models.Plan
	err := db.
		Preload("Days", func(q *gorm.DB) *gorm.DB { return q.Order("date, id") }).
		Preload("Days.Jobs", func(q *gorm.DB) *gorm.DB { return q.Order("id") }).
		Preload("Days.Jobs.Assignments", func(q *gorm.DB) *gorm.DB { return q.Order("user_id") }).
		Preload("Days.Jobs.Materials", func(q *gorm.DB) *gorm.DB { return q.Order("material_id, id") }).
		First(&plan, planID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("version: %w", apperr.NotFound("plan", planID))
		}
		return nil, fmt.Errorf("version: load plan %d: %w", planID, err)
	}

	s := &PlanSnapshotV1{
		Schema:    SchemaV1,
		PlanID:    plan.ID,
		WeekStart: plan.WeekStart,
		WeekEnd:   plan.WeekEnd,
		Status:    plan.Status,
		Notes:     plan.Notes,
		Days:      make([]DaySnapshot, 0, len(plan.Days)),
	}
	for _, d := range plan.Days {
		ds := DaySnapshot{ID: d.ID, Date: d.Date, Notes: d.Notes, Jobs: make([]JobSnapshot, 0, len(d.Jobs))}
		for _, j := range d.Jobs {
			ds.Jobs = append(ds.Jobs, snapshotJob(j))
		}
		s.Days = append(s.Days, ds)
	}

	deps, err := dependency.ForPlan(db, planID)
	if err != nil {
		return nil, fmt.Errorf("version: %w", err)
	}
	for _, d := range deps {
		s.Dependencies = append(s.Dependencies, DependencySnapshot{
			JobID:          d.JobID,
			DependsOnJobID: d.DependsOnJobID,
			Type:           d.Type,
			LagMinutes:     d.LagMinutes,
		})
	}
	return s, nil
}

func snapshotJob(j models.Job) JobSnapshot {
	js := JobSnapshot{
		ID:                 j.ID,
		JobType:            j.JobType,
		EquipmentID:        j.EquipmentID,
		TemplateID:         j.TemplateID,
		Description:        j.Description,
		Berth:              j.Berth,
		EstimatedHours:     j.EstimatedHours,
		Priority:           j.Priority,
		StartTime:          j.StartTime,
		EndTime:            j.EndTime,
		Status:             j.Status,
		ActualHours:        j.ActualHours,
		IsSplit:            j.IsSplit,
		SplitFromID:        j.SplitFromID,
		SplitPart:          j.SplitPart,
		ChecklistCompleted: j.ChecklistCompleted,
		CompletedAt:        j.CompletedAt,
		Assignments:        make([]AssignmentSnapshot, 0, len(j.Assignments)),
		Materials:          make([]MaterialSnapshot, 0, len(j.Materials)),
	}
	for _, a := range j.Assignments {
		js.Assignments = append(js.Assignments, AssignmentSnapshot{UserID: a.UserID, IsLead: a.IsLead})
	}
	for _, m := range j.Materials {
		js.Materials = append(js.Materials, MaterialSnapshot{MaterialID: m.MaterialID, Quantity: m.Quantity})
	}
	return js
}
