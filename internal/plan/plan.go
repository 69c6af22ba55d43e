// Package plan provides weekly plan lifecycle and job operations.
package plan

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
)

// ValidTransitions maps each plan status to its valid next statuses.
var ValidTransitions = map[string][]string{
	models.PlanDraft:     {models.PlanPublished, models.PlanArchived},
	models.PlanPublished: {models.PlanArchived},
}

// WeekOf returns the Monday starting the week containing t, at midnight UTC.
func WeekOf(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// Create opens the plan for the week containing weekOf, with one Day per
// date. Only one plan may exist per week.
func Create(db *gorm.DB, weekOf time.Time, notes string) (*models.Plan, error) {
	start := WeekOf(weekOf)
	p := models.Plan{
		WeekStart: start,
		WeekEnd:   start.AddDate(0, 0, 6),
		Status:    models.PlanDraft,
		Notes:     notes,
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Plan{}).Where("week_start = ?", start).Count(&count).Error; err != nil {
			return fmt.Errorf("check week %s: %w", start.Format("2006-01-02"), err)
		}
		if count > 0 {
			return apperr.Conflict("plan for week %s already exists", start.Format("2006-01-02")).WithField("week_start")
		}
		for i := range 7 {
			p.Days = append(p.Days, models.Day{Date: start.AddDate(0, 0, i)})
		}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return &p, nil
}

// Get retrieves a plan with its days in date order.
func Get(db *gorm.DB, id uint) (*models.Plan, error) {
	var p models.Plan
	err := db.Preload("Days", func(q *gorm.DB) *gorm.DB { return q.Order("date, id") }).First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan: %w", apperr.NotFound("plan", id))
		}
		return nil, fmt.Errorf("plan: get %d: %w", id, err)
	}
	return &p, nil
}

// GetTree retrieves a plan with days, jobs, assignments and materials.
func GetTree(db *gorm.DB, id uint) (*models.Plan, error) {
	var p models.Plan
	err := db.
		Preload("Days", func(q *gorm.DB) *gorm.DB { return q.Order("date, id") }).
		Preload("Days.Jobs", func(q *gorm.DB) *gorm.DB { return q.Order("start_time, id") }).
		Preload("Days.Jobs.Assignments", func(q *gorm.DB) *gorm.DB { return q.Order("user_id") }).
		Preload("Days.Jobs.Materials").
		First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan: %w", apperr.NotFound("plan", id))
		}
		return nil, fmt.Errorf("plan: get tree %d: %w", id, err)
	}
	return &p, nil
}

// List returns plans, newest week first, optionally filtered by status.
func List(db *gorm.DB, status string) ([]models.Plan, error) {
	q := db.Model(&models.Plan{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var plans []models.Plan
	if err := q.Order("week_start DESC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("plan: list: %w", err)
	}
	return plans, nil
}

// MarkValidated records that the plan passed validation at t.
func MarkValidated(db *gorm.DB, id uint, t time.Time) error {
	if err := db.Model(&models.Plan{}).Where("id = ?", id).Update("validated_at", t).Error; err != nil {
		return fmt.Errorf("plan: mark %d validated: %w", id, err)
	}
	return nil
}

// Invalidate clears the plan's validation stamp. Every structural change
// calls it so a plan must be validated again before publishing.
func Invalidate(db *gorm.DB, id uint) error {
	if err := db.Model(&models.Plan{}).Where("id = ?", id).Update("validated_at", nil).Error; err != nil {
		return fmt.Errorf("plan: invalidate %d: %w", id, err)
	}
	return nil
}

// Publish moves a validated draft to published.
func Publish(db *gorm.DB, id uint, now time.Time) (*models.Plan, error) {
	p, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if p.ValidatedAt == nil {
		return nil, fmt.Errorf("plan: %w", apperr.Business("plan %d must pass validation since its last change before publishing", id))
	}
	return transition(db, p, models.PlanPublished, map[string]any{"published_at": now})
}

// Archive closes a plan.
func Archive(db *gorm.DB, id uint, now time.Time) (*models.Plan, error) {
	p, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	return transition(db, p, models.PlanArchived, map[string]any{"archived_at": now})
}

// ArchiveElapsed archives every draft or published plan whose week ended
// before now and returns how many were archived.
func ArchiveElapsed(db *gorm.DB, now time.Time) (int64, error) {
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	result := db.Model(&models.Plan{}).
		Where("status IN ? AND week_end < ?", []string{models.PlanDraft, models.PlanPublished}, cutoff).
		Updates(map[string]any{"status": models.PlanArchived, "archived_at": now})
	if result.Error != nil {
		return 0, fmt.Errorf("plan: archive elapsed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func transition(db *gorm.DB, p *models.Plan, to string, extra map[string]any) (*models.Plan, error) {
	if !slices.Contains(ValidTransitions[p.Status], to) {
		return nil, fmt.Errorf("plan: %w", apperr.Validation(
			"invalid status transition from %q to %q; valid transitions: %v", p.Status, to, ValidTransitions[p.Status]).WithField("status"))
	}
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	if err := db.Model(&models.Plan{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("plan: update %d: %w", p.ID, err)
	}
	return Get(db, p.ID)
}

// OfDay returns the plan ID owning a day.
func OfDay(db *gorm.DB, dayID uint) (uint, error) {
	var d models.Day
	if err := db.Select("id", "plan_id").First(&d, dayID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("plan: %w", apperr.NotFound("day", dayID))
		}
		return 0, fmt.Errorf("plan: get day %d: %w", dayID, err)
	}
	return d.PlanID, nil
}

// OfJob returns the plan ID owning a job.
func OfJob(db *gorm.DB, jobID uint) (uint, error) {
	var planIDs []uint
	err := db.Model(&models.Job{}).
		Joins("JOIN days ON days.id = jobs.day_id").
		Where("jobs.id = ?", jobID).
		Pluck("days.plan_id", &planIDs).Error
	if err != nil {
		return 0, fmt.Errorf("plan: resolve job %d: %w", jobID, err)
	}
	if len(planIDs) == 0 {
		return 0, fmt.Errorf("plan: %w", apperr.NotFound("job", jobID))
	}
	return planIDs[0], nil
}
