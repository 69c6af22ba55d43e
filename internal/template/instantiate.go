package template

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/plan"
)

// Instantiate creates a pending job on a day from a template's defaults and
// copies its materials.
func Instantiate(db *gorm.DB, templateID, dayID uint) (*models.Job, error) {
	var job *models.Job
	err := db.Transaction(func(tx *gorm.DB) error {
		t, err := Get(tx, templateID)
		if err != nil {
			return err
		}
		job, err = instantiate(tx, t, dayID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func instantiate(tx *gorm.DB, t *models.Template, dayID uint) (*models.Job, error) {
	job, err := plan.AddJob(tx, plan.AddJobOpts{
		DayID:          dayID,
		JobType:        t.JobType,
		EquipmentID:    t.EquipmentID,
		TemplateID:     &t.ID,
		Description:    t.Description,
		Berth:          t.Berth,
		EstimatedHours: t.EstimatedHours,
		Priority:       t.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("template: instantiate %q: %w", t.Name, err)
	}
	for _, m := range t.Materials {
		jm := models.JobMaterial{JobID: job.ID, MaterialID: m.MaterialID, Quantity: m.Quantity}
		if err := tx.Create(&jm).Error; err != nil {
			return nil, fmt.Errorf("template: copy material %d: %w", m.MaterialID, err)
		}
		job.Materials = append(job.Materials, jm)
	}
	return job, nil
}

// Occurs reports whether a cron recurrence fires at any minute of date.
func Occurs(recurrence string, date time.Time) (bool, error) {
	sched, err := cronParser.Parse(recurrence)
	if err != nil {
		return false, apperr.Validation("invalid recurrence %q: %v", recurrence, err)
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	next := sched.Next(start.Add(-time.Second))
	return !next.IsZero() && next.Before(start.AddDate(0, 0, 1)), nil
}

// ScheduleRecurring instantiates the template on every day of the plan its
// recurrence fires on. Days that already hold a job from the template are
// skipped. It returns the created jobs.
func ScheduleRecurring(db *gorm.DB, templateID, planID uint) ([]models.Job, error) {
	var created []models.Job
	err := db.Transaction(func(tx *gorm.DB) error {
		t, err := Get(tx, templateID)
		if err != nil {
			return err
		}
		if t.Recurrence == "" {
			return apperr.Business("template %q has no recurrence", t.Name)
		}
		p, err := plan.Get(tx, planID)
		if err != nil {
			return err
		}
		for _, day := range p.Days {
			ok, err := Occurs(t.Recurrence, day.Date)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			var count int64
			if err := tx.Model(&models.Job{}).
				Where("day_id = ? AND template_id = ?", day.ID, t.ID).
				Count(&count).Error; err != nil {
				return fmt.Errorf("check day %d: %w", day.ID, err)
			}
			if count > 0 {
				continue
			}
			job, err := instantiate(tx, t, day.ID)
			if err != nil {
				return err
			}
			created = append(created, *job)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("template: schedule %d: %w", templateID, err)
	}
	return created, nil
}
