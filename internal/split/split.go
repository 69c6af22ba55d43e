// Package split divides a job's hours and materials across several days and
// merges the parts back.
package split

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/plan"
)

// HoursTolerance is how far the parts' hours may drift from the original.
const HoursTolerance = 0.01

// Part places a share of a job's hours on a day.
type Part struct {
	DayID uint    `validate:"required"`
	Hours float64 `validate:"gt=0"`
}

// Round2 rounds q to two decimals, the precision material quantities are
// kept at after a split.
func Round2(q float64) float64 {
	return math.Round(q*100) / 100
}

// Split replaces jobID by len(parts) new jobs, one per part. The original
// becomes an inert anchor flagged IsSplit. Each part copies the original's
// static fields and assignments, and receives its materials scaled by
// hours/original hours and rounded to two decimals. The last part absorbs
// the hours rounding so the parts sum to the original exactly.
func Split(db *gorm.DB, jobID uint, parts []Part) ([]models.Job, error) {
	if len(parts) < 2 {
		return nil, fmt.Errorf("split: %w", apperr.Validation("a split needs at least 2 parts, got %d", len(parts)).WithField("parts"))
	}
	for i := range parts {
		if err := apperr.Struct(parts[i]); err != nil {
			return nil, fmt.Errorf("split: part %d: %w", i+1, err)
		}
	}

	var created []models.Job
	err := db.Transaction(func(tx *gorm.DB) error {
		var orig models.Job
		if err := tx.Preload("Assignments").Preload("Materials").First(&orig, jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("job", jobID)
			}
			return fmt.Errorf("get job %d: %w", jobID, err)
		}
		if orig.IsSplit {
			return apperr.Validation("job %d is already split", jobID)
		}
		if orig.SplitFromID != nil {
			return apperr.Validation("job %d is a split part; merge it first", jobID)
		}

		var total float64
		for _, p := range parts {
			total += p.Hours
		}
		if math.Abs(total-orig.EstimatedHours) > HoursTolerance+1e-9 {
			return apperr.Validation("parts sum to %.2fh, job has %.2fh", total, orig.EstimatedHours).WithField("parts")
		}
		if err := samePlan(tx, orig.DayID, parts); err != nil {
			return err
		}

		var assigned float64
		for i, p := range parts {
			hours := p.Hours
			if i == len(parts)-1 {
				hours = orig.EstimatedHours - assigned
			}
			assigned += hours

			part := models.Job{
				DayID:          p.DayID,
				JobType:        orig.JobType,
				EquipmentID:    orig.EquipmentID,
				TemplateID:     orig.TemplateID,
				Description:    orig.Description,
				Berth:          orig.Berth,
				EstimatedHours: hours,
				Priority:       orig.Priority,
				Status:         orig.Status,
				SplitFromID:    &orig.ID,
				SplitPart:      i + 1,
			}
			ratio := hours / orig.EstimatedHours
			for _, m := range orig.Materials {
				part.Materials = append(part.Materials, models.JobMaterial{
					MaterialID: m.MaterialID,
					Quantity:   Round2(m.Quantity * ratio),
				})
			}
			for _, a := range orig.Assignments {
				part.Assignments = append(part.Assignments, models.JobAssignment{UserID: a.UserID, IsLead: a.IsLead})
			}
			if err := tx.Create(&part).Error; err != nil {
				return fmt.Errorf("create part %d: %w", i+1, err)
			}
			created = append(created, part)
		}

		if err := tx.Model(&orig).Update("is_split", true).Error; err != nil {
			return fmt.Errorf("flag job %d: %w", jobID, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	return created, nil
}

func samePlan(tx *gorm.DB, origDayID uint, parts []Part) error {
	var origDay models.Day
	if err := tx.First(&origDay, origDayID).Error; err != nil {
		return fmt.Errorf("get day %d: %w", origDayID, err)
	}
	for _, p := range parts {
		var d models.Day
		if err := tx.First(&d, p.DayID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("day", p.DayID)
			}
			return fmt.Errorf("get day %d: %w", p.DayID, err)
		}
		if d.PlanID != origDay.PlanID {
			return apperr.Validation("day %d belongs to another plan", p.DayID).WithField("parts")
		}
	}
	return nil
}

// Parts returns the parts of a split job ordered by part number.
func Parts(db *gorm.DB, originalID uint) ([]models.Job, error) {
	var parts []models.Job
	err := db.Preload("Materials").Preload("Assignments").
		Where("split_from_id = ?", originalID).Order("split_part").Find(&parts).Error
	if err != nil {
		return nil, fmt.Errorf("split: list parts of %d: %w", originalID, err)
	}
	return parts, nil
}

// Merge folds the parts of a split job back into the original: hours are
// summed, the original's materials become the per-material sum of the parts,
// and the parts are deleted together with their assignments, materials,
// checklist responses and dependency edges.
func Merge(db *gorm.DB, originalID uint) (*models.Job, error) {
	var orig models.Job
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&orig, originalID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("job", originalID)
			}
			return fmt.Errorf("get job %d: %w", originalID, err)
		}
		if !orig.IsSplit {
			return apperr.Validation("job %d is not split", originalID)
		}
		parts, err := Parts(tx, originalID)
		if err != nil {
			return err
		}

		var hours float64
		qty := map[uint]float64{}
		partIDs := make([]uint, 0, len(parts))
		for _, p := range parts {
			hours += p.EstimatedHours
			for _, m := range p.Materials {
				qty[m.MaterialID] += m.Quantity
			}
			partIDs = append(partIDs, p.ID)
		}

		if len(partIDs) > 0 {
			if err := plan.DeleteJobs(tx, partIDs); err != nil {
				return err
			}
			if math.Abs(hours-orig.EstimatedHours) > 1e-9 {
				orig.EstimatedHours = hours
			}
			if err := tx.Where("job_id = ?", orig.ID).Delete(&models.JobMaterial{}).Error; err != nil {
				return fmt.Errorf("clear materials of %d: %w", orig.ID, err)
			}
			materialIDs := make([]uint, 0, len(qty))
			for id := range qty {
				materialIDs = append(materialIDs, id)
			}
			sort.Slice(materialIDs, func(i, j int) bool { return materialIDs[i] < materialIDs[j] })
			for _, id := range materialIDs {
				m := models.JobMaterial{JobID: orig.ID, MaterialID: id, Quantity: Round2(qty[id])}
				if err := tx.Create(&m).Error; err != nil {
					return fmt.Errorf("restore material %d: %w", id, err)
				}
			}
		}

		err = tx.Model(&orig).Updates(map[string]any{
			"is_split":        false,
			"estimated_hours": orig.EstimatedHours,
		}).Error
		if err != nil {
			return fmt.Errorf("unflag job %d: %w", orig.ID, err)
		}
		return tx.Preload("Materials").Preload("Assignments").First(&orig, orig.ID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("split: merge: %w", err)
	}
	return &orig, nil
}
