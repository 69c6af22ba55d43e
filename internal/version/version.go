package version

import (
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/plan"
)

// Change types recorded on versions.
const (
	ChangeManual     = "manual"
	ChangePreRestore = "pre_restore"
	ChangeRestore    = "restore"
	ChangePublish    = "publish"
)

// Create snapshots the plan as the next version number. Version numbers
// are strictly increasing per plan and never reused.
func Create(db *gorm.DB, planID uint, changeType, summary string) (*models.PlanVersion, error) {
	var v *models.PlanVersion
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		v, err = create(tx, planID, changeType, summary)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func create(tx *gorm.DB, planID uint, changeType, summary string) (*models.PlanVersion, error) {
	if changeType == "" {
		changeType = ChangeManual
	}
	snap, err := Build(tx, planID)
	if err != nil {
		return nil, err
	}
	data, err := Encode(snap)
	if err != nil {
		return nil, err
	}

	var latest int
	err = tx.Model(&models.PlanVersion{}).
		Where("plan_id = ?", planID).
		Select("COALESCE(MAX(version_number), 0)").
		Scan(&latest).Error
	if err != nil {
		return nil, fmt.Errorf("version: latest for plan %d: %w", planID, err)
	}

	v := models.PlanVersion{
		PlanID:        planID,
		VersionNumber: latest + 1,
		SchemaVersion: SchemaV1,
		Snapshot:      datatypes.JSON(data),
		ChangeType:    changeType,
		Summary:       summary,
	}
	if err := tx.Create(&v).Error; err != nil {
		return nil, fmt.Errorf("version: create v%d of plan %d: %w", v.VersionNumber, planID, err)
	}
	return &v, nil
}

// List returns the plan's versions, newest first, without snapshots.
func List(db *gorm.DB, planID uint) ([]models.PlanVersion, error) {
	var out []models.PlanVersion
	err := db.Omit("snapshot").Where("plan_id = ?", planID).Order("version_number DESC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("version: list for plan %d: %w", planID, err)
	}
	return out, nil
}

// Get returns version n of a plan.
func Get(db *gorm.DB, planID uint, n int) (*models.PlanVersion, error) {
	var v models.PlanVersion
	if err := db.Where("plan_id = ? AND version_number = ?", planID, n).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("version: %w", apperr.NotFound("version", fmt.Sprintf("%d of plan %d", n, planID)))
		}
		return nil, fmt.Errorf("version: get v%d of plan %d: %w", n, planID, err)
	}
	return &v, nil
}

// Snapshot decodes version n of a plan.
func Snapshot(db *gorm.DB, planID uint, n int) (*PlanSnapshotV1, error) {
	v, err := Get(db, planID, n)
	if err != nil {
		return nil, err
	}
	return Decode(v.Snapshot)
}

// Restore rebuilds the plan's jobs from version n. The current state is
// versioned first and the restored state after, so a restore always adds
// two versions. Job IDs from the snapshot are reused when free; otherwise
// the job gets a new ID and references to it are remapped. Checklist
// responses of the replaced jobs are not part of a snapshot and are lost.
func Restore(db *gorm.DB, planID uint, n int) (*models.PlanVersion, error) {
	var restored *models.PlanVersion
	err := db.Transaction(func(tx *gorm.DB) error {
		snap, err := Snapshot(tx, planID, n)
		if err != nil {
			return err
		}
		if snap.PlanID != planID {
			return apperr.Validation("version %d belongs to plan %d", n, snap.PlanID)
		}
		if _, err := create(tx, planID, ChangePreRestore, fmt.Sprintf("state before restoring v%d", n)); err != nil {
			return err
		}

		var current []uint
		err = tx.Model(&models.Job{}).
			Joins("JOIN days ON days.id = jobs.day_id").
			Where("days.plan_id = ?", planID).
			Pluck("jobs.id", &current).Error
		if err != nil {
			return fmt.Errorf("list jobs of plan %d: %w", planID, err)
		}
		if len(current) > 0 {
			if err := plan.DeleteJobs(tx, current); err != nil {
				return err
			}
		}

		dayIDs, err := restoreDays(tx, planID, snap.Days)
		if err != nil {
			return err
		}
		jobIDs, err := restoreJobs(tx, snap.Days, dayIDs)
		if err != nil {
			return err
		}
		if err := restoreDependencies(tx, snap.Dependencies, jobIDs); err != nil {
			return err
		}

		restored, err = create(tx, planID, ChangeRestore, fmt.Sprintf("restored v%d", n))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("version: restore v%d of plan %d: %w", n, planID, err)
	}
	return restored, nil
}

// restoreDays makes sure every snapshot day exists in the plan and returns
// snapshot day ID -> live day ID.
func restoreDays(tx *gorm.DB, planID uint, days []DaySnapshot) (map[uint]uint, error) {
	var live []models.Day
	if err := tx.Where("plan_id = ?", planID).Find(&live).Error; err != nil {
		return nil, fmt.Errorf("list days of plan %d: %w", planID, err)
	}
	byID := map[uint]models.Day{}
	byDate := map[string]models.Day{}
	for _, d := range live {
		byID[d.ID] = d
		byDate[d.Date.Format("2006-01-02")] = d
	}

	out := make(map[uint]uint, len(days))
	for _, ds := range days {
		d, ok := byID[ds.ID]
		if !ok {
			d, ok = byDate[ds.Date.Format("2006-01-02")]
		}
		if ok {
			if d.Notes != ds.Notes {
				if err := tx.Model(&d).Update("notes", ds.Notes).Error; err != nil {
					return nil, fmt.Errorf("restore day %d: %w", d.ID, err)
				}
			}
			out[ds.ID] = d.ID
			continue
		}
		d = models.Day{PlanID: planID, Date: ds.Date, Notes: ds.Notes}
		if free, err := idFree(tx, &models.Day{}, ds.ID); err != nil {
			return nil, err
		} else if free {
			d.ID = ds.ID
		}
		if err := tx.Create(&d).Error; err != nil {
			return nil, fmt.Errorf("recreate day %s: %w", ds.Date.Format("2006-01-02"), err)
		}
		out[ds.ID] = d.ID
	}
	return out, nil
}

// restoreJobs recreates the snapshot's jobs and returns snapshot job ID ->
// live job ID.
func restoreJobs(tx *gorm.DB, days []DaySnapshot, dayIDs map[uint]uint) (map[uint]uint, error) {
	out := map[uint]uint{}
	var parts []models.Job
	for _, ds := range days {
		for _, js := range ds.Jobs {
			j := models.Job{
				DayID:              dayIDs[ds.ID],
				JobType:            js.JobType,
				EquipmentID:        js.EquipmentID,
				TemplateID:         js.TemplateID,
				Description:        js.Description,
				Berth:              js.Berth,
				EstimatedHours:     js.EstimatedHours,
				Priority:           js.Priority,
				StartTime:          js.StartTime,
				EndTime:            js.EndTime,
				Status:             js.Status,
				ActualHours:        js.ActualHours,
				IsSplit:            js.IsSplit,
				SplitPart:          js.SplitPart,
				ChecklistCompleted: js.ChecklistCompleted,
				CompletedAt:        js.CompletedAt,
			}
			free, err := idFree(tx, &models.Job{}, js.ID)
			if err != nil {
				return nil, err
			}
			if free {
				j.ID = js.ID
			}
			for _, a := range js.Assignments {
				j.Assignments = append(j.Assignments, models.JobAssignment{UserID: a.UserID, IsLead: a.IsLead})
			}
			for _, m := range js.Materials {
				j.Materials = append(j.Materials, models.JobMaterial{MaterialID: m.MaterialID, Quantity: m.Quantity})
			}
			if err := tx.Create(&j).Error; err != nil {
				return nil, fmt.Errorf("recreate job %d: %w", js.ID, err)
			}
			out[js.ID] = j.ID
			if js.SplitFromID != nil {
				j.SplitFromID = js.SplitFromID
				parts = append(parts, j)
			}
		}
	}
	for _, p := range parts {
		anchor, ok := out[*p.SplitFromID]
		if !ok {
			anchor = *p.SplitFromID
		}
		if err := tx.Model(&models.Job{}).Where("id = ?", p.ID).Update("split_from_id", anchor).Error; err != nil {
			return nil, fmt.Errorf("relink part %d: %w", p.ID, err)
		}
	}
	return out, nil
}

// restoreDependencies recreates edges whose endpoints were both restored.
func restoreDependencies(tx *gorm.DB, deps []DependencySnapshot, jobIDs map[uint]uint) error {
	for _, d := range deps {
		job, ok1 := jobIDs[d.JobID]
		pre, ok2 := jobIDs[d.DependsOnJobID]
		if !ok1 || !ok2 {
			continue
		}
		edge := models.JobDependency{JobID: job, DependsOnJobID: pre, Type: d.Type, LagMinutes: d.LagMinutes}
		if err := tx.Create(&edge).Error; err != nil {
			return fmt.Errorf("recreate dependency %d->%d: %w", job, pre, err)
		}
	}
	return nil
}

func idFree(tx *gorm.DB, model any, id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check id %d: %w", id, err)
	}
	return n == 0, nil
}
