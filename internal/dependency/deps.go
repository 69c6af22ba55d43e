// Package dependency maintains ordering edges between jobs of a plan and
// keeps the graph acyclic.
package dependency

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
)

// AddOpts holds parameters for adding a dependency.
type AddOpts struct {
	JobID      uint   `validate:"required"`
	DependsOn  uint   `validate:"required"`
	Type       string `validate:"omitempty,oneof=finish_to_start start_to_start"`
	LagMinutes int    `validate:"gte=0"`
}

type placedJob struct {
	models.Job
	PlanID uint
	Day    models.Day
}

// Add creates the edge opts.JobID -> opts.DependsOn. It rejects
// self-dependencies, edges across plans, duplicates, prerequisites scheduled
// on a later day, and edges that would close a cycle. Nothing is written when
// a check fails.
func Add(db *gorm.DB, opts AddOpts) (*models.JobDependency, error) {
	if err := apperr.Struct(opts); err != nil {
		return nil, fmt.Errorf("dependency: add: %w", err)
	}
	if opts.JobID == opts.DependsOn {
		return nil, fmt.Errorf("dependency: add: %w",
			apperr.Validation("job %d cannot depend on itself", opts.JobID).WithField("depends_on"))
	}
	if opts.Type == "" {
		opts.Type = models.DepFinishToStart
	}

	job, err := loadPlaced(db, opts.JobID)
	if err != nil {
		return nil, err
	}
	pre, err := loadPlaced(db, opts.DependsOn)
	if err != nil {
		return nil, err
	}
	if job.PlanID != pre.PlanID {
		return nil, fmt.Errorf("dependency: add: %w",
			apperr.Validation("jobs %d and %d belong to different plans", opts.JobID, opts.DependsOn).WithField("depends_on"))
	}

	var count int64
	if err := db.Model(&models.JobDependency{}).
		Where("job_id = ? AND depends_on_job_id = ?", opts.JobID, opts.DependsOn).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("dependency: check existing: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("dependency: add: %w",
			apperr.Conflict("job %d already depends on job %d", opts.JobID, opts.DependsOn))
	}

	if pre.Day.Date.After(job.Day.Date) {
		return nil, fmt.Errorf("dependency: add: %w",
			apperr.Validation("prerequisite job %d is scheduled on %s, after job %d on %s",
				pre.ID, pre.Day.Date.Format("2006-01-02"), job.ID, job.Day.Date.Format("2006-01-02")).WithField("depends_on"))
	}

	g, err := LoadGraph(db, job.PlanID)
	if err != nil {
		return nil, err
	}
	if g.WouldCycle(opts.JobID, opts.DependsOn) {
		return nil, fmt.Errorf("dependency: add: %w",
			apperr.Validation("adding %d → %d would create a cycle", opts.JobID, opts.DependsOn).WithField("depends_on"))
	}

	dep := models.JobDependency{
		JobID:          opts.JobID,
		DependsOnJobID: opts.DependsOn,
		Type:           opts.Type,
		LagMinutes:     opts.LagMinutes,
	}
	if err := db.Create(&dep).Error; err != nil {
		return nil, fmt.Errorf("dependency: create %d → %d: %w", opts.JobID, opts.DependsOn, err)
	}
	return &dep, nil
}

// Remove deletes a dependency relationship.
func Remove(db *gorm.DB, jobID, dependsOn uint) error {
	result := db.Where("job_id = ? AND depends_on_job_id = ?", jobID, dependsOn).Delete(&models.JobDependency{})
	if result.Error != nil {
		return fmt.Errorf("dependency: remove %d → %d: %w", jobID, dependsOn, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("dependency: remove: %w", apperr.NotFound("dependency", fmt.Sprintf("%d → %d", jobID, dependsOn)))
	}
	return nil
}

// List returns the prerequisites of a job (what it depends on) and its
// dependents (what depends on it).
func List(db *gorm.DB, jobID uint) (prerequisites []models.JobDependency, dependents []models.JobDependency, err error) {
	if err := db.Where("job_id = ?", jobID).Order("id").Find(&prerequisites).Error; err != nil {
		return nil, nil, fmt.Errorf("dependency: list prerequisites for %d: %w", jobID, err)
	}
	if err := db.Where("depends_on_job_id = ?", jobID).Order("id").Find(&dependents).Error; err != nil {
		return nil, nil, fmt.Errorf("dependency: list dependents for %d: %w", jobID, err)
	}
	return prerequisites, dependents, nil
}

// Chain returns every direct and transitive prerequisite of a job in
// depth-first order. It is informational and enforces nothing.
func Chain(db *gorm.DB, jobID uint) ([]Link, error) {
	job, err := loadPlaced(db, jobID)
	if err != nil {
		return nil, err
	}
	g, err := LoadGraph(db, job.PlanID)
	if err != nil {
		return nil, err
	}
	return g.Chain(jobID), nil
}

func loadPlaced(db *gorm.DB, jobID uint) (*placedJob, error) {
	var pj placedJob
	if err := db.First(&pj.Job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("dependency: %w", apperr.NotFound("job", jobID))
		}
		return nil, fmt.Errorf("dependency: get job %d: %w", jobID, err)
	}
	if err := db.First(&pj.Day, pj.DayID).Error; err != nil {
		return nil, fmt.Errorf("dependency: get day of job %d: %w", jobID, err)
	}
	pj.PlanID = pj.Day.PlanID
	return &pj, nil
}
