package plan

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
)

// Job priorities.
var Priorities = []string{"low", "normal", "high", "urgent"}

// AddJobOpts holds parameters for adding a job to a day.
type AddJobOpts struct {
	DayID          uint    `validate:"required"`
	JobType        string  `validate:"required,oneof=preventive defect inspection"`
	EquipmentID    *uint
	TemplateID     *uint
	Description    string
	Berth          string  `validate:"max=32"`
	EstimatedHours float64 `validate:"gt=0,lte=24"`
	Priority       string  `validate:"omitempty,oneof=low normal high urgent"`
	StartTime      string  `validate:"omitempty,len=5"`
	EndTime        string  `validate:"omitempty,len=5"`
}

// AddJob creates a pending job on a day.
func AddJob(db *gorm.DB, opts AddJobOpts) (*models.Job, error) {
	if err := apperr.Struct(opts); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	if err := checkSlot(opts.StartTime, opts.EndTime); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	if _, err := OfDay(db, opts.DayID); err != nil {
		return nil, err
	}
	if opts.EquipmentID != nil {
		if err := exists(db, &models.Equipment{}, "equipment", *opts.EquipmentID); err != nil {
			return nil, err
		}
	}
	if opts.Priority == "" {
		opts.Priority = "normal"
	}
	job := models.Job{
		DayID:          opts.DayID,
		JobType:        opts.JobType,
		EquipmentID:    opts.EquipmentID,
		TemplateID:     opts.TemplateID,
		Description:    opts.Description,
		Berth:          opts.Berth,
		EstimatedHours: opts.EstimatedHours,
		Priority:       opts.Priority,
		StartTime:      opts.StartTime,
		EndTime:        opts.EndTime,
		Status:         models.JobPending,
	}
	if err := db.Create(&job).Error; err != nil {
		return nil, fmt.Errorf("plan: create job: %w", err)
	}
	return &job, nil
}

// GetJob retrieves a job with its assignments and materials.
func GetJob(db *gorm.DB, id uint) (*models.Job, error) {
	var job models.Job
	if err := db.Preload("Assignments").Preload("Materials").First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan: %w", apperr.NotFound("job", id))
		}
		return nil, fmt.Errorf("plan: get job %d: %w", id, err)
	}
	return &job, nil
}

// MoveJob puts a job on another day of the same plan. Ordering against its
// dependencies is left to the conflict scan.
func MoveJob(db *gorm.DB, jobID, dayID uint) (*models.Job, error) {
	job, err := editableJob(db, jobID)
	if err != nil {
		return nil, err
	}
	from, err := OfDay(db, job.DayID)
	if err != nil {
		return nil, err
	}
	to, err := OfDay(db, dayID)
	if err != nil {
		return nil, err
	}
	if from != to {
		return nil, fmt.Errorf("plan: %w", apperr.Validation("day %d belongs to another plan", dayID).WithField("day_id"))
	}
	return updateJob(db, jobID, "move", map[string]any{"day_id": dayID})
}

// SetSlot gives a job an explicit time slot. Empty start and end clear it.
func SetSlot(db *gorm.DB, jobID uint, start, end string) (*models.Job, error) {
	if err := checkSlot(start, end); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	job, err := editableJob(db, jobID)
	if err != nil {
		return nil, err
	}
	return updateJob(db, job.ID, "set slot of", map[string]any{"start_time": start, "end_time": end})
}

// Assign puts a worker on a job. Capacity and qualification are not checked
// here; see validation.ValidateJobAssignment.
func Assign(db *gorm.DB, jobID, userID uint, isLead bool) (*models.JobAssignment, error) {
	if _, err := editableJob(db, jobID); err != nil {
		return nil, err
	}
	if err := exists(db, &models.User{}, "user", userID); err != nil {
		return nil, err
	}
	var count int64
	if err := db.Model(&models.JobAssignment{}).Where("job_id = ? AND user_id = ?", jobID, userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("plan: check assignment: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("plan: %w", apperr.Conflict("user %d is already assigned to job %d", userID, jobID).WithField("user_id"))
	}
	a := models.JobAssignment{JobID: jobID, UserID: userID, IsLead: isLead}
	if err := db.Create(&a).Error; err != nil {
		return nil, fmt.Errorf("plan: assign: %w", err)
	}
	return &a, nil
}

// Unassign removes a worker from a job.
func Unassign(db *gorm.DB, jobID, userID uint) error {
	result := db.Where("job_id = ? AND user_id = ?", jobID, userID).Delete(&models.JobAssignment{})
	if result.Error != nil {
		return fmt.Errorf("plan: unassign: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("plan: %w", apperr.NotFound("assignment", fmt.Sprintf("user %d on job %d", userID, jobID)))
	}
	return nil
}

// AddMaterial reserves a quantity of catalog material for a job.
func AddMaterial(db *gorm.DB, jobID, materialID uint, quantity float64) (*models.JobMaterial, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("plan: %w", apperr.Validation("quantity must be positive").WithField("quantity"))
	}
	if _, err := editableJob(db, jobID); err != nil {
		return nil, err
	}
	if err := exists(db, &models.Material{}, "material", materialID); err != nil {
		return nil, err
	}
	m := models.JobMaterial{JobID: jobID, MaterialID: materialID, Quantity: quantity}
	if err := db.Create(&m).Error; err != nil {
		return nil, fmt.Errorf("plan: add material: %w", err)
	}
	return &m, nil
}

// Start marks a pending job as in progress.
func Start(db *gorm.DB, jobID uint) (*models.Job, error) {
	job, err := GetJob(db, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobPending {
		return nil, fmt.Errorf("plan: %w", apperr.Validation("job %d is %s, not pending", jobID, job.Status).WithField("status"))
	}
	return updateJob(db, jobID, "start", map[string]any{"status": models.JobInProgress})
}

// Complete records a job as done with the hours it actually took.
func Complete(db *gorm.DB, jobID uint, actualHours float64, now time.Time) (*models.Job, error) {
	if actualHours < 0 {
		return nil, fmt.Errorf("plan: %w", apperr.Validation("actual hours must not be negative").WithField("actual_hours"))
	}
	job, err := GetJob(db, jobID)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case models.JobCompleted, models.JobCancelled:
		return nil, fmt.Errorf("plan: %w", apperr.Validation("job %d is already %s", jobID, job.Status).WithField("status"))
	}
	if job.IsSplit {
		return nil, fmt.Errorf("plan: %w", apperr.Validation("job %d is split; complete its parts", jobID))
	}
	return updateJob(db, jobID, "complete", map[string]any{
		"status":       models.JobCompleted,
		"actual_hours": actualHours,
		"completed_at": now,
	})
}

// Cancel marks an unfinished job cancelled. Cancelled jobs carry no load.
func Cancel(db *gorm.DB, jobID uint) (*models.Job, error) {
	job, err := GetJob(db, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobCompleted {
		return nil, fmt.Errorf("plan: %w", apperr.Validation("job %d is already completed", jobID).WithField("status"))
	}
	return updateJob(db, job.ID, "cancel", map[string]any{"status": models.JobCancelled})
}

// RemoveJob deletes a job and everything it owns. Split jobs and their
// parts must be merged first.
func RemoveJob(db *gorm.DB, jobID uint) error {
	job, err := editableJob(db, jobID)
	if err != nil {
		return err
	}
	if job.SplitFromID != nil {
		return fmt.Errorf("plan: %w", apperr.Validation("job %d is a split part; merge it first", jobID))
	}
	return DeleteJobs(db, []uint{jobID})
}

// DeleteJobs removes jobs with their assignments, materials, checklist
// responses and every dependency edge touching them.
func DeleteJobs(db *gorm.DB, ids []uint) error {
	owned := []struct {
		what  string
		model any
	}{
		{"assignments", &models.JobAssignment{}},
		{"materials", &models.JobMaterial{}},
		{"checklist responses", &models.ChecklistResponse{}},
	}
	for _, o := range owned {
		if err := db.Where("job_id IN ?", ids).Delete(o.model).Error; err != nil {
			return fmt.Errorf("plan: delete %s: %w", o.what, err)
		}
	}
	err := db.Where("job_id IN ? OR depends_on_job_id IN ?", ids, ids).Delete(&models.JobDependency{}).Error
	if err != nil {
		return fmt.Errorf("plan: delete dependencies: %w", err)
	}
	if err := db.Delete(&models.Job{}, ids).Error; err != nil {
		return fmt.Errorf("plan: delete jobs: %w", err)
	}
	return nil
}

// editableJob loads a job that may still be restructured: not a split
// anchor.
func editableJob(db *gorm.DB, jobID uint) (*models.Job, error) {
	var job models.Job
	if err := db.First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan: %w", apperr.NotFound("job", jobID))
		}
		return nil, fmt.Errorf("plan: get job %d: %w", jobID, err)
	}
	if job.IsSplit {
		return nil, fmt.Errorf("plan: %w", apperr.Validation("job %d is split; edit its parts or merge it", jobID))
	}
	return &job, nil
}

func updateJob(db *gorm.DB, jobID uint, verb string, updates map[string]any) (*models.Job, error) {
	if err := db.Model(&models.Job{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("plan: %s job %d: %w", verb, jobID, err)
	}
	return GetJob(db, jobID)
}

func checkSlot(start, end string) error {
	if start == "" && end == "" {
		return nil
	}
	if start == "" || end == "" {
		return apperr.Validation("a slot needs both start and end").WithField("start_time")
	}
	s, err := models.ParseClock(start)
	if err != nil {
		return apperr.Validation("%v", err).WithField("start_time")
	}
	e, err := models.ParseClock(end)
	if err != nil {
		return apperr.Validation("%v", err).WithField("end_time")
	}
	if e <= s {
		return apperr.Validation("slot end %s is not after start %s", end, start).WithField("end_time")
	}
	return nil
}

func exists(db *gorm.DB, model any, entity string, id uint) error {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("plan: check %s %d: %w", entity, id, err)
	}
	if count == 0 {
		return fmt.Errorf("plan: %w", apperr.NotFound(entity, id))
	}
	return nil
}
