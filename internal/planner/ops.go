package planner

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/checklist"
	"github.com/zulandar/drydock/internal/conflict"
	"github.com/zulandar/drydock/internal/dependency"
	"github.com/zulandar/drydock/internal/metrics"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/notify"
	"github.com/zulandar/drydock/internal/plan"
	"github.com/zulandar/drydock/internal/split"
	"github.com/zulandar/drydock/internal/template"
	"github.com/zulandar/drydock/internal/validation"
	"github.com/zulandar/drydock/internal/version"
)

// CreatePlan creates the plan for the week containing weekOf.
func (s *Service) CreatePlan(ctx context.Context, weekOf time.Time, notes string) (*models.Plan, error) {
	p, err := plan.Create(s.DB.WithContext(ctx), weekOf, notes)
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("plan_id", p.ID).Time("week_start", p.WeekStart).Msg("plan created")
	return p, nil
}

// AddJob adds a job to a day.
func (s *Service) AddJob(ctx context.Context, opts plan.AddJobOpts) (*models.Job, error) {
	planID, err := s.planOfDay(ctx, opts.DayID)
	if err != nil {
		return nil, err
	}
	var job *models.Job
	err = s.mutate(ctx, "add_job", planID, func(tx *gorm.DB) error {
		job, err = plan.AddJob(tx, opts)
		return err
	})
	return job, err
}

// AddJobFromTemplate instantiates a template on a day.
func (s *Service) AddJobFromTemplate(ctx context.Context, templateID, dayID uint) (*models.Job, error) {
	planID, err := s.planOfDay(ctx, dayID)
	if err != nil {
		return nil, err
	}
	var job *models.Job
	err = s.mutate(ctx, "add_job", planID, func(tx *gorm.DB) error {
		job, err = template.Instantiate(tx, templateID, dayID)
		return err
	})
	return job, err
}

// ScheduleRecurring expands a template's recurrence over a plan.
func (s *Service) ScheduleRecurring(ctx context.Context, templateID, planID uint) ([]models.Job, error) {
	var jobs []models.Job
	err := s.mutate(ctx, "schedule_recurring", planID, func(tx *gorm.DB) error {
		var err error
		jobs, err = template.ScheduleRecurring(tx, templateID, planID)
		return err
	})
	return jobs, err
}

// jobOp runs a structural change of a single job.
func (s *Service) jobOp(ctx context.Context, op string, jobID uint, fn func(tx *gorm.DB) (*models.Job, error)) (*models.Job, error) {
	planID, err := s.planOfJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var job *models.Job
	err = s.mutate(ctx, op, planID, func(tx *gorm.DB) error {
		job, err = fn(tx)
		return err
	})
	return job, err
}

// MoveJob moves a job to another day of its plan.
func (s *Service) MoveJob(ctx context.Context, jobID, dayID uint) (*models.Job, error) {
	return s.jobOp(ctx, "move_job", jobID, func(tx *gorm.DB) (*models.Job, error) {
		return plan.MoveJob(tx, jobID, dayID)
	})
}

// SetSlot sets or clears a job's time slot.
func (s *Service) SetSlot(ctx context.Context, jobID uint, start, end string) (*models.Job, error) {
	return s.jobOp(ctx, "set_slot", jobID, func(tx *gorm.DB) (*models.Job, error) {
		return plan.SetSlot(tx, jobID, start, end)
	})
}

// Assign puts a worker on a job. The assignment is stored even when the
// pre-check finds problems; the returned check reports them.
func (s *Service) Assign(ctx context.Context, jobID, userID uint, isLead bool) (*validation.AssignmentCheck, error) {
	planID, err := s.planOfJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var check *validation.AssignmentCheck
	err = s.mutate(ctx, "assign", planID, func(tx *gorm.DB) error {
		check, err = s.Validator.ValidateJobAssignment(tx, jobID, userID)
		if err != nil {
			return err
		}
		_, err = plan.Assign(tx, jobID, userID, isLead)
		return err
	})
	if err != nil {
		return nil, err
	}
	return check, nil
}

// Unassign removes a worker from a job.
func (s *Service) Unassign(ctx context.Context, jobID, userID uint) error {
	_, err := s.jobOp(ctx, "unassign", jobID, func(tx *gorm.DB) (*models.Job, error) {
		return nil, plan.Unassign(tx, jobID, userID)
	})
	return err
}

// AddMaterial reserves material for a job.
func (s *Service) AddMaterial(ctx context.Context, jobID, materialID uint, quantity float64) error {
	_, err := s.jobOp(ctx, "add_material", jobID, func(tx *gorm.DB) (*models.Job, error) {
		_, err := plan.AddMaterial(tx, jobID, materialID, quantity)
		return nil, err
	})
	return err
}

// RemoveJob deletes a job with everything it owns.
func (s *Service) RemoveJob(ctx context.Context, jobID uint) error {
	_, err := s.jobOp(ctx, "remove_job", jobID, func(tx *gorm.DB) (*models.Job, error) {
		return nil, plan.RemoveJob(tx, jobID)
	})
	return err
}

// StartJob, CompleteJob and CancelJob record progress. They hold the lock
// but leave the validation stamp alone.
func (s *Service) StartJob(ctx context.Context, jobID uint) (*models.Job, error) {
	return s.progress(ctx, "start_job", jobID, func(tx *gorm.DB) (*models.Job, error) {
		return plan.Start(tx, jobID)
	})
}

func (s *Service) CompleteJob(ctx context.Context, jobID uint, actualHours float64) (*models.Job, error) {
	return s.progress(ctx, "complete_job", jobID, func(tx *gorm.DB) (*models.Job, error) {
		return plan.Complete(tx, jobID, actualHours, s.Now())
	})
}

func (s *Service) CancelJob(ctx context.Context, jobID uint) (*models.Job, error) {
	return s.progress(ctx, "cancel_job", jobID, func(tx *gorm.DB) (*models.Job, error) {
		return plan.Cancel(tx, jobID)
	})
}

func (s *Service) progress(ctx context.Context, op string, jobID uint, fn func(tx *gorm.DB) (*models.Job, error)) (*models.Job, error) {
	planID, err := s.planOfJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var job *models.Job
	err = s.locked(ctx, planID, func(tx *gorm.DB) error {
		job, err = fn(tx)
		return err
	})
	if err != nil {
		s.log.Debug().Err(err).Str("op", op).Uint("job_id", jobID).Msg("job progress failed")
		return nil, err
	}
	s.log.Info().Str("op", op).Uint("job_id", jobID).Str("status", job.Status).Msg("job progress")
	return job, nil
}

// AddDependency adds a dependency edge between two jobs of one plan.
func (s *Service) AddDependency(ctx context.Context, opts dependency.AddOpts) (*models.JobDependency, error) {
	planID, err := s.planOfJob(ctx, opts.JobID)
	if err != nil {
		return nil, err
	}
	var dep *models.JobDependency
	err = s.mutate(ctx, "add_dependency", planID, func(tx *gorm.DB) error {
		dep, err = dependency.Add(tx, opts)
		return err
	})
	return dep, err
}

// RemoveDependency deletes the edge jobID -> dependsOn.
func (s *Service) RemoveDependency(ctx context.Context, jobID, dependsOn uint) error {
	_, err := s.jobOp(ctx, "remove_dependency", jobID, func(tx *gorm.DB) (*models.Job, error) {
		return nil, dependency.Remove(tx, jobID, dependsOn)
	})
	return err
}

// Split divides a job into parts across days of its plan.
func (s *Service) Split(ctx context.Context, jobID uint, parts []split.Part) ([]models.Job, error) {
	planID, err := s.planOfJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var out []models.Job
	err = s.mutate(ctx, "split", planID, func(tx *gorm.DB) error {
		out, err = split.Split(tx, jobID, parts)
		return err
	})
	return out, err
}

// Merge folds a split job's parts back into it.
func (s *Service) Merge(ctx context.Context, originalID uint) (*models.Job, error) {
	return s.jobOp(ctx, "merge", originalID, func(tx *gorm.DB) (*models.Job, error) {
		return split.Merge(tx, originalID)
	})
}

// DetectConflicts rescans a plan and announces scans that found errors.
func (s *Service) DetectConflicts(ctx context.Context, planID uint) (*conflict.Scan, error) {
	var scan *conflict.Scan
	err := s.locked(ctx, planID, func(tx *gorm.DB) error {
		var err error
		scan, err = s.Detector.Detect(tx, planID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if n := len(scan.Errors()); n > 0 {
		s.Notifier.Notify(notify.Event{
			Kind:     notify.KindScanErrors,
			PlanID:   planID,
			Title:    fmt.Sprintf("Plan %d has %d conflict errors", planID, n),
			Severity: notify.SeverityError,
			Fields: map[string]string{
				"errors":   fmt.Sprint(n),
				"warnings": fmt.Sprint(len(scan.Warnings())),
				"scan":     scan.ID,
			},
		})
	}
	return scan, nil
}

// ValidatePlan validates a plan and stamps it when it passes.
func (s *Service) ValidatePlan(ctx context.Context, planID uint) (*validation.Verdict, error) {
	var v *validation.Verdict
	err := s.locked(ctx, planID, func(tx *gorm.DB) error {
		var err error
		v, err = s.Validator.ValidatePlan(tx, planID, s.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ValidateAssignment pre-checks an assignment without storing it.
func (s *Service) ValidateAssignment(ctx context.Context, jobID, userID uint) (*validation.AssignmentCheck, error) {
	return s.Validator.ValidateJobAssignment(s.DB.WithContext(ctx), jobID, userID)
}

// Publish validates a plan and publishes it when valid, recording a
// version. An invalid plan is a Business error and stays unpublished; the
// verdict is returned either way.
func (s *Service) Publish(ctx context.Context, planID uint) (*models.Plan, *validation.Verdict, error) {
	unlock, err := s.Locker.Lock(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	db := s.DB.WithContext(ctx)
	var verdict *validation.Verdict
	if err := db.Transaction(func(tx *gorm.DB) error {
		verdict, err = s.Validator.ValidatePlan(tx, planID, s.Now())
		return err
	}); err != nil {
		return nil, nil, err
	}
	if !verdict.Valid {
		metrics.Mutations.WithLabelValues("publish", "rejected").Inc()
		return nil, verdict, fmt.Errorf("planner: %w", apperr.Business(
			"plan %d has %d validation errors", planID, len(verdict.Errors)))
	}

	var p *models.Plan
	err = db.Transaction(func(tx *gorm.DB) error {
		if p, err = plan.Publish(tx, planID, s.Now()); err != nil {
			return err
		}
		_, err = version.Create(tx, planID, version.ChangePublish, "published")
		return err
	})
	metrics.Mutations.WithLabelValues("publish", metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, verdict, err
	}
	s.Notifier.Notify(notify.Event{
		Kind:   notify.KindPublished,
		PlanID: planID,
		Title:  fmt.Sprintf("Plan for week of %s published", p.WeekStart.Format("2006-01-02")),
		Fields: map[string]string{"warnings": fmt.Sprint(len(verdict.Warnings))},
	})
	return p, verdict, nil
}

// Archive closes a plan.
func (s *Service) Archive(ctx context.Context, planID uint) (*models.Plan, error) {
	var p *models.Plan
	err := s.locked(ctx, planID, func(tx *gorm.DB) error {
		var err error
		p, err = plan.Archive(tx, planID, s.Now())
		return err
	})
	return p, err
}

// ArchiveElapsed archives every plan whose week is over.
func (s *Service) ArchiveElapsed(ctx context.Context) (int64, error) {
	n, err := plan.ArchiveElapsed(s.DB.WithContext(ctx), s.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("archived", n).Msg("archived elapsed plans")
	}
	return n, nil
}

// CreateVersion snapshots a plan.
func (s *Service) CreateVersion(ctx context.Context, planID uint, summary string) (*models.PlanVersion, error) {
	var v *models.PlanVersion
	err := s.locked(ctx, planID, func(tx *gorm.DB) error {
		var err error
		v, err = version.Create(tx, planID, version.ChangeManual, summary)
		return err
	})
	return v, err
}

// RestoreVersion rolls a plan back to version n.
func (s *Service) RestoreVersion(ctx context.Context, planID uint, n int) (*models.PlanVersion, error) {
	var v *models.PlanVersion
	err := s.mutate(ctx, "restore", planID, func(tx *gorm.DB) error {
		var err error
		v, err = version.Restore(tx, planID, n)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Notifier.Notify(notify.Event{
		Kind:     notify.KindRestored,
		PlanID:   planID,
		Title:    fmt.Sprintf("Plan %d restored to version %d", planID, n),
		Severity: notify.SeverityWarning,
		Fields:   map[string]string{"version": fmt.Sprint(v.VersionNumber)},
	})
	return v, nil
}

// ResolveConflict and IgnoreConflict close open conflicts while holding the
// lock of the conflict's plan.
func (s *Service) ResolveConflict(ctx context.Context, id uint, resolution string, by uint) (*models.Conflict, error) {
	return s.closeConflict(ctx, id, func(tx *gorm.DB) (*models.Conflict, error) {
		return conflict.Resolve(tx, id, resolution, by, s.Now())
	})
}

func (s *Service) IgnoreConflict(ctx context.Context, id uint, reason string, by uint) (*models.Conflict, error) {
	return s.closeConflict(ctx, id, func(tx *gorm.DB) (*models.Conflict, error) {
		return conflict.Ignore(tx, id, reason, by, s.Now())
	})
}

func (s *Service) closeConflict(ctx context.Context, id uint, fn func(tx *gorm.DB) (*models.Conflict, error)) (*models.Conflict, error) {
	c, err := conflict.Get(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	err = s.locked(ctx, c.PlanID, func(tx *gorm.DB) error {
		c, err = fn(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SubmitChecklist records a checklist answer for a job.
func (s *Service) SubmitChecklist(ctx context.Context, opts checklist.SubmitOpts) (*models.ChecklistResponse, error) {
	return checklist.Submit(s.DB.WithContext(ctx), opts, s.Now())
}

// ValidateChecklist evaluates a job's checklist and updates its completion flag.
func (s *Service) ValidateChecklist(ctx context.Context, jobID uint) (*checklist.Completion, error) {
	return checklist.ValidateCompletion(s.DB.WithContext(ctx), jobID)
}
