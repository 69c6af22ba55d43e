// Package validation composes structural checks and conflict scans into
// pass/fail verdicts for plans and single assignments.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/capacity"
	"github.com/zulandar/drydock/internal/conflict"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/plan"
	"github.com/zulandar/drydock/internal/restriction"
	"github.com/zulandar/drydock/internal/skill"
)

// Issue is one finding of a validation.
type Issue struct {
	Type       string `json:"type"`
	Severity   string `json:"severity"`
	Message    string `json:"message"`
	DayID      uint   `json:"day_id,omitempty"`
	JobIDs     []uint `json:"job_ids,omitempty"`
	UserIDs    []uint `json:"user_ids,omitempty"`
	ConflictID uint   `json:"conflict_id,omitempty"`
}

// Structural issue types, in addition to the conflict types.
const (
	IssueEmptyDay      = "empty_day"
	IssueUnassignedJob = "unassigned_job"
	IssueAssigned      = "already_assigned"
	IssueAvailability  = "availability"
)

// Verdict is the outcome of validating a plan.
type Verdict struct {
	PlanID   uint    `json:"plan_id"`
	ScanID   string  `json:"scan_id"`
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (v *Verdict) add(i Issue) {
	if i.Severity == models.SeverityError {
		v.Errors = append(v.Errors, i)
	} else {
		v.Warnings = append(v.Warnings, i)
	}
}

// Engine validates plans and assignments.
type Engine struct {
	Capacity *capacity.Model
	Detector *conflict.Detector
}

// New returns an Engine sharing cm with its conflict detector.
func New(cm *capacity.Model) *Engine {
	if cm == nil {
		cm = capacity.New(0)
	}
	return &Engine{Capacity: cm, Detector: conflict.New(cm)}
}

// ValidatePlan warns on days without jobs, errors on jobs nobody is
// assigned to, then rescans the plan and buckets every open conflict by
// severity. A valid plan gets its validation stamp set to now.
func (e *Engine) ValidatePlan(db *gorm.DB, planID uint, now time.Time) (*Verdict, error) {
	p, err := plan.GetTree(db, planID)
	if err != nil {
		return nil, err
	}
	v := &Verdict{PlanID: planID, Errors: []Issue{}, Warnings: []Issue{}}

	for _, day := range p.Days {
		if len(day.Jobs) == 0 {
			v.add(Issue{
				Type:     IssueEmptyDay,
				Severity: models.SeverityWarning,
				Message:  fmt.Sprintf("no jobs on %s", day.Date.Format("2006-01-02")),
				DayID:    day.ID,
			})
		}
		for _, j := range day.Jobs {
			if j.IsSplit || j.Status == models.JobCancelled || len(j.Assignments) > 0 {
				continue
			}
			v.add(Issue{
				Type:     IssueUnassignedJob,
				Severity: models.SeverityError,
				Message:  fmt.Sprintf("job %d on %s has no assigned workers", j.ID, day.Date.Format("2006-01-02")),
				DayID:    day.ID,
				JobIDs:   []uint{j.ID},
			})
		}
	}

	scan, err := e.Detector.Detect(db, planID)
	if err != nil {
		return nil, err
	}
	v.ScanID = scan.ID
	for _, c := range scan.Conflicts {
		i := Issue{
			Type:       c.Type,
			Severity:   c.Severity,
			Message:    c.Description,
			JobIDs:     c.AffectedJobIDs,
			UserIDs:    c.AffectedUserIDs,
			ConflictID: c.ID,
		}
		if c.DayID != nil {
			i.DayID = *c.DayID
		}
		v.add(i)
	}

	v.Valid = len(v.Errors) == 0
	if v.Valid {
		if err := plan.MarkValidated(db, planID, now); err != nil {
			return nil, err
		}
	} else if err := plan.Invalidate(db, planID); err != nil {
		return nil, err
	}
	return v, nil
}

// AssignmentCheck is the outcome of pre-checking one assignment.
type AssignmentCheck struct {
	JobID    uint                `json:"job_id"`
	UserID   uint                `json:"user_id"`
	Allowed  bool                `json:"allowed"`
	Capacity *capacity.Violation `json:"capacity,omitempty"`
	Errors   []Issue             `json:"errors"`
	Warnings []Issue             `json:"warnings"`
}

func (a *AssignmentCheck) add(i Issue) {
	i.JobIDs = []uint{a.JobID}
	i.UserIDs = []uint{a.UserID}
	if i.Severity == models.SeverityError {
		a.Errors = append(a.Errors, i)
	} else {
		a.Warnings = append(a.Warnings, i)
	}
}

// ValidateJobAssignment checks, without writing anything, whether userID
// could be put on jobID: availability, capacity, certifications, equipment
// restrictions and time overlap with the worker's other jobs that day.
func (e *Engine) ValidateJobAssignment(db *gorm.DB, jobID, userID uint) (*AssignmentCheck, error) {
	job, err := plan.GetJob(db, jobID)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("validation: %w", apperr.NotFound("user", userID))
		}
		return nil, fmt.Errorf("validation: get user %d: %w", userID, err)
	}
	var day models.Day
	if err := db.First(&day, job.DayID).Error; err != nil {
		return nil, fmt.Errorf("validation: get day %d: %w", job.DayID, err)
	}
	if job.IsSplit {
		return nil, fmt.Errorf("validation: %w", apperr.Validation("job %d is split; assign workers to its parts", jobID))
	}

	res := &AssignmentCheck{JobID: jobID, UserID: userID, Errors: []Issue{}, Warnings: []Issue{}}
	date := day.Date.Format("2006-01-02")
	crew := lo.Map(job.Assignments, func(a models.JobAssignment, _ int) uint { return a.UserID })

	if lo.Contains(crew, userID) {
		res.add(Issue{Type: IssueAssigned, Severity: models.SeverityError,
			Message: fmt.Sprintf("%s is already assigned to job %d", user.Name, jobID)})
	}

	reason, err := capacity.UnavailableReason(db, user, day.Date)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		res.add(Issue{Type: IssueAvailability, Severity: models.SeverityError,
			Message: fmt.Sprintf("%s is %s on %s", user.Name, reason, date)})
	}

	viol, err := e.Capacity.CheckViolation(db, userID, day.ID, job.EstimatedHours)
	if err != nil {
		return nil, err
	}
	res.Capacity = viol
	switch {
	case viol.Violated:
		res.add(Issue{Type: models.ConflictCapacity, Severity: models.SeverityError,
			Message: fmt.Sprintf("%s would have %.2fh on %s, limit %.2fh", user.Name, viol.TotalHours, date, viol.LimitHours)})
	case viol.OvertimeHours > 0:
		res.add(Issue{Type: models.ConflictCapacity, Severity: models.SeverityWarning,
			Message: fmt.Sprintf("%s would work %.2fh overtime on %s", user.Name, viol.OvertimeHours, date)})
	}
	if viol.MaxJobs > 0 && viol.AssignedJobs+1 > viol.MaxJobs {
		res.add(Issue{Type: models.ConflictCapacity, Severity: models.SeverityWarning,
			Message: fmt.Sprintf("%s would have %d jobs on %s, maximum %d", user.Name, viol.AssignedJobs+1, date, viol.MaxJobs)})
	}

	missing, err := skill.CheckRequirements(db, jobID, userID, day.Date)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		res.add(Issue{Type: models.ConflictSkill, Severity: models.SeverityError,
			Message: fmt.Sprintf("%s lacks %s", user.Name, strings.Join(missing, ", "))})
	}

	if job.EquipmentID != nil {
		check, err := restriction.Check(db, *job.EquipmentID, day.Date, append(crew, userID))
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		if check != nil {
			for _, v := range check.Violations {
				if v.UserID != 0 && v.UserID != userID {
					continue
				}
				res.add(Issue{Type: models.ConflictEquipment, Severity: v.Severity, Message: v.Message})
			}
		}
	}

	if err := overlaps(db, job, &user, day.ID, res); err != nil {
		return nil, err
	}

	res.Allowed = len(res.Errors) == 0
	return res, nil
}

func overlaps(db *gorm.DB, job *models.Job, user *models.User, dayID uint, res *AssignmentCheck) error {
	start, end, ok := job.Slot()
	if !ok {
		return nil
	}
	var others []models.Job
	err := db.Joins("JOIN job_assignments ON job_assignments.job_id = jobs.id").
		Where("jobs.day_id = ? AND job_assignments.user_id = ? AND jobs.id <> ? AND jobs.is_split = ? AND jobs.status <> ?",
			dayID, user.ID, job.ID, false, models.JobCancelled).
		Find(&others).Error
	if err != nil {
		return fmt.Errorf("validation: load jobs of user %d: %w", user.ID, err)
	}
	for i := range others {
		s, e, ok := others[i].Slot()
		if !ok || s >= end || start >= e {
			continue
		}
		res.add(Issue{Type: models.ConflictOverlap, Severity: models.SeverityError,
			Message: fmt.Sprintf("%s is on job %d from %s to %s", user.Name, others[i].ID, others[i].StartTime, others[i].EndTime)})
	}
	return nil
}
