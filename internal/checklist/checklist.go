// Package checklist records answers to a job's template checklist and
// decides whether the checklist is complete.
package checklist

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
)

// SubmitOpts is one answer to a checklist item.
type SubmitOpts struct {
	JobID  uint   `validate:"required"`
	ItemID uint   `validate:"required"`
	Value  string `validate:"max=256"`
	Notes  string
	UserID uint `validate:"required"`
}

// Items returns the checklist of the job's template in order. A job without
// a template has an empty checklist.
func Items(db *gorm.DB, jobID uint) ([]models.TemplateChecklistItem, error) {
	job, err := loadJob(db, jobID)
	if err != nil {
		return nil, err
	}
	if job.TemplateID == nil {
		return nil, nil
	}
	var items []models.TemplateChecklistItem
	if err := db.Where("template_id = ?", *job.TemplateID).Order("position").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("checklist: items of job %d: %w", jobID, err)
	}
	return items, nil
}

// Submit validates an answer against the item's answer type and stores it,
// replacing an earlier answer to the same item.
func Submit(db *gorm.DB, opts SubmitOpts, now time.Time) (*models.ChecklistResponse, error) {
	if err := apperr.Struct(opts); err != nil {
		return nil, fmt.Errorf("checklist: %w", err)
	}
	job, err := loadJob(db, opts.JobID)
	if err != nil {
		return nil, err
	}
	var item models.TemplateChecklistItem
	if err := db.First(&item, opts.ItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("checklist: %w", apperr.NotFound("checklist item", opts.ItemID))
		}
		return nil, fmt.Errorf("checklist: get item %d: %w", opts.ItemID, err)
	}
	if job.TemplateID == nil || *job.TemplateID != item.TemplateID {
		return nil, fmt.Errorf("checklist: %w", apperr.Validation(
			"item %d is not on the checklist of job %d", item.ID, job.ID).WithField("item_id"))
	}
	value, passed, err := Parse(item.AnswerType, opts.Value)
	if err != nil {
		return nil, fmt.Errorf("checklist: item %d: %w", item.ID, err)
	}

	resp := models.ChecklistResponse{
		JobID:           job.ID,
		ChecklistItemID: item.ID,
		Value:           value,
		Passed:          passed,
		Notes:           opts.Notes,
		SubmittedBy:     opts.UserID,
		SubmittedAt:     now,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "checklist_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "passed", "notes", "submitted_by", "submitted_at"}),
	}).Create(&resp).Error
	if err != nil {
		return nil, fmt.Errorf("checklist: save response: %w", err)
	}
	var saved models.ChecklistResponse
	if err := db.Where("job_id = ? AND checklist_item_id = ?", job.ID, item.ID).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("checklist: reload response: %w", err)
	}
	return &saved, nil
}

// Parse normalises a raw answer for an answer type. passed is set for
// pass_fail and yes_no answers only.
func Parse(answerType, raw string) (value string, passed *bool, err error) {
	v := strings.TrimSpace(raw)
	switch answerType {
	case models.AnswerPassFail, "":
		switch strings.ToLower(v) {
		case "pass", "passed", "ok":
			return "pass", ptr(true), nil
		case "fail", "failed":
			return "fail", ptr(false), nil
		}
		return "", nil, apperr.Validation("answer %q must be pass or fail", raw).WithField("value")
	case models.AnswerYesNo:
		switch strings.ToLower(v) {
		case "yes", "y", "true":
			return "yes", ptr(true), nil
		case "no", "n", "false":
			return "no", ptr(false), nil
		}
		return "", nil, apperr.Validation("answer %q must be yes or no", raw).WithField("value")
	case models.AnswerNumeric:
		f, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return "", nil, apperr.Validation("answer %q is not a number", raw).WithField("value")
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil, nil
	case models.AnswerText:
		if v == "" {
			return "", nil, apperr.Validation("answer is empty").WithField("value")
		}
		return v, nil, nil
	}
	return "", nil, apperr.Validation("unknown answer type %q", answerType)
}

// Responses returns the answers recorded for a job.
func Responses(db *gorm.DB, jobID uint) ([]models.ChecklistResponse, error) {
	var out []models.ChecklistResponse
	if err := db.Where("job_id = ?", jobID).Order("checklist_item_id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("checklist: responses of job %d: %w", jobID, err)
	}
	return out, nil
}

// Completion is the state of a job's checklist.
type Completion struct {
	JobID          uint
	Total          int
	Answered       int
	Missing        []models.TemplateChecklistItem // required items without an answer
	FailedCritical []models.TemplateChecklistItem // critical items answered fail or no
}

// Complete reports whether nothing is missing or failed.
func (c *Completion) Complete() bool {
	return len(c.Missing) == 0 && len(c.FailedCritical) == 0
}

// ValidateCompletion evaluates a job's checklist and stores the outcome in
// the job's checklist_completed flag.
func ValidateCompletion(db *gorm.DB, jobID uint) (*Completion, error) {
	items, err := Items(db, jobID)
	if err != nil {
		return nil, err
	}
	responses, err := Responses(db, jobID)
	if err != nil {
		return nil, err
	}
	byItem := make(map[uint]models.ChecklistResponse, len(responses))
	for _, r := range responses {
		byItem[r.ChecklistItemID] = r
	}

	c := &Completion{JobID: jobID, Total: len(items)}
	for _, item := range items {
		r, ok := byItem[item.ID]
		if !ok {
			if item.Required {
				c.Missing = append(c.Missing, item)
			}
			continue
		}
		c.Answered++
		if item.Critical && r.Passed != nil && !*r.Passed {
			c.FailedCritical = append(c.FailedCritical, item)
		}
	}

	if err := db.Model(&models.Job{}).Where("id = ?", jobID).Update("checklist_completed", c.Complete()).Error; err != nil {
		return nil, fmt.Errorf("checklist: mark job %d: %w", jobID, err)
	}
	return c, nil
}

func loadJob(db *gorm.DB, jobID uint) (*models.Job, error) {
	var job models.Job
	if err := db.Select("id", "template_id").First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("checklist: %w", apperr.NotFound("job", jobID))
		}
		return nil, fmt.Errorf("checklist: get job %d: %w", jobID, err)
	}
	return &job, nil
}

func ptr[T any](v T) *T { return &v }
