// Package skill records worker certifications and matches them against the
// requirements of templated jobs.
package skill

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
)

// AddOpts holds parameters for recording a certification.
type AddOpts struct {
	UserID            uint   `validate:"required"`
	SkillName         string `validate:"required,max=64"`
	Level             int    `validate:"gte=0"`
	CertificateNumber string `validate:"max=64"`
	IssuedAt          *time.Time
	ExpiresAt         *time.Time
}

// Add records an unverified certification for a worker.
func Add(db *gorm.DB, opts AddOpts) (*models.WorkerSkill, error) {
	if err := apperr.Struct(opts); err != nil {
		return nil, fmt.Errorf("skill: %w", err)
	}
	if opts.IssuedAt != nil && opts.ExpiresAt != nil && opts.ExpiresAt.Before(*opts.IssuedAt) {
		return nil, fmt.Errorf("skill: %w", apperr.Validation("expiry precedes issue date").WithField("ExpiresAt"))
	}
	if err := db.First(&models.User{}, opts.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("skill: %w", apperr.NotFound("user", opts.UserID))
		}
		return nil, fmt.Errorf("skill: get user %d: %w", opts.UserID, err)
	}
	level := opts.Level
	if level == 0 {
		level = 1
	}
	s := models.WorkerSkill{
		UserID:            opts.UserID,
		SkillName:         opts.SkillName,
		Level:             level,
		CertificateNumber: opts.CertificateNumber,
		IssuedAt:          opts.IssuedAt,
		ExpiresAt:         opts.ExpiresAt,
	}
	if err := db.Create(&s).Error; err != nil {
		return nil, fmt.Errorf("skill: create: %w", err)
	}
	return &s, nil
}

// Verify marks a certification as checked by verifierID.
func Verify(db *gorm.DB, skillID, verifierID uint, now time.Time) (*models.WorkerSkill, error) {
	var s models.WorkerSkill
	if err := db.First(&s, skillID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("skill: %w", apperr.NotFound("skill", skillID))
		}
		return nil, fmt.Errorf("skill: get %d: %w", skillID, err)
	}
	s.Verified = true
	s.VerifiedBy = &verifierID
	s.VerifiedAt = &now
	if err := db.Save(&s).Error; err != nil {
		return nil, fmt.Errorf("skill: verify %d: %w", skillID, err)
	}
	return &s, nil
}

// ListForUser returns every certification of a worker, verified or not.
func ListForUser(db *gorm.DB, userID uint) ([]models.WorkerSkill, error) {
	var out []models.WorkerSkill
	if err := db.Where("user_id = ?", userID).Order("skill_name, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("skill: list for user %d: %w", userID, err)
	}
	return out, nil
}

// ValidSkills returns the names of a worker's certifications that count on
// date, sorted and deduplicated.
func ValidSkills(db *gorm.DB, userID uint, date time.Time) ([]string, error) {
	sets, err := ValidSkillSets(db, []uint{userID}, date)
	if err != nil {
		return nil, err
	}
	return sets[userID], nil
}

// ValidSkillSets is ValidSkills for many workers in one query.
func ValidSkillSets(db *gorm.DB, userIDs []uint, date time.Time) (map[uint][]string, error) {
	out := make(map[uint][]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []models.WorkerSkill
	if err := db.Where("user_id IN ? AND verified = ?", userIDs, true).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("skill: load skills: %w", err)
	}
	for i := range rows {
		if rows[i].ValidOn(date) {
			out[rows[i].UserID] = append(out[rows[i].UserID], rows[i].SkillName)
		}
	}
	for id, names := range out {
		names = lo.Uniq(names)
		sort.Strings(names)
		out[id] = names
	}
	return out, nil
}

// Missing returns the required names absent from held, in required order.
func Missing(required, held []string) []string {
	return lo.Uniq(lo.Without(required, held...))
}

// RequiredFor returns the certifications a job's template demands. Jobs
// without a template, or whose template was deleted, require nothing.
func RequiredFor(db *gorm.DB, job *models.Job) ([]string, error) {
	if job.TemplateID == nil {
		return nil, nil
	}
	var tmpl models.Template
	err := db.Select("id", "required_certifications").First(&tmpl, *job.TemplateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("skill: get template %d: %w", *job.TemplateID, err)
	}
	return []string(tmpl.RequiredCertifications), nil
}

// CheckRequirements returns the certifications userID lacks for jobID as of
// asOf. An empty result means the worker qualifies.
func CheckRequirements(db *gorm.DB, jobID, userID uint, asOf time.Time) ([]string, error) {
	var job models.Job
	if err := db.First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("skill: %w", apperr.NotFound("job", jobID))
		}
		return nil, fmt.Errorf("skill: get job %d: %w", jobID, err)
	}
	if err := db.First(&models.User{}, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("skill: %w", apperr.NotFound("user", userID))
		}
		return nil, fmt.Errorf("skill: get user %d: %w", userID, err)
	}
	required, err := RequiredFor(db, &job)
	if err != nil || len(required) == 0 {
		return nil, err
	}
	held, err := ValidSkills(db, userID, asOf)
	if err != nil {
		return nil, err
	}
	return Missing(required, held), nil
}

// QualifiedWorkers returns active workers holding every required skill as
// of asOf. An empty requirement returns all active workers.
func QualifiedWorkers(db *gorm.DB, required []string, asOf time.Time) ([]models.User, error) {
	var users []models.User
	if err := db.Where("active = ?", true).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("skill: list users: %w", err)
	}
	required = lo.Uniq(required)
	if len(required) == 0 {
		return users, nil
	}
	sets, err := ValidSkillSets(db, lo.Map(users, func(u models.User, _ int) uint { return u.ID }), asOf)
	if err != nil {
		return nil, err
	}
	return lo.Filter(users, func(u models.User, _ int) bool {
		return lo.Every(sets[u.ID], required)
	}), nil
}
