package restriction

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/skill"
)

// AddOpts holds parameters for creating a restriction. Nil dates make the
// restriction permanent on that side.
type AddOpts struct {
	EquipmentID uint `validate:"required"`
	Rule        Rule
	StartDate   *time.Time
	EndDate     *time.Time
	Reason      string
}

// Add validates and stores a restriction.
func Add(db *gorm.DB, opts AddOpts) (*models.EquipmentRestriction, error) {
	if err := apperr.Struct(opts); err != nil {
		return nil, fmt.Errorf("restriction: %w", err)
	}
	if opts.StartDate != nil && opts.EndDate != nil && opts.EndDate.Before(*opts.StartDate) {
		return nil, fmt.Errorf("restriction: %w", apperr.Validation("end date precedes start date").WithField("EndDate"))
	}
	typ, payload, err := Encode(opts.Rule)
	if err != nil {
		return nil, fmt.Errorf("restriction: %w", err)
	}
	if err := db.First(&models.Equipment{}, opts.EquipmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("restriction: %w", apperr.NotFound("equipment", opts.EquipmentID))
		}
		return nil, fmt.Errorf("restriction: get equipment %d: %w", opts.EquipmentID, err)
	}
	r := models.EquipmentRestriction{
		EquipmentID: opts.EquipmentID,
		Type:        typ,
		Payload:     payload,
		StartDate:   opts.StartDate,
		EndDate:     opts.EndDate,
		Reason:      opts.Reason,
	}
	if err := db.Create(&r).Error; err != nil {
		return nil, fmt.Errorf("restriction: create: %w", err)
	}
	return &r, nil
}

// Remove deletes a restriction.
func Remove(db *gorm.DB, id uint) error {
	result := db.Delete(&models.EquipmentRestriction{}, id)
	if result.Error != nil {
		return fmt.Errorf("restriction: delete %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("restriction: %w", apperr.NotFound("restriction", id))
	}
	return nil
}

// List returns every restriction on an equipment item.
func List(db *gorm.DB, equipmentID uint) ([]models.EquipmentRestriction, error) {
	var out []models.EquipmentRestriction
	if err := db.Where("equipment_id = ?", equipmentID).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("restriction: list for equipment %d: %w", equipmentID, err)
	}
	return out, nil
}

// ActiveOn returns the restrictions on equipmentID that apply on date.
func ActiveOn(db *gorm.DB, equipmentID uint, date time.Time) ([]models.EquipmentRestriction, error) {
	all, err := List(db, equipmentID)
	if err != nil {
		return nil, err
	}
	return lo.Filter(all, func(r models.EquipmentRestriction, _ int) bool {
		return r.ActiveOn(date)
	}), nil
}

// Violation is one failed restriction.
type Violation struct {
	RestrictionID uint
	Type          string
	Severity      string
	Message       string
	UserID        uint // zero when the violation concerns the whole crew
}

// Result aggregates the restriction violations for one crew on one date.
type Result struct {
	Allowed    bool
	Violations []Violation
}

// Errors returns the error-severity violations.
func (r *Result) Errors() []Violation {
	return lo.Filter(r.Violations, func(v Violation, _ int) bool { return v.Severity == models.SeverityError })
}

// Warnings returns the warning-severity violations.
func (r *Result) Warnings() []Violation {
	return lo.Filter(r.Violations, func(v Violation, _ int) bool { return v.Severity == models.SeverityWarning })
}

// Worker is the view of a crew member that restrictions are evaluated on.
type Worker struct {
	ID     uint
	Name   string
	Shift  string
	Skills []string
}

// Check evaluates the restrictions on equipmentID active on date against
// the workers in userIDs. Skill expiry is evaluated on date.
func Check(db *gorm.DB, equipmentID uint, date time.Time, userIDs []uint) (*Result, error) {
	if err := db.First(&models.Equipment{}, equipmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("restriction: %w", apperr.NotFound("equipment", equipmentID))
		}
		return nil, fmt.Errorf("restriction: get equipment %d: %w", equipmentID, err)
	}
	active, err := ActiveOn(db, equipmentID, date)
	if err != nil {
		return nil, err
	}
	userIDs = lo.Uniq(userIDs)
	if len(active) == 0 {
		return &Result{Allowed: true}, nil
	}

	var users []models.User
	if len(userIDs) > 0 {
		if err := db.Where("id IN ?", userIDs).Order("id").Find(&users).Error; err != nil {
			return nil, fmt.Errorf("restriction: load crew: %w", err)
		}
	}
	sets, err := skill.ValidSkillSets(db, userIDs, date)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(users, func(u models.User) uint { return u.ID })
	crew := make([]Worker, 0, len(userIDs))
	for _, id := range userIDs {
		w := Worker{ID: id, Skills: sets[id]}
		if u, ok := byID[id]; ok {
			w.Name, w.Shift = u.Name, u.Shift
		}
		crew = append(crew, w)
	}
	return Evaluate(active, crew)
}

// Evaluate applies restrictions to a crew. Any error-severity violation
// makes the result disallowed; warnings never do.
func Evaluate(restrictions []models.EquipmentRestriction, crew []Worker) (*Result, error) {
	res := &Result{}
	add := func(r models.EquipmentRestriction, severity string, userID uint, format string, args ...any) {
		res.Violations = append(res.Violations, Violation{
			RestrictionID: r.ID,
			Type:          r.Type,
			Severity:      severity,
			Message:       fmt.Sprintf(format, args...),
			UserID:        userID,
		})
	}
	for _, r := range restrictions {
		rule, err := Decode(r.Type, r.Payload)
		if err != nil {
			return nil, fmt.Errorf("restriction: %d: %w", r.ID, err)
		}
		switch rule := rule.(type) {
		case Blackout:
			msg := "equipment unavailable (blackout)"
			if r.Reason != "" {
				msg += ": " + r.Reason
			}
			add(r, models.SeverityError, 0, "%s", msg)
		case CrewSize:
			if rule.Min > 0 && len(crew) < rule.Min {
				add(r, models.SeverityError, 0, "crew of %d below minimum %d", len(crew), rule.Min)
			}
			if rule.Max > 0 && len(crew) > rule.Max {
				add(r, models.SeverityWarning, 0, "crew of %d above maximum %d", len(crew), rule.Max)
			}
		case SkillRequired:
			for _, w := range crew {
				if missing := skill.Missing(rule.Skills, w.Skills); len(missing) > 0 {
					add(r, models.SeverityError, w.ID, "worker %d lacks %s", w.ID, strings.Join(missing, ", "))
				}
			}
		case ShiftOnly:
			for _, w := range crew {
				if w.Shift != rule.Shift {
					add(r, models.SeverityWarning, w.ID, "worker %d on shift %q, equipment restricted to %q", w.ID, w.Shift, rule.Shift)
				}
			}
		}
	}
	res.Allowed = len(res.Errors()) == 0
	return res, nil
}
