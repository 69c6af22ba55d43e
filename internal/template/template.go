// Package template manages reusable job blueprints and turns them into jobs.
package template

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// MaterialSpec is a default material line of a template.
type MaterialSpec struct {
	MaterialID uint    `json:"material_id" validate:"required"`
	Quantity   float64 `json:"quantity" validate:"gt=0"`
}

// ChecklistSpec is one checklist question of a template.
type ChecklistSpec struct {
	Question   string `json:"question" yaml:"question" validate:"required"`
	AnswerType string `json:"answer_type" yaml:"answer_type" validate:"omitempty,oneof=pass_fail yes_no numeric text"`
	Required   bool   `json:"required" yaml:"required"`
	Critical   bool   `json:"critical" yaml:"critical"`
}

// Opts holds the full definition of a template.
type Opts struct {
	Name                   string  `validate:"required,max=128"`
	JobType                string  `validate:"required,oneof=preventive defect inspection"`
	EquipmentID            *uint
	EquipmentType          string  `validate:"max=64"`
	Berth                  string  `validate:"max=32"`
	Description            string
	EstimatedHours         float64 `validate:"gt=0,lte=24"`
	Priority               string  `validate:"omitempty,oneof=low normal high urgent"`
	Recurrence             string
	DefaultTeamSize        int     `validate:"gte=0"`
	RequiredCertifications []string
	Materials              []MaterialSpec  `validate:"dive"`
	Checklist              []ChecklistSpec `validate:"dive"`
}

func (o *Opts) check() error {
	if err := apperr.Struct(*o); err != nil {
		return err
	}
	if o.Recurrence != "" {
		if _, err := cronParser.Parse(o.Recurrence); err != nil {
			return apperr.Validation("invalid recurrence %q: %v", o.Recurrence, err).WithField("Recurrence")
		}
	}
	if o.Priority == "" {
		o.Priority = "normal"
	}
	if o.DefaultTeamSize == 0 {
		o.DefaultTeamSize = 1
	}
	certs := make([]string, 0, len(o.RequiredCertifications))
	for _, c := range o.RequiredCertifications {
		if c = strings.TrimSpace(c); c != "" {
			certs = append(certs, c)
		}
	}
	o.RequiredCertifications = certs
	return nil
}

func (o *Opts) build() models.Template {
	t := models.Template{
		Name:                   o.Name,
		JobType:                o.JobType,
		EquipmentID:            o.EquipmentID,
		EquipmentType:          o.EquipmentType,
		Berth:                  o.Berth,
		Description:            o.Description,
		EstimatedHours:         o.EstimatedHours,
		Priority:               o.Priority,
		Recurrence:             o.Recurrence,
		DefaultTeamSize:        o.DefaultTeamSize,
		RequiredCertifications: datatypes.JSONSlice[string](o.RequiredCertifications),
	}
	for _, m := range o.Materials {
		t.Materials = append(t.Materials, models.TemplateMaterial{MaterialID: m.MaterialID, Quantity: m.Quantity})
	}
	for i, c := range o.Checklist {
		answer := c.AnswerType
		if answer == "" {
			answer = models.AnswerPassFail
		}
		t.Checklist = append(t.Checklist, models.TemplateChecklistItem{
			Position:   i + 1,
			Question:   c.Question,
			AnswerType: answer,
			Required:   c.Required,
			Critical:   c.Critical,
		})
	}
	return t
}

// Create stores a new template. Names are unique.
func Create(db *gorm.DB, opts Opts) (*models.Template, error) {
	if err := opts.check(); err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	t := opts.build()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := nameFree(tx, opts.Name, 0); err != nil {
			return err
		}
		if err := tx.Create(&t).Error; err != nil {
			return fmt.Errorf("create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	return &t, nil
}

// Get retrieves a template with its materials and ordered checklist.
func Get(db *gorm.DB, id uint) (*models.Template, error) {
	var t models.Template
	err := db.Preload("Materials").
		Preload("Checklist", func(q *gorm.DB) *gorm.DB { return q.Order("position") }).
		First(&t, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("template: %w", apperr.NotFound("template", id))
		}
		return nil, fmt.Errorf("template: get %d: %w", id, err)
	}
	return &t, nil
}

// GetByName retrieves a template by its unique name.
func GetByName(db *gorm.DB, name string) (*models.Template, error) {
	var t models.Template
	if err := db.Where("name = ?", name).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("template: %w", apperr.NotFound("template", name))
		}
		return nil, fmt.Errorf("template: get %q: %w", name, err)
	}
	return Get(db, t.ID)
}

// List returns all templates ordered by name, optionally of one job type.
func List(db *gorm.DB, jobType string) ([]models.Template, error) {
	q := db.Model(&models.Template{})
	if jobType != "" {
		q = q.Where("job_type = ?", jobType)
	}
	var out []models.Template
	if err := q.Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("template: list: %w", err)
	}
	return out, nil
}

// Update replaces a template's definition, materials and checklist.
func Update(db *gorm.DB, id uint, opts Opts) (*models.Template, error) {
	if err := opts.check(); err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	t := opts.build()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, id); err != nil {
			return err
		}
		if err := nameFree(tx, opts.Name, id); err != nil {
			return err
		}
		if err := deleteChildren(tx, id); err != nil {
			return err
		}
		err := tx.Model(&models.Template{}).Where("id = ?", id).Updates(map[string]any{
			"name":                    t.Name,
			"job_type":                t.JobType,
			"equipment_id":            t.EquipmentID,
			"equipment_type":          t.EquipmentType,
			"berth":                   t.Berth,
			"description":             t.Description,
			"estimated_hours":         t.EstimatedHours,
			"priority":                t.Priority,
			"recurrence":              t.Recurrence,
			"default_team_size":       t.DefaultTeamSize,
			"required_certifications": t.RequiredCertifications,
		}).Error
		if err != nil {
			return fmt.Errorf("update %d: %w", id, err)
		}
		for i := range t.Materials {
			t.Materials[i].TemplateID = id
		}
		for i := range t.Checklist {
			t.Checklist[i].TemplateID = id
		}
		if len(t.Materials) > 0 {
			if err := tx.Create(&t.Materials).Error; err != nil {
				return fmt.Errorf("update materials of %d: %w", id, err)
			}
		}
		if len(t.Checklist) > 0 {
			if err := tx.Create(&t.Checklist).Error; err != nil {
				return fmt.Errorf("update checklist of %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}
	return Get(db, id)
}

// Delete removes a template with its materials and checklist. Jobs created
// from it keep their dangling reference.
func Delete(db *gorm.DB, id uint) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, id); err != nil {
			return err
		}
		if err := deleteChildren(tx, id); err != nil {
			return err
		}
		return tx.Delete(&models.Template{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("template: delete %d: %w", id, err)
	}
	return nil
}

// Clone copies a template with its materials and checklist under a new name.
func Clone(db *gorm.DB, id uint, name string) (*models.Template, error) {
	src, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	opts := OptsFrom(src)
	opts.Name = name
	return Create(db, opts)
}

// OptsFrom returns the definition of an existing template.
func OptsFrom(t *models.Template) Opts {
	o := Opts{
		Name:                   t.Name,
		JobType:                t.JobType,
		EquipmentID:            t.EquipmentID,
		EquipmentType:          t.EquipmentType,
		Berth:                  t.Berth,
		Description:            t.Description,
		EstimatedHours:         t.EstimatedHours,
		Priority:               t.Priority,
		Recurrence:             t.Recurrence,
		DefaultTeamSize:        t.DefaultTeamSize,
		RequiredCertifications: append([]string(nil), t.RequiredCertifications...),
	}
	for _, m := range t.Materials {
		o.Materials = append(o.Materials, MaterialSpec{MaterialID: m.MaterialID, Quantity: m.Quantity})
	}
	items := append([]models.TemplateChecklistItem(nil), t.Checklist...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	for _, c := range items {
		o.Checklist = append(o.Checklist, ChecklistSpec{
			Question:   c.Question,
			AnswerType: c.AnswerType,
			Required:   c.Required,
			Critical:   c.Critical,
		})
	}
	return o
}

func exists(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.Template{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check %d: %w", id, err)
	}
	if count == 0 {
		return apperr.NotFound("template", id)
	}
	return nil
}

func nameFree(tx *gorm.DB, name string, except uint) error {
	var count int64
	if err := tx.Model(&models.Template{}).Where("name = ? AND id <> ?", name, except).Count(&count).Error; err != nil {
		return fmt.Errorf("check name %q: %w", name, err)
	}
	if count > 0 {
		return apperr.Conflict("template %q already exists", name).WithField("Name")
	}
	return nil
}

func deleteChildren(tx *gorm.DB, id uint) error {
	if err := tx.Where("template_id = ?", id).Delete(&models.TemplateMaterial{}).Error; err != nil {
		return fmt.Errorf("delete materials of %d: %w", id, err)
	}
	if err := tx.Where("template_id = ?", id).Delete(&models.TemplateChecklistItem{}).Error; err != nil {
		return fmt.Errorf("delete checklist of %d: %w", id, err)
	}
	return nil
}
