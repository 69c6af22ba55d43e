package template

import (
	"fmt"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
)

// File is the YAML document accepted by Import.
type File struct {
	Templates []FileTemplate `yaml:"templates"`
}

// FileTemplate is one template in a YAML import file. Materials refer to the
// catalog by code and equipment by name.
type FileTemplate struct {
	Name                   string          `yaml:"name"`
	JobType                string          `yaml:"job_type"`
	Equipment              string          `yaml:"equipment"`
	EquipmentType          string          `yaml:"equipment_type"`
	Berth                  string          `yaml:"berth"`
	Description            string          `yaml:"description"`
	EstimatedHours         float64         `yaml:"estimated_hours"`
	Priority               string          `yaml:"priority"`
	Recurrence             string          `yaml:"recurrence"`
	DefaultTeamSize        int             `yaml:"default_team_size"`
	RequiredCertifications []string        `yaml:"required_certifications"`
	Materials              []FileMaterial  `yaml:"materials"`
	Checklist              []ChecklistSpec `yaml:"checklist"`
}

type FileMaterial struct {
	Code     string  `yaml:"code"`
	Quantity float64 `yaml:"quantity"`
}

// Import parses a YAML template file and creates or replaces each template
// by name. All templates are written in one transaction.
func Import(db *gorm.DB, data []byte) ([]models.Template, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("template: %w", apperr.Validation("parse import: %v", err))
	}
	var out []models.Template
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, ft := range f.Templates {
			opts, err := ft.resolve(tx)
			if err != nil {
				return err
			}
			var existing models.Template
			res := tx.Where("name = ?", ft.Name).Limit(1).Find(&existing)
			if res.Error != nil {
				return fmt.Errorf("template: lookup %q: %w", ft.Name, res.Error)
			}
			var t *models.Template
			if res.RowsAffected > 0 {
				t, err = Update(tx, existing.ID, opts)
			} else {
				t, err = Create(tx, opts)
			}
			if err != nil {
				return err
			}
			out = append(out, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (ft FileTemplate) resolve(tx *gorm.DB) (Opts, error) {
	opts := Opts{
		Name:                   ft.Name,
		JobType:                ft.JobType,
		EquipmentType:          ft.EquipmentType,
		Berth:                  ft.Berth,
		Description:            ft.Description,
		EstimatedHours:         ft.EstimatedHours,
		Priority:               ft.Priority,
		Recurrence:             ft.Recurrence,
		DefaultTeamSize:        ft.DefaultTeamSize,
		RequiredCertifications: ft.RequiredCertifications,
		Checklist:              ft.Checklist,
	}
	if ft.Equipment != "" {
		var eq models.Equipment
		res := tx.Where("name = ?", ft.Equipment).Limit(1).Find(&eq)
		if res.Error != nil {
			return opts, fmt.Errorf("template: lookup equipment %q: %w", ft.Equipment, res.Error)
		}
		if res.RowsAffected == 0 {
			return opts, fmt.Errorf("template: %q: %w", ft.Name, apperr.NotFound("equipment", ft.Equipment))
		}
		opts.EquipmentID = &eq.ID
	}
	for _, m := range ft.Materials {
		var mat models.Material
		res := tx.Where("code = ?", m.Code).Limit(1).Find(&mat)
		if res.Error != nil {
			return opts, fmt.Errorf("template: lookup material %q: %w", m.Code, res.Error)
		}
		if res.RowsAffected == 0 {
			return opts, fmt.Errorf("template: %q: %w", ft.Name, apperr.NotFound("material", m.Code))
		}
		opts.Materials = append(opts.Materials, MaterialSpec{MaterialID: mat.ID, Quantity: m.Quantity})
	}
	return opts, nil
}
