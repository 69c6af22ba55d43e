package db

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zulandar/drydock/internal/config"
	"github.com/zulandar/drydock/internal/models"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Plan{},
		&models.Day{},
		&models.Job{},
		&models.JobAssignment{},
		&models.JobMaterial{},
		&models.JobDependency{},
		&models.Template{},
		&models.TemplateMaterial{},
		&models.TemplateChecklistItem{},
		&models.ChecklistResponse{},
		&models.CapacityConfig{},
		&models.User{},
		&models.Leave{},
		&models.Equipment{},
		&models.Material{},
		&models.WorkerSkill{},
		&models.EquipmentRestriction{},
		&models.PlanVersion{},
		&models.Conflict{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedCapacity upserts CapacityConfig rows from configuration. The default
// rule is stored with an empty role and shift.
func SeedCapacity(db *gorm.DB, cc config.CapacityConfig) error {
	rules := append([]config.CapacityRule{{
		MaxHoursPerDay:         cc.Default.MaxHoursPerDay,
		OvertimeThresholdHours: cc.Default.OvertimeThresholdHours,
		MaxOvertimeHours:       cc.Default.MaxOvertimeHours,
		MaxJobsPerDay:          cc.Default.MaxJobsPerDay,
	}}, cc.Rules...)

	for _, r := range rules {
		row := models.CapacityConfig{
			Role:                   r.Role,
			Shift:                  r.Shift,
			MaxHoursPerDay:         r.MaxHoursPerDay,
			OvertimeThresholdHours: r.OvertimeThresholdHours,
			MaxOvertimeHours:       r.MaxOvertimeHours,
			MaxJobsPerDay:          r.MaxJobsPerDay,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "role"}, {Name: "shift"}},
			DoUpdates: clause.AssignmentColumns([]string{"max_hours_per_day", "overtime_threshold_hours", "max_overtime_hours", "max_jobs_per_day"}),
		}).Create(&row)
		if result.Error != nil {
			return fmt.Errorf("db: seed capacity %q/%q: %w", r.Role, r.Shift, result.Error)
		}
	}
	return nil
}

// Directory is the read-only reference data the engine consumes: workers,
// leave, equipment, materials, and certifications. It can be seeded from a
// YAML file for local use.
type Directory struct {
	Users []struct {
		ID     uint   `yaml:"id"`
		Name   string `yaml:"name"`
		Role   string `yaml:"role"`
		Shift  string `yaml:"shift"`
		Active *bool  `yaml:"active"`
	} `yaml:"users"`
	Leaves []struct {
		UserID uint   `yaml:"user_id"`
		Start  string `yaml:"start"`
		End    string `yaml:"end"`
		Status string `yaml:"status"`
	} `yaml:"leaves"`
	Equipment []models.Equipment `yaml:"equipment"`
	Materials []models.Material  `yaml:"materials"`
	Skills    []struct {
		UserID  uint   `yaml:"user_id"`
		Name    string `yaml:"name"`
		Expires string `yaml:"expires"`
	} `yaml:"skills"`
}

// LoadDirectory reads a directory seed file.
func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("db: read directory %s: %w", path, err)
	}
	var dir Directory
	if err := yaml.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("db: parse directory %s: %w", path, err)
	}
	return &dir, nil
}

// SeedDirectory upserts directory rows in one transaction. Seeded skills are
// stored as verified.
func SeedDirectory(db *gorm.DB, dir *Directory) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, u := range dir.Users {
			active := u.Active == nil || *u.Active
			row := models.User{ID: u.ID, Name: u.Name, Role: u.Role, Shift: u.Shift, Active: active}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("db: seed user %q: %w", u.Name, err)
			}
		}
		for i := range dir.Equipment {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&dir.Equipment[i]).Error; err != nil {
				return fmt.Errorf("db: seed equipment %q: %w", dir.Equipment[i].Name, err)
			}
		}
		for i := range dir.Materials {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&dir.Materials[i]).Error; err != nil {
				return fmt.Errorf("db: seed material %q: %w", dir.Materials[i].Name, err)
			}
		}
		for _, l := range dir.Leaves {
			start, err := time.Parse(time.DateOnly, l.Start)
			if err != nil {
				return fmt.Errorf("db: leave start %q: %w", l.Start, err)
			}
			end, err := time.Parse(time.DateOnly, l.End)
			if err != nil {
				return fmt.Errorf("db: leave end %q: %w", l.End, err)
			}
			status := l.Status
			if status == "" {
				status = models.LeaveApproved
			}
			row := models.Leave{UserID: l.UserID, StartDate: start, EndDate: end, Status: status}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("db: seed leave for user %d: %w", l.UserID, err)
			}
		}
		now := time.Now()
		for _, s := range dir.Skills {
			row := models.WorkerSkill{UserID: s.UserID, SkillName: s.Name, Verified: true, VerifiedAt: &now}
			if s.Expires != "" {
				exp, err := time.Parse(time.DateOnly, s.Expires)
				if err != nil {
					return fmt.Errorf("db: skill expiry %q: %w", s.Expires, err)
				}
				row.ExpiresAt = &exp
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("db: seed skill %q for user %d: %w", s.Name, s.UserID, err)
			}
		}
		return nil
	})
}
