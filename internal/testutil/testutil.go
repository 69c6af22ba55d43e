// Package testutil builds in-memory databases and plan fixtures for tests.
package testutil

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/config"
	"github.com/zulandar/drydock/internal/db"
	"github.com/zulandar/drydock/internal/models"
)

// Monday is the week every fixture plan starts on.
var Monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// OpenDB returns a migrated in-memory database seeded with the default
// capacity policy (8h/day, threshold 8h, 4h overtime, 5 jobs).
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.ConnectMemory(t.Name())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	err = db.SeedCapacity(gormDB, config.CapacityConfig{
		Default: config.CapacityRule{MaxHoursPerDay: 8, OvertimeThresholdHours: 8, MaxOvertimeHours: 4, MaxJobsPerDay: 5},
	})
	if err != nil {
		t.Fatalf("seed capacity: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gormDB
}

// Plan creates a draft plan for the week of Monday with seven days and
// returns it with Days loaded in date order.
func Plan(t *testing.T, gormDB *gorm.DB) *models.Plan {
	t.Helper()
	return PlanAt(t, gormDB, Monday)
}

// PlanAt is Plan for the week starting at monday.
func PlanAt(t *testing.T, gormDB *gorm.DB, monday time.Time) *models.Plan {
	t.Helper()
	p := models.Plan{WeekStart: monday, WeekEnd: monday.AddDate(0, 0, 6), Status: models.PlanDraft}
	if err := gormDB.Create(&p).Error; err != nil {
		t.Fatalf("create plan: %v", err)
	}
	for i := 0; i < 7; i++ {
		d := models.Day{PlanID: p.ID, Date: monday.AddDate(0, 0, i)}
		if err := gormDB.Create(&d).Error; err != nil {
			t.Fatalf("create day: %v", err)
		}
		p.Days = append(p.Days, d)
	}
	return &p
}

// User creates an active worker.
func User(t *testing.T, gormDB *gorm.DB, name, role, shift string) *models.User {
	t.Helper()
	u := models.User{Name: name, Role: role, Shift: shift, Active: true}
	if err := gormDB.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return &u
}

// Equipment creates an equipment row.
func Equipment(t *testing.T, gormDB *gorm.DB, name string) *models.Equipment {
	t.Helper()
	e := models.Equipment{Name: name, Type: "crane"}
	if err := gormDB.Create(&e).Error; err != nil {
		t.Fatalf("create equipment %s: %v", name, err)
	}
	return &e
}

// Job creates a preventive job of the given hours on day.
func Job(t *testing.T, gormDB *gorm.DB, day models.Day, hours float64, mutate ...func(*models.Job)) *models.Job {
	t.Helper()
	j := models.Job{DayID: day.ID, JobType: models.JobPreventive, EstimatedHours: hours, Priority: "normal", Status: models.JobPending}
	for _, m := range mutate {
		m(&j)
	}
	if err := gormDB.Create(&j).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}
	return &j
}

// Assign puts user on job.
func Assign(t *testing.T, gormDB *gorm.DB, job *models.Job, user *models.User) {
	t.Helper()
	a := models.JobAssignment{JobID: job.ID, UserID: user.ID}
	if err := gormDB.Create(&a).Error; err != nil {
		t.Fatalf("assign user %d to job %d: %v", user.ID, job.ID, err)
	}
}

// Skill grants user a verified certification, optionally expiring.
func Skill(t *testing.T, gormDB *gorm.DB, user *models.User, name string, expires *time.Time) {
	t.Helper()
	s := models.WorkerSkill{UserID: user.ID, SkillName: name, Verified: true, ExpiresAt: expires}
	if err := gormDB.Create(&s).Error; err != nil {
		t.Fatalf("create skill %s: %v", name, err)
	}
}

// Conflict records an open capacity error on day.
func Conflict(t *testing.T, gormDB *gorm.DB, day models.Day) *models.Conflict {
	t.Helper()
	c := models.Conflict{
		PlanID:      day.PlanID,
		Type:        models.ConflictCapacity,
		Severity:    models.SeverityError,
		Description: "over capacity",
		DayID:       &day.ID,
		Status:      models.ConflictOpen,
	}
	if err := gormDB.Create(&c).Error; err != nil {
		t.Fatalf("create conflict: %v", err)
	}
	return &c
}
