// Package capacity resolves workload policies and accounts for the hours and
// jobs each worker carries per day.
package capacity

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
)

// Fallback applies when no default CapacityConfig row exists.
var Fallback = models.CapacityConfig{
	MaxHoursPerDay:         8,
	OvertimeThresholdHours: 8,
	MaxOvertimeHours:       4,
	MaxJobsPerDay:          5,
}

// Model resolves capacity policies, caching resolutions for ttl. Policies
// change rarely and a scan tolerates a briefly stale one.
type Model struct {
	cache *cache.Cache
}

// New returns a Model whose policy cache expires entries after ttl. A zero
// ttl disables caching.
func New(ttl time.Duration) *Model {
	if ttl <= 0 {
		return &Model{}
	}
	return &Model{cache: cache.New(ttl, 2*ttl)}
}

// Invalidate drops every cached policy.
func (m *Model) Invalidate() {
	if m != nil && m.cache != nil {
		m.cache.Flush()
	}
}

// Config resolves the policy for a worker by specificity: exact role and
// shift, then role only, then shift only, then the global default.
func (m *Model) Config(db *gorm.DB, role, shift string) (models.CapacityConfig, error) {
	key := role + "|" + shift
	if m != nil && m.cache != nil {
		if v, ok := m.cache.Get(key); ok {
			return v.(models.CapacityConfig), nil
		}
	}

	var rows []models.CapacityConfig
	err := db.Where("(role = ? OR role = '') AND (shift = ? OR shift = '')", role, shift).Find(&rows).Error
	if err != nil {
		return models.CapacityConfig{}, fmt.Errorf("capacity: resolve %q/%q: %w", role, shift, err)
	}

	cfg, ok := mostSpecific(rows, role, shift)
	if !ok {
		cfg = Fallback
	}
	if m != nil && m.cache != nil {
		m.cache.SetDefault(key, cfg)
	}
	return cfg, nil
}

func mostSpecific(rows []models.CapacityConfig, role, shift string) (models.CapacityConfig, bool) {
	rank := func(c models.CapacityConfig) int {
		switch {
		case c.Role != "" && c.Shift != "":
			return 3
		case c.Role != "":
			return 2
		case c.Shift != "":
			return 1
		}
		return 0
	}
	best, found := models.CapacityConfig{}, false
	for _, c := range rows {
		if (c.Role != "" && c.Role != role) || (c.Shift != "" && c.Shift != shift) {
			continue
		}
		if !found || rank(c) > rank(best) {
			best, found = c, true
		}
	}
	return best, found
}

// Load is what a worker already carries on one day.
type Load struct {
	Hours float64
	Jobs  int
}

// DayLoads sums assigned hours and jobs per worker on a day. Split anchors
// and cancelled jobs carry no load.
func DayLoads(db *gorm.DB, dayID uint) (map[uint]Load, error) {
	var rows []struct {
		UserID uint
		Hours  float64
		Jobs   int
	}
	err := db.Table("job_assignments").
		Select("job_assignments.user_id AS user_id, COALESCE(SUM(jobs.estimated_hours), 0) AS hours, COUNT(*) AS jobs").
		Joins("JOIN jobs ON jobs.id = job_assignments.job_id").
		Where("jobs.day_id = ? AND jobs.is_split = ? AND jobs.status <> ?", dayID, false, models.JobCancelled).
		Group("job_assignments.user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("capacity: loads for day %d: %w", dayID, err)
	}
	out := make(map[uint]Load, len(rows))
	for _, r := range rows {
		out[r.UserID] = Load{Hours: r.Hours, Jobs: r.Jobs}
	}
	return out, nil
}

// Violation is the outcome of a capacity check for one worker and day.
type Violation struct {
	UserID          uint
	DayID           uint
	AssignedHours   float64
	AdditionalHours float64
	TotalHours      float64
	LimitHours      float64
	OvertimeHours   float64
	AssignedJobs    int
	MaxJobs         int
	Violated        bool
}

// Evaluate applies cfg to a total load. Violated is monotonic in hours.
func Evaluate(cfg models.CapacityConfig, total float64) (violated bool, overtime float64) {
	overtime = total - cfg.OvertimeThresholdHours
	if overtime < 0 {
		overtime = 0
	}
	return total > cfg.Limit(), overtime
}

// CheckViolation reports whether adding additionalHours to the worker's load
// on the day would exceed max_hours_per_day + max_overtime_hours.
func (m *Model) CheckViolation(db *gorm.DB, userID, dayID uint, additionalHours float64) (*Violation, error) {
	if additionalHours < 0 {
		return nil, fmt.Errorf("capacity: %w", apperr.Validation("additional hours must not be negative").WithField("additional_hours"))
	}
	user, err := getUser(db, userID)
	if err != nil {
		return nil, err
	}
	if err := db.First(&models.Day{}, dayID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("capacity: %w", apperr.NotFound("day", dayID))
		}
		return nil, fmt.Errorf("capacity: get day %d: %w", dayID, err)
	}
	cfg, err := m.Config(db, user.Role, user.Shift)
	if err != nil {
		return nil, err
	}
	loads, err := DayLoads(db, dayID)
	if err != nil {
		return nil, err
	}

	load := loads[userID]
	v := &Violation{
		UserID:          userID,
		DayID:           dayID,
		AssignedHours:   load.Hours,
		AdditionalHours: additionalHours,
		TotalHours:      load.Hours + additionalHours,
		LimitHours:      cfg.Limit(),
		AssignedJobs:    load.Jobs,
		MaxJobs:         cfg.MaxJobsPerDay,
	}
	v.Violated, v.OvertimeHours = Evaluate(cfg, v.TotalHours)
	return v, nil
}

// Availability is the remaining capacity of one worker on a day.
type Availability struct {
	UserID                uint
	Name                  string
	Role                  string
	Shift                 string
	AssignedHours         float64
	AssignedJobs          int
	RemainingHours        float64 // before overtime
	RemainingWithOvertime float64
	RemainingJobs         int
}

// Available lists active workers not on leave on the day, optionally
// filtered by role and shift, sorted by remaining hours descending.
func (m *Model) Available(db *gorm.DB, dayID uint, role, shift string) ([]Availability, error) {
	var day models.Day
	if err := db.First(&day, dayID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("capacity: %w", apperr.NotFound("day", dayID))
		}
		return nil, fmt.Errorf("capacity: get day %d: %w", dayID, err)
	}

	q := db.Where("active = ?", true)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	if shift != "" {
		q = q.Where("shift = ?", shift)
	}
	var users []models.User
	if err := q.Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("capacity: list users: %w", err)
	}

	onLeave, err := OnLeave(db, day.Date)
	if err != nil {
		return nil, err
	}
	loads, err := DayLoads(db, dayID)
	if err != nil {
		return nil, err
	}

	out := make([]Availability, 0, len(users))
	for _, u := range users {
		if onLeave[u.ID] {
			continue
		}
		cfg, err := m.Config(db, u.Role, u.Shift)
		if err != nil {
			return nil, err
		}
		load := loads[u.ID]
		out = append(out, Availability{
			UserID:                u.ID,
			Name:                  u.Name,
			Role:                  u.Role,
			Shift:                 u.Shift,
			AssignedHours:         load.Hours,
			AssignedJobs:          load.Jobs,
			RemainingHours:        max(cfg.MaxHoursPerDay-load.Hours, 0),
			RemainingWithOvertime: max(cfg.Limit()-load.Hours, 0),
			RemainingJobs:         max(cfg.MaxJobsPerDay-load.Jobs, 0),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RemainingHours > out[j].RemainingHours
	})
	return out, nil
}

// OnLeave returns the set of workers with approved leave covering date.
func OnLeave(db *gorm.DB, date time.Time) (map[uint]bool, error) {
	var leaves []models.Leave
	if err := db.Where("status = ?", models.LeaveApproved).Find(&leaves).Error; err != nil {
		return nil, fmt.Errorf("capacity: list leave: %w", err)
	}
	out := map[uint]bool{}
	for i := range leaves {
		if leaves[i].Covers(date) {
			out[leaves[i].UserID] = true
		}
	}
	return out, nil
}

// UnavailableReason explains why user cannot work on date, or returns "".
func UnavailableReason(db *gorm.DB, user models.User, date time.Time) (string, error) {
	if !user.Active {
		return "inactive", nil
	}
	onLeave, err := OnLeave(db, date)
	if err != nil {
		return "", err
	}
	if onLeave[user.ID] {
		return "on approved leave", nil
	}
	return "", nil
}

func getUser(db *gorm.DB, userID uint) (*models.User, error) {
	var u models.User
	if err := db.First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("capacity: %w", apperr.NotFound("user", userID))
		}
		return nil, fmt.Errorf("capacity: get user %d: %w", userID, err)
	}
	return &u, nil
}
