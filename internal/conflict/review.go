package conflict

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
)

// ListFilters holds optional filters for listing conflicts.
type ListFilters struct {
	Status   string
	Type     string
	Severity string
	DayID    uint
}

// List returns a plan's conflicts, errors first.
func List(db *gorm.DB, planID uint, filters ListFilters) ([]models.Conflict, error) {
	q := db.Where("plan_id = ?", planID)
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Type != "" {
		q = q.Where("type = ?", filters.Type)
	}
	if filters.Severity != "" {
		q = q.Where("severity = ?", filters.Severity)
	}
	if filters.DayID != 0 {
		q = q.Where("day_id = ?", filters.DayID)
	}
	var out []models.Conflict
	if err := q.Order("CASE severity WHEN 'error' THEN 0 ELSE 1 END, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("conflict: list for plan %d: %w", planID, err)
	}
	return out, nil
}

// Get retrieves a conflict by ID.
func Get(db *gorm.DB, id uint) (*models.Conflict, error) {
	var c models.Conflict
	if err := db.First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("conflict: %w", apperr.NotFound("conflict", id))
		}
		return nil, fmt.Errorf("conflict: get %d: %w", id, err)
	}
	return &c, nil
}

// Resolve closes an open conflict as fixed.
func Resolve(db *gorm.DB, id uint, resolution string, by uint, now time.Time) (*models.Conflict, error) {
	return closeConflict(db, id, models.ConflictResolved, resolution, by, now)
}

// Ignore closes an open conflict as accepted. Later scans do not raise an
// identical finding again.
func Ignore(db *gorm.DB, id uint, reason string, by uint, now time.Time) (*models.Conflict, error) {
	return closeConflict(db, id, models.ConflictIgnored, reason, by, now)
}

func closeConflict(db *gorm.DB, id uint, status, note string, by uint, now time.Time) (*models.Conflict, error) {
	c, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.ConflictOpen {
		return nil, fmt.Errorf("conflict: %w", apperr.Validation("conflict %d is already %s", id, c.Status).WithField("status"))
	}
	updates := map[string]any{
		"status":      status,
		"resolution":  note,
		"resolved_by": by,
		"resolved_at": now,
	}
	if err := db.Model(&models.Conflict{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("conflict: close %d: %w", id, err)
	}
	return Get(db, id)
}

// Counts summarises a plan's conflicts by status and severity.
type Counts struct {
	Status   string
	Severity string
	Count    int
}

// Summary returns conflict counts for a plan.
func Summary(db *gorm.DB, planID uint) ([]Counts, error) {
	var out []Counts
	err := db.Model(&models.Conflict{}).
		Select("status, severity, COUNT(*) AS count").
		Where("plan_id = ?", planID).
		Group("status, severity").
		Order("status, severity").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("conflict: summary of plan %d: %w", planID, err)
	}
	return out, nil
}
