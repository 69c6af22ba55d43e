// Package report aggregates completed work for planners: completion rates,
// how well estimates match actual hours, and per-worker performance.
package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/models"
)

// Filter narrows the jobs a report covers. Zero values mean no bound.
type Filter struct {
	PlanID uint
	From   time.Time
	To     time.Time
}

type jobRow struct {
	models.Job
	Date time.Time
}

// jobs loads the countable jobs matching f with their assignments. Split
// anchors are left out since their parts carry the work.
func jobs(db *gorm.DB, f Filter) ([]jobRow, map[uint][]uint, error) {
	q := db.Table("jobs").
		Select("jobs.*, days.date AS date").
		Joins("JOIN days ON days.id = jobs.day_id").
		Where("jobs.is_split = ?", false)
	if f.PlanID != 0 {
		q = q.Where("days.plan_id = ?", f.PlanID)
	}
	if !f.From.IsZero() {
		q = q.Where("days.date >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("days.date <= ?", f.To)
	}
	var rows []jobRow
	if err := q.Order("days.date, jobs.id").Scan(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("report: load jobs: %w", err)
	}
	crews := make(map[uint][]uint)
	if len(rows) == 0 {
		return rows, crews, nil
	}
	ids := lo.Map(rows, func(r jobRow, _ int) uint { return r.ID })
	var assigns []models.JobAssignment
	if err := db.Where("job_id IN ?", ids).Order("user_id").Find(&assigns).Error; err != nil {
		return nil, nil, fmt.Errorf("report: load assignments: %w", err)
	}
	for _, a := range assigns {
		crews[a.JobID] = append(crews[a.JobID], a.UserID)
	}
	return rows, crews, nil
}

// TypeCompletion counts jobs of one type.
type TypeCompletion struct {
	JobType   string  `json:"job_type"`
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Rate      float64 `json:"rate"`
}

// Completion summarises how many planned jobs were done.
type Completion struct {
	Total      int              `json:"total"`
	Completed  int              `json:"completed"`
	InProgress int              `json:"in_progress"`
	Cancelled  int              `json:"cancelled"`
	Rate       float64          `json:"rate"` // completed / (total - cancelled)
	ByType     []TypeCompletion `json:"by_type"`
}

// CompletionReport computes completion counts and rates.
func CompletionReport(db *gorm.DB, f Filter) (*Completion, error) {
	rows, _, err := jobs(db, f)
	if err != nil {
		return nil, err
	}
	out := &Completion{Total: len(rows)}
	byType := map[string]*TypeCompletion{}
	for _, r := range rows {
		tc, ok := byType[r.JobType]
		if !ok {
			tc = &TypeCompletion{JobType: r.JobType}
			byType[r.JobType] = tc
		}
		switch r.Status {
		case models.JobCompleted:
			out.Completed++
			tc.Completed++
		case models.JobInProgress:
			out.InProgress++
		case models.JobCancelled:
			out.Cancelled++
			continue
		}
		tc.Total++
	}
	out.Rate = ratio(out.Completed, out.Total-out.Cancelled)
	for _, tc := range byType {
		tc.Rate = ratio(tc.Completed, tc.Total)
		out.ByType = append(out.ByType, *tc)
	}
	sort.Slice(out.ByType, func(i, j int) bool { return out.ByType[i].JobType < out.ByType[j].JobType })
	return out, nil
}

// TimeAccuracy compares estimated and actual hours of completed jobs.
type TimeAccuracy struct {
	Jobs           int     `json:"jobs"`
	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
	MeanRatio      float64 `json:"mean_ratio"` // mean of estimated/actual
	MAPE           float64 `json:"mape"`       // mean absolute percentage error, in percent
	Underestimated int     `json:"underestimated"`
	Overestimated  int     `json:"overestimated"`
}

// TimeAccuracyReport covers completed jobs that recorded actual hours.
func TimeAccuracyReport(db *gorm.DB, f Filter) (*TimeAccuracy, error) {
	rows, _, err := jobs(db, f)
	if err != nil {
		return nil, err
	}
	out := &TimeAccuracy{}
	var ratioSum, apeSum float64
	for _, r := range rows {
		if r.Status != models.JobCompleted || r.ActualHours == nil || *r.ActualHours <= 0 {
			continue
		}
		actual := *r.ActualHours
		out.Jobs++
		out.EstimatedHours += r.EstimatedHours
		out.ActualHours += actual
		ratioSum += r.EstimatedHours / actual
		apeSum += math.Abs(actual-r.EstimatedHours) / actual
		switch {
		case actual > r.EstimatedHours:
			out.Underestimated++
		case actual < r.EstimatedHours:
			out.Overestimated++
		}
	}
	if out.Jobs > 0 {
		out.MeanRatio = round(ratioSum / float64(out.Jobs))
		out.MAPE = round(apeSum / float64(out.Jobs) * 100)
	}
	return out, nil
}

// WorkerStats is one worker's share of the work.
type WorkerStats struct {
	UserID         uint    `json:"user_id"`
	Name           string  `json:"name"`
	AssignedJobs   int     `json:"assigned_jobs"`
	CompletedJobs  int     `json:"completed_jobs"`
	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
	CompletionRate float64 `json:"completion_rate"`
}

// WorkerPerformance reports per-worker totals ordered by completed jobs.
// Cancelled jobs are not counted.
func WorkerPerformance(db *gorm.DB, f Filter) ([]WorkerStats, error) {
	rows, crews, err := jobs(db, f)
	if err != nil {
		return nil, err
	}
	stats := map[uint]*WorkerStats{}
	for _, r := range rows {
		if r.Status == models.JobCancelled {
			continue
		}
		for _, uid := range crews[r.ID] {
			ws, ok := stats[uid]
			if !ok {
				ws = &WorkerStats{UserID: uid}
				stats[uid] = ws
			}
			ws.AssignedJobs++
			ws.EstimatedHours += r.EstimatedHours
			if r.Status == models.JobCompleted {
				ws.CompletedJobs++
				if r.ActualHours != nil {
					ws.ActualHours += *r.ActualHours
				}
			}
		}
	}
	if len(stats) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := db.Where("id IN ?", lo.Keys(stats)).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("report: load users: %w", err)
	}
	for _, u := range users {
		stats[u.ID].Name = u.Name
	}
	out := make([]WorkerStats, 0, len(stats))
	for _, ws := range stats {
		ws.CompletionRate = ratio(ws.CompletedJobs, ws.AssignedJobs)
		out = append(out, *ws)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedJobs != out[j].CompletedJobs {
			return out[i].CompletedJobs > out[j].CompletedJobs
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return round(float64(n) / float64(d))
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
