// Package conflict scans a plan for scheduling incompatibilities and keeps
// the findings as reviewable records.
package conflict

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/capacity"
	"github.com/zulandar/drydock/internal/dependency"
	"github.com/zulandar/drydock/internal/logger"
	"github.com/zulandar/drydock/internal/metrics"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/plan"
	"github.com/zulandar/drydock/internal/restriction"
	"github.com/zulandar/drydock/internal/skill"
)

// Detector runs full plan scans.
type Detector struct {
	Capacity *capacity.Model
}

// New returns a Detector resolving capacity policies through cm.
func New(cm *capacity.Model) *Detector {
	if cm == nil {
		cm = capacity.New(0)
	}
	return &Detector{Capacity: cm}
}

// Scan is the outcome of one Detect call.
type Scan struct {
	ID         string
	PlanID     uint
	Conflicts  []models.Conflict
	Suppressed int // findings matching an ignored conflict
	Duration   time.Duration
}

// Errors returns the error-severity conflicts of the scan.
func (s *Scan) Errors() []models.Conflict {
	return lo.Filter(s.Conflicts, func(c models.Conflict, _ int) bool { return c.Severity == models.SeverityError })
}

// Warnings returns the warning-severity conflicts of the scan.
func (s *Scan) Warnings() []models.Conflict {
	return lo.Filter(s.Conflicts, func(c models.Conflict, _ int) bool { return c.Severity == models.SeverityWarning })
}

// Detect rescans a plan from scratch. Open conflicts from earlier scans are
// replaced; resolved and ignored ones are kept, and a finding identical to
// an ignored conflict is not raised again. Having conflicts is not an error.
func (d *Detector) Detect(db *gorm.DB, planID uint) (*Scan, error) {
	started := time.Now()
	scan := &Scan{ID: uuid.NewString(), PlanID: planID}

	err := db.Transaction(func(tx *gorm.DB) error {
		p, err := plan.GetTree(tx, planID)
		if err != nil {
			return err
		}
		if err := tx.Where("plan_id = ? AND status = ?", planID, models.ConflictOpen).Delete(&models.Conflict{}).Error; err != nil {
			return fmt.Errorf("clear open conflicts: %w", err)
		}

		var ignored []models.Conflict
		if err := tx.Where("plan_id = ? AND status = ?", planID, models.ConflictIgnored).Find(&ignored).Error; err != nil {
			return fmt.Errorf("load ignored conflicts: %w", err)
		}
		skip := map[string]bool{}
		for i := range ignored {
			skip[fingerprint(&ignored[i])] = true
		}

		found, err := d.findings(tx, p)
		if err != nil {
			return err
		}
		for _, c := range found {
			if skip[fingerprint(&c)] {
				scan.Suppressed++
				continue
			}
			c.PlanID = planID
			c.ScanID = scan.ID
			c.Status = models.ConflictOpen
			scan.Conflicts = append(scan.Conflicts, c)
		}
		if len(scan.Conflicts) > 0 {
			if err := tx.CreateInBatches(&scan.Conflicts, 100).Error; err != nil {
				return fmt.Errorf("store conflicts: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("conflict: scan plan %d: %w", planID, err)
	}

	scan.Duration = time.Since(started)
	counts := map[[2]string]int{}
	for _, c := range scan.Conflicts {
		counts[[2]string{c.Type, c.Severity}]++
	}
	metrics.ObserveScan(started, counts)
	log := logger.Component("conflict")
	log.Info().
		Uint("plan", planID).
		Str("scan", scan.ID).
		Int("errors", len(scan.Errors())).
		Int("warnings", len(scan.Warnings())).
		Int("suppressed", scan.Suppressed).
		Dur("took", scan.Duration).
		Msg("plan scanned")
	return scan, nil
}

// fingerprint identifies a finding independent of scan and status.
func fingerprint(c *models.Conflict) string {
	day := uint(0)
	if c.DayID != nil {
		day = *c.DayID
	}
	return fmt.Sprintf("%s|%s|%d|%v|%v|%s", c.Type, c.Severity, day,
		sortedIDs(c.AffectedJobIDs), sortedIDs(c.AffectedUserIDs), c.Description)
}

func sortedIDs(ids []uint) []uint {
	out := append([]uint(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// placed is a job with the date of its day.
type placed struct {
	job  *models.Job
	day  *models.Day
	date time.Time
}

type scanState struct {
	tx        *gorm.DB
	users     map[uint]models.User
	required  map[uint][]string // template ID -> certifications
	jobs      map[uint]placed
	parts     map[uint][]placed // anchor ID -> parts
	findings  []models.Conflict
}

func (s *scanState) add(typ, severity string, day *models.Day, jobIDs, userIDs []uint, format string, args ...any) {
	c := models.Conflict{
		Type:            typ,
		Severity:        severity,
		Description:     fmt.Sprintf(format, args...),
		AffectedJobIDs:  lo.Uniq(jobIDs),
		AffectedUserIDs: lo.Uniq(userIDs),
	}
	if day != nil {
		id := day.ID
		c.DayID = &id
	}
	s.findings = append(s.findings, c)
}

// counted reports whether a job carries load and is checked in its own
// right. Split anchors and cancelled jobs are not.
func counted(j *models.Job) bool {
	return !j.IsSplit && j.Status != models.JobCancelled
}

func (d *Detector) findings(tx *gorm.DB, p *models.Plan) ([]models.Conflict, error) {
	s := &scanState{
		tx:       tx,
		users:    map[uint]models.User{},
		required: map[uint][]string{},
		jobs:     map[uint]placed{},
		parts:    map[uint][]placed{},
	}

	var userIDs, templateIDs []uint
	for di := range p.Days {
		day := &p.Days[di]
		for ji := range day.Jobs {
			j := &day.Jobs[ji]
			pj := placed{job: j, day: day, date: day.Date}
			s.jobs[j.ID] = pj
			if j.SplitFromID != nil {
				s.parts[*j.SplitFromID] = append(s.parts[*j.SplitFromID], pj)
			}
			if j.TemplateID != nil {
				templateIDs = append(templateIDs, *j.TemplateID)
			}
			for _, a := range j.Assignments {
				userIDs = append(userIDs, a.UserID)
			}
		}
	}

	if len(userIDs) > 0 {
		var users []models.User
		if err := tx.Where("id IN ?", lo.Uniq(userIDs)).Find(&users).Error; err != nil {
			return nil, fmt.Errorf("load workers: %w", err)
		}
		s.users = lo.KeyBy(users, func(u models.User) uint { return u.ID })
	}
	if len(templateIDs) > 0 {
		var tmpls []models.Template
		if err := tx.Select("id", "required_certifications").Where("id IN ?", lo.Uniq(templateIDs)).Find(&tmpls).Error; err != nil {
			return nil, fmt.Errorf("load templates: %w", err)
		}
		for _, t := range tmpls {
			s.required[t.ID] = []string(t.RequiredCertifications)
		}
	}

	for di := range p.Days {
		if err := d.scanDay(s, &p.Days[di]); err != nil {
			return nil, err
		}
	}
	if err := scanDependencies(s, p.ID); err != nil {
		return nil, err
	}
	return s.findings, nil
}

// scanDay runs the per-worker and per-job checks of one day.
func (d *Detector) scanDay(s *scanState, day *models.Day) error {
	type load struct {
		hours float64
		jobs  []uint
	}
	loads := map[uint]*load{}
	var crewIDs []uint
	for ji := range day.Jobs {
		j := &day.Jobs[ji]
		if !counted(j) {
			continue
		}
		for _, a := range j.Assignments {
			l := loads[a.UserID]
			if l == nil {
				l = &load{}
				loads[a.UserID] = l
			}
			l.hours += j.EstimatedHours
			l.jobs = append(l.jobs, j.ID)
			crewIDs = append(crewIDs, a.UserID)
		}
	}

	skills, err := skill.ValidSkillSets(s.tx, lo.Uniq(crewIDs), day.Date)
	if err != nil {
		return err
	}
	onLeave, err := capacity.OnLeave(s.tx, day.Date)
	if err != nil {
		return err
	}
	date := day.Date.Format("2006-01-02")

	userIDs := lo.Keys(loads)
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	for _, uid := range userIDs {
		l := loads[uid]
		u, known := s.users[uid]
		switch {
		case !known:
			s.add(models.ConflictCapacity, models.SeverityError, day, l.jobs, []uint{uid},
				"worker %d is not in the directory but assigned on %s", uid, date)
			continue
		case !u.Active:
			s.add(models.ConflictCapacity, models.SeverityError, day, l.jobs, []uint{uid},
				"%s is inactive but assigned on %s", u.Name, date)
		case onLeave[uid]:
			s.add(models.ConflictCapacity, models.SeverityError, day, l.jobs, []uint{uid},
				"%s is on approved leave but assigned on %s", u.Name, date)
		}

		cfg, err := d.Capacity.Config(s.tx, u.Role, u.Shift)
		if err != nil {
			return err
		}
		violated, overtime := capacity.Evaluate(cfg, l.hours)
		switch {
		case violated:
			s.add(models.ConflictCapacity, models.SeverityError, day, l.jobs, []uint{uid},
				"%s has %.2fh on %s, limit %.2fh", u.Name, l.hours, date, cfg.Limit())
		case overtime > 0:
			s.add(models.ConflictCapacity, models.SeverityWarning, day, l.jobs, []uint{uid},
				"%s has %.2fh overtime on %s", u.Name, overtime, date)
		}
		if cfg.MaxJobsPerDay > 0 && len(l.jobs) > cfg.MaxJobsPerDay {
			s.add(models.ConflictCapacity, models.SeverityWarning, day, l.jobs, []uint{uid},
				"%s has %d jobs on %s, maximum %d", u.Name, len(l.jobs), date, cfg.MaxJobsPerDay)
		}
	}

	for ji := range day.Jobs {
		j := &day.Jobs[ji]
		if !counted(j) {
			continue
		}
		crew := lo.Map(j.Assignments, func(a models.JobAssignment, _ int) uint { return a.UserID })

		if j.TemplateID != nil && len(s.required[*j.TemplateID]) > 0 {
			for _, uid := range crew {
				missing := skill.Missing(s.required[*j.TemplateID], skills[uid])
				if len(missing) > 0 {
					s.add(models.ConflictSkill, models.SeverityError, day, []uint{j.ID}, []uint{uid},
						"%s lacks %s for job %d", s.name(uid), strings.Join(missing, ", "), j.ID)
				}
			}
		}

		if j.EquipmentID != nil {
			if err := s.checkEquipment(day, j, crew, skills); err != nil {
				return err
			}
		}
	}

	s.checkOverlaps(day)
	return nil
}

func (s *scanState) name(uid uint) string {
	if u, ok := s.users[uid]; ok {
		return u.Name
	}
	return fmt.Sprintf("worker %d", uid)
}

func (s *scanState) checkEquipment(day *models.Day, j *models.Job, crew []uint, skills map[uint][]string) error {
	active, err := restriction.ActiveOn(s.tx, *j.EquipmentID, day.Date)
	if err != nil || len(active) == 0 {
		return err
	}
	workers := lo.Map(crew, func(uid uint, _ int) restriction.Worker {
		u := s.users[uid]
		return restriction.Worker{ID: uid, Name: u.Name, Shift: u.Shift, Skills: skills[uid]}
	})
	res, err := restriction.Evaluate(active, workers)
	if err != nil {
		return err
	}
	for _, v := range res.Violations {
		affected := crew
		if v.UserID != 0 {
			affected = []uint{v.UserID}
		}
		s.add(models.ConflictEquipment, v.Severity, day, []uint{j.ID}, affected,
			"job %d on equipment %d: %s", j.ID, *j.EquipmentID, v.Message)
	}
	return nil
}

// checkOverlaps flags pairs of slotted jobs on the day that intersect in
// time and share a worker.
func (s *scanState) checkOverlaps(day *models.Day) {
	type slot struct {
		job        *models.Job
		start, end int
	}
	var slots []slot
	for ji := range day.Jobs {
		j := &day.Jobs[ji]
		if !counted(j) {
			continue
		}
		if start, end, ok := j.Slot(); ok {
			slots = append(slots, slot{job: j, start: start, end: end})
		}
	}
	for i := 0; i < len(slots); i++ {
		for k := i + 1; k < len(slots); k++ {
			a, b := slots[i], slots[k]
			if a.start >= b.end || b.start >= a.end {
				continue
			}
			shared := lo.Intersect(
				lo.Map(a.job.Assignments, func(x models.JobAssignment, _ int) uint { return x.UserID }),
				lo.Map(b.job.Assignments, func(x models.JobAssignment, _ int) uint { return x.UserID }),
			)
			if len(shared) == 0 {
				continue
			}
			sort.Slice(shared, func(x, y int) bool { return shared[x] < shared[y] })
			s.add(models.ConflictOverlap, models.SeverityError, day, []uint{a.job.ID, b.job.ID}, shared,
				"jobs %d (%s-%s) and %d (%s-%s) overlap for %d worker(s)",
				a.job.ID, a.job.StartTime, a.job.EndTime, b.job.ID, b.job.StartTime, b.job.EndTime, len(shared))
		}
	}
}

// span returns the first and last date a job occupies. Split anchors span
// their parts.
func (s *scanState) span(id uint) (first, last time.Time, ok bool) {
	pj, ok := s.jobs[id]
	if !ok {
		return first, last, false
	}
	first, last = pj.date, pj.date
	if pj.job.IsSplit {
		for i, part := range s.parts[id] {
			if i == 0 || part.date.Before(first) {
				first = part.date
			}
			if i == 0 || part.date.After(last) {
				last = part.date
			}
		}
	}
	return first, last, true
}

// scanDependencies checks every edge of the plan for temporal order.
func scanDependencies(s *scanState, planID uint) error {
	deps, err := dependency.ForPlan(s.tx, planID)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		job, ok1 := s.jobs[dep.JobID]
		pre, ok2 := s.jobs[dep.DependsOnJobID]
		if !ok1 || !ok2 || job.job.Status == models.JobCancelled || pre.job.Status == models.JobCancelled {
			continue
		}
		jobFirst, _, _ := s.span(dep.JobID)
		preFirst, preLast, _ := s.span(dep.DependsOnJobID)
		ids := []uint{dep.JobID, dep.DependsOnJobID}
		users := append(assigned(job.job), assigned(pre.job)...)
		day := job.day

		preDay := preLast
		if dep.Type == models.DepStartToStart {
			preDay = preFirst
		}
		if preDay.After(jobFirst) {
			s.add(models.ConflictDependency, models.SeverityError, day, ids, users,
				"job %d (%s) is scheduled before its prerequisite %d (%s)",
				dep.JobID, jobFirst.Format("2006-01-02"), dep.DependsOnJobID, preDay.Format("2006-01-02"))
			continue
		}
		if preDay.Before(jobFirst) {
			continue
		}

		jStart, _, jSlotted := job.job.Slot()
		pStart, pEnd, pSlotted := pre.job.Slot()
		slotted := jSlotted && pSlotted && !job.job.IsSplit && !pre.job.IsSplit
		switch dep.Type {
		case models.DepStartToStart:
			if slotted && pStart+dep.LagMinutes > jStart {
				s.add(models.ConflictDependency, models.SeverityError, day, ids, users,
					"job %d starts at %s, before prerequisite %d starts at %s plus %d min lag",
					dep.JobID, job.job.StartTime, dep.DependsOnJobID, pre.job.StartTime, dep.LagMinutes)
			}
		default:
			switch {
			case !slotted:
				s.add(models.ConflictDependency, models.SeverityError, day, ids, users,
					"job %d and its prerequisite %d share %s without time slots to order them",
					dep.JobID, dep.DependsOnJobID, jobFirst.Format("2006-01-02"))
			case pEnd+dep.LagMinutes > jStart:
				s.add(models.ConflictDependency, models.SeverityError, day, ids, users,
					"job %d starts at %s, before prerequisite %d finishes at %s plus %d min lag",
					dep.JobID, job.job.StartTime, dep.DependsOnJobID, pre.job.EndTime, dep.LagMinutes)
			}
		}
	}
	return nil
}

func assigned(j *models.Job) []uint {
	return lo.Map(j.Assignments, func(a models.JobAssignment, _ int) uint { return a.UserID })
}
