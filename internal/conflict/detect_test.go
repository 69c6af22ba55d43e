package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/capacity"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/restriction"
	"github.com/zulandar/drydock/internal/testutil"
)

func depend(t *testing.T, gormDB *gorm.DB, job, on *models.Job, typ string, lag int) {
	t.Helper()
	require.NoError(t, gormDB.Create(&models.JobDependency{JobID: job.ID, DependsOnJobID: on.ID, Type: typ, LagMinutes: lag}).Error)
}

func slotted(start, end string) func(*models.Job) {
	return func(j *models.Job) { j.StartTime, j.EndTime = start, end }
}

func ofType(s *Scan, typ string) []models.Conflict {
	var out []models.Conflict
	for _, c := range s.Conflicts {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

func TestDetect_DependencyMovedEarlier(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	a := testutil.Job(t, gormDB, p.Days[0], 4)
	b := testutil.Job(t, gormDB, p.Days[1], 4)
	depend(t, gormDB, b, a, models.DepFinishToStart, 0)
	d := New(capacity.New(0))

	scan, err := d.Detect(gormDB, p.ID)
	require.NoError(t, err)
	assert.Empty(t, scan.Conflicts)
	assert.NotEmpty(t, scan.ID)

	require.NoError(t, gormDB.Model(b).Update("day_id", p.Days[0].ID).Error)
	scan, err = d.Detect(gormDB, p.ID)
	require.NoError(t, err)
	deps := ofType(scan, models.ConflictDependency)
	require.Len(t, deps, 1)
	assert.Equal(t, models.SeverityError, deps[0].Severity)
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, []uint(deps[0].AffectedJobIDs))
}

func TestDetect_DependencyPrerequisiteLater(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	a := testutil.Job(t, gormDB, p.Days[3], 4)
	b := testutil.Job(t, gormDB, p.Days[1], 4)
	depend(t, gormDB, b, a, models.DepStartToStart, 0)

	scan, err := New(nil).Detect(gormDB, p.ID)
	require.NoError(t, err)
	require.Len(t, ofType(scan, models.ConflictDependency), 1)
}

func TestDetect_SameDaySlots(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		pre, job [2]string
		lag      int
		want     int
	}{
		{"fs ordered", models.DepFinishToStart, [2]string{"08:00", "10:00"}, [2]string{"10:30", "12:00"}, 15, 0},
		{"fs lag too short", models.DepFinishToStart, [2]string{"08:00", "10:00"}, [2]string{"10:30", "12:00"}, 45, 1},
		{"fs unslotted", models.DepFinishToStart, [2]string{}, [2]string{}, 0, 1},
		{"ss overlap allowed", models.DepStartToStart, [2]string{"08:00", "12:00"}, [2]string{"09:00", "11:00"}, 30, 0},
		{"ss lag violated", models.DepStartToStart, [2]string{"08:00", "12:00"}, [2]string{"08:15", "11:00"}, 30, 1},
		{"ss unslotted", models.DepStartToStart, [2]string{}, [2]string{}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB := testutil.OpenDB(t)
			p := testutil.Plan(t, gormDB)
			pre := testutil.Job(t, gormDB, p.Days[0], 2, slotted(tt.pre[0], tt.pre[1]))
			job := testutil.Job(t, gormDB, p.Days[0], 2, slotted(tt.job[0], tt.job[1]))
			depend(t, gormDB, job, pre, tt.typ, tt.lag)

			scan, err := New(nil).Detect(gormDB, p.ID)
			require.NoError(t, err)
			assert.Len(t, ofType(scan, models.ConflictDependency), tt.want)
		})
	}
}

func TestDetect_SplitPrerequisiteUsesLastPart(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	anchor := testutil.Job(t, gormDB, p.Days[0], 8, func(j *models.Job) { j.IsSplit = true })
	testutil.Job(t, gormDB, p.Days[0], 4, func(j *models.Job) { j.SplitFromID = &anchor.ID; j.SplitPart = 1 })
	testutil.Job(t, gormDB, p.Days[2], 4, func(j *models.Job) { j.SplitFromID = &anchor.ID; j.SplitPart = 2 })
	job := testutil.Job(t, gormDB, p.Days[1], 2)
	depend(t, gormDB, job, anchor, models.DepFinishToStart, 0)

	scan, err := New(nil).Detect(gormDB, p.ID)
	require.NoError(t, err)
	require.Len(t, ofType(scan, models.ConflictDependency), 1)
}

func TestDetect_Capacity(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	over := testutil.User(t, gormDB, "Over", "fitter", "day")
	ot := testutil.User(t, gormDB, "Overtime", "fitter", "day")
	busy := testutil.User(t, gormDB, "Busy", "fitter", "day")
	fine := testutil.User(t, gormDB, "Fine", "fitter", "day")

	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[0], 7), over)
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[0], 6), over)
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[0], 5), ot)
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[0], 4), ot)
	for range 6 {
		testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[1], 1), busy)
	}
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[0], 8), fine)
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[0], 20, func(j *models.Job) { j.IsSplit = true }), fine)
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[0], 20, func(j *models.Job) { j.Status = models.JobCancelled }), fine)

	scan, err := New(nil).Detect(gormDB, p.ID)
	require.NoError(t, err)

	byUser := map[uint][]models.Conflict{}
	for _, c := range ofType(scan, models.ConflictCapacity) {
		byUser[c.AffectedUserIDs[0]] = append(byUser[c.AffectedUserIDs[0]], c)
	}
	require.Len(t, byUser[over.ID], 1)
	assert.Equal(t, models.SeverityError, byUser[over.ID][0].Severity)
	assert.Len(t, byUser[over.ID][0].AffectedJobIDs, 2)

	require.Len(t, byUser[ot.ID], 1)
	assert.Equal(t, models.SeverityWarning, byUser[ot.ID][0].Severity)
	assert.Contains(t, byUser[ot.ID][0].Description, "1.00h overtime")

	require.Len(t, byUser[busy.ID], 1)
	assert.Equal(t, models.SeverityWarning, byUser[busy.ID][0].Severity)
	assert.Contains(t, byUser[busy.ID][0].Description, "6 jobs")

	assert.Empty(t, byUser[fine.ID], "split anchors and cancelled jobs carry no load")
}

func TestDetect_Unavailable(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	away := testutil.User(t, gormDB, "Away", "fitter", "day")
	gone := testutil.User(t, gormDB, "Gone", "fitter", "day")
	require.NoError(t, gormDB.Model(gone).Update("active", false).Error)
	require.NoError(t, gormDB.Create(&models.Leave{
		UserID: away.ID, StartDate: p.Days[2].Date, EndDate: p.Days[2].Date, Status: models.LeaveApproved,
	}).Error)

	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[2], 2), away)
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[3], 2), away)
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[0], 2), gone)

	scan, err := New(nil).Detect(gormDB, p.ID)
	require.NoError(t, err)
	caps := ofType(scan, models.ConflictCapacity)
	require.Len(t, caps, 2)
	for _, c := range caps {
		assert.Equal(t, models.SeverityError, c.Severity)
	}
}

func TestDetect_SkillAgainstJobDate(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	u := testutil.User(t, gormDB, "Ana", "fitter", "day")
	expires := p.Days[1].Date
	testutil.Skill(t, gormDB, u, "hv", &expires)
	tmpl := models.Template{Name: "hv-check", JobType: models.JobInspection, EstimatedHours: 1,
		RequiredCertifications: datatypes.JSONSlice[string]{"hv"}}
	require.NoError(t, gormDB.Create(&tmpl).Error)

	ok := testutil.Job(t, gormDB, p.Days[1], 1, func(j *models.Job) { j.TemplateID = &tmpl.ID })
	late := testutil.Job(t, gormDB, p.Days[2], 1, func(j *models.Job) { j.TemplateID = &tmpl.ID })
	testutil.Assign(t, gormDB, ok, u)
	testutil.Assign(t, gormDB, late, u)

	scan, err := New(nil).Detect(gormDB, p.ID)
	require.NoError(t, err)
	skills := ofType(scan, models.ConflictSkill)
	require.Len(t, skills, 1)
	assert.Equal(t, []uint{late.ID}, []uint(skills[0].AffectedJobIDs))
}

func TestDetect_EquipmentAndOverlap(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	eq := testutil.Equipment(t, gormDB, "RTG-2")
	u := testutil.User(t, gormDB, "Ana", "fitter", "day")
	day := p.Days[0].Date
	_, err := restriction.Add(gormDB, restriction.AddOpts{EquipmentID: eq.ID, Rule: restriction.Blackout{}, StartDate: &day, EndDate: &day})
	require.NoError(t, err)

	a := testutil.Job(t, gormDB, p.Days[0], 2, slotted("08:00", "10:00"), func(j *models.Job) { j.EquipmentID = &eq.ID })
	b := testutil.Job(t, gormDB, p.Days[0], 2, slotted("09:00", "11:00"))
	c := testutil.Job(t, gormDB, p.Days[0], 1, slotted("10:00", "11:00"))
	testutil.Assign(t, gormDB, a, u)
	testutil.Assign(t, gormDB, b, u)
	testutil.Assign(t, gormDB, c, u)

	scan, err := New(nil).Detect(gormDB, p.ID)
	require.NoError(t, err)

	eqs := ofType(scan, models.ConflictEquipment)
	require.Len(t, eqs, 1)
	assert.Equal(t, models.SeverityError, eqs[0].Severity)

	overlaps := ofType(scan, models.ConflictOverlap)
	require.Len(t, overlaps, 2, "a/b and b/c overlap, a/c only touch")
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, []uint(overlaps[0].AffectedJobIDs))
}

func TestDetect_IdempotentAndKeepsHistory(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	u := testutil.User(t, gormDB, "Ana", "fitter", "day")
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[0], 13), u)
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[1], 9), u)
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[2], 10), u)
	d := New(nil)

	first, err := d.Detect(gormDB, p.ID)
	require.NoError(t, err)
	require.Len(t, first.Conflicts, 3)
	second, err := d.Detect(gormDB, p.ID)
	require.NoError(t, err)
	require.Len(t, second.Conflicts, 3)
	for i := range first.Conflicts {
		assert.Equal(t, fingerprint(&first.Conflicts[i]), fingerprint(&second.Conflicts[i]))
	}
	open, err := List(gormDB, p.ID, ListFilters{Status: models.ConflictOpen})
	require.NoError(t, err)
	assert.Len(t, open, 3, "stale open conflicts are cleared")
	assert.Equal(t, models.SeverityError, open[0].Severity)

	_, err = Resolve(gormDB, second.Conflicts[0].ID, "moved work", 1, time.Now())
	require.NoError(t, err)
	_, err = Ignore(gormDB, second.Conflicts[1].ID, "accepted overtime", 1, time.Now())
	require.NoError(t, err)

	third, err := d.Detect(gormDB, p.ID)
	require.NoError(t, err)
	assert.Len(t, third.Conflicts, 2, "the resolved finding still exists, the ignored one is suppressed")
	assert.Equal(t, 1, third.Suppressed)

	all, err := List(gormDB, p.ID, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	summary, err := Summary(gormDB, p.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, summary)
}

func TestResolveIgnore_Errors(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	u := testutil.User(t, gormDB, "Ana", "fitter", "day")
	testutil.Assign(t, gormDB, testutil.Job(t, gormDB, p.Days[0], 13), u)

	scan, err := New(nil).Detect(gormDB, p.ID)
	require.NoError(t, err)
	require.Len(t, scan.Conflicts, 1)
	id := scan.Conflicts[0].ID

	resolved, err := Resolve(gormDB, id, "fixed", 7, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.ConflictResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)

	_, err = Ignore(gormDB, id, "", 7, time.Now())
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = Resolve(gormDB, 999, "", 7, time.Now())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = New(nil).Detect(gormDB, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
