package version

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/plan"
	"github.com/zulandar/drydock/internal/testutil"
)

type fixture struct {
	plan       *models.Plan
	a, b, c    *models.Job
	ana, boris *models.User
}

func seed(t *testing.T, gormDB *gorm.DB) fixture {
	t.Helper()
	p := testutil.Plan(t, gormDB)
	f := fixture{plan: p}
	f.ana = testutil.User(t, gormDB, "Ana", "fitter", "day")
	f.boris = testutil.User(t, gormDB, "Boris", "fitter", "day")
	f.a = testutil.Job(t, gormDB, p.Days[0], 4, func(j *models.Job) { j.Berth = "B1" })
	f.b = testutil.Job(t, gormDB, p.Days[1], 3, func(j *models.Job) { j.StartTime, j.EndTime = "08:00", "11:00" })
	f.c = testutil.Job(t, gormDB, p.Days[2], 2)
	testutil.Assign(t, gormDB, f.a, f.ana)
	testutil.Assign(t, gormDB, f.b, f.boris)
	require.NoError(t, gormDB.Create(&models.JobMaterial{JobID: f.a.ID, MaterialID: 7, Quantity: 2.5}).Error)
	require.NoError(t, gormDB.Create(&models.JobDependency{JobID: f.b.ID, DependsOnJobID: f.a.ID, Type: models.DepFinishToStart}).Error)
	return f
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestCreate_Monotonic(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	f := seed(t, gormDB)

	for want := 1; want <= 3; want++ {
		v, err := Create(gormDB, f.plan.ID, "", "")
		require.NoError(t, err)
		assert.Equal(t, want, v.VersionNumber)
		assert.Equal(t, ChangeManual, v.ChangeType)
		assert.Equal(t, SchemaV1, v.SchemaVersion)
	}

	list, err := List(gormDB, f.plan.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 3, list[0].VersionNumber)

	_, err = Create(gormDB, 999, "", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSnapshot_Contents(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	f := seed(t, gormDB)

	_, err := Create(gormDB, f.plan.ID, ChangeManual, "baseline")
	require.NoError(t, err)
	snap, err := Snapshot(gormDB, f.plan.ID, 1)
	require.NoError(t, err)

	require.Len(t, snap.Days, 7)
	require.Len(t, snap.Days[0].Jobs, 1)
	ja := snap.Days[0].Jobs[0]
	assert.Equal(t, f.a.ID, ja.ID)
	assert.Equal(t, "B1", ja.Berth)
	assert.Equal(t, []AssignmentSnapshot{{UserID: f.ana.ID}}, ja.Assignments)
	assert.Equal(t, []MaterialSnapshot{{MaterialID: 7, Quantity: 2.5}}, ja.Materials)
	assert.Equal(t, []DependencySnapshot{{JobID: f.b.ID, DependsOnJobID: f.a.ID, Type: models.DepFinishToStart}}, snap.Dependencies)

	_, err = Snapshot(gormDB, f.plan.ID, 9)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDecode_Schema(t *testing.T) {
	_, err := Decode([]byte(`{"schema":2,"days":[]}`))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = Decode([]byte(`{"days":[]}`))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = Decode([]byte(`not json`))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	s, err := Decode([]byte(`{"schema":1,"plan_id":4,"days":[]}`))
	require.NoError(t, err)
	assert.Equal(t, uint(4), s.PlanID)
}

func mutate(t *testing.T, gormDB *gorm.DB, f fixture) *models.Job {
	t.Helper()
	require.NoError(t, gormDB.Model(&models.Job{}).Where("id = ?", f.a.ID).Update("berth", "B9").Error)
	require.NoError(t, gormDB.Model(&models.Job{}).Where("id = ?", f.b.ID).Update("day_id", f.plan.Days[4].ID).Error)
	testutil.Assign(t, gormDB, f.a, f.boris)
	require.NoError(t, gormDB.Where("job_id = ? AND user_id = ?", f.b.ID, f.boris.ID).Delete(&models.JobAssignment{}).Error)
	require.NoError(t, gormDB.Where("job_id = ?", f.c.ID).Delete(&models.JobAssignment{}).Error)
	require.NoError(t, gormDB.Delete(&models.Job{}, f.c.ID).Error)
	return testutil.Job(t, gormDB, f.plan.Days[5], 1)
}

func TestCompare(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	f := seed(t, gormDB)
	_, err := Create(gormDB, f.plan.ID, "", "before")
	require.NoError(t, err)
	added := mutate(t, gormDB, f)
	_, err = Create(gormDB, f.plan.ID, "", "after")
	require.NoError(t, err)

	d, err := Compare(gormDB, f.plan.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, d.Added, 1)
	assert.Equal(t, added.ID, d.Added[0].ID)
	require.Len(t, d.Removed, 1)
	assert.Equal(t, f.c.ID, d.Removed[0].ID)
	require.Len(t, d.Changed, 2)

	ca := d.Changed[0]
	assert.Equal(t, f.a.ID, ca.JobID)
	assert.Equal(t, []FieldChange{{Field: "berth", From: "B1", To: "B9"}}, ca.Fields)
	assert.Equal(t, []uint{f.boris.ID}, ca.AddedUsers)
	assert.Empty(t, ca.RemovedUsers)

	cb := d.Changed[1]
	assert.Equal(t, f.b.ID, cb.JobID)
	require.Len(t, cb.Fields, 1)
	assert.Equal(t, "date", cb.Fields[0].Field)
	assert.Equal(t, []uint{f.boris.ID}, cb.RemovedUsers)

	same, err := Compare(gormDB, f.plan.ID, 2, 2)
	require.NoError(t, err)
	assert.Empty(t, same.Added)
	assert.Empty(t, same.Removed)
	assert.Empty(t, same.Changed)
}

func TestRestore_RoundTrip(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	f := seed(t, gormDB)
	_, err := Create(gormDB, f.plan.ID, "", "baseline")
	require.NoError(t, err)
	mutate(t, gormDB, f)

	restored, err := Restore(gormDB, f.plan.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.VersionNumber)
	assert.Equal(t, ChangeRestore, restored.ChangeType)

	pre, err := Get(gormDB, f.plan.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, ChangePreRestore, pre.ChangeType)

	after, err := Create(gormDB, f.plan.ID, "", "check")
	require.NoError(t, err)
	assert.Equal(t, 4, after.VersionNumber)

	want, err := Snapshot(gormDB, f.plan.ID, 1)
	require.NoError(t, err)
	got, err := Decode(after.Snapshot)
	require.NoError(t, err)
	assert.JSONEq(t, mustJSON(t, want.Days), mustJSON(t, got.Days))
	assert.JSONEq(t, mustJSON(t, want.Dependencies), mustJSON(t, got.Dependencies))

	var deps []models.JobDependency
	require.NoError(t, gormDB.Find(&deps).Error)
	require.Len(t, deps, 1)
	assert.Equal(t, f.b.ID, deps[0].JobID)
}

func TestRestore_RemapsTakenIDs(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	f := seed(t, gormDB)
	_, err := Create(gormDB, f.plan.ID, "", "")
	require.NoError(t, err)

	// Job a is deleted and its ID is then held by a job in another plan.
	require.NoError(t, gormDB.Where("job_id = ? OR depends_on_job_id = ?", f.a.ID, f.a.ID).Delete(&models.JobDependency{}).Error)
	require.NoError(t, gormDB.Where("job_id = ?", f.a.ID).Delete(&models.JobAssignment{}).Error)
	require.NoError(t, gormDB.Delete(&models.Job{}, f.a.ID).Error)
	other, err := plan.Create(gormDB, testutil.Monday.AddDate(0, 0, 7), "")
	require.NoError(t, err)
	squatter := models.Job{ID: f.a.ID, DayID: other.Days[0].ID, JobType: models.JobDefect, EstimatedHours: 1, Status: models.JobPending}
	require.NoError(t, gormDB.Create(&squatter).Error)

	_, err = Restore(gormDB, f.plan.ID, 1)
	require.NoError(t, err)

	var deps []models.JobDependency
	require.NoError(t, gormDB.Find(&deps).Error)
	require.Len(t, deps, 1)
	assert.NotEqual(t, f.a.ID, deps[0].DependsOnJobID)

	var remapped models.Job
	require.NoError(t, gormDB.Preload("Assignments").First(&remapped, deps[0].DependsOnJobID).Error)
	assert.Equal(t, "B1", remapped.Berth)
	assert.Equal(t, f.plan.Days[0].ID, remapped.DayID)
	require.Len(t, remapped.Assignments, 1)

	var kept models.Job
	require.NoError(t, gormDB.First(&kept, f.a.ID).Error)
	assert.Equal(t, other.Days[0].ID, kept.DayID, "the other plan's job is untouched")
}

func TestRestore_SplitParts(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	anchor := testutil.Job(t, gormDB, p.Days[0], 4, func(j *models.Job) { j.IsSplit = true })
	part := testutil.Job(t, gormDB, p.Days[1], 2, func(j *models.Job) { j.SplitFromID = &anchor.ID; j.SplitPart = 1 })
	_, err := Create(gormDB, p.ID, "", "")
	require.NoError(t, err)

	_, err = Restore(gormDB, p.ID, 1)
	require.NoError(t, err)

	var got models.Job
	require.NoError(t, gormDB.First(&got, part.ID).Error)
	require.NotNil(t, got.SplitFromID)
	assert.Equal(t, anchor.ID, *got.SplitFromID)
}
