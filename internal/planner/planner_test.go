package planner

import (
	"context"
	"sync"
	"time"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/dependency"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/notify"
	"github.com/zulandar/drydock/internal/plan"
	"github.com/zulandar/drydock/internal/split"
	"github.com/zulandar/drydock/internal/testutil"
	"github.com/zulandar/drydock/internal/version"
)

type recordSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordSink) Name() string { return "record" }

func (r *recordSink) Send(_ context.Context, evt notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordSink) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func newService(t *testing.T) (*Service, *gorm.DB, *recordSink) {
	t.Helper()
	gormDB := testutil.OpenDB(t)
	sink := &recordSink{}
	svc, err := New(Opts{DB: gormDB, Notifier: notify.NewDispatcher(sink)})
	require.NoError(t, err)
	return svc, gormDB, sink
}

func validatedAt(t *testing.T, gormDB *gorm.DB, planID uint) bool {
	t.Helper()
	p, err := plan.Get(gormDB, planID)
	require.NoError(t, err)
	return p.ValidatedAt != nil
}

func TestNew_RequiresDB(t *testing.T) {
	_, err := New(Opts{})
	assert.Error(t, err)
}

func TestPublishFlow(t *testing.T) {
	svc, gormDB, sink := newService(t)
	ctx := context.Background()
	ana := testutil.User(t, gormDB, "Ana", "fitter", "day")

	p, err := svc.CreatePlan(ctx, testutil.Monday.AddDate(0, 0, 3), "")
	require.NoError(t, err)
	assert.Equal(t, testutil.Monday, p.WeekStart.UTC())

	job, err := svc.AddJob(ctx, plan.AddJobOpts{DayID: p.Days[0].ID, JobType: models.JobPreventive, EstimatedHours: 4})
	require.NoError(t, err)

	_, verdict, err := svc.Publish(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBusiness))
	require.NotNil(t, verdict)
	assert.False(t, verdict.Valid)

	check, err := svc.Assign(ctx, job.ID, ana.ID, true)
	require.NoError(t, err)
	assert.True(t, check.Allowed)

	verdict, err = svc.ValidatePlan(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
	assert.True(t, validatedAt(t, gormDB, p.ID))

	_, err = svc.SetSlot(ctx, job.ID, "08:00", "12:00")
	require.NoError(t, err)
	assert.False(t, validatedAt(t, gormDB, p.ID), "structural change clears the stamp")

	published, verdict, err := svc.Publish(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
	assert.Equal(t, models.PlanPublished, published.Status)

	versions, err := version.List(gormDB, p.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, version.ChangePublish, versions[0].ChangeType)

	svc.Notifier.Wait()
	assert.Contains(t, sink.kinds(), notify.KindPublished)
}

func TestFailedMutationKeepsStamp(t *testing.T) {
	svc, gormDB, _ := newService(t)
	ctx := context.Background()
	ana := testutil.User(t, gormDB, "Ana", "fitter", "day")
	p, err := svc.CreatePlan(ctx, testutil.Monday, "")
	require.NoError(t, err)
	job, err := svc.AddJob(ctx, plan.AddJobOpts{DayID: p.Days[0].ID, JobType: models.JobDefect, EstimatedHours: 2})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, job.ID, ana.ID, false)
	require.NoError(t, err)
	_, err = svc.ValidatePlan(ctx, p.ID)
	require.NoError(t, err)

	_, err = svc.SetSlot(ctx, job.ID, "12:00", "08:00")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.True(t, validatedAt(t, gormDB, p.ID), "rolled back with the failed change")
}

func TestDetectConflicts_NotifiesErrors(t *testing.T) {
	svc, gormDB, sink := newService(t)
	ctx := context.Background()
	ana := testutil.User(t, gormDB, "Ana", "fitter", "day")
	p, err := svc.CreatePlan(ctx, testutil.Monday, "")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		job, err := svc.AddJob(ctx, plan.AddJobOpts{DayID: p.Days[1].ID, JobType: models.JobPreventive, EstimatedHours: 7})
		require.NoError(t, err)
		_, err = svc.Assign(ctx, job.ID, ana.ID, false)
		require.NoError(t, err)
	}

	scan, err := svc.DetectConflicts(ctx, p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, scan.Errors())
	assert.Equal(t, models.ConflictCapacity, scan.Errors()[0].Type)

	svc.Notifier.Wait()
	assert.Equal(t, []string{notify.KindScanErrors}, sink.kinds())
}

func TestAssign_ReportsProblems(t *testing.T) {
	svc, gormDB, _ := newService(t)
	ctx := context.Background()
	ana := testutil.User(t, gormDB, "Ana", "fitter", "day")
	p, err := svc.CreatePlan(ctx, testutil.Monday, "")
	require.NoError(t, err)

	first, err := svc.AddJob(ctx, plan.AddJobOpts{DayID: p.Days[0].ID, JobType: models.JobPreventive, EstimatedHours: 7})
	require.NoError(t, err)
	second, err := svc.AddJob(ctx, plan.AddJobOpts{DayID: p.Days[0].ID, JobType: models.JobPreventive, EstimatedHours: 7})
	require.NoError(t, err)
	_, err = svc.Assign(ctx, first.ID, ana.ID, false)
	require.NoError(t, err)

	check, err := svc.Assign(ctx, second.ID, ana.ID, false)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	require.NotNil(t, check.Capacity)
	assert.True(t, check.Capacity.Violated)

	_, err = svc.Assign(ctx, second.ID, ana.ID, false)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestSplitMergeAndDependencies(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, err := svc.CreatePlan(ctx, testutil.Monday, "")
	require.NoError(t, err)

	prep, err := svc.AddJob(ctx, plan.AddJobOpts{DayID: p.Days[0].ID, JobType: models.JobInspection, EstimatedHours: 1})
	require.NoError(t, err)
	overhaul, err := svc.AddJob(ctx, plan.AddJobOpts{DayID: p.Days[1].ID, JobType: models.JobPreventive, EstimatedHours: 10})
	require.NoError(t, err)

	_, err = svc.AddDependency(ctx, dependency.AddOpts{JobID: overhaul.ID, DependsOn: prep.ID})
	require.NoError(t, err)
	_, err = svc.AddDependency(ctx, dependency.AddOpts{JobID: prep.ID, DependsOn: overhaul.ID})
	require.Error(t, err)

	parts, err := svc.Split(ctx, overhaul.ID, []split.Part{{DayID: p.Days[1].ID, Hours: 6}, {DayID: p.Days[2].ID, Hours: 4}})
	require.NoError(t, err)
	assert.Len(t, parts, 2)

	merged, err := svc.Merge(ctx, overhaul.ID)
	require.NoError(t, err)
	assert.False(t, merged.IsSplit)
	assert.Equal(t, 10.0, merged.EstimatedHours)

	require.NoError(t, svc.RemoveDependency(ctx, overhaul.ID, prep.ID))
	require.NoError(t, svc.RemoveJob(ctx, prep.ID))
}

func TestRestoreVersion(t *testing.T) {
	svc, gormDB, sink := newService(t)
	ctx := context.Background()
	p, err := svc.CreatePlan(ctx, testutil.Monday, "")
	require.NoError(t, err)
	_, err = svc.AddJob(ctx, plan.AddJobOpts{DayID: p.Days[0].ID, JobType: models.JobPreventive, EstimatedHours: 3})
	require.NoError(t, err)

	v1, err := svc.CreateVersion(ctx, p.ID, "baseline")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)

	_, err = svc.AddJob(ctx, plan.AddJobOpts{DayID: p.Days[2].ID, JobType: models.JobDefect, EstimatedHours: 2})
	require.NoError(t, err)

	restored, err := svc.RestoreVersion(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, version.ChangeRestore, restored.ChangeType)

	var count int64
	require.NoError(t, gormDB.Model(&models.Job{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	svc.Notifier.Wait()
	assert.Contains(t, sink.kinds(), notify.KindRestored)
}

func TestJobProgress(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, err := svc.CreatePlan(ctx, testutil.Monday, "")
	require.NoError(t, err)
	job, err := svc.AddJob(ctx, plan.AddJobOpts{DayID: p.Days[0].ID, JobType: models.JobPreventive, EstimatedHours: 3})
	require.NoError(t, err)

	started, err := svc.StartJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobInProgress, started.Status)

	completed, err := svc.CompleteJob(ctx, job.ID, 3.5)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, completed.Status)
	require.NotNil(t, completed.ActualHours)
	assert.Equal(t, 3.5, *completed.ActualHours)

	_, err = svc.CancelJob(ctx, job.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.StartJob(ctx, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestArchiveElapsed(t *testing.T) {
	svc, gormDB, _ := newService(t)
	ctx := context.Background()
	p, err := svc.CreatePlan(ctx, testutil.Monday, "")
	require.NoError(t, err)

	svc.Now = func() time.Time { return testutil.Monday.AddDate(0, 0, 8) }
	n, err := svc.ArchiveElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := plan.Get(gormDB, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanArchived, got.Status)
}

func TestCloseConflict_HoldsPlanLock(t *testing.T) {
	svc, gormDB, _ := newService(t)
	ctx := context.Background()
	p := testutil.Plan(t, gormDB)
	fixed := testutil.Conflict(t, gormDB, p.Days[0])
	accepted := testutil.Conflict(t, gormDB, p.Days[1])

	unlock, err := svc.Locker.Lock(ctx, p.ID)
	require.NoError(t, err)
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = svc.ResolveConflict(short, fixed.ID, "moved", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	unlock()

	got, err := svc.ResolveConflict(ctx, fixed.ID, "moved", 0)
	require.NoError(t, err)
	assert.Equal(t, models.ConflictResolved, got.Status)

	got, err = svc.IgnoreConflict(ctx, accepted.ID, "accepted", 0)
	require.NoError(t, err)
	assert.Equal(t, models.ConflictIgnored, got.Status)

	_, err = svc.IgnoreConflict(ctx, fixed.ID, "again", 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.ResolveConflict(ctx, 999, "x", 0)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
