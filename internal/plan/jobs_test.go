package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/testutil"
)

func TestAddJob(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	eq := testutil.Equipment(t, gormDB, "STS-04")

	job, err := AddJob(gormDB, AddJobOpts{
		DayID: p.Days[0].ID, JobType: models.JobDefect, EquipmentID: &eq.ID,
		EstimatedHours: 3, StartTime: "08:00", EndTime: "11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "normal", job.Priority)
	assert.Equal(t, models.JobPending, job.Status)

	tests := []struct {
		name string
		opts AddJobOpts
		kind apperr.Kind
	}{
		{"bad type", AddJobOpts{DayID: p.Days[0].ID, JobType: "repaint", EstimatedHours: 1}, apperr.KindValidation},
		{"no hours", AddJobOpts{DayID: p.Days[0].ID, JobType: models.JobDefect}, apperr.KindValidation},
		{"half slot", AddJobOpts{DayID: p.Days[0].ID, JobType: models.JobDefect, EstimatedHours: 1, StartTime: "08:00"}, apperr.KindValidation},
		{"reversed slot", AddJobOpts{DayID: p.Days[0].ID, JobType: models.JobDefect, EstimatedHours: 1, StartTime: "10:00", EndTime: "09:00"}, apperr.KindValidation},
		{"missing day", AddJobOpts{DayID: 999, JobType: models.JobDefect, EstimatedHours: 1}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AddJob(gormDB, tt.opts)
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestMoveJob(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	job := testutil.Job(t, gormDB, p.Days[0], 2)

	moved, err := MoveJob(gormDB, job.ID, p.Days[3].ID)
	require.NoError(t, err)
	assert.Equal(t, p.Days[3].ID, moved.DayID)

	other, err := Create(gormDB, testutil.Monday.AddDate(0, 0, 14), "")
	require.NoError(t, err)
	_, err = MoveJob(gormDB, job.ID, other.Days[0].ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	anchor := testutil.Job(t, gormDB, p.Days[0], 2, func(j *models.Job) { j.IsSplit = true })
	_, err = MoveJob(gormDB, anchor.ID, p.Days[1].ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAssignUnassign(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	job := testutil.Job(t, gormDB, p.Days[0], 2)
	u := testutil.User(t, gormDB, "Ana", "fitter", "day")

	_, err := Assign(gormDB, job.ID, u.ID, true)
	require.NoError(t, err)
	_, err = Assign(gormDB, job.ID, u.ID, false)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = Assign(gormDB, job.ID, 999, false)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	got, err := GetJob(gormDB, job.ID)
	require.NoError(t, err)
	require.Len(t, got.Assignments, 1)
	assert.True(t, got.Assignments[0].IsLead)

	require.NoError(t, Unassign(gormDB, job.ID, u.ID))
	assert.True(t, apperr.Is(Unassign(gormDB, job.ID, u.ID), apperr.KindNotFound))
}

func TestSlotMaterialAndStatus(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	job := testutil.Job(t, gormDB, p.Days[0], 2)
	mat := models.Material{Code: "OIL-5", Name: "hydraulic oil", Unit: "l"}
	require.NoError(t, gormDB.Create(&mat).Error)

	slotted, err := SetSlot(gormDB, job.ID, "07:00", "09:00")
	require.NoError(t, err)
	assert.True(t, slotted.HasSlot())
	cleared, err := SetSlot(gormDB, job.ID, "", "")
	require.NoError(t, err)
	assert.False(t, cleared.HasSlot())

	_, err = AddMaterial(gormDB, job.ID, mat.ID, 5)
	require.NoError(t, err)
	_, err = AddMaterial(gormDB, job.ID, mat.ID, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = AddMaterial(gormDB, job.ID, 999, 1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	started, err := Start(gormDB, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobInProgress, started.Status)

	done, err := Complete(gormDB, job.ID, 2.5, testutil.Monday)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, done.Status)
	require.NotNil(t, done.ActualHours)
	assert.Equal(t, 2.5, *done.ActualHours)

	_, err = Complete(gormDB, job.ID, 1, testutil.Monday)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = Cancel(gormDB, job.ID)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRemoveJob(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	a := testutil.Job(t, gormDB, p.Days[0], 2)
	b := testutil.Job(t, gormDB, p.Days[1], 2)
	u := testutil.User(t, gormDB, "Ana", "fitter", "day")
	testutil.Assign(t, gormDB, a, u)
	require.NoError(t, gormDB.Create(&models.JobDependency{JobID: b.ID, DependsOnJobID: a.ID, Type: models.DepFinishToStart}).Error)

	require.NoError(t, RemoveJob(gormDB, a.ID))

	var n int64
	require.NoError(t, gormDB.Model(&models.JobAssignment{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, gormDB.Model(&models.JobDependency{}).Count(&n).Error)
	assert.Zero(t, n)
	_, err := GetJob(gormDB, a.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
