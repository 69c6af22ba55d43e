package skill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/models"
	"github.com/zulandar/drydock/internal/testutil"
)

func templated(t *testing.T, gormDB *gorm.DB, certs ...string) *models.Template {
	t.Helper()
	tmpl := models.Template{
		Name:                   "crane-service",
		JobType:                models.JobPreventive,
		EstimatedHours:         4,
		RequiredCertifications: datatypes.JSONSlice[string](certs),
	}
	require.NoError(t, gormDB.Create(&tmpl).Error)
	return &tmpl
}

func TestAddAndVerify(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	u := testutil.User(t, gormDB, "Ana", "fitter", "day")

	s, err := Add(gormDB, AddOpts{UserID: u.ID, SkillName: "welding"})
	require.NoError(t, err)
	assert.False(t, s.Verified)
	assert.Equal(t, 1, s.Level)

	held, err := ValidSkills(gormDB, u.ID, testutil.Monday)
	require.NoError(t, err)
	assert.Empty(t, held, "unverified skills do not count")

	now := testutil.Monday
	s, err = Verify(gormDB, s.ID, 42, now)
	require.NoError(t, err)
	assert.True(t, s.Verified)
	require.NotNil(t, s.VerifiedBy)
	assert.Equal(t, uint(42), *s.VerifiedBy)

	held, err = ValidSkills(gormDB, u.ID, testutil.Monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"welding"}, held)

	all, err := ListForUser(gormDB, u.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAdd_Errors(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	u := testutil.User(t, gormDB, "Ana", "fitter", "day")

	_, err := Add(gormDB, AddOpts{UserID: u.ID})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = Add(gormDB, AddOpts{UserID: 999, SkillName: "welding"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	issued := testutil.Monday
	expires := issued.AddDate(0, 0, -1)
	_, err = Add(gormDB, AddOpts{UserID: u.ID, SkillName: "welding", IssuedAt: &issued, ExpiresAt: &expires})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = Verify(gormDB, 999, 1, time.Now())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCheckRequirements(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	u := testutil.User(t, gormDB, "Ana", "fitter", "day")
	tmpl := templated(t, gormDB, "welding", "rigging", "crane")
	job := testutil.Job(t, gormDB, p.Days[0], 4, func(j *models.Job) { j.TemplateID = &tmpl.ID })

	expired := testutil.Monday.AddDate(0, 0, -1)
	lastDay := testutil.Monday
	testutil.Skill(t, gormDB, u, "welding", nil)
	testutil.Skill(t, gormDB, u, "rigging", &expired)
	testutil.Skill(t, gormDB, u, "crane", &lastDay)

	missing, err := CheckRequirements(gormDB, job.ID, u.ID, testutil.Monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"rigging"}, missing, "expiry on the day itself still counts")

	missing, err = CheckRequirements(gormDB, job.ID, u.ID, testutil.Monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"rigging", "crane"}, missing)
}

func TestCheckRequirements_NoTemplate(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	p := testutil.Plan(t, gormDB)
	u := testutil.User(t, gormDB, "Ana", "fitter", "day")
	job := testutil.Job(t, gormDB, p.Days[0], 4)

	missing, err := CheckRequirements(gormDB, job.ID, u.ID, testutil.Monday)
	require.NoError(t, err)
	assert.Empty(t, missing)

	orphan := uint(999)
	job2 := testutil.Job(t, gormDB, p.Days[0], 4, func(j *models.Job) { j.TemplateID = &orphan })
	missing, err = CheckRequirements(gormDB, job2.ID, u.ID, testutil.Monday)
	require.NoError(t, err)
	assert.Empty(t, missing, "deleted template requires nothing")

	_, err = CheckRequirements(gormDB, 999, u.ID, testutil.Monday)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = CheckRequirements(gormDB, job.ID, 999, testutil.Monday)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestQualifiedWorkers(t *testing.T) {
	gormDB := testutil.OpenDB(t)
	both := testutil.User(t, gormDB, "Both", "fitter", "day")
	one := testutil.User(t, gormDB, "One", "fitter", "day")
	idle := testutil.User(t, gormDB, "Idle", "fitter", "day")
	require.NoError(t, gormDB.Model(idle).Update("active", false).Error)

	testutil.Skill(t, gormDB, both, "welding", nil)
	testutil.Skill(t, gormDB, both, "rigging", nil)
	testutil.Skill(t, gormDB, one, "welding", nil)
	testutil.Skill(t, gormDB, idle, "welding", nil)
	testutil.Skill(t, gormDB, idle, "rigging", nil)

	all, err := QualifiedWorkers(gormDB, nil, testutil.Monday)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	welders, err := QualifiedWorkers(gormDB, []string{"welding"}, testutil.Monday)
	require.NoError(t, err)
	assert.Len(t, welders, 2)

	pairs, err := QualifiedWorkers(gormDB, []string{"welding", "rigging"}, testutil.Monday)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, both.ID, pairs[0].ID)
}

func TestMissing(t *testing.T) {
	assert.Empty(t, Missing(nil, []string{"a"}))
	assert.Equal(t, []string{"b"}, Missing([]string{"a", "b", "b"}, []string{"a"}))
}
