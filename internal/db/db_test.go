package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/drydock/internal/config"
	"github.com/zulandar/drydock/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		user string
		pass string
		host string
		port int
		db   string
		want string
	}{
		{"no password", "root", "", "127.0.0.1", 3306, "drydock", "root@tcp(127.0.0.1:3306)/drydock?parseTime=true"},
		{"with password", "planner", "s3cret", "db.internal", 3307, "port_ops", "planner:s3cret@tcp(db.internal:3307)/port_ops?parseTime=true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DSN(tt.user, tt.pass, tt.host, tt.port, tt.db))
		})
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestAutoMigrate_Memory(t *testing.T) {
	gormDB, err := ConnectMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(gormDB))

	for _, m := range AllModels() {
		assert.True(t, gormDB.Migrator().HasTable(m), "missing table for %T", m)
	}
}

func TestSeedCapacity_Upserts(t *testing.T) {
	gormDB, err := ConnectMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(gormDB))

	cc := config.CapacityConfig{
		Default: config.CapacityRule{MaxHoursPerDay: 8, OvertimeThresholdHours: 8, MaxOvertimeHours: 4, MaxJobsPerDay: 5},
		Rules:   []config.CapacityRule{{Role: "welder", MaxHoursPerDay: 6, OvertimeThresholdHours: 6, MaxJobsPerDay: 3}},
	}
	require.NoError(t, SeedCapacity(gormDB, cc))

	cc.Rules[0].MaxHoursPerDay = 7
	require.NoError(t, SeedCapacity(gormDB, cc))

	var rows []models.CapacityConfig
	require.NoError(t, gormDB.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[0].Role)
	assert.Equal(t, "welder", rows[1].Role)
	assert.Equal(t, 7.0, rows[1].MaxHoursPerDay)
}

const directoryYAML = `
users:
  - {id: 1, name: Ana, role: fitter, shift: day}
  - {id: 2, name: Ben, role: electrician, shift: night, active: false}
equipment:
  - {id: 10, name: STS Crane 4, type: crane}
materials:
  - {id: 100, code: GR-2, name: Grease, unit: kg}
leaves:
  - {user_id: 1, start: 2026-03-02, end: 2026-03-03}
skills:
  - {user_id: 1, name: hv_switching, expires: 2027-01-01}
`

func TestSeedDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(directoryYAML), 0o644))

	dir, err := LoadDirectory(path)
	require.NoError(t, err)

	gormDB, err := ConnectMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(gormDB))
	require.NoError(t, SeedDirectory(gormDB, dir))

	var ben models.User
	require.NoError(t, gormDB.First(&ben, 2).Error)
	assert.False(t, ben.Active)

	var ana models.User
	require.NoError(t, gormDB.First(&ana, 1).Error)
	assert.True(t, ana.Active)

	var leave models.Leave
	require.NoError(t, gormDB.Where("user_id = ?", 1).First(&leave).Error)
	assert.Equal(t, models.LeaveApproved, leave.Status)

	var skill models.WorkerSkill
	require.NoError(t, gormDB.Where("user_id = ?", 1).First(&skill).Error)
	assert.True(t, skill.Verified)
	require.NotNil(t, skill.ExpiresAt)

	var crane models.Equipment
	require.NoError(t, gormDB.First(&crane, 10).Error)
	assert.Equal(t, "STS Crane 4", crane.Name)

	var grease models.Material
	require.NoError(t, gormDB.First(&grease, 100).Error)
	assert.Equal(t, "GR-2", grease.Code)

	again := &Directory{Equipment: []models.Equipment{{ID: 10, Name: "STS Crane 4B", Type: "crane"}}}
	require.NoError(t, SeedDirectory(gormDB, again), "seeding again updates in place")
	require.NoError(t, gormDB.First(&crane, 10).Error)
	assert.Equal(t, "STS Crane 4B", crane.Name)
	var count int64
	require.NoError(t, gormDB.Model(&models.Equipment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLoadDirectory_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users: [oops"), 0o644))

	_, err := LoadDirectory(path)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parse directory"))
}
