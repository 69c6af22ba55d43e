package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/zulandar/drydock/internal/planner"
	"github.com/zulandar/drydock/internal/testutil"
)

func newRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gormDB := testutil.OpenDB(t)
	svc, err := planner.New(planner.Opts{DB: gormDB})
	require.NoError(t, err)
	return NewRouter(svc), gormDB
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestStart_NilService(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service is required")
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newRouter(t)

	w := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "drydock_conflict_scan_duration_seconds")
}

func TestPlanLifecycle(t *testing.T) {
	r, gormDB := newRouter(t)
	ana := testutil.User(t, gormDB, "Ana", "fitter", "day")

	w := do(t, r, http.MethodPost, "/api/plans", gin.H{"week_of": "2026-03-04"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode(t, w)
	planID := uint(p["ID"].(float64))
	days := p["Days"].([]any)
	require.Len(t, days, 7)
	monday := uint(days[0].(map[string]any)["ID"].(float64))

	w = do(t, r, http.MethodPost, "/api/plans", gin.H{"week_of": "2026-03-02"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/api/jobs", gin.H{"day_id": monday, "job_type": "preventive", "estimated_hours": 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	jobID := uint(decode(t, w)["ID"].(float64))

	w = do(t, r, http.MethodPost, fmt.Sprintf("/api/plans/%d/publish", planID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w), "verdict")

	w = do(t, r, http.MethodPost, fmt.Sprintf("/api/jobs/%d/assignments", jobID), gin.H{"user_id": ana.ID, "is_lead": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["allowed"])

	w = do(t, r, http.MethodPost, fmt.Sprintf("/api/plans/%d/publish", planID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	published := decode(t, w)["plan"].(map[string]any)
	assert.Equal(t, "published", published["Status"])

	w = do(t, r, http.MethodGet, fmt.Sprintf("/api/plans/%d/versions", planID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var versions []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &versions))
	assert.Len(t, versions, 1)

	w = do(t, r, http.MethodGet, fmt.Sprintf("/api/plans/%d/export?format=csv", planID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "Date,Job,Type"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}

func TestErrors(t *testing.T) {
	r, _ := newRouter(t)

	w := do(t, r, http.MethodGet, "/api/plans/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])

	w = do(t, r, http.MethodGet, "/api/plans/abc", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, "/api/plans", gin.H{"week_of": "next week"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "week_of", decode(t, w)["field"])

	w = do(t, r, http.MethodPost, "/api/plans", gin.H{"week_of": "2026-03-02"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := uint(decode(t, w)["ID"].(float64))
	w = do(t, r, http.MethodGet, fmt.Sprintf("/api/plans/%d/export?format=pdf", id), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRestrictionCheck(t *testing.T) {
	r, gormDB := newRouter(t)
	crane := testutil.Equipment(t, gormDB, "STS-1")
	ana := testutil.User(t, gormDB, "Ana", "fitter", "day")

	w := do(t, r, http.MethodPost, "/api/restrictions", gin.H{"equipment_id": crane.ID, "type": "blackout", "reason": "dry dock"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/restrictions", gin.H{"equipment_id": crane.ID, "type": "crew_size", "payload": gin.H{"min": 3, "max": 1}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodGet, fmt.Sprintf("/api/equipment/%d/check?date=2026-03-02&user_id=%d", crane.ID, ana.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["Allowed"])
}

func TestTemplatesAndCapacity(t *testing.T) {
	r, gormDB := newRouter(t)
	ana := testutil.User(t, gormDB, "Ana", "fitter", "day")
	p := testutil.Plan(t, gormDB)

	w := do(t, r, http.MethodPost, "/api/templates", gin.H{
		"name": "walkdown", "job_type": "inspection", "estimated_hours": 1,
		"checklist": []gin.H{{"question": "Guards fitted?", "required": true}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tmplID := uint(decode(t, w)["ID"].(float64))

	w = do(t, r, http.MethodPost, fmt.Sprintf("/api/templates/%d/clone", tmplID), gin.H{"name": "walkdown-2"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/jobs", gin.H{"day_id": p.Days[0].ID, "template_id": tmplID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, fmt.Sprintf("/api/capacity/check?user_id=%d&day_id=%d&hours=13", ana.ID, p.Days[0].ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["Violated"])

	w = do(t, r, http.MethodGet, fmt.Sprintf("/api/capacity/available?day_id=%d", p.Days[0].ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var avail []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &avail))
	assert.Len(t, avail, 1)

	w = do(t, r, http.MethodGet, "/api/reports/completion", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])
}

func TestCloseConflicts(t *testing.T) {
	r, gormDB := newRouter(t)
	ana := testutil.User(t, gormDB, "Ana", "planner", "day")
	p := testutil.Plan(t, gormDB)
	fixed := testutil.Conflict(t, gormDB, p.Days[0])
	accepted := testutil.Conflict(t, gormDB, p.Days[1])

	w := do(t, r, http.MethodPost, fmt.Sprintf("/api/conflicts/%d/resolve", fixed.ID), gin.H{"resolution": "moved job to Tuesday", "by": ana.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, "resolved", out["Status"])
	assert.Equal(t, "moved job to Tuesday", out["Resolution"])
	assert.Equal(t, float64(ana.ID), out["ResolvedBy"])

	w = do(t, r, http.MethodPost, fmt.Sprintf("/api/conflicts/%d/ignore", accepted.ID), gin.H{"reason": "overtime approved", "by": ana.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out = decode(t, w)
	assert.Equal(t, "ignored", out["Status"])
	assert.Equal(t, "overtime approved", out["Resolution"])

	w = do(t, r, http.MethodPost, fmt.Sprintf("/api/conflicts/%d/ignore", fixed.ID), gin.H{"reason": "again"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "status", decode(t, w)["field"])

	w = do(t, r, http.MethodPost, fmt.Sprintf("/api/conflicts/%d/resolve", accepted.ID), gin.H{"resolution": "again"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodPost, "/api/conflicts/999/resolve", gin.H{"resolution": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, fmt.Sprintf("/api/plans/%d/conflicts?status=open", p.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var open []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &open))
	assert.Empty(t, open)
}

func TestQualifiedWorkers_DefaultsToToday(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gormDB := testutil.OpenDB(t)
	afternoon := time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC)
	svc, err := planner.New(planner.Opts{DB: gormDB, Now: func() time.Time { return afternoon }})
	require.NoError(t, err)
	r := NewRouter(svc)

	ana := testutil.User(t, gormDB, "Ana", "electrician", "day")
	today := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	testutil.Skill(t, gormDB, ana, "hv_switching", &today)

	w := do(t, r, http.MethodGet, "/api/skills/qualified?skill=hv_switching", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var users []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 1, "a certificate expiring today is still valid")
	assert.Equal(t, "Ana", users[0]["Name"])

	w = do(t, r, http.MethodGet, "/api/skills/qualified?skill=hv_switching&date=2026-10-17", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Empty(t, users)
}
