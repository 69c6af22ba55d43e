package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/conflict"
	"github.com/zulandar/drydock/internal/export"
	"github.com/zulandar/drydock/internal/plan"
	"github.com/zulandar/drydock/internal/version"
)

type createPlanRequest struct {
	WeekOf string `json:"week_of"`
	Notes  string `json:"notes"`
}

func (h *handlers) createPlan(c *gin.Context) {
	var req createPlanRequest
	if !bind(c, &req) {
		return
	}
	weekOf, err := time.Parse(time.DateOnly, req.WeekOf)
	if err != nil {
		fail(c, apperr.Validation("week_of must be a YYYY-MM-DD date").WithField("week_of"))
		return
	}
	p, err := h.svc.CreatePlan(c.Request.Context(), weekOf, req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, p)
}

func (h *handlers) listPlans(c *gin.Context) {
	plans, err := plan.List(h.svc.DB, c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, plans)
}

func (h *handlers) getPlan(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	p, err := plan.GetTree(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

func (h *handlers) publishPlan(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	p, verdict, err := h.svc.Publish(c.Request.Context(), id)
	if err != nil {
		if verdict != nil && apperr.Is(err, apperr.KindBusiness) {
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"code": "UNSUPPORTED", "message": err.Error(), "verdict": verdict})
			return
		}
		fail(c, err)
		return
	}
	ok(c, gin.H{"plan": p, "verdict": verdict})
}

func (h *handlers) archivePlan(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	p, err := h.svc.Archive(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

func (h *handlers) validatePlan(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	v, err := h.svc.ValidatePlan(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

func (h *handlers) scanPlan(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	scan, err := h.svc.DetectConflicts(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		"scan_id":    scan.ID,
		"errors":     scan.Errors(),
		"warnings":   scan.Warnings(),
		"suppressed": scan.Suppressed,
		"took_ms":    scan.Duration.Milliseconds(),
	})
}

func (h *handlers) listConflicts(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	dayID, valid := uintQuery(c, "day_id")
	if !valid {
		return
	}
	out, err := conflict.List(h.svc.DB, id, conflict.ListFilters{
		Status:   c.Query("status"),
		Type:     c.Query("type"),
		Severity: c.Query("severity"),
		DayID:    dayID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *handlers) conflictSummary(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	out, err := conflict.Summary(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

type closeConflictRequest struct {
	Resolution string `json:"resolution"`
	Reason     string `json:"reason"`
	By         uint   `json:"by"`
}

func (h *handlers) resolveConflict(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req closeConflictRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.svc.ResolveConflict(c.Request.Context(), id, req.Resolution, req.By)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *handlers) ignoreConflict(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req closeConflictRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.svc.IgnoreConflict(c.Request.Context(), id, req.Reason, req.By)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *handlers) exportPlan(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	format := c.DefaultQuery("format", export.FormatXLSX)
	var buf bytes.Buffer
	if err := export.Plan(h.svc.DB, &buf, id, format); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="plan-%d.%s"`, id, format))
	c.Data(http.StatusOK, export.ContentType(format), buf.Bytes())
}

type scheduleRequest struct {
	TemplateID uint `json:"template_id"`
}

func (h *handlers) scheduleRecurring(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req scheduleRequest
	if !bind(c, &req) {
		return
	}
	jobs, err := h.svc.ScheduleRecurring(c.Request.Context(), req.TemplateID, id)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, jobs)
}

func (h *handlers) listVersions(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	out, err := version.List(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

type versionRequest struct {
	Summary string `json:"summary"`
}

func (h *handlers) createVersion(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req versionRequest
	if !bind(c, &req) {
		return
	}
	v, err := h.svc.CreateVersion(c.Request.Context(), id, req.Summary)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, v)
}

func (h *handlers) restoreVersion(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	n, valid := intParam(c, "n")
	if !valid {
		return
	}
	v, err := h.svc.RestoreVersion(c.Request.Context(), id, n)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

func (h *handlers) diffVersions(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	from, err1 := strconv.Atoi(c.Query("from"))
	to, err2 := strconv.Atoi(c.Query("to"))
	if err1 != nil || err2 != nil {
		fail(c, apperr.Validation("from and to must be version numbers"))
		return
	}
	d, err := version.Compare(h.svc.DB, id, from, to)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, d)
}
