package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/drydock/internal/apperr"
	"github.com/zulandar/drydock/internal/report"
	"github.com/zulandar/drydock/internal/restriction"
	"github.com/zulandar/drydock/internal/skill"
	"github.com/zulandar/drydock/internal/template"
)

type templateRequest struct {
	Name                   string                   `json:"name"`
	JobType                string                   `json:"job_type"`
	EquipmentID            *uint                    `json:"equipment_id"`
	EquipmentType          string                   `json:"equipment_type"`
	Berth                  string                   `json:"berth"`
	Description            string                   `json:"description"`
	EstimatedHours         float64                  `json:"estimated_hours"`
	Priority               string                   `json:"priority"`
	Recurrence             string                   `json:"recurrence"`
	DefaultTeamSize        int                      `json:"default_team_size"`
	RequiredCertifications []string                 `json:"required_certifications"`
	Materials              []template.MaterialSpec  `json:"materials"`
	Checklist              []template.ChecklistSpec `json:"checklist"`
}

func (r templateRequest) opts() template.Opts {
	return template.Opts{
		Name:                   r.Name,
		JobType:                r.JobType,
		EquipmentID:            r.EquipmentID,
		EquipmentType:          r.EquipmentType,
		Berth:                  r.Berth,
		Description:            r.Description,
		EstimatedHours:         r.EstimatedHours,
		Priority:               r.Priority,
		Recurrence:             r.Recurrence,
		DefaultTeamSize:        r.DefaultTeamSize,
		RequiredCertifications: r.RequiredCertifications,
		Materials:              r.Materials,
		Checklist:              r.Checklist,
	}
}

func (h *handlers) listTemplates(c *gin.Context) {
	out, err := template.List(h.svc.DB, c.Query("job_type"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *handlers) createTemplate(c *gin.Context) {
	var req templateRequest
	if !bind(c, &req) {
		return
	}
	t, err := template.Create(h.svc.DB, req.opts())
	if err != nil {
		fail(c, err)
		return
	}
	created(c, t)
}

func (h *handlers) importTemplates(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, apperr.Validation("read body: %v", err))
		return
	}
	out, err := template.Import(h.svc.DB, data)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *handlers) getTemplate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	t, err := template.Get(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, t)
}

func (h *handlers) updateTemplate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req templateRequest
	if !bind(c, &req) {
		return
	}
	t, err := template.Update(h.svc.DB, id, req.opts())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, t)
}

func (h *handlers) deleteTemplate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := template.Delete(h.svc.DB, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type cloneRequest struct {
	Name string `json:"name"`
}

func (h *handlers) cloneTemplate(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req cloneRequest
	if !bind(c, &req) {
		return
	}
	t, err := template.Clone(h.svc.DB, id, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, t)
}

func (h *handlers) capacityCheck(c *gin.Context) {
	userID, valid := uintQuery(c, "user_id")
	if !valid {
		return
	}
	dayID, valid := uintQuery(c, "day_id")
	if !valid {
		return
	}
	hours, err := strconv.ParseFloat(c.DefaultQuery("hours", "0"), 64)
	if err != nil {
		fail(c, apperr.Validation("hours must be a number").WithField("hours"))
		return
	}
	v, err := h.svc.Capacity.CheckViolation(h.svc.DB, userID, dayID, hours)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

func (h *handlers) capacityAvailable(c *gin.Context) {
	dayID, valid := uintQuery(c, "day_id")
	if !valid {
		return
	}
	out, err := h.svc.Capacity.Available(h.svc.DB, dayID, c.Query("role"), c.Query("shift"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

type skillRequest struct {
	UserID            uint       `json:"user_id"`
	SkillName         string     `json:"skill_name"`
	Level             int        `json:"level"`
	CertificateNumber string     `json:"certificate_number"`
	IssuedAt          *time.Time `json:"issued_at"`
	ExpiresAt         *time.Time `json:"expires_at"`
}

func (h *handlers) addSkill(c *gin.Context) {
	var req skillRequest
	if !bind(c, &req) {
		return
	}
	s, err := skill.Add(h.svc.DB, skill.AddOpts(req))
	if err != nil {
		fail(c, err)
		return
	}
	created(c, s)
}

type verifyRequest struct {
	VerifierID uint `json:"verifier_id"`
}

func (h *handlers) verifySkill(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req verifyRequest
	if !bind(c, &req) {
		return
	}
	s, err := skill.Verify(h.svc.DB, id, req.VerifierID, h.svc.Now())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, s)
}

func (h *handlers) qualifiedWorkers(c *gin.Context) {
	date, valid := dateQuery(c, "date")
	if !valid {
		return
	}
	if date.IsZero() {
		y, m, d := h.svc.Now().UTC().Date()
		date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	users, err := skill.QualifiedWorkers(h.svc.DB, c.QueryArray("skill"), date)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, users)
}

func (h *handlers) userSkills(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	out, err := skill.ListForUser(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

type restrictionRequest struct {
	EquipmentID uint            `json:"equipment_id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	StartDate   *time.Time      `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
	Reason      string          `json:"reason"`
}

func (h *handlers) addRestriction(c *gin.Context) {
	var req restrictionRequest
	if !bind(c, &req) {
		return
	}
	rule, err := restriction.Decode(req.Type, req.Payload)
	if err != nil {
		fail(c, err)
		return
	}
	r, err := restriction.Add(h.svc.DB, restriction.AddOpts{
		EquipmentID: req.EquipmentID,
		Rule:        rule,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Reason:      req.Reason,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, r)
}

func (h *handlers) removeRestriction(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := restriction.Remove(h.svc.DB, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listRestrictions(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	out, err := restriction.List(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *handlers) checkRestrictions(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	date, valid := dateQuery(c, "date")
	if !valid {
		return
	}
	if date.IsZero() {
		fail(c, apperr.Validation("date is required").WithField("date"))
		return
	}
	var userIDs []uint
	for _, raw := range c.QueryArray("user_id") {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			fail(c, apperr.Validation("user_id must be an unsigned integer").WithField("user_id"))
			return
		}
		userIDs = append(userIDs, uint(v))
	}
	res, err := restriction.Check(h.svc.DB, id, date, userIDs)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

func reportFilter(c *gin.Context) (report.Filter, bool) {
	var f report.Filter
	var valid bool
	if f.PlanID, valid = uintQuery(c, "plan_id"); !valid {
		return f, false
	}
	if f.From, valid = dateQuery(c, "from"); !valid {
		return f, false
	}
	if f.To, valid = dateQuery(c, "to"); !valid {
		return f, false
	}
	return f, true
}

func (h *handlers) completionReport(c *gin.Context) {
	f, valid := reportFilter(c)
	if !valid {
		return
	}
	out, err := report.CompletionReport(h.svc.DB, f)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *handlers) timeAccuracyReport(c *gin.Context) {
	f, valid := reportFilter(c)
	if !valid {
		return
	}
	out, err := report.TimeAccuracyReport(h.svc.DB, f)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *handlers) workerReport(c *gin.Context) {
	f, valid := reportFilter(c)
	if !valid {
		return
	}
	out, err := report.WorkerPerformance(h.svc.DB, f)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}
