package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/drydock/internal/checklist"
	"github.com/zulandar/drydock/internal/dependency"
	"github.com/zulandar/drydock/internal/plan"
	"github.com/zulandar/drydock/internal/split"
)

type addJobRequest struct {
	DayID          uint    `json:"day_id"`
	TemplateID     *uint   `json:"template_id"`
	JobType        string  `json:"job_type"`
	EquipmentID    *uint   `json:"equipment_id"`
	Description    string  `json:"description"`
	Berth          string  `json:"berth"`
	EstimatedHours float64 `json:"estimated_hours"`
	Priority       string  `json:"priority"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
}

// addJob creates a job from explicit fields, or from a template when
// template_id is given.
func (h *handlers) addJob(c *gin.Context) {
	var req addJobRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if req.TemplateID != nil {
		job, err := h.svc.AddJobFromTemplate(ctx, *req.TemplateID, req.DayID)
		if err != nil {
			fail(c, err)
			return
		}
		created(c, job)
		return
	}
	job, err := h.svc.AddJob(ctx, plan.AddJobOpts{
		DayID:          req.DayID,
		JobType:        req.JobType,
		EquipmentID:    req.EquipmentID,
		Description:    req.Description,
		Berth:          req.Berth,
		EstimatedHours: req.EstimatedHours,
		Priority:       req.Priority,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, job)
}

func (h *handlers) getJob(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	job, err := plan.GetJob(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, job)
}

func (h *handlers) removeJob(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	if err := h.svc.RemoveJob(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type moveRequest struct {
	DayID uint `json:"day_id"`
}

func (h *handlers) moveJob(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req moveRequest
	if !bind(c, &req) {
		return
	}
	job, err := h.svc.MoveJob(c.Request.Context(), id, req.DayID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, job)
}

type slotRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (h *handlers) setSlot(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req slotRequest
	if !bind(c, &req) {
		return
	}
	job, err := h.svc.SetSlot(c.Request.Context(), id, req.Start, req.End)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, job)
}

type assignRequest struct {
	UserID uint `json:"user_id"`
	IsLead bool `json:"is_lead"`
}

func (h *handlers) assign(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req assignRequest
	if !bind(c, &req) {
		return
	}
	check, err := h.svc.Assign(c.Request.Context(), id, req.UserID, req.IsLead)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, check)
}

func (h *handlers) unassign(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	userID, valid := idParam(c, "user")
	if !valid {
		return
	}
	if err := h.svc.Unassign(c.Request.Context(), id, userID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) checkAssignment(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	userID, valid := uintQuery(c, "user_id")
	if !valid {
		return
	}
	check, err := h.svc.ValidateAssignment(c.Request.Context(), id, userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, check)
}

type materialRequest struct {
	MaterialID uint    `json:"material_id"`
	Quantity   float64 `json:"quantity"`
}

func (h *handlers) addMaterial(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req materialRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.AddMaterial(c.Request.Context(), id, req.MaterialID, req.Quantity); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *handlers) startJob(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	job, err := h.svc.StartJob(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, job)
}

type completeRequest struct {
	ActualHours float64 `json:"actual_hours"`
}

func (h *handlers) completeJob(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req completeRequest
	if !bind(c, &req) {
		return
	}
	job, err := h.svc.CompleteJob(c.Request.Context(), id, req.ActualHours)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, job)
}

func (h *handlers) cancelJob(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	job, err := h.svc.CancelJob(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, job)
}

type splitRequest struct {
	Parts []struct {
		DayID uint    `json:"day_id"`
		Hours float64 `json:"hours"`
	} `json:"parts"`
}

func (h *handlers) splitJob(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req splitRequest
	if !bind(c, &req) {
		return
	}
	parts := make([]split.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, split.Part{DayID: p.DayID, Hours: p.Hours})
	}
	out, err := h.svc.Split(c.Request.Context(), id, parts)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, out)
}

func (h *handlers) mergeJob(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	job, err := h.svc.Merge(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, job)
}

func (h *handlers) listDependencies(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	pre, post, err := dependency.List(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"prerequisites": pre, "dependents": post})
}

type dependencyRequest struct {
	DependsOn  uint   `json:"depends_on"`
	Type       string `json:"type"`
	LagMinutes int    `json:"lag_minutes"`
}

func (h *handlers) addDependency(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req dependencyRequest
	if !bind(c, &req) {
		return
	}
	dep, err := h.svc.AddDependency(c.Request.Context(), dependency.AddOpts{
		JobID:      id,
		DependsOn:  req.DependsOn,
		Type:       req.Type,
		LagMinutes: req.LagMinutes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, dep)
}

func (h *handlers) removeDependency(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	dep, valid := idParam(c, "dep")
	if !valid {
		return
	}
	if err := h.svc.RemoveDependency(c.Request.Context(), id, dep); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) dependencyChain(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	chain, err := dependency.Chain(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, chain)
}

func (h *handlers) getChecklist(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	items, err := checklist.Items(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	responses, err := checklist.Responses(h.svc.DB, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"items": items, "responses": responses})
}

type checklistRequest struct {
	ItemID uint   `json:"item_id"`
	Value  string `json:"value"`
	Notes  string `json:"notes"`
	UserID uint   `json:"user_id"`
}

func (h *handlers) submitChecklist(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req checklistRequest
	if !bind(c, &req) {
		return
	}
	resp, err := h.svc.SubmitChecklist(c.Request.Context(), checklist.SubmitOpts{
		JobID:  id,
		ItemID: req.ItemID,
		Value:  req.Value,
		Notes:  req.Notes,
		UserID: req.UserID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *handlers) validateChecklist(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	comp, err := h.svc.ValidateChecklist(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"complete": comp.Complete(), "total": comp.Total, "answered": comp.Answered,
		"missing": comp.Missing, "failed_critical": comp.FailedCritical})
}
