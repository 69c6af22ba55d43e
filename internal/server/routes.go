package server

import (
	"github.com/gin-gonic/gin"

	"github.com/zulandar/drydock/internal/planner"
)

type handlers struct {
	svc *planner.Service
}

// registerRoutes sets up all API routes.
func registerRoutes(api *gin.RouterGroup, h *handlers) {
	plans := api.Group("/plans")
	plans.POST("", h.createPlan)
	plans.GET("", h.listPlans)
	plans.GET("/:id", h.getPlan)
	plans.POST("/:id/publish", h.publishPlan)
	plans.POST("/:id/archive", h.archivePlan)
	plans.POST("/:id/validate", h.validatePlan)
	plans.POST("/:id/scan", h.scanPlan)
	plans.GET("/:id/conflicts", h.listConflicts)
	plans.GET("/:id/conflicts/summary", h.conflictSummary)
	plans.GET("/:id/export", h.exportPlan)
	plans.POST("/:id/schedule", h.scheduleRecurring)
	plans.GET("/:id/versions", h.listVersions)
	plans.POST("/:id/versions", h.createVersion)
	plans.POST("/:id/versions/:n/restore", h.restoreVersion)
	plans.GET("/:id/diff", h.diffVersions)

	jobs := api.Group("/jobs")
	jobs.POST("", h.addJob)
	jobs.GET("/:id", h.getJob)
	jobs.DELETE("/:id", h.removeJob)
	jobs.POST("/:id/move", h.moveJob)
	jobs.PUT("/:id/slot", h.setSlot)
	jobs.POST("/:id/assignments", h.assign)
	jobs.DELETE("/:id/assignments/:user", h.unassign)
	jobs.GET("/:id/assignment-check", h.checkAssignment)
	jobs.POST("/:id/materials", h.addMaterial)
	jobs.POST("/:id/start", h.startJob)
	jobs.POST("/:id/complete", h.completeJob)
	jobs.POST("/:id/cancel", h.cancelJob)
	jobs.POST("/:id/split", h.splitJob)
	jobs.POST("/:id/merge", h.mergeJob)
	jobs.GET("/:id/dependencies", h.listDependencies)
	jobs.POST("/:id/dependencies", h.addDependency)
	jobs.DELETE("/:id/dependencies/:dep", h.removeDependency)
	jobs.GET("/:id/chain", h.dependencyChain)
	jobs.GET("/:id/checklist", h.getChecklist)
	jobs.POST("/:id/checklist", h.submitChecklist)
	jobs.POST("/:id/checklist/validate", h.validateChecklist)

	api.POST("/conflicts/:id/resolve", h.resolveConflict)
	api.POST("/conflicts/:id/ignore", h.ignoreConflict)

	templates := api.Group("/templates")
	templates.GET("", h.listTemplates)
	templates.POST("", h.createTemplate)
	templates.POST("/import", h.importTemplates)
	templates.GET("/:id", h.getTemplate)
	templates.PUT("/:id", h.updateTemplate)
	templates.DELETE("/:id", h.deleteTemplate)
	templates.POST("/:id/clone", h.cloneTemplate)

	api.GET("/capacity/check", h.capacityCheck)
	api.GET("/capacity/available", h.capacityAvailable)

	api.POST("/skills", h.addSkill)
	api.POST("/skills/:id/verify", h.verifySkill)
	api.GET("/skills/qualified", h.qualifiedWorkers)
	api.GET("/users/:id/skills", h.userSkills)

	api.POST("/restrictions", h.addRestriction)
	api.DELETE("/restrictions/:id", h.removeRestriction)
	api.GET("/equipment/:id/restrictions", h.listRestrictions)
	api.GET("/equipment/:id/check", h.checkRestrictions)

	api.GET("/reports/completion", h.completionReport)
	api.GET("/reports/time-accuracy", h.timeAccuracyReport)
	api.GET("/reports/workers", h.workerReport)
}
