package handler

import (
	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PlanHandler 维护计划
type PlanHandler struct {
	svc    *service.PlanService
	logger *zap.Logger
}

func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": plans})
}

func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, plan)
}

// Create POST /machines/:id/plans
func (h *PlanHandler) Create(c *gin.Context) {
	var req service.CreatePlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	plan, err := h.svc.Create(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Created(c, plan)
}

// Update PUT /plans/:id
func (h *PlanHandler) Update(c *gin.Context) {
	var req service.UpdatePlanInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	plan, err := h.svc.Update(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, plan)
}

// Delete DELETE /plans/:id
func (h *PlanHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, nil)
}

// Progress GET /machines/:id/progress
func (h *PlanHandler) Progress(c *gin.Context) {
	views, err := h.svc.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": views})
}
