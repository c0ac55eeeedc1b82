package handler

import (
	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChecklistHandler struct {
	svc    *service.ChecklistService
	logger *zap.Logger
}

func (h *ChecklistHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}

func (h *ChecklistHandler) Create(c *gin.Context) {
	var req service.CreateChecklistInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	t, err := h.svc.Create(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Created(c, t)
}

// Fill POST /checklists/:id/fill
func (h *ChecklistHandler) Fill(c *gin.Context) {
	var req service.FillChecklistInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	inst, err := h.svc.Fill(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Created(c, inst)
}
