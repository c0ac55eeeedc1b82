package handler

import (
	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MachineHandler 设备树
type MachineHandler struct {
	svc    *service.MachineService
	logger *zap.Logger
}

// Tree GET /machines
func (h *MachineHandler) Tree(c *gin.Context) {
	tree, err := h.svc.Tree(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": tree})
}

// Get GET /machines/:id
func (h *MachineHandler) Get(c *gin.Context) {
	detail, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, detail)
}

// Create POST /machines
func (h *MachineHandler) Create(c *gin.Context) {
	var req service.CreateMachineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.svc.Create(c.Request.Context(), GetUserID(c), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Created(c, m)
}

// Update PUT /machines/:id
func (h *MachineHandler) Update(c *gin.Context) {
	var req service.UpdateMachineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.svc.Update(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, m)
}

type reparentRequest struct {
	ParentID *string `json:"parent_id"`
}

// Reparent PUT /machines/:id/parent
func (h *MachineHandler) Reparent(c *gin.Context) {
	var req reparentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.svc.Reparent(c.Request.Context(), GetUserID(c), c.Param("id"), req.ParentID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, m)
}

// Delete DELETE /machines/:id
func (h *MachineHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, nil)
}

func (h *MachineHandler) Follow(c *gin.Context) {
	if err := h.svc.Follow(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"followed": true})
}

func (h *MachineHandler) Unfollow(c *gin.Context) {
	if err := h.svc.Unfollow(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"followed": false})
}
