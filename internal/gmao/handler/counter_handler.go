package handler

import (
	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CounterHandler 计数器
type CounterHandler struct {
	svc    *service.CounterService
	logger *zap.Logger
}

// List GET /machines/:id/counters
func (h *CounterHandler) List(c *gin.Context) {
	counters, err := h.svc.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, counters)
}

// Advance POST /machines/:id/counters
func (h *CounterHandler) Advance(c *gin.Context) {
	var req service.CounterTargetInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	update, err := h.svc.Advance(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, update)
}

// Correct POST /machines/:id/counters/correct
func (h *CounterHandler) Correct(c *gin.Context) {
	var req service.CounterTargetInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	update, err := h.svc.Correct(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, update)
}

// CreateNamed POST /machines/:id/named-counters
func (h *CounterHandler) CreateNamed(c *gin.Context) {
	var req service.CreateNamedCounterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	counter, err := h.svc.CreateNamed(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Created(c, counter)
}

// UpdateNamed PUT /counters/:id
func (h *CounterHandler) UpdateNamed(c *gin.Context) {
	var req service.UpdateNamedCounterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	counter, err := h.svc.UpdateNamed(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, counter)
}

// DeleteNamed DELETE /counters/:id
func (h *CounterHandler) DeleteNamed(c *gin.Context) {
	if err := h.svc.DeleteNamed(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, nil)
}

// ListLogs GET /machines/:id/counter-logs?counter_id=
func (h *CounterHandler) ListLogs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	logs, total, err := h.svc.ListLogs(c.Request.Context(), c.Param("id"), optionalQuery(c, "counter_id"), page, pageSize)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, newList(logs, page, pageSize, total))
}
