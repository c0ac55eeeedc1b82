package handler

import (
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MovementHandler 库存移动
type MovementHandler struct {
	svc    *service.MovementService
	logger *zap.Logger
}

// List GET /movements?type=&stock_id=
func (h *MovementHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.MovementListParams{
		Type:     c.Query("type"),
		StockID:  c.Query("stock_id"),
		Page:     page,
		PageSize: pageSize,
	}
	items, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, newList(items, page, pageSize, total))
}

func (h *MovementHandler) Get(c *gin.Context) {
	m, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, m)
}

// Create POST /movements
func (h *MovementHandler) Create(c *gin.Context) {
	var req service.MovementInput
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

// Update PUT /movements/:id
func (h *MovementHandler) Update(c *gin.Context) {
	var req service.MovementInput
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

// Delete DELETE /movements/:id
func (h *MovementHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, nil)
}
