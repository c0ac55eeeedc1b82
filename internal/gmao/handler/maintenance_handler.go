package handler

import (
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaintenanceHandler 预防性保养与纠正性维修
type MaintenanceHandler struct {
	svc    *service.MaintenanceService
	logger *zap.Logger
}

func listParams(c *gin.Context) repository.MaintenanceListParams {
	page, pageSize := GetPagination(c)
	return repository.MaintenanceListParams{MachineID: c.Query("machine_id"), Page: page, PageSize: pageSize}
}

// ListPreventive GET /maintenances/preventive?machine_id=
func (h *MaintenanceHandler) ListPreventive(c *gin.Context) {
	params := listParams(c)
	items, total, err := h.svc.ListEntries(c.Request.Context(), params)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, newList(items, params.Page, params.PageSize, total))
}

func (h *MaintenanceHandler) GetPreventive(c *gin.Context) {
	entry, err := h.svc.GetEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, entry)
}

// RecordPreventive POST /maintenances/preventive
func (h *MaintenanceHandler) RecordPreventive(c *gin.Context) {
	var req service.RecordMaintenanceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	entry, err := h.svc.RecordMaintenance(c.Request.Context(), GetUserID(c), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Created(c, entry)
}

func (h *MaintenanceHandler) DeletePreventive(c *gin.Context) {
	if err := h.svc.DeleteEntry(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, nil)
}

func (h *MaintenanceHandler) ListCorrective(c *gin.Context) {
	params := listParams(c)
	items, total, err := h.svc.ListCorrective(c.Request.Context(), params)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, newList(items, params.Page, params.PageSize, total))
}

func (h *MaintenanceHandler) GetCorrective(c *gin.Context) {
	cm, err := h.svc.GetCorrective(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, cm)
}

// RecordCorrective POST /maintenances/corrective
func (h *MaintenanceHandler) RecordCorrective(c *gin.Context) {
	var req service.CorrectiveInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	cm, err := h.svc.RecordCorrective(c.Request.Context(), GetUserID(c), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Created(c, cm)
}

func (h *MaintenanceHandler) DeleteCorrective(c *gin.Context) {
	if err := h.svc.DeleteCorrective(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, nil)
}
