package handler

import (
	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	svc    *service.DashboardService
	logger *zap.Logger
}

// Get GET /dashboard 当前用户关注设备的看板
func (h *DashboardHandler) Get(c *gin.Context) {
	d, err := h.svc.Get(c.Request.Context(), GetUserID(c))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, d)
}
