package handler

import (
	"errors"
	"strconv"

	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/JBDLC/GMAO/internal/gmao/sse"
	"github.com/JBDLC/GMAO/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers 处理器集合
type Handlers struct {
	Machine     *MachineHandler
	Counter     *CounterHandler
	Plan        *PlanHandler
	Maintenance *MaintenanceHandler
	Stock       *StockHandler
	Movement    *MovementHandler
	Checklist   *ChecklistHandler
	Dashboard   *DashboardHandler
	SSE         *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Machine:     &MachineHandler{svc: svc.Machine, logger: logger},
		Counter:     &CounterHandler{svc: svc.Counter, logger: logger},
		Plan:        &PlanHandler{svc: svc.Plan, logger: logger},
		Maintenance: &MaintenanceHandler{svc: svc.Maintenance, logger: logger},
		Stock:       &StockHandler{svc: svc.Stock, logger: logger},
		Movement:    &MovementHandler{svc: svc.Movement, logger: logger},
		Checklist:   &ChecklistHandler{svc: svc.Checklist, logger: logger},
		Dashboard:   &DashboardHandler{svc: svc.Dashboard, logger: logger},
		SSE:         NewSSEHandler(hub),
	}
}

// Register 注册业务路由，api 需已挂载认证中间件
func (h *Handlers) Register(api *gin.RouterGroup) {
	machines := api.Group("/machines")
	{
		machines.GET("", h.Machine.Tree)
		machines.POST("", h.Machine.Create)
		machines.GET("/:id", h.Machine.Get)
		machines.PUT("/:id", h.Machine.Update)
		machines.PUT("/:id/parent", h.Machine.Reparent)
		machines.DELETE("/:id", middleware.RequireRole("gmao_manager"), h.Machine.Delete)
		machines.POST("/:id/follow", h.Machine.Follow)
		machines.DELETE("/:id/follow", h.Machine.Unfollow)

		machines.GET("/:id/counters", h.Counter.List)
		machines.POST("/:id/counters", h.Counter.Advance)
		machines.POST("/:id/counters/correct", h.Counter.Correct)
		machines.POST("/:id/named-counters", h.Counter.CreateNamed)
		machines.GET("/:id/counter-logs", h.Counter.ListLogs)

		machines.GET("/:id/plans", h.Plan.List)
		machines.POST("/:id/plans", h.Plan.Create)
		machines.GET("/:id/progress", h.Plan.Progress)

		machines.GET("/:id/checklists", h.Checklist.List)
		machines.POST("/:id/checklists", h.Checklist.Create)
	}

	api.PUT("/counters/:id", h.Counter.UpdateNamed)
	api.DELETE("/counters/:id", h.Counter.DeleteNamed)

	api.GET("/plans/:id", h.Plan.Get)
	api.PUT("/plans/:id", h.Plan.Update)
	api.DELETE("/plans/:id", h.Plan.Delete)

	maint := api.Group("/maintenances")
	{
		maint.GET("/preventive", h.Maintenance.ListPreventive)
		maint.GET("/preventive/:id", h.Maintenance.GetPreventive)
		maint.POST("/preventive", h.Maintenance.RecordPreventive)
		maint.DELETE("/preventive/:id", h.Maintenance.DeletePreventive)
		maint.GET("/corrective", h.Maintenance.ListCorrective)
		maint.GET("/corrective/:id", h.Maintenance.GetCorrective)
		maint.POST("/corrective", h.Maintenance.RecordCorrective)
		maint.DELETE("/corrective/:id", h.Maintenance.DeleteCorrective)
	}

	stocks := api.Group("/stocks")
	{
		stocks.GET("", h.Stock.List)
		stocks.POST("", h.Stock.Create)
		stocks.GET("/alerts", h.Stock.Alerts)
		stocks.GET("/:id", h.Stock.Get)
		stocks.DELETE("/:id", middleware.RequireRole("gmao_manager"), h.Stock.Delete)
		stocks.GET("/:id/inventories", h.Stock.ListInventories)
		stocks.POST("/:id/inventories", h.Stock.RecordInventory)
	}

	products := api.Group("/products")
	{
		products.GET("", h.Stock.SearchProducts)
		products.POST("", h.Stock.CreateProduct)
		products.POST("/import", middleware.RequireRole("gmao_manager"), h.Stock.ImportProducts)
		products.GET("/import-template", h.Stock.ImportTemplate)
	}

	movements := api.Group("/movements")
	{
		movements.GET("", h.Movement.List)
		movements.POST("", h.Movement.Create)
		movements.GET("/:id", h.Movement.Get)
		movements.PUT("/:id", h.Movement.Update)
		movements.DELETE("/:id", h.Movement.Delete)
	}

	api.POST("/checklists/:id/fill", h.Checklist.Fill)
	api.GET("/dashboard", h.Dashboard.Get)
	api.GET("/events", h.SSE.Stream)
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

func newList(items interface{}, page, pageSize int, total int64) ListResponse {
	pages := int64(0)
	if pageSize > 0 {
		pages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return ListResponse{
		Items:      items,
		Pagination: &Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages},
	}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{Code: 0, Message: "success", Data: data})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{Code: 0, Message: "success", Data: data})
}

// Error 错误响应，HTTP 状态码取业务码的前三位
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{Code: code, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 违反一致性约束（库存不足、存在依赖记录）
func Conflict(c *gin.Context, message string, dependents map[string]int64) {
	resp := Response{Code: 40900, Message: message}
	if len(dependents) > 0 {
		resp.Data = gin.H{"dependents": dependents}
	}
	c.JSON(409, resp)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// handleError 将服务层错误映射为响应；未知错误只记录日志，不向客户端暴露细节
func handleError(c *gin.Context, logger *zap.Logger, err error) {
	var ve *service.ValidationError
	var ce *service.ConsistencyError
	switch {
	case errors.As(err, &ve):
		BadRequest(c, ve.Error())
	case errors.As(err, &ce):
		Conflict(c, ce.Reason, ce.Dependents)
	case service.IsNotFound(err):
		NotFound(c, err.Error())
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.ContextRequestID)),
			zap.Error(err))
		_ = c.Error(err)
		InternalError(c, "internal server error")
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page, pageSize = 1, 20
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 && v <= 100 {
		pageSize = v
	}
	return page, pageSize
}

// optionalQuery 查询参数为空时返回 nil
func optionalQuery(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}
