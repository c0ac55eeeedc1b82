package handler

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JBDLC/GMAO/internal/gmao/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// StockHandler 库存点、产品与盘点
type StockHandler struct {
	svc    *service.StockService
	logger *zap.Logger
}

func (h *StockHandler) List(c *gin.Context) {
	stocks, err := h.svc.ListStocks(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": stocks})
}

// Get GET /stocks/:id 含产品数量与估值
func (h *StockHandler) Get(c *gin.Context) {
	detail, err := h.svc.GetStock(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, detail)
}

func (h *StockHandler) Create(c *gin.Context) {
	var req service.CreateStockInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	stock, err := h.svc.CreateStock(c.Request.Context(), GetUserID(c), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Created(c, stock)
}

func (h *StockHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteStock(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, nil)
}

// Alerts GET /stocks/alerts
func (h *StockHandler) Alerts(c *gin.Context) {
	alerts, err := h.svc.Alerts(c.Request.Context())
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": alerts})
}

// SearchProducts GET /products?q=&limit=
func (h *StockHandler) SearchProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	products, err := h.svc.SearchProducts(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": products})
}

func (h *StockHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	product, err := h.svc.CreateProduct(c.Request.Context(), GetUserID(c), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Created(c, product)
}

// ImportProducts POST /products/import，multipart 字段 file，支持 xlsx 与 csv
func (h *StockHandler) ImportProducts(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传 xlsx 或 csv 文件")
		return
	}
	defer file.Close()

	var result *service.ImportResult
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		f, err := excelize.OpenReader(file)
		if err != nil {
			BadRequest(c, "无法解析Excel文件: "+err.Error())
			return
		}
		defer f.Close()
		result, err = h.svc.ImportProductsExcel(c.Request.Context(), GetUserID(c), f)
		if err != nil {
			handleError(c, h.logger, err)
			return
		}
	case ".csv":
		result, err = h.svc.ImportProductsCSV(c.Request.Context(), GetUserID(c), file)
		if err != nil {
			handleError(c, h.logger, err)
			return
		}
	default:
		BadRequest(c, "不支持的文件类型: "+header.Filename)
		return
	}
	Success(c, result)
}

// ImportTemplate GET /products/import-template
func (h *StockHandler) ImportTemplate(c *gin.Context) {
	f, err := h.svc.ImportTemplate()
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\"produits_import.xlsx\"")
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("write import template", zap.Error(err))
	}
}

// RecordInventory POST /stocks/:id/inventories
func (h *StockHandler) RecordInventory(c *gin.Context) {
	var req service.InventoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	inv, err := h.svc.RecordInventory(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Created(c, inv)
}

func (h *StockHandler) ListInventories(c *gin.Context) {
	items, err := h.svc.ListInventories(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	Success(c, gin.H{"items": items})
}
