package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StockService 库存点、产品、盘点
type StockService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
	events *events
}

func NewStockService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger, ev *events) *StockService {
	return &StockService{db: db, repos: repos, logger: logger, events: ev}
}

// ==================== 库存点 ====================

type CreateStockInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *StockService) CreateStock(ctx context.Context, actorID string, input CreateStockInput) (*entity.Stock, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationf("name", "is required")
	}
	stock := &entity.Stock{Name: name, Description: input.Description}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		exists, err := repos.Stock.StockNameExists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return validationf("name", "stock %q already exists", name)
		}
		if err := repos.Stock.CreateStock(ctx, stock); err != nil {
			return translateDBError(err, "name")
		}
		return repos.ActivityLog.Log(ctx, "stock", stock.ID, "create", stock.Name, actorID)
	})
	if err != nil {
		return nil, err
	}
	return stock, nil
}

func (s *StockService) ListStocks(ctx context.Context) ([]entity.Stock, error) {
	return s.repos.Stock.ListStocks(ctx)
}

// DeleteStock 删除库存点；仍有库存、移动、盘点或设备引用时拒绝
func (s *StockService) DeleteStock(ctx context.Context, actorID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		stock, err := repos.Stock.FindStock(ctx, id)
		if err != nil {
			return wrapNotFound(err, "stock", id)
		}
		counts := map[string]int64{}
		if counts["stocked_products"], err = repos.Stock.CountNonEmptyCells(ctx, id); err != nil {
			return err
		}
		if counts["movements"], err = repos.Movement.CountByStock(ctx, id); err != nil {
			return err
		}
		if counts["inventories"], err = repos.Stock.CountInventories(ctx, id); err != nil {
			return err
		}
		if counts["machines"], err = repos.Machine.CountByStock(ctx, id); err != nil {
			return err
		}
		if err := dependents("stock has dependent records", counts); err != nil {
			return err
		}
		if err := repos.Stock.DeleteStock(ctx, id); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "stock", id, "delete", stock.Name, actorID)
	})
	if err != nil {
		return err
	}
	s.events.invalidate()
	return nil
}

// StockLine 库存点中的一个产品
type StockLine struct {
	Product      *entity.Product `json:"product"`
	Quantity     int             `json:"quantity"`
	MinimumStock int             `json:"minimum_stock"`
	IsLow        bool            `json:"is_low"`
	Value        decimal.Decimal `json:"value"`
}

// StockDetail 库存点详情与估值
type StockDetail struct {
	Stock      *entity.Stock   `json:"stock"`
	Lines      []StockLine     `json:"products"`
	TotalUnits int             `json:"total_units"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// GetStock 库存点详情，估值 = 数量 x 单价
func (s *StockService) GetStock(ctx context.Context, id string) (*StockDetail, error) {
	stock, err := s.repos.Stock.FindStock(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "stock", id)
	}
	cells, err := s.repos.Stock.ListCells(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &StockDetail{Stock: stock, Lines: make([]StockLine, 0, len(cells)), TotalValue: decimal.Zero}
	for i := range cells {
		cell := &cells[i]
		if cell.Product == nil {
			continue
		}
		value := cell.Product.Price.Mul(decimal.NewFromInt(int64(cell.Quantity)))
		detail.Lines = append(detail.Lines, StockLine{
			Product:      cell.Product,
			Quantity:     cell.Quantity,
			MinimumStock: cell.Product.MinimumStock,
			IsLow:        cell.IsLow(),
			Value:        value,
		})
		detail.TotalUnits += cell.Quantity
		detail.TotalValue = detail.TotalValue.Add(value)
	}
	return detail, nil
}

// LowStockAlert 低库存提醒
type LowStockAlert struct {
	StockID      string `json:"stock_id"`
	StockName    string `json:"stock_name"`
	ProductID    string `json:"product_id"`
	ProductCode  string `json:"product_code"`
	ProductName  string `json:"product_name"`
	Quantity     int    `json:"quantity"`
	MinimumStock int    `json:"minimum_stock"`
	Missing      int    `json:"missing"`
}

// Alerts 全部库存点中低于最低库存的产品
func (s *StockService) Alerts(ctx context.Context) ([]LowStockAlert, error) {
	cells, err := s.repos.Stock.ListLowCells(ctx)
	if err != nil {
		return nil, err
	}
	stocks, err := s.repos.Stock.ListStocks(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(stocks))
	for _, st := range stocks {
		names[st.ID] = st.Name
	}
	alerts := make([]LowStockAlert, 0, len(cells))
	for _, cell := range cells {
		if cell.Product == nil {
			continue
		}
		alerts = append(alerts, LowStockAlert{
			StockID:      cell.StockID,
			StockName:    names[cell.StockID],
			ProductID:    cell.ProductID,
			ProductCode:  cell.Product.Code,
			ProductName:  cell.Product.Name,
			Quantity:     cell.Quantity,
			MinimumStock: cell.Product.MinimumStock,
			Missing:      cell.Product.MinimumStock - cell.Quantity,
		})
	}
	return alerts, nil
}

// ==================== 产品 ====================

type CreateProductInput struct {
	Name              string          `json:"name" binding:"required"`
	Code              string          `json:"code" binding:"required"`
	Price             decimal.Decimal `json:"price"`
	MinimumStock      int             `json:"minimum_stock"`
	SupplierName      string          `json:"supplier_name"`
	SupplierReference string          `json:"supplier_reference"`
	LocationCode      string          `json:"location_code"`
}

func (s *StockService) CreateProduct(ctx context.Context, actorID string, input CreateProductInput) (*entity.Product, error) {
	p := &entity.Product{
		Name:              strings.TrimSpace(input.Name),
		Code:              strings.TrimSpace(input.Code),
		Price:             input.Price,
		MinimumStock:      input.MinimumStock,
		SupplierName:      input.SupplierName,
		SupplierReference: input.SupplierReference,
		LocationCode:      input.LocationCode,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		exists, err := repos.Stock.ProductCodeExists(ctx, p.Code)
		if err != nil {
			return err
		}
		if exists {
			return validationf("code", "product code %q already exists", p.Code)
		}
		if err := repos.Stock.CreateProduct(ctx, p); err != nil {
			return translateDBError(err, "code")
		}
		return repos.ActivityLog.Log(ctx, "product", p.ID, "create", p.Code, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.events.invalidate()
	return p, nil
}

func validateProduct(p *entity.Product) error {
	if p.Name == "" {
		return validationf("name", "is required")
	}
	if p.Code == "" {
		return validationf("code", "is required")
	}
	if p.Price.IsNegative() {
		return validationf("price", "must be >= 0")
	}
	if p.MinimumStock < 0 {
		return validationf("minimum_stock", "must be >= 0")
	}
	return nil
}

// SearchProducts 按名称或编码搜索产品
func (s *StockService) SearchProducts(ctx context.Context, keyword string, limit int) ([]entity.Product, error) {
	return s.repos.Stock.SearchProducts(ctx, strings.TrimSpace(keyword), limit)
}

// ==================== 盘点 ====================

type InventoryLineInput struct {
	ProductID       string `json:"product_id" binding:"required"`
	CountedQuantity int    `json:"counted_quantity"`
}

type InventoryInput struct {
	Comment string               `json:"comment"`
	Lines   []InventoryLineInput `json:"lines"`
}

// RecordInventory 盘点：按清点数量直接重置台账单元，记录盘点前数量
func (s *StockService) RecordInventory(ctx context.Context, actorID, stockID string, input InventoryInput) (*entity.Inventory, error) {
	if len(input.Lines) == 0 {
		return nil, validationf("lines", "at least one product is required")
	}
	seen := make(map[string]bool, len(input.Lines))
	for i, l := range input.Lines {
		if l.CountedQuantity < 0 {
			return nil, validationf("lines", "line %d: counted quantity must be >= 0", i+1)
		}
		if seen[l.ProductID] {
			return nil, validationf("lines", "line %d: product listed twice", i+1)
		}
		seen[l.ProductID] = true
	}

	inv := &entity.Inventory{StockID: stockID, Comment: input.Comment, CreatedBy: actorID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		stock, err := repos.Stock.FindStock(ctx, stockID)
		if err != nil {
			return wrapNotFound(err, "stock", stockID)
		}
		n, err := repos.Stock.CountInventories(ctx, stockID)
		if err != nil {
			return err
		}
		inv.Name = fmt.Sprintf("Inventaire %s %d", stock.Name, n+1)

		ids := make([]string, 0, len(input.Lines))
		for _, l := range input.Lines {
			ids = append(ids, l.ProductID)
		}
		products, err := repos.Stock.FindProductsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, l := range input.Lines {
			if _, ok := products[l.ProductID]; !ok {
				return notFoundf("product", l.ProductID)
			}
			cell, err := repos.Stock.GetOrCreateCell(ctx, stockID, l.ProductID)
			if err != nil {
				return err
			}
			inv.Lines = append(inv.Lines, entity.InventoryLine{
				ProductID:        l.ProductID,
				PreviousQuantity: cell.Quantity,
				CountedQuantity:  l.CountedQuantity,
			})
			if err := repos.Stock.SetQuantity(ctx, cell.ID, l.CountedQuantity); err != nil {
				return err
			}
		}
		if err := repos.Stock.CreateInventory(ctx, inv); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "inventory", inv.ID, "create", inv.Name, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("inventory recorded", zap.String("inventory_id", inv.ID), zap.String("stock_id", stockID), zap.Int("lines", len(inv.Lines)))
	s.events.emit(Notification{Event: EventInventoryRecorded, ActorID: actorID, EntityID: inv.ID, Message: inv.Name})
	return inv, nil
}

func (s *StockService) ListInventories(ctx context.Context, stockID string) ([]entity.Inventory, error) {
	if _, err := s.repos.Stock.FindStock(ctx, stockID); err != nil {
		return nil, wrapNotFound(err, "stock", stockID)
	}
	return s.repos.Stock.ListInventories(ctx, stockID)
}
