package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNegativeQuantity 台账单元数量将变为负数
var ErrNegativeQuantity = errors.New("stock quantity would become negative")

// StockRepository 库存点、产品与库存台账
type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

// ---------- Stock ----------

func (r *StockRepository) CreateStock(ctx context.Context, s *entity.Stock) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *StockRepository) FindStock(ctx context.Context, id string) (*entity.Stock, error) {
	var s entity.Stock
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *StockRepository) ListStocks(ctx context.Context) ([]entity.Stock, error) {
	var stocks []entity.Stock
	err := r.db.WithContext(ctx).Order("name").Find(&stocks).Error
	return stocks, err
}

func (r *StockRepository) StockNameExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Stock{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

func (r *StockRepository) DeleteStock(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("stock_id = ?", id).Delete(&entity.StockProduct{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Stock{}).Error
}

// ---------- Product ----------

func (r *StockRepository) CreateProduct(ctx context.Context, p *entity.Product) error {
	if p.ID == "" {
		p.ID = newID()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *StockRepository) FindProduct(ctx context.Context, id string) (*entity.Product, error) {
	var p entity.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindProductsByIDs 批量查询产品，返回 id -> 产品
func (r *StockRepository) FindProductsByIDs(ctx context.Context, ids []string) (map[string]*entity.Product, error) {
	var products []entity.Product
	if len(ids) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
			return nil, err
		}
	}
	index := make(map[string]*entity.Product, len(products))
	for i := range products {
		index[products[i].ID] = &products[i]
	}
	return index, nil
}

func (r *StockRepository) ProductCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Product{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// SearchProducts 按名称或编码模糊搜索
func (r *StockRepository) SearchProducts(ctx context.Context, keyword string, limit int) ([]entity.Product, error) {
	var products []entity.Product
	query := r.db.WithContext(ctx).Model(&entity.Product{})
	if keyword != "" {
		kw := "%" + strings.ToLower(keyword) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", kw, kw)
	}
	if limit <= 0 {
		limit = 50
	}
	err := query.Order("name").Limit(limit).Find(&products).Error
	return products, err
}

// UpsertProducts 按编码批量更新或创建产品
func (r *StockRepository) UpsertProducts(ctx context.Context, products []entity.Product) error {
	if len(products) == 0 {
		return nil
	}
	for i := range products {
		if products[i].ID == "" {
			products[i].ID = newID()
		}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "price", "minimum_stock", "supplier_name", "supplier_reference", "location_code", "updated_at",
		}),
	}).Create(&products).Error
}

// ---------- StockProduct 台账单元 ----------

// GetOrCreateCell 幂等获取 (stock, product) 台账单元并加行锁，不存在时以数量0创建。
// 所有库存变动都经过此方法，并发创建只会保留一条记录。
func (r *StockRepository) GetOrCreateCell(ctx context.Context, stockID, productID string) (*entity.StockProduct, error) {
	seed := &entity.StockProduct{ID: newID(), StockID: stockID, ProductID: productID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stock_id"}, {Name: "product_id"}},
		DoNothing: true,
	}).Omit(clause.Associations).Create(seed).Error
	if err != nil {
		return nil, err
	}

	var cell entity.StockProduct
	err = r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stock_id = ? AND product_id = ?", stockID, productID).First(&cell).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &cell, nil
}

// AdjustQuantity quantity += delta，结果为负时不更新并返回 ErrNegativeQuantity
func (r *StockRepository) AdjustQuantity(ctx context.Context, cellID string, delta int) error {
	res := r.db.WithContext(ctx).Model(&entity.StockProduct{}).
		Where("id = ? AND quantity + ? >= 0", cellID, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNegativeQuantity
	}
	return nil
}

// SetQuantity 盘点时直接设置数量
func (r *StockRepository) SetQuantity(ctx context.Context, cellID string, quantity int) error {
	if quantity < 0 {
		return ErrNegativeQuantity
	}
	return r.db.WithContext(ctx).Model(&entity.StockProduct{}).Where("id = ?", cellID).
		Update("quantity", quantity).Error
}

// Quantity 读取单元数量，单元不存在时为0
func (r *StockRepository) Quantity(ctx context.Context, stockID, productID string) (int, error) {
	var cell entity.StockProduct
	err := r.db.WithContext(ctx).Where("stock_id = ? AND product_id = ?", stockID, productID).First(&cell).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return cell.Quantity, err
}

func (r *StockRepository) ListCells(ctx context.Context, stockID string) ([]entity.StockProduct, error) {
	var cells []entity.StockProduct
	err := r.db.WithContext(ctx).Preload("Product").
		Where("stock_id = ?", stockID).Order("product_id").Find(&cells).Error
	return cells, err
}

// ListLowCells 低于最低库存的台账单元
func (r *StockRepository) ListLowCells(ctx context.Context) ([]entity.StockProduct, error) {
	var cells []entity.StockProduct
	err := r.db.WithContext(ctx).Preload("Product").
		Joins("JOIN products ON products.id = stock_products.product_id").
		Where("products.minimum_stock > 0 AND stock_products.quantity < products.minimum_stock").
		Order("stock_products.stock_id").Find(&cells).Error
	return cells, err
}

func (r *StockRepository) CountNonEmptyCells(ctx context.Context, stockID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.StockProduct{}).
		Where("stock_id = ? AND quantity > 0", stockID).Count(&count).Error
	return count, err
}

// ---------- Inventory 盘点 ----------

func (r *StockRepository) CreateInventory(ctx context.Context, inv *entity.Inventory) error {
	if inv.ID == "" {
		inv.ID = newID()
	}
	for i := range inv.Lines {
		if inv.Lines[i].ID == "" {
			inv.Lines[i].ID = newID()
		}
		inv.Lines[i].InventoryID = inv.ID
	}
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *StockRepository) ListInventories(ctx context.Context, stockID string) ([]entity.Inventory, error) {
	var items []entity.Inventory
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("stock_id = ?", stockID).Order("created_at DESC").Find(&items).Error
	return items, err
}

func (r *StockRepository) CountInventories(ctx context.Context, stockID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Inventory{}).Where("stock_id = ?", stockID).Count(&count).Error
	return count, err
}
