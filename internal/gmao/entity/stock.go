package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock 库存点
type Stock struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Name        string    `json:"name" gorm:"size:128;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Stock) TableName() string {
	return "stocks"
}

// Product 备件/耗材
type Product struct {
	ID                string          `json:"id" gorm:"primaryKey;size:32"`
	Name              string          `json:"name" gorm:"size:200;not null"`
	Code              string          `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Price             decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	MinimumStock      int             `json:"minimum_stock" gorm:"not null;default:0"`
	SupplierName      string          `json:"supplier_name" gorm:"size:128"`
	SupplierReference string          `json:"supplier_reference" gorm:"size:64"`
	LocationCode      string          `json:"location_code" gorm:"size:32"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// StockProduct 库存台账单元：(stock, product) 唯一，数量不得为负
type StockProduct struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	StockID   string    `json:"stock_id" gorm:"size:32;not null;uniqueIndex:idx_stock_products_cell"`
	ProductID string    `json:"product_id" gorm:"size:32;not null;uniqueIndex:idx_stock_products_cell;index"`
	Quantity  int       `json:"quantity" gorm:"not null;default:0;check:chk_stock_products_quantity,quantity >= 0"`
	UpdatedAt time.Time `json:"updated_at"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (StockProduct) TableName() string {
	return "stock_products"
}

// IsLow 低于最低库存
func (sp *StockProduct) IsLow() bool {
	return sp.Product != nil && sp.Product.MinimumStock > 0 && sp.Quantity < sp.Product.MinimumStock
}

// Inventory 盘点单，按绝对数量重置台账
type Inventory struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	StockID   string    `json:"stock_id" gorm:"size:32;not null;index"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Comment   string    `json:"comment" gorm:"type:text"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`

	Lines []InventoryLine `json:"lines,omitempty" gorm:"foreignKey:InventoryID"`
}

func (Inventory) TableName() string {
	return "inventories"
}

type InventoryLine struct {
	ID               string `json:"id" gorm:"primaryKey;size:32"`
	InventoryID      string `json:"inventory_id" gorm:"size:32;not null;index"`
	ProductID        string `json:"product_id" gorm:"size:32;not null"`
	PreviousQuantity int    `json:"previous_quantity" gorm:"not null"`
	CountedQuantity  int    `json:"counted_quantity" gorm:"not null"`
}

func (InventoryLine) TableName() string {
	return "inventory_lines"
}

func (l InventoryLine) Difference() int {
	return l.CountedQuantity - l.PreviousQuantity
}
