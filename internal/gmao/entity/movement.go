package entity

import "time"

// MovementType 库存移动类型
type MovementType string

const (
	MovementEntree    MovementType = "entree"    // 入库
	MovementSortie    MovementType = "sortie"    // 出库
	MovementTransfert MovementType = "transfert" // 调拨
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementEntree, MovementSortie, MovementTransfert:
		return true
	}
	return false
}

// Movement 库存移动
// 由保养或纠正性维修触发时，MaintenanceEntryID / CorrectiveMaintenanceID 记录来源。
type Movement struct {
	ID                      string       `json:"id" gorm:"primaryKey;size:32"`
	Type                    MovementType `json:"type" gorm:"size:16;not null;index"`
	SourceStockID           *string      `json:"source_stock_id" gorm:"size:32;index"`
	DestStockID             *string      `json:"dest_stock_id" gorm:"size:32;index"`
	MaintenanceEntryID      *string      `json:"maintenance_entry_id" gorm:"size:32;index"`
	CorrectiveMaintenanceID *string      `json:"corrective_maintenance_id" gorm:"size:32;index"`
	Comment                 string       `json:"comment" gorm:"type:text"`
	CreatedBy               string       `json:"created_by" gorm:"size:32"`
	CreatedAt               time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt               time.Time    `json:"updated_at"`

	Items []MovementItem `json:"items" gorm:"foreignKey:MovementID"`
}

func (Movement) TableName() string {
	return "movements"
}

type MovementItem struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	MovementID string `json:"movement_id" gorm:"size:32;not null;index"`
	ProductID  string `json:"product_id" gorm:"size:32;not null"`
	Quantity   int    `json:"quantity" gorm:"not null"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (MovementItem) TableName() string {
	return "movement_items"
}
