package entity

import "time"

// MaintenanceEntry 预防性保养记录
type MaintenanceEntry struct {
	ID                     string    `json:"id" gorm:"primaryKey;size:32"`
	MachineID              string    `json:"machine_id" gorm:"size:32;not null;index"`
	PlanID                 string    `json:"plan_id" gorm:"size:32;not null;index"`
	CounterID              *string   `json:"counter_id" gorm:"size:32"`
	PerformedHours         float64   `json:"performed_hours"`
	HoursBeforeMaintenance float64   `json:"hours_before_maintenance"`
	StockID                *string   `json:"stock_id" gorm:"size:32"`
	CreatedBy              string    `json:"created_by" gorm:"size:32"`
	CreatedAt              time.Time `json:"created_at" gorm:"index"`

	Values []MaintenanceEntryValue `json:"values,omitempty" gorm:"foreignKey:EntryID"`
	Plan   *MaintenancePlan        `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
}

func (MaintenanceEntry) TableName() string {
	return "maintenance_entries"
}

type MaintenanceEntryValue struct {
	ID          string   `json:"id" gorm:"primaryKey;size:32"`
	EntryID     string   `json:"entry_id" gorm:"size:32;not null;index"`
	ComponentID string   `json:"component_id" gorm:"size:32;not null"`
	ValueText   *string  `json:"value_text"`
	ValueNumber *float64 `json:"value_number"`
	ValueBool   *bool    `json:"value_bool"`
}

func (MaintenanceEntryValue) TableName() string {
	return "maintenance_entry_values"
}

// CorrectiveMaintenance 纠正性维修（故障处理）
type CorrectiveMaintenance struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	MachineID string    `json:"machine_id" gorm:"size:32;not null;index"`
	Comment   string    `json:"comment" gorm:"type:text"`
	Hours     float64   `json:"hours"`
	StockID   *string   `json:"stock_id" gorm:"size:32"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	Products []CorrectiveProduct `json:"products,omitempty" gorm:"foreignKey:MaintenanceID"`
}

func (CorrectiveMaintenance) TableName() string {
	return "corrective_maintenances"
}

type CorrectiveProduct struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	MaintenanceID string `json:"maintenance_id" gorm:"size:32;not null;index"`
	ProductID     string `json:"product_id" gorm:"size:32;not null"`
	Quantity      int    `json:"quantity" gorm:"not null"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (CorrectiveProduct) TableName() string {
	return "corrective_maintenance_products"
}
