package entity

import "time"

// ActivityLog 操作日志
type ActivityLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_activity_entity"` // machine/counter/plan/movement/maintenance/inventory
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index:idx_activity_entity"`
	Action     string `json:"action" gorm:"size:50;not null"` // create/update/delete/reverse/correct

	Content    string    `json:"content" gorm:"type:text"`
	OperatorID string    `json:"operator_id" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// Models 需要迁移的全部表
func Models() []interface{} {
	return []interface{}{
		&Stock{},
		&Product{},
		&StockProduct{},
		&Machine{},
		&FollowedMachine{},
		&Counter{},
		&CounterLog{},
		&MaintenancePlan{},
		&PlanComponent{},
		&ProgressRecord{},
		&MaintenanceEntry{},
		&MaintenanceEntryValue{},
		&CorrectiveMaintenance{},
		&CorrectiveProduct{},
		&Movement{},
		&MovementItem{},
		&Inventory{},
		&InventoryLine{},
		&ChecklistTemplate{},
		&ChecklistItem{},
		&ChecklistInstance{},
		&ChecklistValue{},
		&ActivityLog{},
	}
}
