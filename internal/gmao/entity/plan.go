package entity

import "time"

// 组件字段类型
const (
	FieldTypeNumber   = "number"
	FieldTypeText     = "text"
	FieldTypeCheckbox = "checkbox"
)

func IsValidFieldType(t string) bool {
	switch t {
	case FieldTypeNumber, FieldTypeText, FieldTypeCheckbox:
		return true
	}
	return false
}

// MaintenancePlan 预防性维护计划（保养报告模板）
// CounterID 为空表示使用设备自身计数器，否则指向根设备的命名计数器。
type MaintenancePlan struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	MachineID   string    `json:"machine_id" gorm:"size:32;not null;index"`
	Name        string    `json:"name" gorm:"size:128;not null"`
	Periodicity int       `json:"periodicity" gorm:"not null"`
	CounterID   *string   `json:"counter_id" gorm:"size:32;index"`
	CreatedBy   string    `json:"created_by" gorm:"size:32"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Components []PlanComponent `json:"components,omitempty" gorm:"foreignKey:PlanID"`
	Counter    *Counter        `json:"counter,omitempty" gorm:"foreignKey:CounterID"`
}

func (MaintenancePlan) TableName() string {
	return "maintenance_plans"
}

// PlanComponent 计划中的填写项
type PlanComponent struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	PlanID    string `json:"plan_id" gorm:"size:32;not null;index"`
	Label     string `json:"label" gorm:"size:128;not null"`
	FieldType string `json:"field_type" gorm:"size:16;not null"`
	SortOrder int    `json:"sort_order" gorm:"default:0"`
}

func (PlanComponent) TableName() string {
	return "plan_components"
}

// ProgressRecord 维护进度：HoursSince 为距下次保养剩余的计数单位，小于0即逾期
type ProgressRecord struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	MachineID  string    `json:"machine_id" gorm:"size:32;not null;uniqueIndex:idx_progress_machine_plan,priority:1"`
	PlanID     string    `json:"plan_id" gorm:"size:32;not null;uniqueIndex:idx_progress_machine_plan,priority:2;uniqueIndex:idx_progress_counter_plan,priority:2"`
	CounterID  *string   `json:"counter_id" gorm:"size:32;uniqueIndex:idx_progress_counter_plan,priority:1"`
	HoursSince float64   `json:"hours_since" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Plan *MaintenancePlan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
}

func (ProgressRecord) TableName() string {
	return "maintenance_progress"
}

// IsDue 已到期或逾期
func (p *ProgressRecord) IsDue() bool {
	return p.HoursSince <= 0
}
