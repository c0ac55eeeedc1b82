package entity

import "time"

// MaxMachineDepth 设备树最大层级（根节点为第1层）
const MaxMachineDepth = 5

// Machine 设备
// 根设备可以拥有多个命名计数器；子设备只能使用自身的小时计数器，
// 或者绑定到根设备的命名计数器。
type Machine struct {
	ID                 string    `json:"id" gorm:"primaryKey;size:32"`
	Name               string    `json:"name" gorm:"size:128;not null"`
	Code               string    `json:"code" gorm:"size:64;not null;uniqueIndex"`
	ParentID           *string   `json:"parent_id" gorm:"size:32;index"`
	HourCounterEnabled bool      `json:"hour_counter_enabled" gorm:"not null;default:false"`
	Hours              float64   `json:"hours" gorm:"not null;default:0"`
	CounterUnit        string    `json:"counter_unit" gorm:"size:16;not null;default:h"`
	StockID            *string   `json:"stock_id" gorm:"size:32"`
	ColorIndex         int       `json:"color_index" gorm:"default:0"`
	CreatedBy          string    `json:"created_by" gorm:"size:32"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Counters []Counter `json:"counters,omitempty" gorm:"foreignKey:MachineID"`
	Stock    *Stock    `json:"stock,omitempty" gorm:"foreignKey:StockID"`
}

func (Machine) TableName() string {
	return "machines"
}

// IsRoot 是否为根设备
func (m *Machine) IsRoot() bool {
	return m.ParentID == nil || *m.ParentID == ""
}

// FollowedMachine 用户关注的设备
type FollowedMachine struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	UserID    string    `json:"user_id" gorm:"size:32;not null;uniqueIndex:idx_followed_user_machine"`
	MachineID string    `json:"machine_id" gorm:"size:32;not null;uniqueIndex:idx_followed_user_machine"`
	CreatedAt time.Time `json:"created_at"`
}

func (FollowedMachine) TableName() string {
	return "followed_machines"
}
