package entity

import (
	"fmt"
	"time"
)

// Counter 根设备上的命名计数器（小时、循环次数等）
type Counter struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	MachineID string    `json:"machine_id" gorm:"size:32;not null;uniqueIndex:idx_counters_machine_name"`
	Name      string    `json:"name" gorm:"size:64;not null;uniqueIndex:idx_counters_machine_name"`
	Value     float64   `json:"value" gorm:"not null;default:0"`
	Unit      string    `json:"unit" gorm:"size:16;not null;default:h"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Counter) TableName() string {
	return "counters"
}

// 计数器日志类型
const (
	CounterLogKindAdvance    = "advance"
	CounterLogKindCorrection = "correction"
)

// CounterLog 计数器变更日志，只追加不修改
type CounterLog struct {
	ID            string    `json:"id" gorm:"primaryKey;size:32"`
	MachineID     string    `json:"machine_id" gorm:"size:32;not null;index"`
	CounterID     *string   `json:"counter_id" gorm:"size:32;index"`
	PreviousValue float64   `json:"previous_value" gorm:"not null"`
	NewValue      float64   `json:"new_value" gorm:"not null"`
	Kind          string    `json:"kind" gorm:"size:16;not null;default:advance"`
	CreatedBy     string    `json:"created_by" gorm:"size:32"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
}

func (CounterLog) TableName() string {
	return "counter_logs"
}

func (l *CounterLog) Delta() float64 {
	return l.NewValue - l.PreviousValue
}

// BindingKind 计数器绑定类型
type BindingKind string

const (
	BindingOwnCounter   BindingKind = "own"
	BindingNamedCounter BindingKind = "named"
)

// CounterBinding 计划（或一次计数器更新）所指向的计数器来源：
// OwnCounter(machine_id) 设备自身的小时计数器，NamedCounter(counter_id) 根设备的命名计数器。
type CounterBinding struct {
	Kind      BindingKind `json:"kind"`
	MachineID string      `json:"machine_id,omitempty"`
	CounterID string      `json:"counter_id,omitempty"`
}

func OwnCounter(machineID string) CounterBinding {
	return CounterBinding{Kind: BindingOwnCounter, MachineID: machineID}
}

func NamedCounter(counterID string) CounterBinding {
	return CounterBinding{Kind: BindingNamedCounter, CounterID: counterID}
}

// CounterIDPtr 持久化使用的 counter_id，自身计数器返回 nil
func (b CounterBinding) CounterIDPtr() *string {
	if b.Kind != BindingNamedCounter {
		return nil
	}
	id := b.CounterID
	return &id
}

func (b CounterBinding) String() string {
	switch b.Kind {
	case BindingOwnCounter:
		return fmt.Sprintf("own(%s)", b.MachineID)
	case BindingNamedCounter:
		return fmt.Sprintf("named(%s)", b.CounterID)
	}
	return "invalid"
}
