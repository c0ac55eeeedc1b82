package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Machine     *MachineRepository
	Counter     *CounterRepository
	Plan        *PlanRepository
	Progress    *ProgressRepository
	Stock       *StockRepository
	Movement    *MovementRepository
	Maintenance *MaintenanceRepository
	Checklist   *ChecklistRepository
	ActivityLog *ActivityLogRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Machine:     NewMachineRepository(db),
		Counter:     NewCounterRepository(db),
		Plan:        NewPlanRepository(db),
		Progress:    NewProgressRepository(db),
		Stock:       NewStockRepository(db),
		Movement:    NewMovementRepository(db),
		Maintenance: NewMaintenanceRepository(db),
		Checklist:   NewChecklistRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}

// WithTx 返回绑定到事务的仓库集合
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return NewRepositories(tx)
}

func newID() string {
	return uuid.New().String()[:32]
}

// notFound 将 gorm.ErrRecordNotFound 转换为 ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
