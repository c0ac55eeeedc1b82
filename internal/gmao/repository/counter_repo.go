package repository

import (
	"context"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CounterRepository 计数器与计数器日志仓库
type CounterRepository struct {
	db *gorm.DB
}

func NewCounterRepository(db *gorm.DB) *CounterRepository {
	return &CounterRepository{db: db}
}

func (r *CounterRepository) Create(ctx context.Context, c *entity.Counter) error {
	if c.ID == "" {
		c.ID = newID()
	}
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CounterRepository) FindByID(ctx context.Context, id string) (*entity.Counter, error) {
	var c entity.Counter
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// LockByID 加行锁读取计数器
func (r *CounterRepository) LockByID(ctx context.Context, id string) (*entity.Counter, error) {
	var c entity.Counter
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *CounterRepository) ListByMachine(ctx context.Context, machineID string) ([]entity.Counter, error) {
	var counters []entity.Counter
	err := r.db.WithContext(ctx).Where("machine_id = ?", machineID).Order("name").Find(&counters).Error
	return counters, err
}

func (r *CounterRepository) ExistsByName(ctx context.Context, machineID, name, excludeID string) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&entity.Counter{}).Where("machine_id = ? AND name = ?", machineID, name)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *CounterRepository) Update(ctx context.Context, c *entity.Counter) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *CounterRepository) SetValue(ctx context.Context, id string, value float64) error {
	return r.db.WithContext(ctx).Model(&entity.Counter{}).Where("id = ?", id).Update("value", value).Error
}

func (r *CounterRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Counter{}).Error
}

func (r *CounterRepository) DeleteByMachine(ctx context.Context, machineID string) error {
	return r.db.WithContext(ctx).Where("machine_id = ?", machineID).Delete(&entity.Counter{}).Error
}

// CreateLog 追加计数器日志
func (r *CounterRepository) CreateLog(ctx context.Context, log *entity.CounterLog) error {
	if log.ID == "" {
		log.ID = newID()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// ListLogs 查询设备的计数器日志，counterID 为 nil 时返回自身计数器日志
func (r *CounterRepository) ListLogs(ctx context.Context, machineID string, counterID *string, page, pageSize int) ([]entity.CounterLog, int64, error) {
	var items []entity.CounterLog
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.CounterLog{}).Where("machine_id = ?", machineID)
	if counterID != nil {
		query = query.Where("counter_id = ?", *counterID)
	} else {
		query = query.Where("counter_id IS NULL")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

func (r *CounterRepository) CountLogsByMachine(ctx context.Context, machineID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.CounterLog{}).Where("machine_id = ?", machineID).Count(&count).Error
	return count, err
}

func (r *CounterRepository) CountLogsByCounter(ctx context.Context, counterID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.CounterLog{}).Where("counter_id = ?", counterID).Count(&count).Error
	return count, err
}
