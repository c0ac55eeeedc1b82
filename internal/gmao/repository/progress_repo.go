package repository

import (
	"context"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository 维护进度台账
type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// LockByPlans 加锁读取指定计划的进度记录
func (r *ProgressRepository) LockByPlans(ctx context.Context, planIDs []string) ([]entity.ProgressRecord, error) {
	var records []entity.ProgressRecord
	if len(planIDs) == 0 {
		return records, nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("plan_id IN ?", planIDs).Order("id").Find(&records).Error
	return records, err
}

// GetOrCreate 幂等获取 (machine, plan) 的进度记录，不存在时以周期值初始化。
// created 表示本次调用插入了新记录。
func (r *ProgressRepository) GetOrCreate(ctx context.Context, plan *entity.MaintenancePlan) (rec *entity.ProgressRecord, created bool, err error) {
	seed := &entity.ProgressRecord{
		ID:         newID(),
		MachineID:  plan.MachineID,
		PlanID:     plan.ID,
		CounterID:  plan.CounterID,
		HoursSince: float64(plan.Periodicity),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "machine_id"}, {Name: "plan_id"}},
		DoNothing: true,
	}).Omit(clause.Associations).Create(seed)
	if res.Error != nil {
		return nil, false, res.Error
	}

	var record entity.ProgressRecord
	err = r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("machine_id = ? AND plan_id = ?", plan.MachineID, plan.ID).First(&record).Error
	if err != nil {
		return nil, false, notFound(err)
	}
	return &record, res.RowsAffected == 1, nil
}

// ApplyDelta 对指定记录执行 hours_since -= delta，不做截断
func (r *ProgressRepository) ApplyDelta(ctx context.Context, ids []string, delta float64) error {
	if len(ids) == 0 || delta == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.ProgressRecord{}).
		Where("id IN ?", ids).
		Update("hours_since", gorm.Expr("hours_since - ?", delta)).Error
}

func (r *ProgressRepository) SetHoursSince(ctx context.Context, id string, value float64) error {
	return r.db.WithContext(ctx).Model(&entity.ProgressRecord{}).Where("id = ?", id).
		Update("hours_since", value).Error
}

// RebindCounter 计划切换计数器后同步进度记录上的 counter_id
func (r *ProgressRepository) RebindCounter(ctx context.Context, planID string, counterID *string) error {
	return r.db.WithContext(ctx).Model(&entity.ProgressRecord{}).Where("plan_id = ?", planID).
		Update("counter_id", counterID).Error
}

func (r *ProgressRepository) FindByMachinePlan(ctx context.Context, machineID, planID string) (*entity.ProgressRecord, error) {
	var record entity.ProgressRecord
	err := r.db.WithContext(ctx).Where("machine_id = ? AND plan_id = ?", machineID, planID).First(&record).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

// ListByMachine 查询设备的进度记录（含计划与计数器）
func (r *ProgressRepository) ListByMachine(ctx context.Context, machineID string) ([]entity.ProgressRecord, error) {
	var records []entity.ProgressRecord
	err := r.db.WithContext(ctx).
		Preload("Plan").Preload("Plan.Counter").
		Where("machine_id = ?", machineID).Order("id").Find(&records).Error
	return records, err
}

func (r *ProgressRepository) CountDue(ctx context.Context, machineID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ProgressRecord{}).
		Where("machine_id = ? AND hours_since <= 0", machineID).Count(&count).Error
	return count, err
}

func (r *ProgressRepository) DeleteByPlan(ctx context.Context, planID string) error {
	return r.db.WithContext(ctx).Where("plan_id = ?", planID).Delete(&entity.ProgressRecord{}).Error
}

func (r *ProgressRepository) DeleteByMachine(ctx context.Context, machineID string) error {
	return r.db.WithContext(ctx).Where("machine_id = ?", machineID).Delete(&entity.ProgressRecord{}).Error
}
