package repository

import (
	"context"
	"fmt"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanRepository 维护计划仓库
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func preloadPlan(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Components", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Preload("Counter")
}

// Create 创建计划及其组件
func (r *PlanRepository) Create(ctx context.Context, p *entity.MaintenancePlan) error {
	if p.ID == "" {
		p.ID = newID()
	}
	for i := range p.Components {
		if p.Components[i].ID == "" {
			p.Components[i].ID = newID()
		}
		p.Components[i].PlanID = p.ID
	}
	return r.db.WithContext(ctx).Omit("Counter").Create(p).Error
}

func (r *PlanRepository) FindByID(ctx context.Context, id string) (*entity.MaintenancePlan, error) {
	var p entity.MaintenancePlan
	if err := preloadPlan(r.db.WithContext(ctx)).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *PlanRepository) ListByMachine(ctx context.Context, machineID string) ([]entity.MaintenancePlan, error) {
	var plans []entity.MaintenancePlan
	err := preloadPlan(r.db.WithContext(ctx)).Where("machine_id = ?", machineID).Order("name").Find(&plans).Error
	return plans, err
}

// ListByBinding 查询绑定到指定计数器来源的计划
func (r *PlanRepository) ListByBinding(ctx context.Context, b entity.CounterBinding) ([]entity.MaintenancePlan, error) {
	var plans []entity.MaintenancePlan
	query := r.db.WithContext(ctx).Model(&entity.MaintenancePlan{})
	switch b.Kind {
	case entity.BindingOwnCounter:
		query = query.Where("machine_id = ? AND counter_id IS NULL", b.MachineID)
	case entity.BindingNamedCounter:
		query = query.Where("counter_id = ?", b.CounterID)
	default:
		return nil, fmt.Errorf("unknown counter binding %q", b.Kind)
	}
	err := query.Order("id").Find(&plans).Error
	return plans, err
}

// Update 更新计划字段
func (r *PlanRepository) Update(ctx context.Context, p *entity.MaintenancePlan) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

// ReplaceComponents 整体替换计划组件
func (r *PlanRepository) ReplaceComponents(ctx context.Context, planID string, components []entity.PlanComponent) error {
	if err := r.db.WithContext(ctx).Where("plan_id = ?", planID).Delete(&entity.PlanComponent{}).Error; err != nil {
		return err
	}
	if len(components) == 0 {
		return nil
	}
	for i := range components {
		if components[i].ID == "" {
			components[i].ID = newID()
		}
		components[i].PlanID = planID
	}
	return r.db.WithContext(ctx).Create(&components).Error
}

// Delete 删除计划及其组件
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("plan_id = ?", id).Delete(&entity.PlanComponent{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.MaintenancePlan{}).Error
}

func (r *PlanRepository) CountByCounter(ctx context.Context, counterID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.MaintenancePlan{}).Where("counter_id = ?", counterID).Count(&count).Error
	return count, err
}

func (r *PlanRepository) IDsByMachine(ctx context.Context, machineID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&entity.MaintenancePlan{}).Where("machine_id = ?", machineID).Pluck("id", &ids).Error
	return ids, err
}
