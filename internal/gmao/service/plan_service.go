package service

import (
	"context"
	"strings"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PlanService 预防性维护计划
type PlanService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
	events *events
}

func NewPlanService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger, ev *events) *PlanService {
	return &PlanService{db: db, repos: repos, logger: logger, events: ev}
}

// ComponentInput 计划组件
type ComponentInput struct {
	Label     string `json:"label" binding:"required"`
	FieldType string `json:"field_type" binding:"required"`
}

// CreatePlanInput 创建计划参数
type CreatePlanInput struct {
	Name        string           `json:"name" binding:"required"`
	Periodicity int              `json:"periodicity" binding:"required"`
	CounterID   *string          `json:"counter_id"`
	Components  []ComponentInput `json:"components"`
}

// UpdatePlanInput 更新计划参数；Components 非 nil 时整体替换
type UpdatePlanInput struct {
	Name        *string          `json:"name"`
	Periodicity *int             `json:"periodicity"`
	CounterID   *string          `json:"counter_id"`
	Components  []ComponentInput `json:"components"`
}

func buildComponents(inputs []ComponentInput) ([]entity.PlanComponent, error) {
	components := make([]entity.PlanComponent, 0, len(inputs))
	for i, in := range inputs {
		label := strings.TrimSpace(in.Label)
		if label == "" {
			return nil, validationf("components", "component %d: label is required", i+1)
		}
		if !entity.IsValidFieldType(in.FieldType) {
			return nil, validationf("components", "component %q: unknown field type %q", label, in.FieldType)
		}
		components = append(components, entity.PlanComponent{Label: label, FieldType: in.FieldType, SortOrder: i})
	}
	return components, nil
}

func nonEmpty(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return id
}

// List 设备的计划（含组件）
func (s *PlanService) List(ctx context.Context, machineID string) ([]entity.MaintenancePlan, error) {
	if _, err := s.repos.Machine.FindByID(ctx, machineID); err != nil {
		return nil, wrapNotFound(err, "machine", machineID)
	}
	return s.repos.Plan.ListByMachine(ctx, machineID)
}

func (s *PlanService) Get(ctx context.Context, id string) (*entity.MaintenancePlan, error) {
	p, err := s.repos.Plan.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "plan", id)
	}
	return p, nil
}

// Create 创建计划，计数器来源必须可用
func (s *PlanService) Create(ctx context.Context, actorID, machineID string, input CreatePlanInput) (*entity.MaintenancePlan, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationf("name", "is required")
	}
	if input.Periodicity <= 0 {
		return nil, validationf("periodicity", "must be > 0")
	}
	components, err := buildComponents(input.Components)
	if err != nil {
		return nil, err
	}

	plan := &entity.MaintenancePlan{
		MachineID:   machineID,
		Name:        name,
		Periodicity: input.Periodicity,
		CounterID:   nonEmpty(input.CounterID),
		CreatedBy:   actorID,
		Components:  components,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		m, err := repos.Machine.FindByID(ctx, machineID)
		if err != nil {
			return wrapNotFound(err, "machine", machineID)
		}
		if _, err := checkPlanBinding(ctx, repos, m, plan.CounterID); err != nil {
			return err
		}
		if err := repos.Plan.Create(ctx, plan); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "plan", plan.ID, "create", plan.Name, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.events.invalidate()
	s.logger.Info("plan created", zap.String("plan_id", plan.ID), zap.String("machine_id", machineID))
	return s.Get(ctx, plan.ID)
}

// Update 更新计划。修改周期不影响已有进度；切换计数器时同步进度记录的 counter_id。
func (s *PlanService) Update(ctx context.Context, actorID, id string, input UpdatePlanInput) (*entity.MaintenancePlan, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		plan, err := repos.Plan.FindByID(ctx, id)
		if err != nil {
			return wrapNotFound(err, "plan", id)
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return validationf("name", "is required")
			}
			plan.Name = name
		}
		if input.Periodicity != nil {
			if *input.Periodicity <= 0 {
				return validationf("periodicity", "must be > 0")
			}
			plan.Periodicity = *input.Periodicity
		}
		if input.CounterID != nil {
			m, err := repos.Machine.FindByID(ctx, plan.MachineID)
			if err != nil {
				return wrapNotFound(err, "machine", plan.MachineID)
			}
			counterID := nonEmpty(input.CounterID)
			b, err := checkPlanBinding(ctx, repos, m, counterID)
			if err != nil {
				return err
			}
			plan.CounterID = b.CounterIDPtr()
			if err := repos.Progress.RebindCounter(ctx, plan.ID, plan.CounterID); err != nil {
				return err
			}
		}
		plan.Counter = nil
		if err := repos.Plan.Update(ctx, plan); err != nil {
			return err
		}
		if input.Components != nil {
			components, err := buildComponents(input.Components)
			if err != nil {
				return err
			}
			if err := repos.Plan.ReplaceComponents(ctx, plan.ID, components); err != nil {
				return err
			}
		}
		return repos.ActivityLog.Log(ctx, "plan", plan.ID, "update", plan.Name, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.events.invalidate()
	return s.Get(ctx, id)
}

// Delete 删除计划，已有保养记录时拒绝
func (s *PlanService) Delete(ctx context.Context, actorID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		plan, err := repos.Plan.FindByID(ctx, id)
		if err != nil {
			return wrapNotFound(err, "plan", id)
		}
		entries, err := repos.Maintenance.CountEntriesByPlan(ctx, id)
		if err != nil {
			return err
		}
		if err := dependents("plan has maintenance history", map[string]int64{"preventive_maintenances": entries}); err != nil {
			return err
		}
		if err := repos.Progress.DeleteByPlan(ctx, id); err != nil {
			return err
		}
		if err := repos.Plan.Delete(ctx, id); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "plan", id, "delete", plan.Name, actorID)
	})
	if err != nil {
		return err
	}
	s.events.invalidate()
	return nil
}

// Progress 设备各计划的剩余进度
func (s *PlanService) Progress(ctx context.Context, machineID string) ([]ProgressView, error) {
	return progressViews(ctx, s.repos, machineID)
}
