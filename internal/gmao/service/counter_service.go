package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CounterService 计数器与进度台账
type CounterService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
	events *events
}

func NewCounterService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger, ev *events) *CounterService {
	return &CounterService{db: db, repos: repos, logger: logger, events: ev}
}

// CounterTargetInput 计数器更新请求，CounterID 为空表示设备自身计数器
type CounterTargetInput struct {
	CounterID *string `json:"counter_id"`
	Value     float64 `json:"value"`
}

// MachineCounters 设备可用的计数器：自身计数器与所在树根设备的命名计数器
type MachineCounters struct {
	MachineID          string           `json:"machine_id"`
	HourCounterEnabled bool             `json:"hour_counter_enabled"`
	Hours              float64          `json:"hours"`
	CounterUnit        string           `json:"counter_unit"`
	RootID             string           `json:"root_id"`
	Named              []entity.Counter `json:"named_counters"`
}

// List 列出设备可用的计数器
func (s *CounterService) List(ctx context.Context, machineID string) (*MachineCounters, error) {
	m, err := s.repos.Machine.FindByID(ctx, machineID)
	if err != nil {
		return nil, wrapNotFound(err, "machine", machineID)
	}
	idx, err := s.repos.Machine.ParentIndex(ctx)
	if err != nil {
		return nil, err
	}
	root, err := machineIndex(idx).root(machineID)
	if err != nil {
		return nil, err
	}
	named, err := s.repos.Counter.ListByMachine(ctx, root)
	if err != nil {
		return nil, err
	}
	return &MachineCounters{
		MachineID:          m.ID,
		HourCounterEnabled: m.HourCounterEnabled,
		Hours:              m.Hours,
		CounterUnit:        m.CounterUnit,
		RootID:             root,
		Named:              named,
	}, nil
}

// CreateNamedCounterInput 新建命名计数器
type CreateNamedCounterInput struct {
	Name  string  `json:"name" binding:"required"`
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// CreateNamed 在根设备上新建命名计数器
func (s *CounterService) CreateNamed(ctx context.Context, actorID, machineID string, input CreateNamedCounterInput) (*entity.Counter, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationf("name", "is required")
	}
	if input.Value < 0 {
		return nil, validationf("value", "counter value must be >= 0")
	}
	c := &entity.Counter{MachineID: machineID, Name: name, Unit: input.Unit, Value: input.Value}
	if c.Unit == "" {
		c.Unit = "h"
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		m, err := repos.Machine.FindByID(ctx, machineID)
		if err != nil {
			return wrapNotFound(err, "machine", machineID)
		}
		if !m.IsRoot() {
			return &ConsistencyError{Reason: "only root machines can own named counters"}
		}
		exists, err := repos.Counter.ExistsByName(ctx, machineID, name, "")
		if err != nil {
			return err
		}
		if exists {
			return validationf("name", "counter %q already exists on this machine", name)
		}
		if err := repos.Counter.Create(ctx, c); err != nil {
			return translateDBError(err, "name")
		}
		return repos.ActivityLog.Log(ctx, "counter", c.ID, "create", c.Name, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.events.invalidate()
	return c, nil
}

// UpdateNamedCounterInput 修改命名计数器的名称或单位，数值通过推进/修正接口变更
type UpdateNamedCounterInput struct {
	Name *string `json:"name"`
	Unit *string `json:"unit"`
}

func (s *CounterService) UpdateNamed(ctx context.Context, actorID, id string, input UpdateNamedCounterInput) (*entity.Counter, error) {
	var c *entity.Counter
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		var err error
		if c, err = repos.Counter.FindByID(ctx, id); err != nil {
			return wrapNotFound(err, "counter", id)
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return validationf("name", "is required")
			}
			exists, err := repos.Counter.ExistsByName(ctx, c.MachineID, name, c.ID)
			if err != nil {
				return err
			}
			if exists {
				return validationf("name", "counter %q already exists on this machine", name)
			}
			c.Name = name
		}
		if input.Unit != nil && *input.Unit != "" {
			c.Unit = *input.Unit
		}
		if err := repos.Counter.Update(ctx, c); err != nil {
			return translateDBError(err, "name")
		}
		return repos.ActivityLog.Log(ctx, "counter", c.ID, "update", c.Name, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.events.invalidate()
	return c, nil
}

// DeleteNamed 删除命名计数器，仍被计划引用时拒绝
func (s *CounterService) DeleteNamed(ctx context.Context, actorID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		c, err := repos.Counter.FindByID(ctx, id)
		if err != nil {
			return wrapNotFound(err, "counter", id)
		}
		plans, err := repos.Plan.CountByCounter(ctx, id)
		if err != nil {
			return err
		}
		if err := dependents("counter is referenced by maintenance plans", map[string]int64{"maintenance_plans": plans}); err != nil {
			return err
		}
		if err := repos.Counter.Delete(ctx, id); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "counter", id, "delete", c.Name, actorID)
	})
	if err != nil {
		return err
	}
	s.events.invalidate()
	return nil
}

// Advance 推进计数器，新值不得小于旧值
func (s *CounterService) Advance(ctx context.Context, actorID, machineID string, input CounterTargetInput) (*CounterUpdate, error) {
	return s.move(ctx, actorID, machineID, input, entity.CounterLogKindAdvance)
}

// Correct 修正计数器读数，允许减小；减小时进度按相同的带符号增量回补
func (s *CounterService) Correct(ctx context.Context, actorID, machineID string, input CounterTargetInput) (*CounterUpdate, error) {
	return s.move(ctx, actorID, machineID, input, entity.CounterLogKindCorrection)
}

func (s *CounterService) move(ctx context.Context, actorID, machineID string, input CounterTargetInput, kind string) (*CounterUpdate, error) {
	var update *CounterUpdate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		target, err := resolveCounterTarget(ctx, repos, machineID, input.CounterID)
		if err != nil {
			return err
		}
		if update, err = moveCounter(ctx, repos, actorID, target, input.Value, kind); err != nil {
			return err
		}
		if kind == entity.CounterLogKindCorrection {
			content := fmt.Sprintf("%s: %.2f -> %.2f", target, update.OldValue, update.NewValue)
			return repos.ActivityLog.Log(ctx, "counter", bindingEntityID(target), "correct", content, actorID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := EventCounterAdvanced
	if kind == entity.CounterLogKindCorrection {
		event = EventCounterCorrected
	}
	s.logger.Info("counter updated",
		zap.String("binding", update.Binding.String()),
		zap.String("kind", kind),
		zap.Float64("old_value", update.OldValue),
		zap.Float64("new_value", update.NewValue),
		zap.Int("seeded", update.Seeded),
		zap.Int("decremented", update.Decremented),
		zap.String("actor_id", actorID))
	s.events.emit(Notification{
		Event:     event,
		ActorID:   actorID,
		MachineID: machineID,
		EntityID:  bindingEntityID(update.Binding),
		Message:   fmt.Sprintf("counter %s: %.2f -> %.2f", update.Binding, update.OldValue, update.NewValue),
	})
	return update, nil
}

// ListLogs 计数器日志，counterID 为空时返回设备自身计数器的日志
func (s *CounterService) ListLogs(ctx context.Context, machineID string, counterID *string, page, pageSize int) ([]entity.CounterLog, int64, error) {
	target, err := resolveCounterTarget(ctx, s.repos, machineID, counterID)
	if err != nil {
		return nil, 0, err
	}
	if target.Kind == entity.BindingNamedCounter {
		c, err := s.repos.Counter.FindByID(ctx, target.CounterID)
		if err != nil {
			return nil, 0, wrapNotFound(err, "counter", target.CounterID)
		}
		// 命名计数器的日志记在根设备上
		machineID = c.MachineID
	}
	return s.repos.Counter.ListLogs(ctx, machineID, target.CounterIDPtr(), page, pageSize)
}

func bindingEntityID(b entity.CounterBinding) string {
	if b.Kind == entity.BindingNamedCounter {
		return b.CounterID
	}
	return b.MachineID
}
