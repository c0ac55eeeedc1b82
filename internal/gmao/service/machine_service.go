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

// MachineService 设备树服务
type MachineService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
	events *events
}

func NewMachineService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger, ev *events) *MachineService {
	return &MachineService{db: db, repos: repos, logger: logger, events: ev}
}

// CreateMachineInput 创建设备参数
type CreateMachineInput struct {
	Name               string  `json:"name" binding:"required"`
	Code               string  `json:"code" binding:"required"`
	ParentID           *string `json:"parent_id"`
	HourCounterEnabled bool    `json:"hour_counter_enabled"`
	Hours              float64 `json:"hours"`
	CounterUnit        string  `json:"counter_unit"`
	StockID            *string `json:"stock_id"`
	ColorIndex         int     `json:"color_index"`
}

// UpdateMachineInput 更新设备参数，nil 字段不修改
type UpdateMachineInput struct {
	Name               *string `json:"name"`
	Code               *string `json:"code"`
	HourCounterEnabled *bool   `json:"hour_counter_enabled"`
	CounterUnit        *string `json:"counter_unit"`
	StockID            *string `json:"stock_id"`
	ColorIndex         *int    `json:"color_index"`
}

func (s *MachineService) index(ctx context.Context, repos *repository.Repositories) (machineIndex, error) {
	idx, err := repos.Machine.ParentIndex(ctx)
	if err != nil {
		return nil, err
	}
	return machineIndex(idx), nil
}

// Create 创建设备
func (s *MachineService) Create(ctx context.Context, actorID string, input CreateMachineInput) (*entity.Machine, error) {
	name := strings.TrimSpace(input.Name)
	code := strings.TrimSpace(input.Code)
	if name == "" {
		return nil, validationf("name", "is required")
	}
	if code == "" {
		return nil, validationf("code", "is required")
	}
	if input.ParentID != nil && *input.ParentID == "" {
		input.ParentID = nil
	}

	m := &entity.Machine{
		Name:               name,
		Code:               code,
		ParentID:           input.ParentID,
		HourCounterEnabled: input.HourCounterEnabled,
		Hours:              input.Hours,
		CounterUnit:        input.CounterUnit,
		StockID:            input.StockID,
		ColorIndex:         input.ColorIndex,
		CreatedBy:          actorID,
	}
	if m.CounterUnit == "" {
		m.CounterUnit = "h"
	}
	if m.Hours < 0 {
		return nil, validationf("hours", "must be >= 0")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		exists, err := repos.Machine.ExistsByCode(ctx, code, "")
		if err != nil {
			return err
		}
		if exists {
			return validationf("code", "machine code %q already exists", code)
		}
		if m.ParentID != nil {
			idx, err := s.index(ctx, repos)
			if err != nil {
				return err
			}
			depth, err := idx.depth(*m.ParentID)
			if err != nil {
				return wrapNotFound(err, "parent machine", *m.ParentID)
			}
			if depth+1 > entity.MaxMachineDepth {
				return validationf("parent_id", "machine tree depth cannot exceed %d", entity.MaxMachineDepth)
			}
		}
		if m.StockID != nil {
			if _, err := repos.Stock.FindStock(ctx, *m.StockID); err != nil {
				return wrapNotFound(err, "stock", *m.StockID)
			}
		}
		if err := repos.Machine.Create(ctx, m); err != nil {
			return translateDBError(err, "code")
		}
		return repos.ActivityLog.Log(ctx, "machine", m.ID, "create", m.Code, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("machine created", zap.String("machine_id", m.ID), zap.String("code", m.Code), zap.String("actor_id", actorID))
	s.events.invalidate()
	return m, nil
}

// Update 更新设备属性（不含父节点）
func (s *MachineService) Update(ctx context.Context, actorID, id string, input UpdateMachineInput) (*entity.Machine, error) {
	var m *entity.Machine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		var err error
		m, err = repos.Machine.FindByID(ctx, id)
		if err != nil {
			return wrapNotFound(err, "machine", id)
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return validationf("name", "is required")
			}
			m.Name = name
		}
		if input.Code != nil {
			code := strings.TrimSpace(*input.Code)
			if code == "" {
				return validationf("code", "is required")
			}
			exists, err := repos.Machine.ExistsByCode(ctx, code, id)
			if err != nil {
				return err
			}
			if exists {
				return validationf("code", "machine code %q already exists", code)
			}
			m.Code = code
		}
		if input.HourCounterEnabled != nil && !*input.HourCounterEnabled && m.HourCounterEnabled {
			plans, err := repos.Plan.ListByBinding(ctx, entity.OwnCounter(id))
			if err != nil {
				return err
			}
			if len(plans) > 0 {
				return &ConsistencyError{
					Reason:     "machine own counter is still used by maintenance plans",
					Dependents: map[string]int64{"maintenance_plans": int64(len(plans))},
				}
			}
		}
		if input.HourCounterEnabled != nil {
			m.HourCounterEnabled = *input.HourCounterEnabled
		}
		if input.CounterUnit != nil && *input.CounterUnit != "" {
			m.CounterUnit = *input.CounterUnit
		}
		if input.StockID != nil {
			if *input.StockID == "" {
				m.StockID = nil
			} else {
				if _, err := repos.Stock.FindStock(ctx, *input.StockID); err != nil {
					return wrapNotFound(err, "stock", *input.StockID)
				}
				m.StockID = input.StockID
			}
		}
		if input.ColorIndex != nil {
			m.ColorIndex = *input.ColorIndex
		}
		if err := repos.Machine.Update(ctx, m); err != nil {
			return translateDBError(err, "code")
		}
		return repos.ActivityLog.Log(ctx, "machine", m.ID, "update", m.Code, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.events.invalidate()
	return m, nil
}

// Reparent 移动设备到新的父节点（nil 表示成为根设备）
// 校验：不形成环、深度不超过上限、子树内绑定的命名计数器仍属于新的根设备、拥有命名计数器的设备不能变为子设备。
func (s *MachineService) Reparent(ctx context.Context, actorID, id string, parentID *string) (*entity.Machine, error) {
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	var m *entity.Machine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		var err error
		m, err = repos.Machine.FindByID(ctx, id)
		if err != nil {
			return wrapNotFound(err, "machine", id)
		}
		idx, err := s.index(ctx, repos)
		if err != nil {
			return err
		}

		newRoot := id
		if parentID != nil {
			if *parentID == id {
				return validationf("parent_id", "a machine cannot be its own parent")
			}
			if _, ok := idx[*parentID]; !ok {
				return notFoundf("parent machine", *parentID)
			}
			if idx.isDescendant(*parentID, id) {
				return &ConsistencyError{Reason: "moving the machine under its own descendant would create a cycle"}
			}
			parentDepth, err := idx.depth(*parentID)
			if err != nil {
				return err
			}
			if parentDepth+idx.height(id) > entity.MaxMachineDepth {
				return validationf("parent_id", "machine tree depth cannot exceed %d", entity.MaxMachineDepth)
			}
			if len(m.Counters) > 0 {
				return &ConsistencyError{
					Reason:     "only root machines can own named counters",
					Dependents: map[string]int64{"counters": int64(len(m.Counters))},
				}
			}
			if newRoot, err = idx.root(*parentID); err != nil {
				return err
			}
		}

		// 子树内绑定到其他根设备计数器的计划数
		rootCounters, err := repos.Counter.ListByMachine(ctx, newRoot)
		if err != nil {
			return err
		}
		allowed := map[string]bool{}
		for _, c := range rootCounters {
			allowed[c.ID] = true
		}
		var orphaned int64
		for _, machineID := range idx.subtree(id) {
			plans, err := repos.Plan.ListByMachine(ctx, machineID)
			if err != nil {
				return err
			}
			for _, p := range plans {
				if p.CounterID != nil && !allowed[*p.CounterID] {
					orphaned++
				}
			}
		}
		if orphaned > 0 {
			return &ConsistencyError{
				Reason:     "maintenance plans in the subtree are bound to counters of the current root",
				Dependents: map[string]int64{"maintenance_plans": orphaned},
			}
		}

		m.ParentID = parentID
		if err := repos.Machine.Update(ctx, m); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "machine", m.ID, "reparent", fmt.Sprintf("parent=%v", derefOr(parentID, "")), actorID)
	})
	if err != nil {
		return nil, err
	}
	s.events.invalidate()
	return m, nil
}

// Delete 删除设备。存在子设备、维修历史、计数器日志或点检记录时拒绝；
// 计划、计划组件、进度记录、命名计数器、关注与点检模板一并删除。
func (s *MachineService) Delete(ctx context.Context, actorID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		m, err := repos.Machine.FindByID(ctx, id)
		if err != nil {
			return wrapNotFound(err, "machine", id)
		}

		counts := map[string]int64{}
		if counts["children"], err = repos.Machine.CountChildren(ctx, id); err != nil {
			return err
		}
		if counts["preventive_maintenances"], err = repos.Maintenance.CountEntries(ctx, id, nil); err != nil {
			return err
		}
		if counts["corrective_maintenances"], err = repos.Maintenance.CountCorrective(ctx, id, nil); err != nil {
			return err
		}
		if counts["counter_logs"], err = repos.Counter.CountLogsByMachine(ctx, id); err != nil {
			return err
		}
		if counts["checklist_instances"], err = repos.Checklist.CountInstances(ctx, id); err != nil {
			return err
		}
		if err := dependents("machine has dependent records", counts); err != nil {
			return err
		}

		if err := repos.Progress.DeleteByMachine(ctx, id); err != nil {
			return err
		}
		planIDs, err := repos.Plan.IDsByMachine(ctx, id)
		if err != nil {
			return err
		}
		for _, planID := range planIDs {
			if err := repos.Plan.Delete(ctx, planID); err != nil {
				return err
			}
		}
		if err := repos.Counter.DeleteByMachine(ctx, id); err != nil {
			return err
		}
		if err := repos.Machine.DeleteFollows(ctx, id); err != nil {
			return err
		}
		if err := repos.Checklist.DeleteTemplatesByMachine(ctx, id); err != nil {
			return err
		}
		if err := repos.Machine.Delete(ctx, id); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "machine", id, "delete", m.Code, actorID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("machine deleted", zap.String("machine_id", id), zap.String("actor_id", actorID))
	s.events.invalidate()
	return nil
}

// Tree 返回整棵设备树
func (s *MachineService) Tree(ctx context.Context) ([]*TreeNode, error) {
	machines, err := s.repos.Machine.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return buildTree(machines), nil
}

// MachineDetail 设备详情
type MachineDetail struct {
	Machine            *entity.Machine                `json:"machine"`
	IsRoot             bool                           `json:"is_root"`
	Level              int                            `json:"level"`
	ParentName         string                         `json:"parent_name,omitempty"`
	RootID             string                         `json:"root_id"`
	Children           []entity.Machine               `json:"children"`
	Progress           []ProgressView                 `json:"maintenance_progress"`
	Preventive         []entity.MaintenanceEntry      `json:"preventive_maintenances"`
	Corrective         []entity.CorrectiveMaintenance `json:"corrective_maintenances"`
	ChecklistTemplates []entity.ChecklistTemplate     `json:"checklist_templates"`
}

// Get 设备详情：计数器、子设备、进度与最近10条维修记录
func (s *MachineService) Get(ctx context.Context, id string) (*MachineDetail, error) {
	m, err := s.repos.Machine.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "machine", id)
	}
	idx, err := s.index(ctx, s.repos)
	if err != nil {
		return nil, err
	}
	path, err := idx.path(id)
	if err != nil {
		return nil, err
	}
	detail := &MachineDetail{
		Machine: m,
		IsRoot:  m.IsRoot(),
		Level:   len(path) - 1,
		RootID:  path[len(path)-1],
	}
	if p, ok := idx.parent(id); ok {
		if parent, err := s.repos.Machine.FindByID(ctx, p); err == nil {
			detail.ParentName = parent.Name
		}
	}
	if detail.Children, err = s.repos.Machine.FindChildren(ctx, id); err != nil {
		return nil, err
	}
	if detail.Progress, err = progressViews(ctx, s.repos, id); err != nil {
		return nil, err
	}
	params := repository.MaintenanceListParams{MachineID: id, Page: 1, PageSize: 10}
	if detail.Preventive, _, err = s.repos.Maintenance.ListEntries(ctx, params); err != nil {
		return nil, err
	}
	if detail.Corrective, _, err = s.repos.Maintenance.ListCorrective(ctx, params); err != nil {
		return nil, err
	}
	if detail.ChecklistTemplates, err = s.repos.Checklist.ListTemplates(ctx, id); err != nil {
		return nil, err
	}
	return detail, nil
}

// Follow 关注设备
func (s *MachineService) Follow(ctx context.Context, userID, machineID string) error {
	if _, err := s.repos.Machine.FindByID(ctx, machineID); err != nil {
		return wrapNotFound(err, "machine", machineID)
	}
	if err := s.repos.Machine.Follow(ctx, userID, machineID); err != nil {
		return err
	}
	s.events.invalidate()
	return nil
}

// Unfollow 取消关注
func (s *MachineService) Unfollow(ctx context.Context, userID, machineID string) error {
	if err := s.repos.Machine.Unfollow(ctx, userID, machineID); err != nil {
		return err
	}
	s.events.invalidate()
	return nil
}

func derefOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
