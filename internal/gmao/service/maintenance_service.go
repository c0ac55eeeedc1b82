package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaintenanceService 预防性保养与纠正性维修
type MaintenanceService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	engine *MovementEngine
	logger *zap.Logger
	events *events
}

func NewMaintenanceService(db *gorm.DB, repos *repository.Repositories, engine *MovementEngine, logger *zap.Logger, ev *events) *MaintenanceService {
	return &MaintenanceService{db: db, repos: repos, engine: engine, logger: logger, events: ev}
}

// ProductQuantity 消耗的产品
type ProductQuantity struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// RecordMaintenanceInput 记录保养
// Values 以组件 id 为键，值可为 bool、数字或字符串。
type RecordMaintenanceInput struct {
	MachineID      string                 `json:"machine_id" binding:"required"`
	PlanID         string                 `json:"plan_id" binding:"required"`
	Values         map[string]interface{} `json:"values"`
	PerformedHours *float64               `json:"performed_hours"`
	StockID        *string                `json:"stock_id"`
	Products       []ProductQuantity      `json:"products"`
}

// parseComponentValues 按组件类型校验填写值
func parseComponentValues(components []entity.PlanComponent, values map[string]interface{}) ([]entity.MaintenanceEntryValue, error) {
	out := make([]entity.MaintenanceEntryValue, 0, len(components))
	for _, c := range components {
		raw, present := values[c.ID]
		v := entity.MaintenanceEntryValue{ComponentID: c.ID}
		switch c.FieldType {
		case entity.FieldTypeCheckbox:
			checked := false
			switch x := raw.(type) {
			case bool:
				checked = x
			case string:
				checked = x == "on" || x == "true" || x == "1"
			case float64:
				checked = x != 0
			}
			v.ValueBool = &checked
		case entity.FieldTypeNumber:
			var n float64
			switch x := raw.(type) {
			case float64:
				n = x
			case int:
				n = float64(x)
			case string:
				parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(x), ",", "."), 64)
				if err != nil {
					return nil, validationf("values", "component %q requires a numeric value", c.Label)
				}
				n = parsed
			default:
				return nil, validationf("values", "component %q requires a numeric value", c.Label)
			}
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, validationf("values", "component %q requires a numeric value", c.Label)
			}
			v.ValueNumber = &n
		case entity.FieldTypeText:
			s, _ := raw.(string)
			s = strings.TrimSpace(s)
			if !present || s == "" {
				return nil, validationf("values", "component %q is required", c.Label)
			}
			v.ValueText = &s
		default:
			return nil, fmt.Errorf("component %s has unknown field type %q", c.ID, c.FieldType)
		}
		out = append(out, v)
	}
	return out, nil
}

func consumption(products []ProductQuantity) []entity.MovementItem {
	items := make([]entity.MovementItem, 0, len(products))
	for _, p := range products {
		items = append(items, entity.MovementItem{ProductID: p.ProductID, Quantity: p.Quantity})
	}
	return items
}

// consumptionStock 消耗产品时使用的库存点：显式指定优先，否则取设备默认库存点
func consumptionStock(m *entity.Machine, stockID *string) *string {
	if id := nonEmpty(stockID); id != nil {
		return id
	}
	return nonEmpty(m.StockID)
}

// currentCounterValue 计划绑定计数器的当前读数
func currentCounterValue(ctx context.Context, repos *repository.Repositories, m *entity.Machine, b entity.CounterBinding) (float64, error) {
	if b.Kind == entity.BindingOwnCounter {
		return m.Hours, nil
	}
	c, err := repos.Counter.FindByID(ctx, b.CounterID)
	if err != nil {
		return 0, wrapNotFound(err, "counter", b.CounterID)
	}
	return c.Value, nil
}

// RecordMaintenance 记录一次预防性保养：
// 校验组件值，按需出库消耗的产品，重置进度并保存记录，全部在一个事务内完成。
func (s *MaintenanceService) RecordMaintenance(ctx context.Context, actorID string, input RecordMaintenanceInput) (*entity.MaintenanceEntry, error) {
	entry := &entity.MaintenanceEntry{
		ID:        uuid.New().String()[:32],
		MachineID: input.MachineID,
		PlanID:    input.PlanID,
		CreatedBy: actorID,
	}
	var machineCode, planName string
	var consumed *entity.Movement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		m, err := repos.Machine.FindByID(ctx, input.MachineID)
		if err != nil {
			return wrapNotFound(err, "machine", input.MachineID)
		}
		plan, err := repos.Plan.FindByID(ctx, input.PlanID)
		if err != nil {
			return wrapNotFound(err, "plan", input.PlanID)
		}
		if plan.MachineID != m.ID {
			return validationf("plan_id", "plan %s does not belong to machine %s", plan.Name, m.Code)
		}
		machineCode, planName = m.Code, plan.Name

		values, err := parseComponentValues(plan.Components, input.Values)
		if err != nil {
			return err
		}
		entry.Values = values

		binding, err := ResolveCounterBinding(m, plan)
		if err != nil {
			return err
		}
		entry.CounterID = binding.CounterIDPtr()
		if input.PerformedHours != nil {
			entry.PerformedHours = *input.PerformedHours
		} else if entry.PerformedHours, err = currentCounterValue(ctx, repos, m, binding); err != nil {
			return err
		}

		if len(input.Products) > 0 {
			stockID := consumptionStock(m, input.StockID)
			if stockID == nil {
				return validationf("stock_id", "a stock is required to consume products")
			}
			entry.StockID = stockID
			movement := &entity.Movement{
				Type:               entity.MovementSortie,
				SourceStockID:      stockID,
				MaintenanceEntryID: &entry.ID,
				Comment:            fmt.Sprintf("%s / %s", m.Code, plan.Name),
				CreatedBy:          actorID,
				Items:              consumption(input.Products),
			}
			if err := s.engine.Record(ctx, repos, movement); err != nil {
				return err
			}
			consumed = movement
		} else {
			entry.StockID = nonEmpty(input.StockID)
		}

		if entry.HoursBeforeMaintenance, err = resetProgress(ctx, repos, plan); err != nil {
			return err
		}
		if err := repos.Maintenance.CreateEntry(ctx, entry); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "maintenance", entry.ID, "create", plan.Name, actorID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("maintenance recorded",
		zap.String("entry_id", entry.ID),
		zap.String("machine_id", entry.MachineID),
		zap.String("plan_id", entry.PlanID),
		zap.Float64("hours_before", entry.HoursBeforeMaintenance))
	s.events.emit(Notification{
		Event:     EventMaintenanceRecorded,
		ActorID:   actorID,
		MachineID: entry.MachineID,
		EntityID:  entry.ID,
		Message:   fmt.Sprintf("maintenance %s performed on %s", planName, machineCode),
	})
	s.events.lowStock(ctx, s.repos, actorID, consumed)
	return s.GetEntry(ctx, entry.ID)
}

// DeleteEntry 删除保养记录并冲回其出库；进度不恢复
func (s *MaintenanceService) DeleteEntry(ctx context.Context, actorID, id string) error {
	var machineID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		entry, err := repos.Maintenance.FindEntry(ctx, id)
		if err != nil {
			return wrapNotFound(err, "maintenance entry", id)
		}
		machineID = entry.MachineID
		movements, err := repos.Movement.ListByMaintenanceEntry(ctx, id)
		if err != nil {
			return err
		}
		for i := range movements {
			if err := s.engine.reverseAndDelete(ctx, repos, actorID, &movements[i]); err != nil {
				return err
			}
		}
		if err := repos.Maintenance.DeleteEntry(ctx, id); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "maintenance", id, "delete", fmt.Sprintf("%d movements reversed", len(movements)), actorID)
	})
	if err != nil {
		return err
	}
	s.events.emit(Notification{Event: EventMaintenanceDeleted, ActorID: actorID, MachineID: machineID, EntityID: id, Message: "maintenance entry deleted"})
	return nil
}

func (s *MaintenanceService) GetEntry(ctx context.Context, id string) (*entity.MaintenanceEntry, error) {
	e, err := s.repos.Maintenance.FindEntry(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "maintenance entry", id)
	}
	return e, nil
}

func (s *MaintenanceService) ListEntries(ctx context.Context, params repository.MaintenanceListParams) ([]entity.MaintenanceEntry, int64, error) {
	return s.repos.Maintenance.ListEntries(ctx, params)
}

// CorrectiveInput 记录纠正性维修
type CorrectiveInput struct {
	MachineID string            `json:"machine_id" binding:"required"`
	Comment   string            `json:"comment"`
	Hours     *float64          `json:"hours"`
	StockID   *string           `json:"stock_id"`
	Products  []ProductQuantity `json:"products"`
}

// RecordCorrective 记录纠正性维修；有库存点时消耗的产品通过关联出库扣减，不截断数量
func (s *MaintenanceService) RecordCorrective(ctx context.Context, actorID string, input CorrectiveInput) (*entity.CorrectiveMaintenance, error) {
	cm := &entity.CorrectiveMaintenance{
		ID:        uuid.New().String()[:32],
		MachineID: input.MachineID,
		Comment:   strings.TrimSpace(input.Comment),
		CreatedBy: actorID,
	}
	var machineCode string
	var consumed *entity.Movement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		m, err := repos.Machine.FindByID(ctx, input.MachineID)
		if err != nil {
			return wrapNotFound(err, "machine", input.MachineID)
		}
		machineCode = m.Code
		cm.Hours = m.Hours
		if input.Hours != nil {
			cm.Hours = *input.Hours
		}
		for i, p := range input.Products {
			if err := checkItemQuantity("products", i, p.Quantity); err != nil {
				return err
			}
			cm.Products = append(cm.Products, entity.CorrectiveProduct{ProductID: p.ProductID, Quantity: p.Quantity})
		}

		cm.StockID = consumptionStock(m, input.StockID)
		if len(input.Products) > 0 && cm.StockID != nil {
			movement := &entity.Movement{
				Type:                    entity.MovementSortie,
				SourceStockID:           cm.StockID,
				CorrectiveMaintenanceID: &cm.ID,
				Comment:                 fmt.Sprintf("%s / corrective", m.Code),
				CreatedBy:               actorID,
				Items:                   consumption(input.Products),
			}
			if err := s.engine.Record(ctx, repos, movement); err != nil {
				return err
			}
			consumed = movement
		} else if len(input.Products) > 0 {
			ids := make([]string, 0, len(input.Products))
			for _, p := range input.Products {
				ids = append(ids, p.ProductID)
			}
			found, err := repos.Stock.FindProductsByIDs(ctx, ids)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if _, ok := found[id]; !ok {
					return notFoundf("product", id)
				}
			}
		}

		if err := repos.Maintenance.CreateCorrective(ctx, cm); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "corrective", cm.ID, "create", cm.Comment, actorID)
	})
	if err != nil {
		return nil, err
	}
	s.events.emit(Notification{
		Event:     EventCorrectiveRecorded,
		ActorID:   actorID,
		MachineID: cm.MachineID,
		EntityID:  cm.ID,
		Message:   fmt.Sprintf("corrective maintenance on %s", machineCode),
	})
	s.events.lowStock(ctx, s.repos, actorID, consumed)
	return s.GetCorrective(ctx, cm.ID)
}

// DeleteCorrective 删除纠正性维修并冲回其出库
func (s *MaintenanceService) DeleteCorrective(ctx context.Context, actorID, id string) error {
	var machineID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		cm, err := repos.Maintenance.FindCorrective(ctx, id)
		if err != nil {
			return wrapNotFound(err, "corrective maintenance", id)
		}
		machineID = cm.MachineID
		movements, err := repos.Movement.ListByCorrective(ctx, id)
		if err != nil {
			return err
		}
		for i := range movements {
			if err := s.engine.reverseAndDelete(ctx, repos, actorID, &movements[i]); err != nil {
				return err
			}
		}
		if err := repos.Maintenance.DeleteCorrective(ctx, id); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "corrective", id, "delete", "", actorID)
	})
	if err != nil {
		return err
	}
	s.events.emit(Notification{
		Event:     EventCorrectiveDeleted,
		ActorID:   actorID,
		MachineID: machineID,
		EntityID:  id,
		Message:   "corrective maintenance deleted",
	})
	return nil
}

func (s *MaintenanceService) GetCorrective(ctx context.Context, id string) (*entity.CorrectiveMaintenance, error) {
	cm, err := s.repos.Maintenance.FindCorrective(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "corrective maintenance", id)
	}
	return cm, nil
}

func (s *MaintenanceService) ListCorrective(ctx context.Context, params repository.MaintenanceListParams) ([]entity.CorrectiveMaintenance, int64, error) {
	return s.repos.Maintenance.ListCorrective(ctx, params)
}
