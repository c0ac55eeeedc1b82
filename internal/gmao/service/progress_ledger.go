package service

import (
	"context"
	"fmt"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
)

// CounterUpdate 一次计数器变更的结果
type CounterUpdate struct {
	Binding     entity.CounterBinding `json:"binding"`
	MachineID   string                `json:"machine_id"`
	OldValue    float64               `json:"old_value"`
	NewValue    float64               `json:"new_value"`
	Delta       float64               `json:"delta"`
	Kind        string                `json:"kind"`
	Seeded      int                   `json:"seeded"`
	Decremented int                   `json:"decremented"`
}

// moveCounter 在调用方事务内推进或修正计数器：
// 锁定计数器行 -> 补齐缺失的进度记录 -> 已有记录 hours_since -= delta -> 写日志 -> 写入新值。
// 本次新建的进度记录保持周期值，不受触发它的增量影响。
func moveCounter(ctx context.Context, repos *repository.Repositories, actorID string, b entity.CounterBinding, newValue float64, kind string) (*CounterUpdate, error) {
	if newValue < 0 {
		return nil, validationf("value", "counter value must be >= 0")
	}

	update := &CounterUpdate{Binding: b, NewValue: newValue, Kind: kind}
	switch b.Kind {
	case entity.BindingOwnCounter:
		m, err := repos.Machine.LockByID(ctx, b.MachineID)
		if err != nil {
			return nil, wrapNotFound(err, "machine", b.MachineID)
		}
		if !m.HourCounterEnabled {
			return nil, validationf("machine_id", "machine %s has no own hour counter", m.Code)
		}
		update.OldValue = m.Hours
		update.MachineID = m.ID
	case entity.BindingNamedCounter:
		c, err := repos.Counter.LockByID(ctx, b.CounterID)
		if err != nil {
			return nil, wrapNotFound(err, "counter", b.CounterID)
		}
		update.OldValue = c.Value
		update.MachineID = c.MachineID
	default:
		return nil, fmt.Errorf("unknown counter binding %q", b.Kind)
	}

	if kind == entity.CounterLogKindAdvance && newValue < update.OldValue {
		return nil, validationf("value", "new value must be >= previous value %.2f", update.OldValue)
	}
	update.Delta = newValue - update.OldValue

	plans, err := repos.Plan.ListByBinding(ctx, b)
	if err != nil {
		return nil, err
	}
	existing := make([]string, 0, len(plans))
	for i := range plans {
		rec, created, err := repos.Progress.GetOrCreate(ctx, &plans[i])
		if err != nil {
			return nil, err
		}
		if created {
			update.Seeded++
			continue
		}
		existing = append(existing, rec.ID)
	}
	if err := repos.Progress.ApplyDelta(ctx, existing, update.Delta); err != nil {
		return nil, err
	}
	update.Decremented = len(existing)

	if err := repos.Counter.CreateLog(ctx, &entity.CounterLog{
		MachineID:     update.MachineID,
		CounterID:     b.CounterIDPtr(),
		PreviousValue: update.OldValue,
		NewValue:      newValue,
		Kind:          kind,
		CreatedBy:     actorID,
	}); err != nil {
		return nil, err
	}

	if b.Kind == entity.BindingOwnCounter {
		err = repos.Machine.SetHours(ctx, b.MachineID, newValue)
	} else {
		err = repos.Counter.SetValue(ctx, b.CounterID, newValue)
	}
	if err != nil {
		return nil, err
	}
	return update, nil
}

// resetProgress 保养完成后将进度重置为周期值，返回重置前的剩余值
func resetProgress(ctx context.Context, repos *repository.Repositories, plan *entity.MaintenancePlan) (float64, error) {
	rec, _, err := repos.Progress.GetOrCreate(ctx, plan)
	if err != nil {
		return 0, err
	}
	before := rec.HoursSince
	if err := repos.Progress.SetHoursSince(ctx, rec.ID, float64(plan.Periodicity)); err != nil {
		return 0, err
	}
	return before, nil
}

// ProgressView 计划进度视图
type ProgressView struct {
	PlanID      string                `json:"plan_id"`
	PlanName    string                `json:"plan_name"`
	Periodicity int                   `json:"periodicity"`
	HoursSince  float64               `json:"hours_since"`
	IsDue       bool                  `json:"is_due"`
	Started     bool                  `json:"started"`
	Binding     entity.CounterBinding `json:"binding"`
	CounterName string                `json:"counter_name"`
	Unit        string                `json:"unit"`
}

// progressViews 只读：尚未建立进度记录的计划按周期值展示，不会创建记录
func progressViews(ctx context.Context, repos *repository.Repositories, machineID string) ([]ProgressView, error) {
	m, err := repos.Machine.FindByID(ctx, machineID)
	if err != nil {
		return nil, wrapNotFound(err, "machine", machineID)
	}
	plans, err := repos.Plan.ListByMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	records, err := repos.Progress.ListByMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	byPlan := make(map[string]entity.ProgressRecord, len(records))
	for _, r := range records {
		byPlan[r.PlanID] = r
	}

	views := make([]ProgressView, 0, len(plans))
	for _, p := range plans {
		v := ProgressView{
			PlanID:      p.ID,
			PlanName:    p.Name,
			Periodicity: p.Periodicity,
			HoursSince:  float64(p.Periodicity),
		}
		if p.CounterID != nil {
			v.Binding = entity.NamedCounter(*p.CounterID)
			if p.Counter != nil {
				v.CounterName = p.Counter.Name
				v.Unit = p.Counter.Unit
			}
		} else {
			v.Binding = entity.OwnCounter(machineID)
			v.CounterName = m.Name
			v.Unit = m.CounterUnit
		}
		if rec, ok := byPlan[p.ID]; ok {
			v.HoursSince = rec.HoursSince
			v.Started = true
		}
		v.IsDue = v.HoursSince <= 0
		views = append(views, v)
	}
	return views, nil
}
