package service

import (
	"context"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
)

// ResolveCounterBinding 解析计划使用的计数器：
// 设置了 counter_id 的计划绑定根设备的命名计数器，否则使用设备自身计数器。
func ResolveCounterBinding(machine *entity.Machine, plan *entity.MaintenancePlan) (entity.CounterBinding, error) {
	if plan.CounterID != nil && *plan.CounterID != "" {
		return entity.NamedCounter(*plan.CounterID), nil
	}
	if !machine.HourCounterEnabled {
		return entity.CounterBinding{}, validationf("counter_id", "machine %s has no own hour counter, bind the plan to a root counter", machine.Code)
	}
	return entity.OwnCounter(machine.ID), nil
}

// checkPlanBinding 校验计划的计数器来源：命名计数器必须属于设备所在树的根设备
func checkPlanBinding(ctx context.Context, repos *repository.Repositories, machine *entity.Machine, counterID *string) (entity.CounterBinding, error) {
	plan := &entity.MaintenancePlan{MachineID: machine.ID, CounterID: counterID}
	b, err := ResolveCounterBinding(machine, plan)
	if err != nil {
		return b, err
	}
	if b.Kind != entity.BindingNamedCounter {
		return b, nil
	}

	counter, err := repos.Counter.FindByID(ctx, b.CounterID)
	if err != nil {
		return b, wrapNotFound(err, "counter", b.CounterID)
	}
	idx, err := repos.Machine.ParentIndex(ctx)
	if err != nil {
		return b, err
	}
	root, err := machineIndex(idx).root(machine.ID)
	if err != nil {
		return b, err
	}
	if counter.MachineID != root {
		return b, &ConsistencyError{Reason: "counter " + counter.Name + " does not belong to the root machine of " + machine.Code}
	}
	return b, nil
}

// resolveCounterTarget 计数器更新请求的目标：未指定 counter_id 时为设备自身计数器
func resolveCounterTarget(ctx context.Context, repos *repository.Repositories, machineID string, counterID *string) (entity.CounterBinding, error) {
	m, err := repos.Machine.FindByID(ctx, machineID)
	if err != nil {
		return entity.CounterBinding{}, wrapNotFound(err, "machine", machineID)
	}
	if counterID == nil || *counterID == "" {
		return entity.OwnCounter(m.ID), nil
	}
	return checkPlanBinding(ctx, repos, m, counterID)
}
