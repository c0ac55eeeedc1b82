package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
)

// MaxItemQuantity 单条明细允许的最大数量
const MaxItemQuantity = 1_000_000_000

type cellKey struct {
	stockID   string
	productID string
}

// cellDelta 单个台账单元的带符号变动
type cellDelta struct {
	cellKey
	delta int
}

// MovementEngine 库存移动的应用与冲回。
// 所有方法都在调用方的事务内执行，仓库集合必须绑定到该事务。
type MovementEngine struct{}

// validateMovement 校验移动结构：各类型所需的库存点、调拨两端不同、明细数量大于0
func validateMovement(m *entity.Movement) error {
	if !m.Type.Valid() {
		return validationf("type", "unknown movement type %q", m.Type)
	}
	src, dst := derefOr(m.SourceStockID, ""), derefOr(m.DestStockID, "")
	switch m.Type {
	case entity.MovementEntree:
		if dst == "" {
			return validationf("dest_stock_id", "is required for entree")
		}
	case entity.MovementSortie:
		if src == "" {
			return validationf("source_stock_id", "is required for sortie")
		}
	case entity.MovementTransfert:
		if src == "" || dst == "" {
			return validationf("source_stock_id", "transfert requires both source and destination stocks")
		}
		if src == dst {
			return validationf("dest_stock_id", "transfert source and destination must differ")
		}
	}
	if len(m.Items) == 0 {
		return validationf("items", "at least one product is required")
	}
	for i, item := range m.Items {
		if item.ProductID == "" {
			return validationf("items", "item %d: product is required", i+1)
		}
		if err := checkItemQuantity("items", i, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func checkItemQuantity(field string, i, q int) error {
	if q <= 0 {
		return validationf(field, "item %d: quantity must be > 0", i+1)
	}
	if q > MaxItemQuantity {
		return validationf(field, "item %d: quantity must be <= %d", i+1, MaxItemQuantity)
	}
	return nil
}

// addQuantity 带溢出检查的加法
func addQuantity(a, b int) (int, bool) {
	if (b > 0 && a > math.MaxInt-b) || (b < 0 && a < math.MinInt-b) {
		return 0, false
	}
	return a + b, true
}

// deltas 按 (stock, product) 汇总移动的带符号变动；sign 为 1 表示应用，-1 表示冲回。
// 结果按键排序，保证加锁顺序一致。
func deltas(m *entity.Movement, sign int) ([]cellDelta, error) {
	sums := make(map[cellKey]int)
	add := func(k cellKey, q int) error {
		sum, ok := addQuantity(sums[k], q)
		if !ok {
			return validationf("items", "total quantity of product %s overflows", k.productID)
		}
		sums[k] = sum
		return nil
	}
	for _, item := range m.Items {
		q := item.Quantity * sign
		var err error
		switch m.Type {
		case entity.MovementEntree:
			err = add(cellKey{*m.DestStockID, item.ProductID}, q)
		case entity.MovementSortie:
			err = add(cellKey{*m.SourceStockID, item.ProductID}, -q)
		case entity.MovementTransfert:
			if err = add(cellKey{*m.SourceStockID, item.ProductID}, -q); err == nil {
				err = add(cellKey{*m.DestStockID, item.ProductID}, q)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	out := make([]cellDelta, 0, len(sums))
	for k, d := range sums {
		if d != 0 {
			out = append(out, cellDelta{cellKey: k, delta: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].stockID != out[j].stockID {
			return out[i].stockID < out[j].stockID
		}
		return out[i].productID < out[j].productID
	})
	return out, nil
}

// checkReferences 确认移动引用的库存点与产品存在
func (e *MovementEngine) checkReferences(ctx context.Context, repos *repository.Repositories, m *entity.Movement) error {
	for _, id := range []*string{m.SourceStockID, m.DestStockID} {
		if id == nil || *id == "" {
			continue
		}
		if _, err := repos.Stock.FindStock(ctx, *id); err != nil {
			return wrapNotFound(err, "stock", *id)
		}
	}
	ids := make([]string, 0, len(m.Items))
	for _, item := range m.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := repos.Stock.FindProductsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return notFoundf("product", id)
		}
	}
	return nil
}

// mutate 先锁定并检查全部单元，全部满足后才写入
func (e *MovementEngine) mutate(ctx context.Context, repos *repository.Repositories, changes []cellDelta, reason string) error {
	cells := make([]*entity.StockProduct, len(changes))
	var shortages []string
	for i, c := range changes {
		cell, err := repos.Stock.GetOrCreateCell(ctx, c.stockID, c.productID)
		if err != nil {
			return err
		}
		cells[i] = cell
		next, ok := addQuantity(cell.Quantity, c.delta)
		if !ok {
			return validationf("items", "quantity of product %s in stock %s would overflow", c.productID, c.stockID)
		}
		if next < 0 {
			shortages = append(shortages, fmt.Sprintf("product %s in stock %s: available %d, required %d",
				c.productID, c.stockID, cell.Quantity, -c.delta))
		}
	}
	if len(shortages) > 0 {
		return &ConsistencyError{Reason: reason + ": " + strings.Join(shortages, "; ")}
	}
	for i, c := range changes {
		if err := repos.Stock.AdjustQuantity(ctx, cells[i].ID, c.delta); err != nil {
			if errors.Is(err, repository.ErrNegativeQuantity) {
				return &ConsistencyError{Reason: reason}
			}
			return err
		}
	}
	return nil
}

// Apply 校验并应用移动到库存台账，不持久化移动本身
func (e *MovementEngine) Apply(ctx context.Context, repos *repository.Repositories, m *entity.Movement) error {
	if err := validateMovement(m); err != nil {
		return err
	}
	if err := e.checkReferences(ctx, repos, m); err != nil {
		return err
	}
	changes, err := deltas(m, 1)
	if err != nil {
		return err
	}
	return e.mutate(ctx, repos, changes, "insufficient stock")
}

// Reverse 冲回已应用的移动。冲回会使单元变为负数时（库存已被消耗）拒绝执行，并记录操作日志。
func (e *MovementEngine) Reverse(ctx context.Context, repos *repository.Repositories, actorID string, m *entity.Movement) error {
	changes, err := deltas(m, -1)
	if err != nil {
		return err
	}
	if err := e.mutate(ctx, repos, changes, "movement cannot be reversed, stock has since been consumed"); err != nil {
		return err
	}
	return repos.ActivityLog.Log(ctx, "movement", m.ID, "reverse", describeMovement(m), actorID)
}

// Record 应用并保存新的移动
func (e *MovementEngine) Record(ctx context.Context, repos *repository.Repositories, m *entity.Movement) error {
	if err := e.Apply(ctx, repos, m); err != nil {
		return err
	}
	return repos.Movement.Create(ctx, m)
}

// reverseAndDelete 冲回并删除移动（保养或维修删除时使用）
func (e *MovementEngine) reverseAndDelete(ctx context.Context, repos *repository.Repositories, actorID string, m *entity.Movement) error {
	if err := e.Reverse(ctx, repos, actorID, m); err != nil {
		return err
	}
	return repos.Movement.Delete(ctx, m.ID)
}

func describeMovement(m *entity.Movement) string {
	total := 0
	for _, item := range m.Items {
		total += item.Quantity
	}
	return fmt.Sprintf("%s %s -> %s, %d items, %d units",
		m.Type, derefOr(m.SourceStockID, "-"), derefOr(m.DestStockID, "-"), len(m.Items), total)
}
