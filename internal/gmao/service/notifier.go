package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/JBDLC/GMAO/internal/gmao/sse"
	"github.com/JBDLC/GMAO/internal/shared/feishu"
	"go.uber.org/zap"
)

// 通知事件类型
const (
	EventCounterAdvanced     = "counter_advanced"
	EventCounterCorrected    = "counter_corrected"
	EventMaintenanceRecorded = "maintenance_recorded"
	EventMaintenanceDeleted  = "maintenance_deleted"
	EventCorrectiveRecorded  = "corrective_recorded"
	EventCorrectiveDeleted   = "corrective_deleted"
	EventMovementApplied     = "movement_applied"
	EventMovementReversed    = "movement_reversed"
	EventInventoryRecorded   = "inventory_recorded"
	EventLowStock            = "low_stock"
)

const notificationTimeout = 10 * time.Second

// Notification 核心操作提交后发给外部的摘要
type Notification struct {
	Event     string `json:"event"`
	ActorID   string `json:"actor_id"`
	MachineID string `json:"machine_id,omitempty"`
	EntityID  string `json:"entity_id,omitempty"`
	Message   string `json:"message"`
}

// Notifier 通知接收方，失败不影响核心事务
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// MultiNotifier 依次通知多个接收方，汇总错误
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FeishuNotifier 推送到飞书群机器人
type FeishuNotifier struct {
	bot *feishu.BotClient
}

func NewFeishuNotifier(bot *feishu.BotClient) *FeishuNotifier {
	return &FeishuNotifier{bot: bot}
}

// Notify 维修、计数与库存告警发卡片，其余事件发文本
func (f *FeishuNotifier) Notify(ctx context.Context, n Notification) error {
	if cardTemplate(n.Event) == "" {
		return f.bot.SendText(ctx, fmt.Sprintf("[%s] %s", n.Event, n.Message))
	}
	return f.bot.SendCard(ctx, eventCard(n))
}

var eventTitles = map[string]string{
	EventCounterAdvanced:     "计数器更新",
	EventCounterCorrected:    "计数器修正",
	EventMaintenanceRecorded: "预防性保养完成",
	EventMaintenanceDeleted:  "保养记录已删除",
	EventCorrectiveRecorded:  "纠正性维修",
	EventCorrectiveDeleted:   "纠正性维修已删除",
	EventLowStock:            "库存告警",
}

// cardTemplate 卡片标题颜色，空串表示该事件不发卡片
func cardTemplate(event string) string {
	switch event {
	case EventLowStock:
		return "red"
	case EventCounterAdvanced, EventCounterCorrected,
		EventMaintenanceRecorded, EventMaintenanceDeleted,
		EventCorrectiveRecorded, EventCorrectiveDeleted:
		return "orange"
	}
	return ""
}

func eventCard(n Notification) feishu.InteractiveCard {
	title, ok := eventTitles[n.Event]
	if !ok {
		title = n.Event
	}
	fields := []feishu.CardField{feishu.ShortField("事件", n.Event)}
	if n.MachineID != "" {
		fields = append(fields, feishu.ShortField("设备", n.MachineID))
	}
	if n.EntityID != "" {
		fields = append(fields, feishu.ShortField("记录", n.EntityID))
	}
	if n.ActorID != "" {
		fields = append(fields, feishu.ShortField("操作人", n.ActorID))
	}
	return feishu.NewEventCard(title, cardTemplate(n.Event), fields, n.Message)
}

// SSENotifier 广播到已连接的浏览器
type SSENotifier struct {
	hub *sse.Hub
}

func NewSSENotifier(hub *sse.Hub) *SSENotifier {
	return &SSENotifier{hub: hub}
}

func (s *SSENotifier) Notify(_ context.Context, n Notification) error {
	return s.hub.Publish(n.Event, n)
}

// events 提交后的副作用：失效看板缓存、异步通知
type events struct {
	notifier Notifier
	cache    *DashboardCache
	logger   *zap.Logger
}

func newEvents(notifier Notifier, cache *DashboardCache, logger *zap.Logger) *events {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &events{notifier: notifier, cache: cache, logger: logger}
}

// invalidate 使看板缓存失效
func (e *events) invalidate() {
	if e == nil || e.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.cache.Invalidate(ctx); err != nil {
		e.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (e *events) emit(n Notification) {
	if e == nil {
		return
	}
	e.invalidate()
	e.notify(n)
}

func (e *events) notify(n Notification) {
	if e == nil || e.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.logger.Warn("notification failed",
				zap.String("event", n.Event), zap.String("entity_id", n.EntityID), zap.Error(err))
		}
	}()
}

// lowStock 出库提交后，源库存点低于最低库存的产品逐一告警
func (e *events) lowStock(ctx context.Context, repos *repository.Repositories, actorID string, m *entity.Movement) {
	if e == nil || e.notifier == nil {
		return
	}
	alerts, err := lowStockAfter(ctx, repos, m)
	if err != nil {
		e.logger.Warn("low stock check failed", zap.Error(err))
		return
	}
	for _, a := range alerts {
		msg := fmt.Sprintf("%s %s in %s: %d left, minimum %d",
			a.ProductCode, a.ProductName, a.StockName, a.Quantity, a.MinimumStock)
		e.notify(Notification{Event: EventLowStock, ActorID: actorID, EntityID: a.ProductID, Message: msg})
	}
}

// lowStockAfter 移动的源库存点中低于最低库存的明细产品
func lowStockAfter(ctx context.Context, repos *repository.Repositories, m *entity.Movement) ([]LowStockAlert, error) {
	if m == nil || m.SourceStockID == nil || len(m.Items) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(m.Items))
	for _, it := range m.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := repos.Stock.FindProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	stockID := *m.SourceStockID
	stock, err := repos.Stock.FindStock(ctx, stockID)
	if err != nil {
		return nil, err
	}

	var alerts []LowStockAlert
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok || p.MinimumStock <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		q, err := repos.Stock.Quantity(ctx, stockID, id)
		if err != nil {
			return nil, err
		}
		if q >= p.MinimumStock {
			continue
		}
		alerts = append(alerts, LowStockAlert{
			StockID:      stockID,
			StockName:    stock.Name,
			ProductID:    id,
			ProductCode:  p.Code,
			ProductName:  p.Name,
			Quantity:     q,
			MinimumStock: p.MinimumStock,
			Missing:      p.MinimumStock - q,
		})
	}
	return alerts, nil
}
