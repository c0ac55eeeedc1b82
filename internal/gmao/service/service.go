package service

import (
	"github.com/JBDLC/GMAO/internal/config"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/JBDLC/GMAO/internal/gmao/sse"
	"github.com/JBDLC/GMAO/internal/shared/feishu"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Machine     *MachineService
	Counter     *CounterService
	Plan        *PlanService
	Stock       *StockService
	Movement    *MovementService
	Maintenance *MaintenanceService
	Checklist   *ChecklistService
	Dashboard   *DashboardService
}

// Deps 服务依赖，Redis 与 Hub 可以为 nil
type Deps struct {
	DB     *gorm.DB
	Repos  *repository.Repositories
	Redis  *redis.Client
	Hub    *sse.Hub
	Logger *zap.Logger
	Config *config.Config
}

// NewServices 创建服务集合
func NewServices(d Deps) *Services {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var notifiers MultiNotifier
	if d.Config != nil && d.Config.Feishu.WebhookURL != "" {
		notifiers = append(notifiers, NewFeishuNotifier(feishu.NewBotClient(d.Config.Feishu.WebhookURL, d.Config.Feishu.Secret)))
	}
	if d.Hub != nil {
		notifiers = append(notifiers, NewSSENotifier(d.Hub))
	}
	var notifier Notifier
	if len(notifiers) > 0 {
		notifier = notifiers
	}

	var cache *DashboardCache
	if d.Config != nil {
		cache = NewDashboardCache(d.Redis, d.Config.Redis.CacheTTL)
	}

	ev := newEvents(notifier, cache, logger)
	engine := &MovementEngine{}

	return &Services{
		Machine:     NewMachineService(d.DB, d.Repos, logger, ev),
		Counter:     NewCounterService(d.DB, d.Repos, logger, ev),
		Plan:        NewPlanService(d.DB, d.Repos, logger, ev),
		Stock:       NewStockService(d.DB, d.Repos, logger, ev),
		Movement:    NewMovementService(d.DB, d.Repos, engine, logger, ev),
		Maintenance: NewMaintenanceService(d.DB, d.Repos, engine, logger, ev),
		Checklist:   NewChecklistService(d.DB, d.Repos),
		Dashboard:   NewDashboardService(d.Repos, cache, logger),
	}
}
