package service

import (
	"context"
	"time"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"go.uber.org/zap"
)

// dashboardWindow 看板统计窗口
const dashboardWindow = 30 * 24 * time.Hour

// DashboardMachine 看板中关注的设备
type DashboardMachine struct {
	Machine         entity.Machine `json:"machine"`
	PreventiveCount int64          `json:"preventive_count"`
	CorrectiveCount int64          `json:"corrective_count"`
	DueCount        int64          `json:"due_count"`
	Progress        []ProgressView `json:"maintenance_progress"`
}

// Dashboard 用户看板
type Dashboard struct {
	Machines       []DashboardMachine `json:"machines"`
	LowStockAlerts int                `json:"low_stock_alerts"`
	GeneratedAt    time.Time          `json:"generated_at"`
}

// DashboardService 关注设备看板，结果按用户缓存
type DashboardService struct {
	repos  *repository.Repositories
	cache  *DashboardCache
	logger *zap.Logger
	now    func() time.Time
}

func NewDashboardService(repos *repository.Repositories, cache *DashboardCache, logger *zap.Logger) *DashboardService {
	return &DashboardService{repos: repos, cache: cache, logger: logger, now: time.Now}
}

// Get 读取看板，缓存不可用时直接查询
func (s *DashboardService) Get(ctx context.Context, userID string) (*Dashboard, error) {
	if s.cache != nil {
		var cached Dashboard
		hit, err := s.cache.Get(ctx, userID, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	d, err := s.build(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, d); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return d, nil
}

func (s *DashboardService) build(ctx context.Context, userID string) (*Dashboard, error) {
	ids, err := s.repos.Machine.FollowedIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	machines, err := s.repos.Machine.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	since := now.Add(-dashboardWindow)
	d := &Dashboard{Machines: make([]DashboardMachine, 0, len(machines)), GeneratedAt: now}
	for _, m := range machines {
		item := DashboardMachine{Machine: m}
		if item.PreventiveCount, err = s.repos.Maintenance.CountEntries(ctx, m.ID, &since); err != nil {
			return nil, err
		}
		if item.CorrectiveCount, err = s.repos.Maintenance.CountCorrective(ctx, m.ID, &since); err != nil {
			return nil, err
		}
		if item.DueCount, err = s.repos.Progress.CountDue(ctx, m.ID); err != nil {
			return nil, err
		}
		if item.Progress, err = progressViews(ctx, s.repos, m.ID); err != nil {
			return nil, err
		}
		d.Machines = append(d.Machines, item)
	}

	low, err := s.repos.Stock.ListLowCells(ctx)
	if err != nil {
		return nil, err
	}
	d.LowStockAlerts = len(low)
	return d, nil
}
