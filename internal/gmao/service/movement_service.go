package service

import (
	"context"
	"strings"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MovementService 库存移动
type MovementService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	engine *MovementEngine
	logger *zap.Logger
	events *events
}

func NewMovementService(db *gorm.DB, repos *repository.Repositories, engine *MovementEngine, logger *zap.Logger, ev *events) *MovementService {
	return &MovementService{db: db, repos: repos, engine: engine, logger: logger, events: ev}
}

// MovementItemInput 移动明细
type MovementItemInput struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// MovementInput 创建或修改移动
type MovementInput struct {
	Type          entity.MovementType `json:"type" binding:"required"`
	SourceStockID *string             `json:"source_stock_id"`
	DestStockID   *string             `json:"dest_stock_id"`
	Comment       string              `json:"comment"`
	Items         []MovementItemInput `json:"items"`
}

func (in MovementInput) items() []entity.MovementItem {
	items := make([]entity.MovementItem, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, entity.MovementItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items
}

// stocksFor 只保留该类型需要的库存点
func stocksFor(t entity.MovementType, src, dst *string) (*string, *string) {
	src, dst = nonEmpty(src), nonEmpty(dst)
	switch t {
	case entity.MovementEntree:
		return nil, dst
	case entity.MovementSortie:
		return src, nil
	}
	return src, dst
}

// Create 创建并应用移动
func (s *MovementService) Create(ctx context.Context, actorID string, input MovementInput) (*entity.Movement, error) {
	src, dst := stocksFor(input.Type, input.SourceStockID, input.DestStockID)
	m := &entity.Movement{
		Type:          input.Type,
		SourceStockID: src,
		DestStockID:   dst,
		Comment:       strings.TrimSpace(input.Comment),
		CreatedBy:     actorID,
		Items:         input.items(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		if err := s.engine.Record(ctx, repos, m); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "movement", m.ID, "create", describeMovement(m), actorID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("movement applied", zap.String("movement_id", m.ID), zap.String("type", string(m.Type)))
	s.events.emit(Notification{Event: EventMovementApplied, ActorID: actorID, EntityID: m.ID, Message: describeMovement(m)})
	s.events.lowStock(ctx, s.repos, actorID, m)
	return s.Get(ctx, m.ID)
}

func linkedToMaintenance(m *entity.Movement) bool {
	return m.MaintenanceEntryID != nil || m.CorrectiveMaintenanceID != nil
}

// Update 修改移动：冲回旧状态 -> 修改字段与明细 -> 应用新状态，任何失败整体回滚
func (s *MovementService) Update(ctx context.Context, actorID, id string, input MovementInput) (*entity.Movement, error) {
	var updated *entity.Movement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		m, err := repos.Movement.FindByID(ctx, id)
		if err != nil {
			return wrapNotFound(err, "movement", id)
		}
		if linkedToMaintenance(m) {
			return &ConsistencyError{Reason: "movement was issued by a maintenance record, edit the maintenance instead"}
		}
		if err := s.engine.Reverse(ctx, repos, actorID, m); err != nil {
			return err
		}

		m.Type = input.Type
		m.SourceStockID, m.DestStockID = stocksFor(input.Type, input.SourceStockID, input.DestStockID)
		m.Comment = strings.TrimSpace(input.Comment)
		m.Items = input.items()
		if err := s.engine.Apply(ctx, repos, m); err != nil {
			return err
		}

		items := m.Items
		m.Items = nil
		if err := repos.Movement.Update(ctx, m); err != nil {
			return err
		}
		if err := repos.Movement.ReplaceItems(ctx, m.ID, items); err != nil {
			return err
		}
		m.Items = items
		updated = m
		return repos.ActivityLog.Log(ctx, "movement", m.ID, "update", describeMovement(m), actorID)
	})
	if err != nil {
		return nil, err
	}
	s.events.emit(Notification{Event: EventMovementApplied, ActorID: actorID, EntityID: id, Message: "movement updated"})
	s.events.lowStock(ctx, s.repos, actorID, updated)
	return s.Get(ctx, id)
}

// Delete 冲回并删除移动
func (s *MovementService) Delete(ctx context.Context, actorID, id string) error {
	var desc string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		m, err := repos.Movement.FindByID(ctx, id)
		if err != nil {
			return wrapNotFound(err, "movement", id)
		}
		if linkedToMaintenance(m) {
			return &ConsistencyError{Reason: "movement was issued by a maintenance record, delete the maintenance instead"}
		}
		desc = describeMovement(m)
		if err := s.engine.reverseAndDelete(ctx, repos, actorID, m); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "movement", id, "delete", desc, actorID)
	})
	if err != nil {
		return err
	}
	s.events.emit(Notification{Event: EventMovementReversed, ActorID: actorID, EntityID: id, Message: desc})
	return nil
}

func (s *MovementService) Get(ctx context.Context, id string) (*entity.Movement, error) {
	m, err := s.repos.Movement.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "movement", id)
	}
	return m, nil
}

func (s *MovementService) List(ctx context.Context, params repository.MovementListParams) ([]entity.Movement, int64, error) {
	return s.repos.Movement.List(ctx, params)
}
