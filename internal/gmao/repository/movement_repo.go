package repository

import (
	"context"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovementRepository 库存移动仓库
type MovementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Create 创建移动及明细
func (r *MovementRepository) Create(ctx context.Context, m *entity.Movement) error {
	if m.ID == "" {
		m.ID = newID()
	}
	for i := range m.Items {
		if m.Items[i].ID == "" {
			m.Items[i].ID = newID()
		}
		m.Items[i].MovementID = m.ID
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MovementRepository) FindByID(ctx context.Context, id string) (*entity.Movement, error) {
	var m entity.Movement
	err := r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", id).First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// MovementListParams 查询参数
type MovementListParams struct {
	Type     string
	StockID  string
	Page     int
	PageSize int
}

func (r *MovementRepository) List(ctx context.Context, params MovementListParams) ([]entity.Movement, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Movement{})
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.StockID != "" {
		query = query.Where("source_stock_id = ? OR dest_stock_id = ?", params.StockID, params.StockID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	var items []entity.Movement
	err := query.Preload("Items").Preload("Items.Product").
		Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize).
		Find(&items).Error
	return items, total, err
}

// ListByMaintenanceEntry 保养记录关联的移动
func (r *MovementRepository) ListByMaintenanceEntry(ctx context.Context, entryID string) ([]entity.Movement, error) {
	var items []entity.Movement
	err := r.db.WithContext(ctx).Preload("Items").Where("maintenance_entry_id = ?", entryID).Find(&items).Error
	return items, err
}

// ListByCorrective 纠正性维修关联的移动
func (r *MovementRepository) ListByCorrective(ctx context.Context, correctiveID string) ([]entity.Movement, error) {
	var items []entity.Movement
	err := r.db.WithContext(ctx).Preload("Items").Where("corrective_maintenance_id = ?", correctiveID).Find(&items).Error
	return items, err
}

// Update 更新移动主表字段
func (r *MovementRepository) Update(ctx context.Context, m *entity.Movement) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(m).Error
}

// ReplaceItems 整体替换移动明细
func (r *MovementRepository) ReplaceItems(ctx context.Context, movementID string, items []entity.MovementItem) error {
	if err := r.db.WithContext(ctx).Where("movement_id = ?", movementID).Delete(&entity.MovementItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = newID()
		items[i].MovementID = movementID
	}
	return r.db.WithContext(ctx).Omit("Product").Create(&items).Error
}

func (r *MovementRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("movement_id = ?", id).Delete(&entity.MovementItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Movement{}).Error
}

func (r *MovementRepository) CountByStock(ctx context.Context, stockID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Movement{}).
		Where("source_stock_id = ? OR dest_stock_id = ?", stockID, stockID).Count(&count).Error
	return count, err
}
