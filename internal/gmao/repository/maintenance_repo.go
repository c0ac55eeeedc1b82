package repository

import (
	"context"
	"time"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"gorm.io/gorm"
)

// MaintenanceRepository 预防性与纠正性维修记录
type MaintenanceRepository struct {
	db *gorm.DB
}

func NewMaintenanceRepository(db *gorm.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// MaintenanceListParams 查询参数
type MaintenanceListParams struct {
	MachineID string
	Page      int
	PageSize  int
}

func (p *MaintenanceListParams) normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
}

// ---------- 预防性保养 ----------

func (r *MaintenanceRepository) CreateEntry(ctx context.Context, e *entity.MaintenanceEntry) error {
	if e.ID == "" {
		e.ID = newID()
	}
	for i := range e.Values {
		if e.Values[i].ID == "" {
			e.Values[i].ID = newID()
		}
		e.Values[i].EntryID = e.ID
	}
	return r.db.WithContext(ctx).Omit("Plan").Create(e).Error
}

func (r *MaintenanceRepository) FindEntry(ctx context.Context, id string) (*entity.MaintenanceEntry, error) {
	var e entity.MaintenanceEntry
	err := r.db.WithContext(ctx).Preload("Values").Preload("Plan").Preload("Plan.Components").
		Where("id = ?", id).First(&e).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *MaintenanceRepository) ListEntries(ctx context.Context, params MaintenanceListParams) ([]entity.MaintenanceEntry, int64, error) {
	params.normalize()
	query := r.db.WithContext(ctx).Model(&entity.MaintenanceEntry{})
	if params.MachineID != "" {
		query = query.Where("machine_id = ?", params.MachineID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []entity.MaintenanceEntry
	err := query.Preload("Plan").Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize).
		Find(&items).Error
	return items, total, err
}

func (r *MaintenanceRepository) DeleteEntry(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("entry_id = ?", id).Delete(&entity.MaintenanceEntryValue{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.MaintenanceEntry{}).Error
}

func (r *MaintenanceRepository) CountEntries(ctx context.Context, machineID string, since *time.Time) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.MaintenanceEntry{}).Where("machine_id = ?", machineID)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *MaintenanceRepository) CountEntriesByPlan(ctx context.Context, planID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.MaintenanceEntry{}).Where("plan_id = ?", planID).Count(&count).Error
	return count, err
}

// ---------- 纠正性维修 ----------

func (r *MaintenanceRepository) CreateCorrective(ctx context.Context, m *entity.CorrectiveMaintenance) error {
	if m.ID == "" {
		m.ID = newID()
	}
	for i := range m.Products {
		if m.Products[i].ID == "" {
			m.Products[i].ID = newID()
		}
		m.Products[i].MaintenanceID = m.ID
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MaintenanceRepository) FindCorrective(ctx context.Context, id string) (*entity.CorrectiveMaintenance, error) {
	var m entity.CorrectiveMaintenance
	err := r.db.WithContext(ctx).Preload("Products").Preload("Products.Product").
		Where("id = ?", id).First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *MaintenanceRepository) ListCorrective(ctx context.Context, params MaintenanceListParams) ([]entity.CorrectiveMaintenance, int64, error) {
	params.normalize()
	query := r.db.WithContext(ctx).Model(&entity.CorrectiveMaintenance{})
	if params.MachineID != "" {
		query = query.Where("machine_id = ?", params.MachineID)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []entity.CorrectiveMaintenance
	err := query.Preload("Products").Preload("Products.Product").Order("created_at DESC").
		Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize).
		Find(&items).Error
	return items, total, err
}

func (r *MaintenanceRepository) DeleteCorrective(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("maintenance_id = ?", id).Delete(&entity.CorrectiveProduct{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.CorrectiveMaintenance{}).Error
}

func (r *MaintenanceRepository) CountCorrective(ctx context.Context, machineID string, since *time.Time) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.CorrectiveMaintenance{}).Where("machine_id = ?", machineID)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	err := query.Count(&count).Error
	return count, err
}
