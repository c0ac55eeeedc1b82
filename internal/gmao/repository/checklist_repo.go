package repository

import (
	"context"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"gorm.io/gorm"
)

// ChecklistRepository 点检表仓库
type ChecklistRepository struct {
	db *gorm.DB
}

func NewChecklistRepository(db *gorm.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

func (r *ChecklistRepository) CreateTemplate(ctx context.Context, t *entity.ChecklistTemplate) error {
	if t.ID == "" {
		t.ID = newID()
	}
	for i := range t.Items {
		if t.Items[i].ID == "" {
			t.Items[i].ID = newID()
		}
		t.Items[i].TemplateID = t.ID
	}
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *ChecklistRepository) FindTemplate(ctx context.Context, id string) (*entity.ChecklistTemplate, error) {
	var t entity.ChecklistTemplate
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *ChecklistRepository) ListTemplates(ctx context.Context, machineID string) ([]entity.ChecklistTemplate, error) {
	var items []entity.ChecklistTemplate
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order") }).
		Where("machine_id = ?", machineID).Order("name").Find(&items).Error
	return items, err
}

func (r *ChecklistRepository) CreateInstance(ctx context.Context, inst *entity.ChecklistInstance) error {
	if inst.ID == "" {
		inst.ID = newID()
	}
	for i := range inst.Values {
		if inst.Values[i].ID == "" {
			inst.Values[i].ID = newID()
		}
		inst.Values[i].InstanceID = inst.ID
	}
	return r.db.WithContext(ctx).Create(inst).Error
}

func (r *ChecklistRepository) CountInstances(ctx context.Context, machineID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ChecklistInstance{}).Where("machine_id = ?", machineID).Count(&count).Error
	return count, err
}

// DeleteTemplatesByMachine 删除设备的点检模板（仅在没有填写记录时调用）
func (r *ChecklistRepository) DeleteTemplatesByMachine(ctx context.Context, machineID string) error {
	sub := r.db.WithContext(ctx).Model(&entity.ChecklistTemplate{}).Select("id").Where("machine_id = ?", machineID)
	if err := r.db.WithContext(ctx).Where("template_id IN (?)", sub).Delete(&entity.ChecklistItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("machine_id = ?", machineID).Delete(&entity.ChecklistTemplate{}).Error
}
