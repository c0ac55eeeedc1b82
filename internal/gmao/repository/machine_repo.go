package repository

import (
	"context"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MachineRepository 设备仓库
type MachineRepository struct {
	db *gorm.DB
}

func NewMachineRepository(db *gorm.DB) *MachineRepository {
	return &MachineRepository{db: db}
}

func (r *MachineRepository) Create(ctx context.Context, m *entity.Machine) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return r.db.WithContext(ctx).Create(m).Error
}

// FindByID 查询设备（含命名计数器）
func (r *MachineRepository) FindByID(ctx context.Context, id string) (*entity.Machine, error) {
	var m entity.Machine
	err := r.db.WithContext(ctx).
		Preload("Counters", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Where("id = ?", id).First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// LockByID 加行锁读取设备，用于自身计数器的读改写
func (r *MachineRepository) LockByID(ctx context.Context, id string) (*entity.Machine, error) {
	var m entity.Machine
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *MachineRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&entity.Machine{}).Where("code = ?", code)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// FindAll 查询全部设备，用于构建设备树
func (r *MachineRepository) FindAll(ctx context.Context) ([]entity.Machine, error) {
	var machines []entity.Machine
	err := r.db.WithContext(ctx).
		Preload("Counters", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Order("name").Find(&machines).Error
	return machines, err
}

func (r *MachineRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.Machine, error) {
	var machines []entity.Machine
	if len(ids) == 0 {
		return machines, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Counters", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Where("id IN ?", ids).Order("name").Find(&machines).Error
	return machines, err
}

// ParentIndex 返回 id -> parent_id 映射
func (r *MachineRepository) ParentIndex(ctx context.Context) (map[string]*string, error) {
	var rows []struct {
		ID       string
		ParentID *string
	}
	if err := r.db.WithContext(ctx).Model(&entity.Machine{}).Select("id, parent_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	index := make(map[string]*string, len(rows))
	for _, row := range rows {
		index[row.ID] = row.ParentID
	}
	return index, nil
}

func (r *MachineRepository) FindChildren(ctx context.Context, parentID string) ([]entity.Machine, error) {
	var machines []entity.Machine
	err := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("name").Find(&machines).Error
	return machines, err
}

func (r *MachineRepository) CountChildren(ctx context.Context, parentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Machine{}).Where("parent_id = ?", parentID).Count(&count).Error
	return count, err
}

func (r *MachineRepository) CountByStock(ctx context.Context, stockID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Machine{}).Where("stock_id = ?", stockID).Count(&count).Error
	return count, err
}

func (r *MachineRepository) Update(ctx context.Context, m *entity.Machine) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(m).Error
}

// SetHours 写入设备自身计数器的值
func (r *MachineRepository) SetHours(ctx context.Context, id string, hours float64) error {
	return r.db.WithContext(ctx).Model(&entity.Machine{}).Where("id = ?", id).Update("hours", hours).Error
}

func (r *MachineRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Machine{}).Error
}

// Follow 关注设备，重复关注忽略
func (r *MachineRepository) Follow(ctx context.Context, userID, machineID string) error {
	f := &entity.FollowedMachine{ID: newID(), UserID: userID, MachineID: machineID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "machine_id"}},
		DoNothing: true,
	}).Create(f).Error
}

func (r *MachineRepository) Unfollow(ctx context.Context, userID, machineID string) error {
	return r.db.WithContext(ctx).Where("user_id = ? AND machine_id = ?", userID, machineID).
		Delete(&entity.FollowedMachine{}).Error
}

func (r *MachineRepository) FollowedIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&entity.FollowedMachine{}).
		Where("user_id = ?", userID).Pluck("machine_id", &ids).Error
	return ids, err
}

func (r *MachineRepository) DeleteFollows(ctx context.Context, machineID string) error {
	return r.db.WithContext(ctx).Where("machine_id = ?", machineID).Delete(&entity.FollowedMachine{}).Error
}
