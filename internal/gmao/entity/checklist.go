package entity

import "time"

type ChecklistTemplate struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	MachineID string    `json:"machine_id" gorm:"size:32;not null;index"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`

	Items []ChecklistItem `json:"items,omitempty" gorm:"foreignKey:TemplateID"`
}

func (ChecklistTemplate) TableName() string {
	return "checklist_templates"
}

type ChecklistItem struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	TemplateID string `json:"template_id" gorm:"size:32;not null;index"`
	Label      string `json:"label" gorm:"size:200;not null"`
	SortOrder  int    `json:"sort_order" gorm:"default:0"`
}

func (ChecklistItem) TableName() string {
	return "checklist_items"
}

// ChecklistInstance 一次点检填写
type ChecklistInstance struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	TemplateID string    `json:"template_id" gorm:"size:32;not null;index"`
	MachineID  string    `json:"machine_id" gorm:"size:32;not null;index"`
	CreatedBy  string    `json:"created_by" gorm:"size:32"`
	CreatedAt  time.Time `json:"created_at"`

	Values []ChecklistValue `json:"values,omitempty" gorm:"foreignKey:InstanceID"`
}

func (ChecklistInstance) TableName() string {
	return "checklist_instances"
}

type ChecklistValue struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	InstanceID string `json:"instance_id" gorm:"size:32;not null;index"`
	ItemID     string `json:"item_id" gorm:"size:32;not null"`
	Checked    bool   `json:"checked"`
	Comment    string `json:"comment" gorm:"size:500"`
}

func (ChecklistValue) TableName() string {
	return "checklist_values"
}
