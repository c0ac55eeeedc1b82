package service

import (
	"context"
	"strings"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"gorm.io/gorm"
)

// ChecklistService 设备点检
type ChecklistService struct {
	db    *gorm.DB
	repos *repository.Repositories
}

func NewChecklistService(db *gorm.DB, repos *repository.Repositories) *ChecklistService {
	return &ChecklistService{db: db, repos: repos}
}

type CreateChecklistInput struct {
	Name  string   `json:"name" binding:"required"`
	Items []string `json:"items"`
}

func (s *ChecklistService) List(ctx context.Context, machineID string) ([]entity.ChecklistTemplate, error) {
	if _, err := s.repos.Machine.FindByID(ctx, machineID); err != nil {
		return nil, wrapNotFound(err, "machine", machineID)
	}
	return s.repos.Checklist.ListTemplates(ctx, machineID)
}

// Create 创建点检模板
func (s *ChecklistService) Create(ctx context.Context, actorID, machineID string, input CreateChecklistInput) (*entity.ChecklistTemplate, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, validationf("name", "is required")
	}
	t := &entity.ChecklistTemplate{MachineID: machineID, Name: name, CreatedBy: actorID}
	for _, label := range input.Items {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		t.Items = append(t.Items, entity.ChecklistItem{Label: label, SortOrder: len(t.Items)})
	}
	if len(t.Items) == 0 {
		return nil, validationf("items", "at least one item is required")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		if _, err := repos.Machine.FindByID(ctx, machineID); err != nil {
			return wrapNotFound(err, "machine", machineID)
		}
		if err := repos.Checklist.CreateTemplate(ctx, t); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "checklist", t.ID, "create", t.Name, actorID)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ChecklistAnswer 单项填写
type ChecklistAnswer struct {
	ItemID  string `json:"item_id" binding:"required"`
	Checked bool   `json:"checked"`
	Comment string `json:"comment"`
}

type FillChecklistInput struct {
	Answers []ChecklistAnswer `json:"answers"`
}

// Fill 填写点检，未作答的项记为未勾选
func (s *ChecklistService) Fill(ctx context.Context, actorID, templateID string, input FillChecklistInput) (*entity.ChecklistInstance, error) {
	var inst *entity.ChecklistInstance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		t, err := repos.Checklist.FindTemplate(ctx, templateID)
		if err != nil {
			return wrapNotFound(err, "checklist", templateID)
		}
		answers := make(map[string]ChecklistAnswer, len(input.Answers))
		for _, a := range input.Answers {
			answers[a.ItemID] = a
		}
		inst = &entity.ChecklistInstance{TemplateID: t.ID, MachineID: t.MachineID, CreatedBy: actorID}
		for _, item := range t.Items {
			a := answers[item.ID]
			inst.Values = append(inst.Values, entity.ChecklistValue{
				ItemID:  item.ID,
				Checked: a.Checked,
				Comment: strings.TrimSpace(a.Comment),
			})
			delete(answers, item.ID)
		}
		for id := range answers {
			return validationf("answers", "item %s does not belong to checklist %s", id, t.Name)
		}
		if err := repos.Checklist.CreateInstance(ctx, inst); err != nil {
			return err
		}
		return repos.ActivityLog.Log(ctx, "checklist", inst.ID, "fill", t.Name, actorID)
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}
