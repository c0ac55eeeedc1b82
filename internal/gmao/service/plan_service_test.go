package service

import (
	"context"
	"testing"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCreate_BindingRules(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	root := testutil.SeedMachine(t, db, "ROOT", "", false, 0)
	child := testutil.SeedMachine(t, db, "CHILD", root.ID, false, 0)
	other := testutil.SeedMachine(t, db, "OTHER", "", false, 0)
	foreign := testutil.SeedCounter(t, db, other.ID, "Cycles", 0)

	_, err := svc.Plan.Create(ctx, actor, child.ID, CreatePlanInput{Name: "Sans compteur", Periodicity: 100})
	requireValidation(t, err)

	_, err = svc.Plan.Create(ctx, actor, child.ID, CreatePlanInput{Name: "Étranger", Periodicity: 100, CounterID: &foreign.ID})
	requireConsistency(t, err)

	_, err = svc.Plan.Create(ctx, actor, child.ID, CreatePlanInput{Name: "Fantôme", Periodicity: 100, CounterID: strPtr("missing")})
	assert.True(t, IsNotFound(err))

	_, err = svc.Plan.Create(ctx, actor, root.ID, CreatePlanInput{Name: "Zéro", Periodicity: 0})
	requireValidation(t, err)

	_, err = svc.Plan.Create(ctx, actor, root.ID, CreatePlanInput{
		Name:        "Composants",
		Periodicity: 10,
		CounterID:   &foreign.ID,
		Components:  []ComponentInput{{Label: "Couleur", FieldType: "color"}},
	})
	requireValidation(t, err)
}

func TestPlanUpdate_PeriodicityKeepsProgress(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	m := testutil.SeedMachine(t, db, "M", "", true, 0)
	plan, err := svc.Plan.Create(ctx, actor, m.ID, CreatePlanInput{
		Name:        "Vidange",
		Periodicity: 100,
		Components: []ComponentInput{
			{Label: "Niveau", FieldType: entity.FieldTypeNumber},
			{Label: "Remarque", FieldType: entity.FieldTypeText},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.Components, 2)
	assert.Equal(t, "Niveau", plan.Components[0].Label)

	advance(t, svc, m.ID, nil, 1)
	advance(t, svc, m.ID, nil, 31)

	period := 500
	updated, err := svc.Plan.Update(ctx, actor, plan.ID, UpdatePlanInput{
		Periodicity: &period,
		Components:  []ComponentInput{{Label: "Fait", FieldType: entity.FieldTypeCheckbox}},
	})
	require.NoError(t, err)
	assert.Equal(t, 500, updated.Periodicity)
	require.Len(t, updated.Components, 1)

	hs, _ := testutil.HoursSince(t, db, m.ID, plan.ID)
	assert.Equal(t, 70.0, hs)
}

func TestPlanUpdate_RebindsProgressCounter(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	m := testutil.SeedMachine(t, db, "M", "", true, 0)
	counter := testutil.SeedCounter(t, db, m.ID, "Cycles", 0)
	plan := testutil.SeedPlan(t, db, m.ID, "Graissage", 100, "")
	advance(t, svc, m.ID, nil, 10)

	updated, err := svc.Plan.Update(ctx, actor, plan.ID, UpdatePlanInput{CounterID: &counter.ID})
	require.NoError(t, err)
	require.NotNil(t, updated.CounterID)

	var rec entity.ProgressRecord
	require.NoError(t, db.Where("plan_id = ?", plan.ID).First(&rec).Error)
	require.NotNil(t, rec.CounterID)
	assert.Equal(t, counter.ID, *rec.CounterID)

	advance(t, svc, m.ID, &counter.ID, 40)
	hs, _ := testutil.HoursSince(t, db, m.ID, plan.ID)
	assert.Equal(t, 60.0, hs)
}

func TestPlanDelete_BlockedByHistory(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	m := testutil.SeedMachine(t, db, "M", "", true, 0)
	used := testutil.SeedPlan(t, db, m.ID, "Utilisé", 100, "")
	unused := testutil.SeedPlan(t, db, m.ID, "Inutile", 100, "")

	_, err := svc.Maintenance.RecordMaintenance(ctx, actor, RecordMaintenanceInput{MachineID: m.ID, PlanID: used.ID})
	require.NoError(t, err)

	ce := requireConsistency(t, svc.Plan.Delete(ctx, actor, used.ID))
	assert.EqualValues(t, 1, ce.Dependents["preventive_maintenances"])

	require.NoError(t, svc.Plan.Delete(ctx, actor, unused.ID))
	_, err = svc.Plan.Get(ctx, unused.ID)
	assert.True(t, IsNotFound(err))
}

func TestChecklist_CreateAndFill(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	m := testutil.SeedMachine(t, db, "M", "", false, 0)

	_, err := svc.Checklist.Create(ctx, actor, m.ID, CreateChecklistInput{Name: "Démarrage", Items: []string{" ", ""}})
	requireValidation(t, err)

	tpl, err := svc.Checklist.Create(ctx, actor, m.ID, CreateChecklistInput{Name: "Démarrage", Items: []string{"Carter fermé", "Arrêt d'urgence testé"}})
	require.NoError(t, err)
	require.Len(t, tpl.Items, 2)

	inst, err := svc.Checklist.Fill(ctx, actor, tpl.ID, FillChecklistInput{
		Answers: []ChecklistAnswer{{ItemID: tpl.Items[1].ID, Checked: true, Comment: " RAS "}},
	})
	require.NoError(t, err)
	require.Len(t, inst.Values, 2)
	assert.False(t, inst.Values[0].Checked)
	assert.True(t, inst.Values[1].Checked)
	assert.Equal(t, "RAS", inst.Values[1].Comment)

	_, err = svc.Checklist.Fill(ctx, actor, tpl.ID, FillChecklistInput{Answers: []ChecklistAnswer{{ItemID: "ghost"}}})
	requireValidation(t, err)
}

func TestDashboard_FollowedMachines(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	followed := testutil.SeedMachine(t, db, "F", "", true, 0)
	testutil.SeedMachine(t, db, "N", "", true, 0)
	testutil.SeedPlan(t, db, followed.ID, "Vidange", 10, "")
	advance(t, svc, followed.ID, nil, 1)
	advance(t, svc, followed.ID, nil, 20)

	_, err := svc.Maintenance.RecordCorrective(ctx, actor, CorrectiveInput{MachineID: followed.ID, Comment: "Fuite"})
	require.NoError(t, err)
	require.NoError(t, svc.Machine.Follow(ctx, actor, followed.ID))

	d, err := svc.Dashboard.Get(ctx, actor)
	require.NoError(t, err)
	require.Len(t, d.Machines, 1)
	item := d.Machines[0]
	assert.Equal(t, followed.ID, item.Machine.ID)
	assert.EqualValues(t, 1, item.CorrectiveCount)
	assert.EqualValues(t, 1, item.DueCount)
	require.Len(t, item.Progress, 1)
	assert.True(t, item.Progress[0].IsDue)

	require.NoError(t, svc.Machine.Unfollow(ctx, actor, followed.ID))
	d, err = svc.Dashboard.Get(ctx, actor)
	require.NoError(t, err)
	assert.Empty(t, d.Machines)
}
