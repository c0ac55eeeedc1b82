package service

import (
	"context"
	"testing"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMaintenance_ResetsOverdueProgress(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	m := testutil.SeedMachine(t, db, "COMP-01", "", true, 0)
	plan := testutil.SeedPlan(t, db, m.ID, "Filtre", 100, "",
		entity.PlanComponent{Label: "Filtre changé", FieldType: entity.FieldTypeCheckbox},
		entity.PlanComponent{Label: "Pression", FieldType: entity.FieldTypeNumber},
	)
	advance(t, svc, m.ID, nil, 5)
	advance(t, svc, m.ID, nil, 125)

	entry, err := svc.Maintenance.RecordMaintenance(ctx, actor, RecordMaintenanceInput{
		MachineID: m.ID,
		PlanID:    plan.ID,
		Values: map[string]interface{}{
			plan.Components[0].ID: "on",
			plan.Components[1].ID: "6,5",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, -20.0, entry.HoursBeforeMaintenance)
	assert.Equal(t, 125.0, entry.PerformedHours)
	assert.Nil(t, entry.CounterID)
	require.Len(t, entry.Values, 2)

	byComponent := map[string]entity.MaintenanceEntryValue{}
	for _, v := range entry.Values {
		byComponent[v.ComponentID] = v
	}
	require.NotNil(t, byComponent[plan.Components[0].ID].ValueBool)
	assert.True(t, *byComponent[plan.Components[0].ID].ValueBool)
	require.NotNil(t, byComponent[plan.Components[1].ID].ValueNumber)
	assert.Equal(t, 6.5, *byComponent[plan.Components[1].ID].ValueNumber)

	hs, _ := testutil.HoursSince(t, db, m.ID, plan.ID)
	assert.Equal(t, 100.0, hs)
}

func TestRecordMaintenance_FirstEverCreatesRecord(t *testing.T) {
	svc, db := setupServices(t)
	m := testutil.SeedMachine(t, db, "COMP-02", "", true, 40)
	plan := testutil.SeedPlan(t, db, m.ID, "Courroie", 300, "")

	entry, err := svc.Maintenance.RecordMaintenance(context.Background(), actor, RecordMaintenanceInput{
		MachineID:      m.ID,
		PlanID:         plan.ID,
		PerformedHours: floatPtr(38),
	})
	require.NoError(t, err)
	assert.Equal(t, 300.0, entry.HoursBeforeMaintenance)
	assert.Equal(t, 38.0, entry.PerformedHours)

	hs, ok := testutil.HoursSince(t, db, m.ID, plan.ID)
	require.True(t, ok)
	assert.Equal(t, 300.0, hs)
}

func TestRecordMaintenance_NamedCounterDefaultsPerformedHours(t *testing.T) {
	svc, db := setupServices(t)
	root := testutil.SeedMachine(t, db, "LINE-C", "", false, 0)
	child := testutil.SeedMachine(t, db, "LINE-C-OVEN", root.ID, false, 0)
	counter := testutil.SeedCounter(t, db, root.ID, "Cycles", 0)
	plan := testutil.SeedPlan(t, db, child.ID, "Resistance", 500, counter.ID)
	advance(t, svc, child.ID, &counter.ID, 10)
	advance(t, svc, child.ID, &counter.ID, 410)

	entry, err := svc.Maintenance.RecordMaintenance(context.Background(), actor, RecordMaintenanceInput{
		MachineID: child.ID,
		PlanID:    plan.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 410.0, entry.PerformedHours)
	assert.Equal(t, 100.0, entry.HoursBeforeMaintenance)
	require.NotNil(t, entry.CounterID)
	assert.Equal(t, counter.ID, *entry.CounterID)
}

func TestRecordMaintenance_ValidationLeavesNoTrace(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	m := testutil.SeedMachine(t, db, "COMP-03", "", true, 0)
	other := testutil.SeedMachine(t, db, "COMP-04", "", true, 0)
	plan := testutil.SeedPlan(t, db, m.ID, "Contrôle", 100, "",
		entity.PlanComponent{Label: "Observation", FieldType: entity.FieldTypeText},
		entity.PlanComponent{Label: "Température", FieldType: entity.FieldTypeNumber},
	)

	_, err := svc.Maintenance.RecordMaintenance(ctx, actor, RecordMaintenanceInput{
		MachineID: m.ID,
		PlanID:    plan.ID,
		Values:    map[string]interface{}{plan.Components[1].ID: 40.0},
	})
	requireValidation(t, err)

	_, err = svc.Maintenance.RecordMaintenance(ctx, actor, RecordMaintenanceInput{
		MachineID: m.ID,
		PlanID:    plan.ID,
		Values: map[string]interface{}{
			plan.Components[0].ID: "ok",
			plan.Components[1].ID: "chaud",
		},
	})
	requireValidation(t, err)

	_, err = svc.Maintenance.RecordMaintenance(ctx, actor, RecordMaintenanceInput{
		MachineID: other.ID,
		PlanID:    plan.ID,
	})
	requireValidation(t, err)

	var entries int64
	db.Model(&entity.MaintenanceEntry{}).Count(&entries)
	assert.Zero(t, entries)
	_, ok := testutil.HoursSince(t, db, m.ID, plan.ID)
	assert.False(t, ok)
}

func TestRecordMaintenance_ConsumesStockAndDeleteReverses(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	stock := testutil.SeedStock(t, db, "Magasin")
	filter := testutil.SeedProduct(t, db, "FLT-01", "12.50", 0)
	testutil.SeedQuantity(t, db, stock.ID, filter.ID, 10)

	m := testutil.SeedMachine(t, db, "COMP-05", "", true, 0)
	require.NoError(t, db.Model(m).Update("stock_id", stock.ID).Error)
	plan := testutil.SeedPlan(t, db, m.ID, "Filtre", 100, "")
	advance(t, svc, m.ID, nil, 1)
	advance(t, svc, m.ID, nil, 91)

	entry, err := svc.Maintenance.RecordMaintenance(ctx, actor, RecordMaintenanceInput{
		MachineID: m.ID,
		PlanID:    plan.ID,
		Products:  []ProductQuantity{{ProductID: filter.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.NotNil(t, entry.StockID)
	assert.Equal(t, stock.ID, *entry.StockID)
	assert.Equal(t, 7, testutil.Quantity(t, db, stock.ID, filter.ID))

	var movements []entity.Movement
	require.NoError(t, db.Where("maintenance_entry_id = ?", entry.ID).Find(&movements).Error)
	require.Len(t, movements, 1)
	assert.Equal(t, entity.MovementSortie, movements[0].Type)

	require.NoError(t, svc.Maintenance.DeleteEntry(ctx, actor, entry.ID))
	assert.Equal(t, 10, testutil.Quantity(t, db, stock.ID, filter.ID))

	var remaining int64
	db.Model(&entity.Movement{}).Count(&remaining)
	assert.Zero(t, remaining)

	hs, _ := testutil.HoursSince(t, db, m.ID, plan.ID)
	assert.Equal(t, 100.0, hs, "deleting an entry does not restore progress")
}

func TestRecordMaintenance_InsufficientStockIsAtomic(t *testing.T) {
	svc, db := setupServices(t)
	stock := testutil.SeedStock(t, db, "Atelier")
	oil := testutil.SeedProduct(t, db, "OIL-5L", "30", 0)
	testutil.SeedQuantity(t, db, stock.ID, oil.ID, 1)

	m := testutil.SeedMachine(t, db, "COMP-06", "", true, 0)
	plan := testutil.SeedPlan(t, db, m.ID, "Vidange", 50, "")
	advance(t, svc, m.ID, nil, 1)
	advance(t, svc, m.ID, nil, 61)

	_, err := svc.Maintenance.RecordMaintenance(context.Background(), actor, RecordMaintenanceInput{
		MachineID: m.ID,
		PlanID:    plan.ID,
		StockID:   &stock.ID,
		Products:  []ProductQuantity{{ProductID: oil.ID, Quantity: 2}},
	})
	ce := requireConsistency(t, err)
	assert.Contains(t, ce.Reason, "insufficient stock")

	assert.Equal(t, 1, testutil.Quantity(t, db, stock.ID, oil.ID))
	hs, _ := testutil.HoursSince(t, db, m.ID, plan.ID)
	assert.Equal(t, -10.0, hs)
}

func TestRecordMaintenance_ProductsWithoutStock(t *testing.T) {
	svc, db := setupServices(t)
	m := testutil.SeedMachine(t, db, "COMP-07", "", true, 0)
	plan := testutil.SeedPlan(t, db, m.ID, "Filtre", 100, "")
	p := testutil.SeedProduct(t, db, "FLT-02", "1", 0)

	_, err := svc.Maintenance.RecordMaintenance(context.Background(), actor, RecordMaintenanceInput{
		MachineID: m.ID,
		PlanID:    plan.ID,
		Products:  []ProductQuantity{{ProductID: p.ID, Quantity: 1}},
	})
	requireValidation(t, err)
}

func TestRecordCorrective_WithAndWithoutStock(t *testing.T) {
	svc, db := setupServices(t)
	ctx := context.Background()
	stock := testutil.SeedStock(t, db, "Magasin central")
	bearing := testutil.SeedProduct(t, db, "BRG-6204", "8.90", 0)
	testutil.SeedQuantity(t, db, stock.ID, bearing.ID, 4)
	m := testutil.SeedMachine(t, db, "MILL-01", "", true, 1200)

	cm, err := svc.Maintenance.RecordCorrective(ctx, actor, CorrectiveInput{
		MachineID: m.ID,
		Comment:   "Roulement bruyant",
		StockID:   &stock.ID,
		Products:  []ProductQuantity{{ProductID: bearing.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1200.0, cm.Hours)
	assert.Len(t, cm.Products, 1)
	assert.Equal(t, 2, testutil.Quantity(t, db, stock.ID, bearing.ID))

	loose, err := svc.Maintenance.RecordCorrective(ctx, actor, CorrectiveInput{
		MachineID: m.ID,
		Comment:   "Pièce fournie par le client",
		Hours:     floatPtr(1210),
		Products:  []ProductQuantity{{ProductID: bearing.ID, Quantity: 9}},
	})
	require.NoError(t, err)
	assert.Nil(t, loose.StockID)
	assert.Equal(t, 2, testutil.Quantity(t, db, stock.ID, bearing.ID))

	_, err = svc.Maintenance.RecordCorrective(ctx, actor, CorrectiveInput{
		MachineID: m.ID,
		StockID:   &stock.ID,
		Products:  []ProductQuantity{{ProductID: bearing.ID, Quantity: 3}},
	})
	requireConsistency(t, err)

	_, err = svc.Maintenance.RecordCorrective(ctx, actor, CorrectiveInput{
		MachineID: m.ID,
		Products:  []ProductQuantity{{ProductID: bearing.ID, Quantity: MaxItemQuantity + 1}},
	})
	requireValidation(t, err)

	require.NoError(t, svc.Maintenance.DeleteCorrective(ctx, actor, cm.ID))
	assert.Equal(t, 4, testutil.Quantity(t, db, stock.ID, bearing.ID))
}

func TestParseComponentValues(t *testing.T) {
	components := []entity.PlanComponent{
		{ID: "c1", Label: "OK", FieldType: entity.FieldTypeCheckbox},
		{ID: "c2", Label: "Valeur", FieldType: entity.FieldTypeNumber},
	}

	values, err := parseComponentValues(components, map[string]interface{}{"c2": 3})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.False(t, *values[0].ValueBool, "missing checkbox means unchecked")
	assert.Equal(t, 3.0, *values[1].ValueNumber)

	_, err = parseComponentValues(components, map[string]interface{}{})
	requireValidation(t, err)

	for _, raw := range []string{"NaN", "Inf", "-inf", "+Infinity"} {
		_, err = parseComponentValues(components, map[string]interface{}{"c2": raw})
		requireValidation(t, err)
	}
}
