package service

import (
	"context"
	"testing"
	"time"

	"github.com/JBDLC/GMAO/internal/config"
	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/JBDLC/GMAO/internal/gmao/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// setupCachedServices 带 Redis 看板缓存的服务集合
func setupCachedServices(t *testing.T) (*Services, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	db := testutil.SetupTestDB(t)
	svc := NewServices(Deps{
		DB:     db,
		Repos:  repository.NewRepositories(db),
		Redis:  rdb,
		Logger: zap.NewNop(),
		Config: config.Default(),
	})
	require.NotNil(t, svc.Dashboard.cache)
	return svc, db, mr
}

func TestNewDashboardCache_Disabled(t *testing.T) {
	assert.Nil(t, NewDashboardCache(nil, time.Minute))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	assert.Nil(t, NewDashboardCache(rdb, 0))
	assert.NotNil(t, NewDashboardCache(rdb, time.Minute))
}

func TestDashboardCache_GenerationInvalidates(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	cache := NewDashboardCache(rdb, time.Minute)
	ctx := context.Background()

	var got Dashboard
	hit, err := cache.Get(ctx, actor, &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, actor, Dashboard{LowStockAlerts: 3}))
	assert.True(t, mr.Exists("gmao:dashboard:0:"+actor))
	assert.Equal(t, time.Minute, mr.TTL("gmao:dashboard:0:"+actor))

	hit, err = cache.Get(ctx, actor, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, got.LowStockAlerts)

	// 其他用户不共享
	hit, err = cache.Get(ctx, "user-other", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Invalidate(ctx))
	gen, err := mr.Get("gmao:dashboard:gen")
	require.NoError(t, err)
	assert.Equal(t, "1", gen)

	hit, err = cache.Get(ctx, actor, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDashboard_ServedFromCacheUntilLedgerWrite(t *testing.T) {
	svc, db, _ := setupCachedServices(t)
	ctx := context.Background()
	m := testutil.SeedMachine(t, db, "CMP-1", "", true, 0)
	require.NoError(t, svc.Machine.Follow(ctx, actor, m.ID))

	cm, err := svc.Maintenance.RecordCorrective(ctx, actor, CorrectiveInput{MachineID: m.ID, Comment: "Fuite"})
	require.NoError(t, err)

	d, err := svc.Dashboard.Get(ctx, actor)
	require.NoError(t, err)
	require.Len(t, d.Machines, 1)
	assert.EqualValues(t, 1, d.Machines[0].CorrectiveCount)
	assert.Equal(t, "Machine CMP-1", d.Machines[0].Machine.Name)

	// 绕过服务层的修改不会失效缓存
	require.NoError(t, db.Model(&entity.Machine{}).Where("id = ?", m.ID).Update("name", "Compresseur").Error)
	d, err = svc.Dashboard.Get(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, "Machine CMP-1", d.Machines[0].Machine.Name)

	require.NoError(t, svc.Maintenance.DeleteCorrective(ctx, actor, cm.ID))
	d, err = svc.Dashboard.Get(ctx, actor)
	require.NoError(t, err)
	require.Len(t, d.Machines, 1)
	assert.EqualValues(t, 0, d.Machines[0].CorrectiveCount)
	assert.Equal(t, "Compresseur", d.Machines[0].Machine.Name)
}

func TestDashboard_PlanChangesInvalidateCache(t *testing.T) {
	svc, db, mr := setupCachedServices(t)
	ctx := context.Background()
	m := testutil.SeedMachine(t, db, "PV-1", "", true, 0)
	plan := testutil.SeedPlan(t, db, m.ID, "Graissage", 100, "")
	require.NoError(t, db.Create(&entity.ProgressRecord{ID: "prog-cache-1", MachineID: m.ID, PlanID: plan.ID, HoursSince: -5}).Error)
	require.NoError(t, svc.Machine.Follow(ctx, actor, m.ID))

	d, err := svc.Dashboard.Get(ctx, actor)
	require.NoError(t, err)
	require.Len(t, d.Machines, 1)
	assert.EqualValues(t, 1, d.Machines[0].DueCount)

	before, err := mr.Get("gmao:dashboard:gen")
	require.NoError(t, err)

	created, err := svc.Plan.Create(ctx, actor, m.ID, CreatePlanInput{Name: "Filtres", Periodicity: 50})
	require.NoError(t, err)
	d, err = svc.Dashboard.Get(ctx, actor)
	require.NoError(t, err)
	assert.Len(t, d.Machines[0].Progress, 2)

	require.NoError(t, svc.Plan.Delete(ctx, actor, plan.ID))
	d, err = svc.Dashboard.Get(ctx, actor)
	require.NoError(t, err)
	assert.EqualValues(t, 0, d.Machines[0].DueCount)
	require.Len(t, d.Machines[0].Progress, 1)
	assert.Equal(t, created.ID, d.Machines[0].Progress[0].PlanID)

	after, err := mr.Get("gmao:dashboard:gen")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}
