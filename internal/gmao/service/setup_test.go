package service

import (
	"context"
	"errors"
	"testing"

	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/JBDLC/GMAO/internal/gmao/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const actor = testutil.TestUserID

func setupServices(t *testing.T) (*Services, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	svc := NewServices(Deps{
		DB:     db,
		Repos:  repository.NewRepositories(db),
		Logger: zap.NewNop(),
	})
	return svc, db
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func requireValidation(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsValidation(err), "expected validation error, got %T: %v", err, err)
}

func requireConsistency(t *testing.T, err error) *ConsistencyError {
	t.Helper()
	require.Error(t, err)
	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce), "expected consistency error, got %T: %v", err, err)
	return ce
}

func advance(t *testing.T, svc *Services, machineID string, counterID *string, value float64) *CounterUpdate {
	t.Helper()
	u, err := svc.Counter.Advance(context.Background(), actor, machineID, CounterTargetInput{CounterID: counterID, Value: value})
	require.NoError(t, err)
	return u
}
