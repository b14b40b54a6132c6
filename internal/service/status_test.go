package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	fx := setupTestServices(t)

	reply, err := fx.statusSvc.Healthz(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Status)
	assert.Zero(t, reply.DroppedWrites)
	assert.Zero(t, reply.DroppedAlerts)
}

func TestStatus_ListsConfiguredBreakers(t *testing.T) {
	fx := setupTestServices(t)

	status, err := fx.statusSvc.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status.Breakers, 1)
	assert.Equal(t, "pricing-api", status.Breakers[0].Name)
	assert.Equal(t, "closed", status.Breakers[0].State)
	assert.Nil(t, status.Breakers[0].OpenedAt)
	assert.Empty(t, status.RecentTrips)
	assert.False(t, status.GeneratedAt.IsZero())
}
