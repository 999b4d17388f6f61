package econnode_test

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/forgepolicy/gatekeeper/econnode"
)

func setupRegistry(t *testing.T) *econnode.Registry {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	registry, err := econnode.Open(db)
	require.NoError(t, err)
	return registry
}

func TestRegisterMiningPoolRejectedBelowThreshold(t *testing.T) {
	registry := setupRegistry(t)
	_, err := registry.Register(context.Background(), econnode.NodeTypeMiningPool, "pool-a", "pub", econnode.QualificationProof{
		HashpowerProof: &econnode.HashpowerProof{Percentage: 0.5},
	}, time.Now().UTC())
	require.Error(t, err)
}

func TestRegisterMiningPoolComputesWeight(t *testing.T) {
	registry := setupRegistry(t)
	node, err := registry.Register(context.Background(), econnode.NodeTypeMiningPool, "pool-a", "pub", econnode.QualificationProof{
		HashpowerProof: &econnode.HashpowerProof{Percentage: 25},
	}, time.Now().UTC())
	require.NoError(t, err)
	require.InDelta(t, 0.25, node.Weight, 1e-9)
	require.Equal(t, econnode.StatusPending, node.Status)
}

func TestActivateTransitionsToActive(t *testing.T) {
	registry := setupRegistry(t)
	node, err := registry.Register(context.Background(), econnode.NodeTypeMajorHolder, "whale", "pub", econnode.QualificationProof{
		HoldingsProof: &econnode.HoldingsProof{TotalBTC: 2500},
	}, time.Now().UTC())
	require.NoError(t, err)

	activated, err := registry.Activate(context.Background(), node.ID, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, econnode.StatusActive, activated.Status)
	require.InDelta(t, 0.5, activated.Weight, 1e-9)
}

func TestRecalculateAllUpdatesActiveNodeWeights(t *testing.T) {
	registry := setupRegistry(t)
	node, err := registry.Register(context.Background(), econnode.NodeTypeCustodian, "custodian-a", "pub", econnode.QualificationProof{
		HoldingsProof: &econnode.HoldingsProof{TotalBTC: 5000},
	}, time.Now().UTC())
	require.NoError(t, err)
	_, err = registry.Activate(context.Background(), node.ID, time.Now().UTC())
	require.NoError(t, err)

	updated, err := registry.RecalculateAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	active, err := registry.ActiveNodes(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.InDelta(t, 0.5, active[0].Weight, 1e-9)
}

func TestReverifyRejectsBelowThreshold(t *testing.T) {
	registry := setupRegistry(t)
	node, err := registry.Register(context.Background(), econnode.NodeTypeCustodian, "custodian-a", "pub", econnode.QualificationProof{
		HoldingsProof: &econnode.HoldingsProof{TotalBTC: 5000},
	}, time.Now().UTC())
	require.NoError(t, err)

	_, err = registry.Reverify(context.Background(), node.ID, econnode.QualificationProof{
		HoldingsProof: &econnode.HoldingsProof{TotalBTC: 100},
	}, time.Now().UTC())
	require.Error(t, err)
}
