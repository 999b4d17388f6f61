package veto_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgepolicy/gatekeeper/crypto"
	"github.com/forgepolicy/gatekeeper/store"
	"github.com/forgepolicy/gatekeeper/veto"
)

type fakeNodes struct {
	byID map[uint64]veto.Node
}

func (f fakeNodes) Get(id uint64) (veto.Node, bool) {
	n, ok := f.byID[id]
	return n, ok
}

func TestAdmitRejectsInactiveNode(t *testing.T) {
	nodes := fakeNodes{byID: map[uint64]veto.Node{
		1: {ID: 1, NodeType: "MiningPool", EntityName: "pool-a", Active: false},
	}}
	engine := veto.New(store.NewMemDB(), nodes)
	_, err := engine.Admit("consensus", 42, 1, veto.SignalVeto, "deadbeef", "", time.Now())
	require.Error(t, err)
}

func TestAdmitVerifiesSignatureAndDeduplicates(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	nodes := fakeNodes{byID: map[uint64]veto.Node{
		1: {ID: 1, NodeType: "MiningPool", EntityName: "pool-a", PublicKey: key.PubKey().CompressedHex(), Weight: 0.25, Active: true},
	}}
	engine := veto.New(store.NewMemDB(), nodes)

	sigHex, err := crypto.SignHex(key, crypto.VetoSignalMessage(42, "pool-a"))
	require.NoError(t, err)

	_, err = engine.Admit("consensus", 42, 1, veto.SignalVeto, sigHex, "too risky", time.Now())
	require.NoError(t, err)

	_, err = engine.Admit("consensus", 42, 1, veto.SignalSupport, sigHex, "", time.Now())
	require.Error(t, err)
}

func TestTallyMiningCohortThreshold(t *testing.T) {
	key1, _ := crypto.GeneratePrivateKey()
	key2, _ := crypto.GeneratePrivateKey()
	nodes := fakeNodes{byID: map[uint64]veto.Node{
		1: {ID: 1, NodeType: "MiningPool", EntityName: "pool-a", PublicKey: key1.PubKey().CompressedHex(), Weight: 0.25, Active: true},
		2: {ID: 2, NodeType: "MiningPool", EntityName: "pool-b", PublicKey: key2.PubKey().CompressedHex(), Weight: 0.05, Active: true},
	}}
	engine := veto.New(store.NewMemDB(), nodes)

	sig1, _ := crypto.SignHex(key1, crypto.VetoSignalMessage(42, "pool-a"))
	sig2, _ := crypto.SignHex(key2, crypto.VetoSignalMessage(42, "pool-b"))
	_, err := engine.Admit("consensus", 42, 1, veto.SignalVeto, sig1, "", time.Now())
	require.NoError(t, err)
	_, err = engine.Admit("consensus", 42, 2, veto.SignalVeto, sig2, "", time.Now())
	require.NoError(t, err)

	result, err := engine.Tally("consensus", 42)
	require.NoError(t, err)
	require.InDelta(t, 100.0, result.MiningVetoPercent, 1e-9)
	require.True(t, result.Active)
}

func TestTallyZeroParticipationCohortIsZeroPercent(t *testing.T) {
	engine := veto.New(store.NewMemDB(), fakeNodes{byID: map[uint64]veto.Node{}})
	result, err := engine.Tally("consensus", 42)
	require.NoError(t, err)
	require.Equal(t, 0.0, result.MiningVetoPercent)
	require.Equal(t, 0.0, result.EconomicVetoPercent)
	require.False(t, result.Active)
}
