package gatekeeper_test

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/forgepolicy/gatekeeper/aggregator"
	"github.com/forgepolicy/gatekeeper/audit"
	"github.com/forgepolicy/gatekeeper/authz"
	"github.com/forgepolicy/gatekeeper/changerequest"
	"github.com/forgepolicy/gatekeeper/classifier"
	"github.com/forgepolicy/gatekeeper/crypto"
	"github.com/forgepolicy/gatekeeper/econnode"
	"github.com/forgepolicy/gatekeeper/evaluator"
	"github.com/forgepolicy/gatekeeper/gatekeeper"
	"github.com/forgepolicy/gatekeeper/publisher"
	"github.com/forgepolicy/gatekeeper/store"
	"github.com/forgepolicy/gatekeeper/veto"
)

func testAdminPrincipal() authz.Principal {
	return authz.Principal{Subject: "admin-1", Scopes: []string{authz.ScopeEmergencyMode, authz.ScopeOverrideTier}}
}

func combinedCheck(outcome publisher.Outcome) publisher.Check {
	for _, check := range outcome.Checks {
		if check.Context == publisher.ContextCombined {
			return check
		}
	}
	return publisher.Check{}
}

func newTestService(t *testing.T) (*gatekeeper.Service, map[string]*crypto.PrivateKey) {
	t.Helper()

	crDB := store.NewMemDB()
	maintainerKeys := map[string]*crypto.PrivateKey{}
	maintainers := changerequest.NewMaintainerRegistry(crDB)
	for _, identity := range []string{"m1", "m2", "m3", "m4", "m5"} {
		key, err := crypto.GeneratePrivateKey()
		require.NoError(t, err)
		maintainerKeys[identity] = key
		require.NoError(t, maintainers.Put(changerequest.Maintainer{
			Identity:  identity,
			PublicKey: key.PubKey().CompressedHex(),
			Layer:     5,
			Active:    true,
		}))
	}
	crStore := changerequest.New(crDB, maintainers)

	econDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	econRegistry, err := econnode.Open(econDB)
	require.NoError(t, err)

	vetoEngine := veto.New(store.NewMemDB(), gatekeeper.NewEconNodeLookup(econRegistry))

	auditLog, err := audit.Open(t.TempDir()+"/audit.jsonl", "test-server", time.Now().UTC())
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditLog.Close() })

	eval := evaluator.New(auditLog, trace.NewNoopTracerProvider().Tracer("test"))

	svc := gatekeeper.New(gatekeeper.Config{
		ChangeRequests: crStore,
		Rules:          classifier.DefaultRuleSet(),
		Aggregator:     aggregator.New(maintainers, 0),
		EconNodes:      econRegistry,
		Veto:           vetoEngine,
		Evaluator:      eval,
		Publisher:      publisher.NewMemStore(),
		Metrics:        publisher.ModuleMetrics(),
	})
	return svc, maintainerKeys
}

// TestTierOneRoutineMergeAllowed exercises spec.md §8 scenario 1: a
// documentation-only change on a layer-5 repository, three maintainer
// signatures, opened well past the resolved review period.
func TestTierOneRoutineMergeAllowed(t *testing.T) {
	svc, keys := newTestService(t)
	ctx := context.Background()
	openedAt := time.Now().UTC().Add(-15 * 24 * time.Hour)
	now := time.Now().UTC()

	verdict, outcome, err := svc.HandlePushEvent(ctx, "docs", 1, "abc123", 5,
		[]string{"docs/README.md"}, "Fix typo in README", "", openedAt, now)
	require.NoError(t, err)
	require.Equal(t, evaluator.StatusBlock, verdict.Status)

	for _, signer := range []string{"m1", "m2", "m3"} {
		sigHex, err := crypto.SignHex(keys[signer], crypto.GovernanceSignatureMessage(signer))
		require.NoError(t, err)
		verdict, outcome, err = svc.SubmitSignature(ctx, "docs", 1, signer, sigHex, now)
		require.NoError(t, err)
	}

	require.Equal(t, evaluator.StatusAllow, verdict.Status)
	require.Equal(t, publisher.StateSuccess, combinedCheck(outcome).State)
}

// TestEmergencyModeWaivesReviewPeriodNeverSignatures exercises spec.md §8
// scenario 3: emergency mode waives the review-period clock (and any active
// veto) but never the signature threshold. The tier is pinned with
// OverrideTier rather than left to the classifier, so the resolved
// requirements (and thus the number of signatures needed) are deterministic.
func TestEmergencyModeWaivesReviewPeriodNeverSignatures(t *testing.T) {
	svc, keys := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()
	principal := testAdminPrincipal()

	_, _, err := svc.HandlePushEvent(ctx, "core", 42, "headsha", 5,
		[]string{"resolver/resolver.go"}, "governance policy update", "incident", now, now)
	require.NoError(t, err)

	_, _, err = svc.OverrideTier(ctx, principal, "core", 42, 3, "governance policy change requires tier 3 review", now)
	require.NoError(t, err)

	verdict, _, err := svc.ActivateEmergencyMode(ctx, principal, "core", 42, "responding to live incident", now)
	require.NoError(t, err)
	require.Equal(t, evaluator.StatusBlock, verdict.Status, "signatures still outstanding even under emergency mode")

	for _, signer := range []string{"m1", "m2", "m3", "m4", "m5"} {
		sigHex, err := crypto.SignHex(keys[signer], crypto.GovernanceSignatureMessage(signer))
		require.NoError(t, err)
		verdict, _, err = svc.SubmitSignature(ctx, "core", 42, signer, sigHex, now)
		require.NoError(t, err)
	}
	require.Equal(t, evaluator.StatusAllow, verdict.Status)
	require.True(t, verdict.ReviewPeriodWaived)
}
