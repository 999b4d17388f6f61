package changerequest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgepolicy/gatekeeper/changerequest"
	"github.com/forgepolicy/gatekeeper/crypto"
	"github.com/forgepolicy/gatekeeper/store"
)

func newTestStore(t *testing.T) (*changerequest.Store, *changerequest.MaintainerRegistry) {
	t.Helper()
	db := store.NewMemDB()
	registry := changerequest.NewMaintainerRegistry(db)
	return changerequest.New(db, registry), registry
}

func TestUpsertIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	opened := time.Now().UTC()

	first, err := s.Upsert("docs", 1, "abc123", 5, opened)
	require.NoError(t, err)
	require.Equal(t, changerequest.StatusPending, first.GovernanceStatus)

	second, err := s.Upsert("docs", 1, "abc123", 5, opened)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestUpsertUpdatesHeadCommitOnPush(t *testing.T) {
	s, _ := newTestStore(t)
	opened := time.Now().UTC()

	_, err := s.Upsert("docs", 1, "abc123", 5, opened)
	require.NoError(t, err)

	updated, err := s.Upsert("docs", 1, "def456", 5, opened)
	require.NoError(t, err)
	require.Equal(t, "def456", updated.HeadCommit)
}

func TestRecordSignatureRejectsUnknownSigner(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Upsert("docs", 1, "abc123", 5, time.Now().UTC())
	require.NoError(t, err)

	_, err = s.RecordSignature("docs", 1, "m1", "deadbeef", time.Now().UTC())
	require.Error(t, err)
}

func TestRecordSignatureVerifiesAndDeduplicates(t *testing.T) {
	s, registry := newTestStore(t)
	_, err := s.Upsert("docs", 1, "abc123", 5, time.Now().UTC())
	require.NoError(t, err)

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, registry.Put(changerequest.Maintainer{
		Identity:  "m1",
		PublicKey: key.PubKey().CompressedHex(),
		Layer:     5,
		Active:    true,
	}))

	sigHex, err := crypto.SignHex(key, crypto.GovernanceSignatureMessage("m1"))
	require.NoError(t, err)

	now := time.Now().UTC()
	cr, err := s.RecordSignature("docs", 1, "m1", sigHex, now)
	require.NoError(t, err)
	require.Contains(t, cr.Signatures, "m1")

	// Re-submission of the identical signature is a no-op, not an error.
	cr2, err := s.RecordSignature("docs", 1, "m1", sigHex, now)
	require.NoError(t, err)
	require.Len(t, cr2.Signatures, 1)
}

func TestRecordSignatureRejectsWrongLayer(t *testing.T) {
	s, registry := newTestStore(t)
	_, err := s.Upsert("docs", 1, "abc123", 5, time.Now().UTC())
	require.NoError(t, err)

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, registry.Put(changerequest.Maintainer{
		Identity:  "m1",
		PublicKey: key.PubKey().CompressedHex(),
		Layer:     3,
		Active:    true,
	}))

	sigHex, err := crypto.SignHex(key, crypto.GovernanceSignatureMessage("m1"))
	require.NoError(t, err)

	_, err = s.RecordSignature("docs", 1, "m1", sigHex, time.Now().UTC())
	require.Error(t, err)
}

func TestRecordSignatureRejectsDuplicateWithDifferentSignature(t *testing.T) {
	s, registry := newTestStore(t)
	_, err := s.Upsert("docs", 1, "abc123", 5, time.Now().UTC())
	require.NoError(t, err)

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, registry.Put(changerequest.Maintainer{
		Identity:  "m1",
		PublicKey: key.PubKey().CompressedHex(),
		Layer:     5,
		Active:    true,
	}))

	sigHex, err := crypto.SignHex(key, crypto.GovernanceSignatureMessage("m1"))
	require.NoError(t, err)
	_, err = s.RecordSignature("docs", 1, "m1", sigHex, time.Now().UTC())
	require.NoError(t, err)

	otherSig, err := crypto.SignHex(key, crypto.GovernanceSignatureMessage("m1-again"))
	require.NoError(t, err)
	_, err = s.RecordSignature("docs", 1, "m1", otherSig, time.Now().UTC())
	require.Error(t, err)
}

func TestManualTierOverrideTakesPrecedence(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Upsert("docs", 1, "abc123", 5, time.Now().UTC())
	require.NoError(t, err)

	_, err = s.SetTier("docs", 1, 4)
	require.NoError(t, err)

	cr, err := s.SetClassifiedTier("docs", 1, 1, false)
	require.NoError(t, err)
	require.Equal(t, 4, cr.Tier)
	require.True(t, cr.TierOverridden)
}
