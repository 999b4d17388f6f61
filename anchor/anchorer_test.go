package anchor_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgepolicy/gatekeeper/anchor"
	"github.com/forgepolicy/gatekeeper/audit"
	"github.com/forgepolicy/gatekeeper/crypto"
	"github.com/forgepolicy/gatekeeper/timestamp"
)

type fakeEntrySource struct {
	entries []audit.Entry
}

func (f fakeEntrySource) IterateRange(from, to time.Time, fn func(audit.Entry) error) error {
	for _, e := range f.entries {
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

type fakeTimestampService struct {
	stamped [][]byte
}

func (f *fakeTimestampService) Stamp(ctx context.Context, data []byte) ([]byte, error) {
	f.stamped = append(f.stamped, append([]byte(nil), data...))
	return []byte("proof-for-" + string(data)), nil
}

func (f *fakeTimestampService) Verify(ctx context.Context, data, proof []byte) (timestamp.VerificationResult, error) {
	if string(proof) == "proof-for-"+string(data) {
		return timestamp.VerificationResult{Kind: timestamp.Confirmed, BlockHeight: 1}, nil
	}
	return timestamp.VerificationResult{Kind: timestamp.Pending}, nil
}

func makeEntries(n int, base time.Time) []audit.Entry {
	entries := make([]audit.Entry, n)
	for i := range entries {
		entries[i] = audit.Entry{
			ThisLogHash: crypto.HashString([]byte{byte(i)}),
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
		}
	}
	return entries
}

func TestAnchorWindowPersistsAnchor(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := fakeEntrySource{entries: makeEntries(5, base)}
	ts := &fakeTimestampService{}

	dbPath := filepath.Join(t.TempDir(), "anchors.db")
	anchorer, err := anchor.Open(dbPath, "server-1", source, ts)
	require.NoError(t, err)
	defer anchorer.Close()

	got, err := anchorer.AnchorWindow(context.Background(), "2026-01", base.Add(-time.Hour), base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 5, got.EntryCount)
	require.Equal(t, source.entries[0].ThisLogHash, got.FirstEntryHash)
	require.Equal(t, source.entries[4].ThisLogHash, got.LastEntryHash)
	require.NotEmpty(t, got.MerkleRoot)
	require.NotEmpty(t, got.ProofBytes)

	stored, found, err := anchorer.Get("server-1", "2026-01")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, got, stored)

	result, err := anchorer.VerifyAnchor(context.Background(), stored)
	require.NoError(t, err)
	require.Equal(t, timestamp.Confirmed, result.Kind)
}

func TestAnchorWindowRejectsEmptyWindow(t *testing.T) {
	source := fakeEntrySource{}
	ts := &fakeTimestampService{}
	dbPath := filepath.Join(t.TempDir(), "anchors.db")
	anchorer, err := anchor.Open(dbPath, "server-1", source, ts)
	require.NoError(t, err)
	defer anchorer.Close()

	_, err = anchorer.AnchorWindow(context.Background(), "2026-01", time.Now(), time.Now())
	require.Error(t, err)
}

func TestAnchorWindowCancelledBeforeStampLeavesNoRecord(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := fakeEntrySource{entries: makeEntries(3, base)}
	ts := &fakeTimestampService{}
	dbPath := filepath.Join(t.TempDir(), "anchors.db")
	anchorer, err := anchor.Open(dbPath, "server-1", source, ts)
	require.NoError(t, err)
	defer anchorer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = anchorer.AnchorWindow(ctx, "2026-01", base.Add(-time.Hour), base.Add(24*time.Hour))
	require.Error(t, err)

	_, found, err := anchorer.Get("server-1", "2026-01")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMonthWindowCoversPreviousCalendarMonth(t *testing.T) {
	tick := time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC)
	label, from, to := anchor.MonthWindow(tick)
	require.Equal(t, "2026-02", label)
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), to)
}
