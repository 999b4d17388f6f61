package anchor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/forgepolicy/gatekeeper/audit"
	"github.com/forgepolicy/gatekeeper/gaterr"
	"github.com/forgepolicy/gatekeeper/timestamp"
)

var anchorBucket = []byte("merkle_anchors")

// MerkleAnchor is the periodic root commitment of an audit-log window,
// timestamped externally (spec.md §3).
type MerkleAnchor struct {
	ID             string    `json:"id"`
	ServerID       string    `json:"server_id"`
	WindowLabel    string    `json:"window_label"`
	FirstEntryHash string    `json:"first_entry_hash"`
	LastEntryHash  string    `json:"last_entry_hash"`
	EntryCount     int       `json:"entry_count"`
	MerkleRoot     string    `json:"merkle_root"`
	ProofBytes     []byte    `json:"proof_bytes"`
	CreatedAt      time.Time `json:"created_at"`
}

func anchorKey(serverID, windowLabel string) []byte {
	return []byte(serverID + "/" + windowLabel)
}

// EntrySource resolves the ordered audit entries within a time window.
// *audit.Log satisfies this directly; the anchorer depends on the
// interface (not the concrete type) only so tests can substitute a fake
// window without standing up a real JSONL file.
type EntrySource interface {
	IterateRange(from, to time.Time, fn func(entry audit.Entry) error) error
}

// Anchorer builds and persists periodic Merkle anchors over an audit log's
// windows, submitting each window's root to an external timestamping
// service. Anchor persistence (bbolt) is independent of the change-request
// store's KV backend, so a locked or corrupt anchor store never blocks
// change-request processing (spec.md DOMAIN STACK rationale).
type Anchorer struct {
	serverID string
	entries  EntrySource
	db       *bbolt.DB
	ts       timestamp.Service
}

// Open constructs an Anchorer persisting to a bbolt database at path.
func Open(path, serverID string, entries EntrySource, ts timestamp.Service) (*Anchorer, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, gaterr.Wrap(gaterr.KindConfiguration, "open anchor store", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(anchorBucket)
		return err
	})
	if err != nil {
		return nil, gaterr.Wrap(gaterr.KindConfiguration, "create anchor bucket", err)
	}
	return &Anchorer{serverID: serverID, entries: entries, db: db, ts: ts}, nil
}

// Close closes the underlying bbolt database.
func (a *Anchorer) Close() error { return a.db.Close() }

// AnchorWindow builds the Merkle tree over every entry with a timestamp in
// [from, to), submits the root for external timestamping, and persists the
// resulting anchor. It honours ctx cancellation at each suspension point
// (tree construction is pure CPU and uninterruptible, but the timestamp
// round-trip and the persistence write both check first) and never writes
// a partial anchor record: a cancelled or failed attempt leaves the store
// exactly as it was.
func (a *Anchorer) AnchorWindow(ctx context.Context, windowLabel string, from, to time.Time) (MerkleAnchor, error) {
	var hashes []string
	var timestamps []time.Time
	err := a.entries.IterateRange(from, to, func(e audit.Entry) error {
		hashes = append(hashes, e.ThisLogHash)
		timestamps = append(timestamps, e.Timestamp)
		return nil
	})
	if err != nil {
		return MerkleAnchor{}, gaterr.Wrap(gaterr.KindTransient, "collect audit entries for anchor window", err)
	}
	if len(hashes) == 0 {
		return MerkleAnchor{}, gaterr.New(gaterr.KindInvariant, "anchor window contains no audit entries")
	}

	root, err := Root(hashes)
	if err != nil {
		return MerkleAnchor{}, err
	}

	if err := ctx.Err(); err != nil {
		return MerkleAnchor{}, err
	}
	proof, err := a.ts.Stamp(ctx, []byte(root))
	if err != nil {
		return MerkleAnchor{}, gaterr.Wrap(gaterr.KindTransient, "submit anchor root for timestamping", err)
	}
	if err := ctx.Err(); err != nil {
		// The external stamp succeeded but the caller cancelled before we
		// could persist; drop it rather than write a half-acknowledged
		// anchor the next attempt cannot distinguish from a committed one.
		return MerkleAnchor{}, err
	}

	anchor := MerkleAnchor{
		ID:             uuid.NewString(),
		ServerID:       a.serverID,
		WindowLabel:    windowLabel,
		FirstEntryHash: hashes[0],
		LastEntryHash:  hashes[len(hashes)-1],
		EntryCount:     len(hashes),
		MerkleRoot:     root,
		ProofBytes:     proof,
		CreatedAt:      timestamps[len(timestamps)-1],
	}
	if err := a.persist(anchor); err != nil {
		return MerkleAnchor{}, err
	}
	return anchor, nil
}

func (a *Anchorer) persist(anchor MerkleAnchor) error {
	raw, err := json.Marshal(anchor)
	if err != nil {
		return gaterr.Wrap(gaterr.KindInvariant, "encode merkle anchor", err)
	}
	err = a.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(anchorBucket).Put(anchorKey(anchor.ServerID, anchor.WindowLabel), raw)
	})
	if err != nil {
		return gaterr.Wrap(gaterr.KindTransient, "persist merkle anchor", err)
	}
	return nil
}

// Get returns a previously persisted anchor for serverID/windowLabel.
func (a *Anchorer) Get(serverID, windowLabel string) (MerkleAnchor, bool, error) {
	var anchor MerkleAnchor
	var found bool
	err := a.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(anchorBucket).Get(anchorKey(serverID, windowLabel))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &anchor)
	})
	if err != nil {
		return MerkleAnchor{}, false, gaterr.Wrap(gaterr.KindInvariant, "decode merkle anchor", err)
	}
	return anchor, found, nil
}

// VerifyAnchor asks the timestamping service to confirm anchor's proof
// against its Merkle root.
func (a *Anchorer) VerifyAnchor(ctx context.Context, anchor MerkleAnchor) (timestamp.VerificationResult, error) {
	return a.ts.Verify(ctx, []byte(anchor.MerkleRoot), anchor.ProofBytes)
}

// Run anchors on every tick of interval until ctx is cancelled, deriving
// each window's label and bounds from windowFn applied to the tick time.
// A cancelled in-flight attempt returns without anchoring; Run itself exits
// as soon as ctx is done, never starting a new window after cancellation.
func (a *Anchorer) Run(ctx context.Context, interval time.Duration, windowFn func(tick time.Time) (label string, from, to time.Time), onResult func(MerkleAnchor, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			label, from, to := windowFn(tick)
			anchor, err := a.AnchorWindow(ctx, label, from, to)
			if onResult != nil {
				onResult(anchor, err)
			}
		}
	}
}

// MonthWindow is the nominal windowing function spec.md §4.11 describes:
// a calendar-month label with bounds covering the whole previous month
// relative to tick.
func MonthWindow(tick time.Time) (label string, from, to time.Time) {
	tick = tick.UTC()
	firstOfThisMonth := time.Date(tick.Year(), tick.Month(), 1, 0, 0, 0, 0, time.UTC)
	firstOfPrevMonth := firstOfThisMonth.AddDate(0, -1, 0)
	return firstOfPrevMonth.Format("2006-01"), firstOfPrevMonth, firstOfThisMonth
}
