package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/forgepolicy/gatekeeper/gaterr"
)

// Log is an append-only JSON-lines audit log for one server identity. Every
// append holds an exclusive lock just long enough to compute this_log_hash
// from the current head, write the line, fsync, and update the head —
// exactly one writer touches the file at any moment.
type Log struct {
	path     string
	serverID string

	mu         sync.Mutex
	file       *os.File
	headHash   string
	entryCount uint64
}

// Open opens (creating if necessary) the JSONL audit log at path for
// serverID, appending a genesis entry on first creation and otherwise
// replaying the file to recover the head hash and entry count.
func Open(path, serverID string, now time.Time) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, gaterr.Wrap(gaterr.KindConfiguration, "create audit log directory", err)
	}

	existed := true
	if _, err := os.Stat(path); os.IsNotExist(err) {
		existed = false
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, gaterr.Wrap(gaterr.KindConfiguration, "open audit log", err)
	}

	l := &Log{path: path, serverID: serverID, file: file}

	if !existed {
		genesis := genesisEntry(serverID, now)
		if err := l.writeLocked(genesis); err != nil {
			return nil, err
		}
		return l, nil
	}

	if err := l.replay(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) replay() error {
	f, err := os.Open(l.path)
	if err != nil {
		return gaterr.Wrap(gaterr.KindConfiguration, "reopen audit log for replay", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var head string
	var count uint64
	var previous *Entry
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return gaterr.Wrap(gaterr.KindInvariant, "decode audit log line", err)
		}
		if !entry.VerifyHash() {
			return gaterr.New(gaterr.KindInvariant, "audit log entry fails hash verification on replay")
		}
		if previous != nil && entry.PreviousLogHash != previous.ThisLogHash {
			return gaterr.New(gaterr.KindInvariant, "audit log hash chain broken on replay")
		}
		head = entry.ThisLogHash
		count++
		previous = &entry
	}
	if err := scanner.Err(); err != nil {
		return gaterr.Wrap(gaterr.KindTransient, "scan audit log", err)
	}

	l.headHash = head
	l.entryCount = count
	return nil
}

// HeadHash returns the current last entry's hash, for use as the next
// append's previous_log_hash.
func (l *Log) HeadHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.headHash
}

// EntryCount returns the number of entries persisted so far.
func (l *Log) EntryCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entryCount
}

// Append constructs, hashes, and persists a new entry chained to the
// current head, returning its resulting this_log_hash.
func (l *Log) Append(jobID, jobType, inputsHash, outputsHash string, metadata map[string]string, now time.Time) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := newEntry(jobID, jobType, l.serverID, inputsHash, outputsHash, l.headHash, metadata, now)
	if err := l.writeLocked(entry); err != nil {
		return "", err
	}
	return entry.ThisLogHash, nil
}

// writeLocked appends entry to the file, fsyncs, and updates the in-memory
// head. Callers must hold l.mu.
func (l *Log) writeLocked(entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return gaterr.Wrap(gaterr.KindInvariant, "encode audit entry", err)
	}
	raw = append(raw, '\n')
	if _, err := l.file.Write(raw); err != nil {
		return gaterr.Wrap(gaterr.KindTransient, "write audit entry", err)
	}
	if err := l.file.Sync(); err != nil {
		return gaterr.Wrap(gaterr.KindTransient, "fsync audit log", err)
	}
	l.headHash = entry.ThisLogHash
	l.entryCount++
	return nil
}

// IterateRange streams entries with timestamp in [from, to), in order,
// calling fn for each. fn returning an error stops iteration.
func (l *Log) IterateRange(from, to time.Time, fn func(Entry) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		return gaterr.Wrap(gaterr.KindTransient, "open audit log for range iteration", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return gaterr.Wrap(gaterr.KindInvariant, "decode audit log line", err)
		}
		if entry.Timestamp.Before(from) || !entry.Timestamp.Before(to) {
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// All returns every entry in order, for callers (e.g. tests) that need the
// whole log as a slice rather than a streaming callback.
func (l *Log) All() ([]Entry, error) {
	var entries []Entry
	err := l.IterateRange(time.Time{}, time.Unix(1<<62, 0), func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
