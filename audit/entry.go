// Package audit implements the tamper-evident audit log (C10): an
// append-only JSON-lines store where every entry carries the SHA-256 of its
// predecessor and of its own canonicalization.
package audit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/forgepolicy/gatekeeper/crypto"
)

// JobTypeGenesis marks the first entry in every log.
const JobTypeGenesis = "genesis"

// Entry is one record in the hash-chained audit log.
type Entry struct {
	JobID           string            `json:"job_id"`
	JobType         string            `json:"job_type"`
	Timestamp       time.Time         `json:"timestamp"`
	ServerID        string            `json:"server_id"`
	InputsHash      string            `json:"inputs_hash"`
	OutputsHash     string            `json:"outputs_hash"`
	PreviousLogHash string            `json:"previous_log_hash"`
	ThisLogHash     string            `json:"this_log_hash"`
	Metadata        map[string]string `json:"metadata"`
}

// canonicalString is the pipe-delimited concatenation of labelled fields in
// a fixed order, with metadata pairs sorted lexicographically by key and
// joined by commas, followed by the RFC 3339 timestamp. this_log_hash is
// deliberately excluded from its own canonicalization.
func (e Entry) canonicalString() string {
	return fmt.Sprintf(
		"job_id:%s|job_type:%s|timestamp:%s|server_id:%s|inputs_hash:%s|outputs_hash:%s|previous_log_hash:%s|metadata:%s",
		e.JobID, e.JobType, e.Timestamp.Format(time.RFC3339), e.ServerID,
		e.InputsHash, e.OutputsHash, e.PreviousLogHash, e.canonicalMetadata(),
	)
}

func (e Entry) canonicalMetadata() string {
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+":"+e.Metadata[k])
	}
	return strings.Join(pairs, ",")
}

// calculateHash derives this_log_hash from the entry's canonicalization.
func (e Entry) calculateHash() string {
	return crypto.HashString([]byte(e.canonicalString()))
}

// VerifyHash reports whether this_log_hash matches the entry's
// canonicalization.
func (e Entry) VerifyHash() bool {
	return e.ThisLogHash == e.calculateHash()
}

// newEntry constructs an entry and computes its this_log_hash. Callers
// supply previousLogHash from the log's current head.
func newEntry(jobID, jobType, serverID, inputsHash, outputsHash, previousLogHash string, metadata map[string]string, timestamp time.Time) Entry {
	entry := Entry{
		JobID:           jobID,
		JobType:         jobType,
		Timestamp:       timestamp,
		ServerID:        serverID,
		InputsHash:      inputsHash,
		OutputsHash:     outputsHash,
		PreviousLogHash: previousLogHash,
		Metadata:        metadata,
	}
	entry.ThisLogHash = entry.calculateHash()
	return entry
}

// genesisEntry constructs the first entry of a new log for serverID.
func genesisEntry(serverID string, timestamp time.Time) Entry {
	return newEntry(
		"genesis", JobTypeGenesis, serverID,
		crypto.ZeroHash, crypto.ZeroHash, crypto.ZeroHash,
		map[string]string{"description": "genesis entry"},
		timestamp,
	)
}
