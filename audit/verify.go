package audit

import "github.com/forgepolicy/gatekeeper/crypto"

// VerificationResult reports the outcome of a full log traversal.
type VerificationResult struct {
	Valid bool
	// FailedAtIndex is the index of the first faulty entry, or -1 if Valid.
	FailedAtIndex int
	Reason        string
}

// Verify performs the verification traversal spec.md §4.10 defines: the
// first entry must be a genesis entry with the zero-sentinel predecessor
// hash; every subsequent entry's previous_log_hash must equal its
// predecessor's this_log_hash with a non-decreasing timestamp; and every
// entry's own hash must verify.
func Verify(entries []Entry) VerificationResult {
	if len(entries) == 0 {
		return VerificationResult{Valid: false, FailedAtIndex: 0, Reason: "log is empty"}
	}

	first := entries[0]
	if first.JobType != JobTypeGenesis {
		return VerificationResult{Valid: false, FailedAtIndex: 0, Reason: "first entry is not a genesis entry"}
	}
	if first.PreviousLogHash != crypto.ZeroHash {
		return VerificationResult{Valid: false, FailedAtIndex: 0, Reason: "genesis entry's previous_log_hash is not the zero sentinel"}
	}
	if !first.VerifyHash() {
		return VerificationResult{Valid: false, FailedAtIndex: 0, Reason: "genesis entry hash does not verify"}
	}

	for i := 1; i < len(entries); i++ {
		entry := entries[i]
		previous := entries[i-1]
		if entry.PreviousLogHash != previous.ThisLogHash {
			return VerificationResult{Valid: false, FailedAtIndex: i, Reason: "hash chain broken: previous_log_hash does not match predecessor's this_log_hash"}
		}
		if entry.Timestamp.Before(previous.Timestamp) {
			return VerificationResult{Valid: false, FailedAtIndex: i, Reason: "timestamp precedes predecessor"}
		}
		if !entry.VerifyHash() {
			return VerificationResult{Valid: false, FailedAtIndex: i, Reason: "entry hash does not verify"}
		}
	}

	return VerificationResult{Valid: true, FailedAtIndex: -1}
}
