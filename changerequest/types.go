// Package changerequest owns the ChangeRequest and Signature records: the
// only component permitted to mutate them. Classification, requirement
// resolution, and evaluation all consume a loaded ChangeRequest but never
// write to it directly.
package changerequest

import "time"

// GovernanceStatus is the derived verdict a ChangeRequest carries until the
// evaluator (C8) re-derives it.
type GovernanceStatus string

const (
	StatusPending GovernanceStatus = "pending"
	StatusAllow   GovernanceStatus = "allow"
	StatusBlock   GovernanceStatus = "block"
)

// ChangeRequest is the unit of governance review: one proposed change in one
// repository, identified by (Repository, Number).
type ChangeRequest struct {
	Repository string `json:"repository"`
	Number     int64  `json:"number"`

	HeadCommit string    `json:"head_commit"`
	OpenedAt   time.Time `json:"opened_at"`

	Layer int `json:"layer"`
	Tier  int `json:"tier"`
	// TierLowConfidence is set when the classifier fell back to the
	// configured default tier rather than matching a rule with confidence.
	TierLowConfidence bool `json:"tier_low_confidence"`
	// TierOverridden records that an authorised identity set Tier directly;
	// once true, auto-classification no longer updates Tier.
	TierOverridden bool `json:"tier_overridden"`

	EmergencyMode bool `json:"emergency_mode"`

	Signatures map[string]Signature `json:"signatures"`

	GovernanceStatus GovernanceStatus `json:"governance_status"`
}

// Signature is one maintainer's verified signature over the canonical
// governance-signature message for a single ChangeRequest.
type Signature struct {
	Signer    string    `json:"signer"`
	Signature string    `json:"signature"`
	Timestamp time.Time `json:"timestamp"`
}

// Maintainer is a signer eligible to countersign change requests for
// repositories at a given layer.
type Maintainer struct {
	Identity  string `json:"identity"`
	PublicKey string `json:"public_key"`
	Layer     int    `json:"layer"`
	Active    bool   `json:"active"`
}

// clone returns a deep copy so callers mutating the returned ChangeRequest
// cannot corrupt the store's copy.
func (cr ChangeRequest) clone() ChangeRequest {
	out := cr
	out.Signatures = make(map[string]Signature, len(cr.Signatures))
	for k, v := range cr.Signatures {
		out.Signatures[k] = v
	}
	return out
}

// SignerSet returns the distinct signer identities with a recorded signature,
// in no particular order.
func (cr ChangeRequest) SignerSet() []string {
	signers := make([]string, 0, len(cr.Signatures))
	for signer := range cr.Signatures {
		signers = append(signers, signer)
	}
	return signers
}
