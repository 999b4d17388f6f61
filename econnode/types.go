// Package econnode implements the economic node registry (C6): registration,
// qualification verification, weight computation, and re-verification of the
// off-chain economic participants whose signed veto signals the veto engine
// (C7) consumes.
package econnode

import (
	"encoding/json"
	"time"
)

// NodeType enumerates the recognised economic-node categories.
type NodeType string

const (
	NodeTypeMiningPool       NodeType = "MiningPool"
	NodeTypeExchange         NodeType = "Exchange"
	NodeTypeCustodian        NodeType = "Custodian"
	NodeTypePaymentProcessor NodeType = "PaymentProcessor"
	NodeTypeMajorHolder      NodeType = "MajorHolder"
)

// Status is the lifecycle state of an EconomicNode.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusActive      Status = "Active"
	StatusInactive    Status = "Inactive"
	StatusCompromised Status = "Compromised"
)

// HashpowerProof evidences a MiningPool's share of network hashpower.
type HashpowerProof struct {
	Percentage float64 `json:"percentage"`
	Evidence   string  `json:"evidence"`
}

// HoldingsProof evidences BTC holdings for Custodian, MajorHolder, and
// (partially) Exchange qualification.
type HoldingsProof struct {
	TotalBTC float64 `json:"total_btc"`
}

// VolumeProof evidences transaction volume for Exchange and
// PaymentProcessor qualification.
type VolumeProof struct {
	DailyUSD   float64 `json:"daily_usd"`
	MonthlyUSD float64 `json:"monthly_usd"`
}

// QualificationProof is the discriminated sum of evidence a registrant
// submits; which components are mandatory depends on NodeType (see
// verifyQualification).
type QualificationProof struct {
	HashpowerProof *HashpowerProof `json:"hashpower_proof,omitempty"`
	HoldingsProof  *HoldingsProof  `json:"holdings_proof,omitempty"`
	VolumeProof    *VolumeProof    `json:"volume_proof,omitempty"`
}

// EconomicNode is a registered off-chain economic participant. The
// qualification proof is persisted as a JSON column and accessed through
// Proof/SetProof rather than as a nested relational model, since it is a
// discriminated sum read and rewritten as a whole on every re-verification.
type EconomicNode struct {
	ID                    uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	NodeType              NodeType   `json:"node_type" gorm:"size:32;index"`
	EntityName            string     `json:"entity_name" gorm:"size:255"`
	PublicKey             string     `json:"public_key" gorm:"size:80"`
	QualificationProofRaw string     `json:"-" gorm:"column:qualification_proof;type:text"`
	Weight                float64    `json:"weight"`
	Status                Status     `json:"status" gorm:"size:32;index"`
	RegisteredAt          time.Time  `json:"registered_at"`
	LastVerifiedAt        *time.Time `json:"last_verified_at"`
}

// Proof decodes the stored qualification proof.
func (n EconomicNode) Proof() (QualificationProof, error) {
	var proof QualificationProof
	if n.QualificationProofRaw == "" {
		return proof, nil
	}
	if err := json.Unmarshal([]byte(n.QualificationProofRaw), &proof); err != nil {
		return QualificationProof{}, err
	}
	return proof, nil
}

// SetProof encodes and stores proof.
func (n *EconomicNode) SetProof(proof QualificationProof) error {
	raw, err := json.Marshal(proof)
	if err != nil {
		return err
	}
	n.QualificationProofRaw = string(raw)
	return nil
}
