// Package evaluator implements the governance status state machine (C8):
// given a change request's resolved requirements, its current signature
// tally, its economic veto tally, and its review-period clock, it derives
// the allow/block verdict and audits the evaluation and any emergency-mode
// activation.
//
// The evaluator depends only on narrow capability interfaces for the
// components it audits through (AuditAppender) and tallies against
// (SignatureTally, VetoTally), never on their concrete types, so this
// package never imports audit, aggregator, or veto directly.
package evaluator

import "time"

// AuditAppender is the capability the evaluator needs from the audit log:
// append one entry, chained to the current head. It matches audit.Log's
// own Append signature exactly, so an *audit.Log satisfies it without
// adaptation.
type AuditAppender interface {
	Append(jobID, jobType, inputsHash, outputsHash string, metadata map[string]string, now time.Time) (string, error)
}

// SignatureTally is the outcome of the signature threshold check (C5) for
// one change request.
type SignatureTally struct {
	ValidSigners []string
	ThresholdMet bool
}

// VetoTally is the outcome of the economic veto tally (C7) for one change
// request.
type VetoTally struct {
	MiningVetoPercent   float64
	EconomicVetoPercent float64
	Active              bool
}

// Requirements is the resolved requirement set (C4) the evaluator checks
// the tallies and clock against.
type Requirements struct {
	SignaturesRequired int
	SignaturesTotal    int
	ReviewPeriodDays   int
	VetoApplicable     bool
	Source             string
}

// Input bundles everything one evaluation needs.
type Input struct {
	Repository string
	Number     int64
	OpenedAt   time.Time
	Now        time.Time

	EmergencyMode bool

	Requirements Requirements
	Signatures   SignatureTally
	Veto         VetoTally
}

// Verdict is the derived governance status plus the per-dimension detail a
// status publisher renders into human-readable descriptions.
type Verdict struct {
	Status GovernanceStatus

	SignaturesSatisfied bool
	ReviewPeriodWaived  bool
	ReviewPeriodMet     bool
	VetoWaived          bool
	VetoBlocking        bool

	RemainingReviewDays int
	EarliestMergeDate   time.Time
	ElapsedReviewDays   int
}

// GovernanceStatus mirrors changerequest.GovernanceStatus without importing
// it, keeping the evaluator's dependency surface to capability interfaces.
type GovernanceStatus string

const (
	StatusPending GovernanceStatus = "pending"
	StatusAllow   GovernanceStatus = "allow"
	StatusBlock   GovernanceStatus = "block"
)
