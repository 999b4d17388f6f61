// Package veto implements the economic-weight veto engine (C7): admission
// of signed veto/support/abstain signals from active economic nodes and the
// participation-weighted tally that determines whether a veto is active for
// a change request.
package veto

import "time"

// SignalType is the kind of opinion an economic node expresses.
type SignalType string

const (
	SignalVeto    SignalType = "Veto"
	SignalSupport SignalType = "Support"
	SignalAbstain SignalType = "Abstain"
)

// Signal is one economic node's admitted opinion on a single change request.
type Signal struct {
	ID         string     `json:"id"`
	Repository string     `json:"repository"`
	Number     int64      `json:"number"`
	NodeID     uint64     `json:"node_id"`
	EntityName string     `json:"entity_name"`
	NodeType   string     `json:"node_type"`
	SignalType SignalType `json:"signal_type"`
	Weight     float64    `json:"weight"`
	Signature  string     `json:"signature"`
	Rationale  string     `json:"rationale"`
	Timestamp  time.Time  `json:"timestamp"`
	Verified   bool       `json:"verified"`
}

// Threshold is the outcome of tallying all admitted signals for a change
// request.
type Threshold struct {
	MiningVetoPercent   float64 `json:"mining_veto_percent"`
	EconomicVetoPercent float64 `json:"economic_veto_percent"`
	Active              bool    `json:"veto_active"`
}
