package gatekeeper

import "github.com/forgepolicy/gatekeeper/core/events"

// EvaluationCompleted is emitted after every evaluation that completes
// without error, whether its verdict allows or blocks the merge, so downstream subscribers (an indexer, a chat notifier) can react to the
// governance pipeline described in spec.md §2 without polling the publisher.
type EvaluationCompleted struct {
	Repository       string
	Number           int64
	GovernanceStatus string
}

func (EvaluationCompleted) EventType() string { return "gatekeeper.evaluation_completed" }

// EmergencyModeActivated is emitted when an admin activates emergency mode
// for a change request.
type EmergencyModeActivated struct {
	Repository  string
	Number      int64
	ActivatedBy string
	Rationale   string
}

func (EmergencyModeActivated) EventType() string { return "gatekeeper.emergency_mode_activated" }

// TierOverridden is emitted when an admin manually overrides a change
// request's classified tier.
type TierOverridden struct {
	Repository   string
	Number       int64
	Tier         int
	OverriddenBy string
	Rationale    string
}

func (TierOverridden) EventType() string { return "gatekeeper.tier_overridden" }

var _ events.Event = EvaluationCompleted{}
var _ events.Event = EmergencyModeActivated{}
var _ events.Event = TierOverridden{}
