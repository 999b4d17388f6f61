// Package enforcement implements the enforcement-decision log: a
// human-debuggable, rotating record of every merge-allow/block decision, kept
// separate from the hash-chained audit log. Unlike the audit log, entries
// here are not chained and are not meant to be tamper-evident; they exist so
// an operator can see, in one place, exactly what the gatekeeper would have
// done and why (SUPPLEMENTED FEATURES).
package enforcement

import (
	"encoding/json"
	"log/slog"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/forgepolicy/gatekeeper/gaterr"
)

// Requirements is the resolved requirement set a decision was evaluated
// against.
type Requirements struct {
	SignaturesRequired   int    `json:"signatures_required"`
	SignaturesTotal      int    `json:"signatures_total"`
	ReviewPeriodDays     int    `json:"review_period_days"`
	EconomicVetoRequired bool   `json:"economic_veto_required"`
	Source               string `json:"source"`
}

// CurrentState is the observed state a decision was made against.
type CurrentState struct {
	SignaturesCurrent         int      `json:"signatures_current"`
	SignaturesSigners         []string `json:"signatures_signers"`
	SignaturesPending         []string `json:"signatures_pending"`
	ReviewPeriodMet           bool     `json:"review_period_met"`
	ReviewPeriodRemainingDays int      `json:"review_period_remaining_days"`
	EconomicVetoActive        bool     `json:"economic_veto_active"`
	EconomicVetoPercent       float64  `json:"economic_veto_percent"`
	EmergencyMode             bool     `json:"emergency_mode"`
}

// Action is one concrete effect the gatekeeper took, or would have taken
// under dry-run, while enforcing a decision (e.g. publishing a status check).
type Action struct {
	ActionType string    `json:"action_type"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	DryRun     bool      `json:"dry_run"`
	Timestamp  time.Time `json:"timestamp"`
}

// Decision is one complete enforcement-log entry.
type Decision struct {
	Repository           string       `json:"repository"`
	Number               int64        `json:"number"`
	Layer                int          `json:"layer"`
	Tier                 int          `json:"tier"`
	CombinedRequirements Requirements `json:"combined_requirements"`
	CurrentState         CurrentState `json:"current_state"`
	WouldAllowMerge      bool         `json:"would_allow_merge"`
	DryRun               bool         `json:"dry_run"`
	Timestamp            time.Time    `json:"timestamp"`
	Rationale            string       `json:"rationale"`
	Actions              []Action     `json:"enforcement_actions"`
}

// Logger writes Decisions to slog (for operator consoles) and, if enabled,
// to a rotating file for an on-disk trail.
type Logger struct {
	dryRun  bool
	enabled bool
	logger  *slog.Logger
	file    *lumberjack.Logger
}

// New constructs a Logger. When enabled is false, LogDecision is a no-op,
// matching the original decision logger's "logging disabled" short-circuit.
// path may be empty only when enabled is false; config.Load enforces this at
// configuration time.
func New(dryRun, enabled bool, path string, maxSizeMB, maxBackups, maxAgeDays int, logger *slog.Logger) *Logger {
	l := &Logger{dryRun: dryRun, enabled: enabled, logger: logger}
	if enabled && path != "" {
		l.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
	}
	return l
}

// Close flushes and closes the underlying rotating file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// LogDecision records decision to the console logger and, if configured, to
// the rotating file. A failure to write the file is reported but never
// blocks or reverses the governance decision itself: the enforcement log is
// observability, not an input to the evaluator.
func (l *Logger) LogDecision(decision Decision) error {
	if !l.enabled {
		return nil
	}

	action := "BLOCK"
	if decision.WouldAllowMerge {
		action = "ALLOW"
	}
	prefix := "[ENFORCEMENT]"
	if decision.DryRun {
		prefix = "[DRY-RUN]"
	}
	l.logger.Info(prefix+" enforcement decision",
		"repository", decision.Repository,
		"number", decision.Number,
		"layer", decision.Layer,
		"tier", decision.Tier,
		"action", action,
		"rationale", decision.Rationale,
	)
	for _, a := range decision.Actions {
		actionPrefix := "[ACTION]"
		if a.DryRun {
			actionPrefix = "[DRY-RUN]"
		}
		l.logger.Debug(actionPrefix+" enforcement action",
			"action_type", a.ActionType,
			"status", a.Status,
			"message", a.Message,
		)
	}

	if l.file == nil {
		return nil
	}
	raw, err := json.Marshal(decision)
	if err != nil {
		return gaterr.Wrap(gaterr.KindInvariant, "encode enforcement decision", err)
	}
	raw = append(raw, '\n')
	if _, err := l.file.Write(raw); err != nil {
		return gaterr.Wrap(gaterr.KindTransient, "write enforcement decision log", err)
	}
	return nil
}
