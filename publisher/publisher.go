// Package publisher implements the status publisher (C9): it renders an
// evaluator Verdict into the four stable status contexts spec.md §4.9
// names, each carrying a short, inspectable description of the resolved
// numbers behind it.
package publisher

import (
	"fmt"

	"github.com/forgepolicy/gatekeeper/evaluator"
)

// Context names are stable identifiers the forge keys status checks by
// (spec.md §4.9); protected branches require all four as merge-blocking.
const (
	ContextReviewPeriod = "governance/review-period"
	ContextSignatures   = "governance/signatures"
	ContextEconomicVeto = "governance/economic-veto"
	ContextCombined     = "governance/combined"
)

// State mirrors the forge's status-check state enumeration (spec.md §6).
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
	StateError   State = "error"
)

// Check is one published status-check update.
type Check struct {
	Context     string
	State       State
	Description string
}

// Outcome bundles every context published for one evaluation.
type Outcome struct {
	Repository string
	Number     int64
	HeadCommit string
	DryRun     bool
	Checks     []Check
	// Message is the human-readable combined message spec.md §4.9 implies
	// alongside the machine-readable checks.
	Message string
}

// Render derives the Outcome for one evaluation. dryRun, per spec.md §6,
// prefixes every description with "[DRY-RUN]" and signals that no forge
// state should actually change, without altering which states are computed.
func Render(repository string, number int64, headCommit string, req evaluator.Requirements, verdict evaluator.Verdict, signaturesValid int, veto evaluator.VetoTally, dryRun bool) Outcome {
	checks := make([]Check, 0, 4)

	reviewState := StatePending
	if verdict.ReviewPeriodMet {
		reviewState = StateSuccess
	}
	reviewDesc := reviewDescription(verdict, req)
	checks = append(checks, Check{Context: ContextReviewPeriod, State: reviewState, Description: decorate(reviewDesc, dryRun)})

	sigState := StatePending
	if verdict.SignaturesSatisfied {
		sigState = StateSuccess
	}
	sigDesc := fmt.Sprintf("%d/%d signatures", signaturesValid, req.SignaturesRequired)
	checks = append(checks, Check{Context: ContextSignatures, State: sigState, Description: decorate(sigDesc, dryRun)})

	allGreen := reviewState == StateSuccess && sigState == StateSuccess

	if req.VetoApplicable {
		vetoState := StateSuccess
		if verdict.VetoBlocking {
			vetoState = StateFailure
		}
		vetoDesc := fmt.Sprintf("mining %.1f%%, economic %.1f%%", veto.MiningVetoPercent, veto.EconomicVetoPercent)
		checks = append(checks, Check{Context: ContextEconomicVeto, State: vetoState, Description: decorate(vetoDesc, dryRun)})
		allGreen = allGreen && vetoState == StateSuccess
	}

	combinedState := StateFailure
	if allGreen {
		combinedState = StateSuccess
	}
	combinedDesc := fmt.Sprintf("%s (%d/%d sigs, %dd review)", verdict.Status, signaturesValid, req.SignaturesRequired, verdict.ElapsedReviewDays)
	checks = append(checks, Check{Context: ContextCombined, State: combinedState, Description: decorate(combinedDesc, dryRun)})

	return Outcome{
		Repository: repository,
		Number:     number,
		HeadCommit: headCommit,
		DryRun:     dryRun,
		Checks:     checks,
		Message:    combinedMessage(verdict, req, signaturesValid, veto),
	}
}

func reviewDescription(v evaluator.Verdict, req evaluator.Requirements) string {
	if v.ReviewPeriodWaived {
		return "review period waived (emergency mode)"
	}
	return fmt.Sprintf("%dd of %dd", v.ElapsedReviewDays, req.ReviewPeriodDays)
}

func decorate(description string, dryRun bool) string {
	if dryRun {
		return "[DRY-RUN] " + description
	}
	return description
}

func combinedMessage(v evaluator.Verdict, req evaluator.Requirements, signaturesValid int, veto evaluator.VetoTally) string {
	verb := "blocked"
	if v.Status == evaluator.StatusAllow {
		verb = "allowed"
	}
	msg := fmt.Sprintf("%s: %d/%d signatures, %s", verb, signaturesValid, req.SignaturesRequired, reviewDescription(v, req))
	if req.VetoApplicable {
		msg += fmt.Sprintf(", veto mining %.1f%%/economic %.1f%%", veto.MiningVetoPercent, veto.EconomicVetoPercent)
	}
	return msg
}
