// Package gatekeeper is the composition root: it wires the change-request
// store (C2), tier classifier (C3), requirement resolver (C4), signature
// aggregator (C5), economic node registry (C6), veto engine (C7), evaluator
// (C8), status publisher (C9), and audit log (C10, through the evaluator)
// into the control flow spec.md §2 describes: a forge event updates the
// change request, gets classified and resolved, its signatures and veto
// signals are tallied, the evaluator derives a verdict, and the publisher
// and enforcement log record it. The Merkle anchorer (C11) is not part of
// this package; cmd/gatekeeperd runs it alongside the Service.
package gatekeeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgepolicy/gatekeeper/aggregator"
	"github.com/forgepolicy/gatekeeper/authz"
	"github.com/forgepolicy/gatekeeper/changerequest"
	"github.com/forgepolicy/gatekeeper/classifier"
	"github.com/forgepolicy/gatekeeper/core/events"
	"github.com/forgepolicy/gatekeeper/econnode"
	"github.com/forgepolicy/gatekeeper/enforcement"
	"github.com/forgepolicy/gatekeeper/evaluator"
	"github.com/forgepolicy/gatekeeper/observability/logging"
	"github.com/forgepolicy/gatekeeper/publisher"
	"github.com/forgepolicy/gatekeeper/resolver"
	"github.com/forgepolicy/gatekeeper/veto"
)

// Config captures every dependency the service wires together. Unlike
// config.Config (the YAML-loaded settings), this Config holds already
// constructed components, mirroring the otc-gateway server's Config/Server
// split.
type Config struct {
	ChangeRequests *changerequest.Store
	Rules          classifier.RuleSet
	Aggregator     *aggregator.Aggregator
	EconNodes      *econnode.Registry
	Veto           *veto.Engine
	Evaluator      *evaluator.Evaluator
	Publisher      *publisher.MemStore
	Metrics        *publisher.Metrics
	Enforcement    *enforcement.Logger
	Emitter        events.Emitter
	Logger         *slog.Logger
	DryRun         bool
}

// Service is the gatekeeper's public entry surface. Every method here is
// safe for concurrent invocation across distinct (repository, number) change
// requests; the change-request store's per-key locking (spec.md §5) is the
// only synchronization the service itself relies on.
type Service struct {
	changeRequests *changerequest.Store
	rules          classifier.RuleSet
	aggregator     *aggregator.Aggregator
	econNodes      *econnode.Registry
	veto           *veto.Engine
	evaluator      *evaluator.Evaluator
	publisher      *publisher.MemStore
	metrics        *publisher.Metrics
	enforcement    *enforcement.Logger
	emitter        events.Emitter
	logger         *slog.Logger
	dryRun         bool
}

// New constructs a Service from cfg, defaulting Emitter to a NoopEmitter and
// Logger to slog.Default() when unset.
func New(cfg Config) *Service {
	if cfg.Emitter == nil {
		cfg.Emitter = events.NoopEmitter{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		changeRequests: cfg.ChangeRequests,
		rules:          cfg.Rules,
		aggregator:     cfg.Aggregator,
		econNodes:      cfg.EconNodes,
		veto:           cfg.Veto,
		evaluator:      cfg.Evaluator,
		publisher:      cfg.Publisher,
		metrics:        cfg.Metrics,
		enforcement:    cfg.Enforcement,
		emitter:        cfg.Emitter,
		logger:         cfg.Logger,
		dryRun:         cfg.DryRun,
	}
}

// HandlePushEvent ingests a forge push/synchronize event: it upserts the
// change request's head commit and layer, classifies the change (unless a
// manual tier override already took precedence), and re-evaluates.
func (s *Service) HandlePushEvent(ctx context.Context, repository string, number int64, headCommit string, layer int, changedFiles []string, title, body string, openedAt, now time.Time) (evaluator.Verdict, publisher.Outcome, error) {
	cr, err := s.changeRequests.Upsert(repository, number, headCommit, layer, openedAt)
	if err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}

	result := classifier.Classify(s.rules, classifier.Input{ChangedFiles: changedFiles, Title: title, Body: body})
	cr, err = s.changeRequests.SetClassifiedTier(repository, number, result.Tier, result.LowConfidence)
	if err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}

	return s.evaluate(ctx, cr, now)
}

// SubmitSignature records a maintainer's signature and re-evaluates.
func (s *Service) SubmitSignature(ctx context.Context, repository string, number int64, signer, signatureHex string, now time.Time) (evaluator.Verdict, publisher.Outcome, error) {
	cr, err := s.changeRequests.RecordSignature(repository, number, signer, signatureHex, now)
	if err != nil {
		s.logger.Debug("signature rejected", "repository", repository, "number", number, "signer", signer, logging.MaskField("signature", signatureHex), "error", err)
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}
	s.logger.Debug("signature recorded", "repository", repository, "number", number, "signer", signer, logging.MaskField("signature", signatureHex))
	return s.evaluate(ctx, cr, now)
}

// SubmitVetoSignal admits an economic node's veto/support/abstain signal and
// re-evaluates.
func (s *Service) SubmitVetoSignal(ctx context.Context, repository string, number int64, nodeID uint64, signalType veto.SignalType, signatureHex, rationale string, now time.Time) (evaluator.Verdict, publisher.Outcome, error) {
	if _, err := s.veto.Admit(repository, number, nodeID, signalType, signatureHex, rationale, now); err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}
	cr, err := s.changeRequests.Load(repository, number)
	if err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}
	return s.evaluate(ctx, cr, now)
}

// ActivateEmergencyMode flips emergency mode for a change request. The
// caller must carry authz.ScopeEmergencyMode; an unauthorized or improperly
// scoped principal causes no state mutation at all.
func (s *Service) ActivateEmergencyMode(ctx context.Context, principal authz.Principal, repository string, number int64, rationale string, now time.Time) (evaluator.Verdict, publisher.Outcome, error) {
	if !principal.HasScope(authz.ScopeEmergencyMode) {
		return evaluator.Verdict{}, publisher.Outcome{}, authz.ErrInsufficientScope
	}

	cr, err := s.changeRequests.SetEmergencyMode(repository, number, true)
	if err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}
	if err := s.evaluator.ActivateEmergencyMode(ctx, repository, number, principal.Subject, rationale, now); err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}
	s.emitter.Emit(EmergencyModeActivated{Repository: repository, Number: number, ActivatedBy: principal.Subject, Rationale: rationale})

	return s.evaluate(ctx, cr, now)
}

// OverrideTier applies a manual, authoritative tier override. The caller
// must carry authz.ScopeOverrideTier. Per spec.md §4.3, the override is
// recorded in the audit log with the activating identity and rationale
// before the subsequent re-evaluation's own audit entry is appended.
func (s *Service) OverrideTier(ctx context.Context, principal authz.Principal, repository string, number int64, tier int, rationale string, now time.Time) (evaluator.Verdict, publisher.Outcome, error) {
	if !principal.HasScope(authz.ScopeOverrideTier) {
		return evaluator.Verdict{}, publisher.Outcome{}, authz.ErrInsufficientScope
	}

	cr, err := s.changeRequests.SetTier(repository, number, tier)
	if err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}
	if err := s.evaluator.ActivateTierOverride(ctx, repository, number, principal.Subject, tier, rationale, now); err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}
	s.emitter.Emit(TierOverridden{Repository: repository, Number: number, Tier: tier, OverriddenBy: principal.Subject, Rationale: rationale})

	return s.evaluate(ctx, cr, now)
}

// Outcome returns the most recently published outcome for a change request,
// for status-inspection callers that don't need a full re-evaluation.
func (s *Service) Outcome(repository string, number int64) (publisher.Outcome, bool) {
	return s.publisher.Outcome(repository, number)
}

// evaluate resolves requirements, tallies signatures and veto signals,
// derives the verdict, persists it, publishes the outcome, records an
// enforcement-log entry, and emits a domain event. It is the single path
// every public entry point funnels through, so every mutation is followed
// by a fresh, consistent re-evaluation.
func (s *Service) evaluate(ctx context.Context, cr changerequest.ChangeRequest, now time.Time) (evaluator.Verdict, publisher.Outcome, error) {
	resolved := resolver.Resolve(cr.Layer, cr.Tier)
	req := evaluator.Requirements{
		SignaturesRequired: resolved.SignaturesRequired,
		SignaturesTotal:    resolved.SignaturesTotal,
		ReviewPeriodDays:   resolved.ReviewPeriodDays,
		VetoApplicable:     resolved.VetoApplicable,
		Source:             resolved.Source,
	}

	sigResult := s.aggregator.Tally(cr, req.SignaturesRequired)

	vetoTally, err := s.veto.Tally(cr.Repository, cr.Number)
	if err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}
	evalVeto := evaluator.VetoTally{
		MiningVetoPercent:   vetoTally.MiningVetoPercent,
		EconomicVetoPercent: vetoTally.EconomicVetoPercent,
		Active:              vetoTally.Active,
	}

	in := evaluator.Input{
		Repository:    cr.Repository,
		Number:        cr.Number,
		OpenedAt:      cr.OpenedAt,
		Now:           now,
		EmergencyMode: cr.EmergencyMode,
		Requirements:  req,
		Signatures:    evaluator.SignatureTally{ValidSigners: sigResult.ValidSigners, ThresholdMet: sigResult.ThresholdMet},
		Veto:          evalVeto,
	}

	verdict, err := s.evaluator.Evaluate(ctx, in)
	if err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}

	if _, err := s.changeRequests.SetGovernanceStatus(cr.Repository, cr.Number, changerequest.GovernanceStatus(verdict.Status)); err != nil {
		return evaluator.Verdict{}, publisher.Outcome{}, err
	}

	outcome := publisher.Render(cr.Repository, cr.Number, cr.HeadCommit, req, verdict, len(sigResult.ValidSigners), evalVeto, s.dryRun)
	s.publisher.Record(outcome)
	s.metrics.RecordDecision(cr.Repository, string(verdict.Status))

	if s.enforcement != nil {
		decision := enforcement.Decision{
			Repository: cr.Repository,
			Number:     cr.Number,
			Layer:      cr.Layer,
			Tier:       cr.Tier,
			CombinedRequirements: enforcement.Requirements{
				SignaturesRequired:   req.SignaturesRequired,
				SignaturesTotal:      req.SignaturesTotal,
				ReviewPeriodDays:     req.ReviewPeriodDays,
				EconomicVetoRequired: req.VetoApplicable,
				Source:               req.Source,
			},
			CurrentState: enforcement.CurrentState{
				SignaturesCurrent:         len(sigResult.ValidSigners),
				SignaturesSigners:         sigResult.ValidSigners,
				ReviewPeriodMet:           verdict.ReviewPeriodMet,
				ReviewPeriodRemainingDays: verdict.RemainingReviewDays,
				EconomicVetoActive:        vetoTally.Active,
				EconomicVetoPercent:       vetoTally.EconomicVetoPercent,
				EmergencyMode:             cr.EmergencyMode,
			},
			WouldAllowMerge: verdict.Status == evaluator.StatusAllow,
			DryRun:          s.dryRun,
			Timestamp:       now,
			Rationale:       fmt.Sprintf("status=%s source=%s", verdict.Status, req.Source),
		}
		if err := s.enforcement.LogDecision(decision); err != nil {
			s.logger.Warn("write enforcement decision log", "error", err, "repository", cr.Repository, "number", cr.Number)
		}
	}

	s.emitter.Emit(EvaluationCompleted{Repository: cr.Repository, Number: cr.Number, GovernanceStatus: string(verdict.Status)})

	return verdict, outcome, nil
}
