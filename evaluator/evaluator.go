package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgepolicy/gatekeeper/crypto"
	"github.com/forgepolicy/gatekeeper/gaterr"
)

// Evaluator derives the governance status for a change request and audits
// every evaluation, per spec.md §4.8.
type Evaluator struct {
	audit  AuditAppender
	tracer trace.Tracer
}

// New constructs an Evaluator that audits through appender.
func New(appender AuditAppender, tracer trace.Tracer) *Evaluator {
	if tracer == nil {
		tracer = trace.NewNoopTracerProvider().Tracer("evaluator")
	}
	return &Evaluator{audit: appender, tracer: tracer}
}

// Evaluate derives the verdict for in and appends one audit entry recording
// it. Evaluation is idempotent: calling it twice with identical input
// produces the identical Verdict, and each call still appends its own
// audit entry, since each evaluation is itself an auditable event.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (Verdict, error) {
	_, span := e.tracer.Start(ctx, "evaluator.evaluate",
		trace.WithAttributes(
			attribute.String("repository", in.Repository),
			attribute.Int64("number", in.Number),
			attribute.Bool("emergency_mode", in.EmergencyMode),
		))
	defer span.End()

	verdict := derive(in)

	inputsHash, err := hashJSON(in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verdict{}, err
	}
	outputsHash, err := hashJSON(verdict)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verdict{}, err
	}

	jobID := fmt.Sprintf("%s#%d@%s", in.Repository, in.Number, in.Now.UTC().Format(time.RFC3339Nano))
	metadata := map[string]string{
		"repository":        in.Repository,
		"number":            fmt.Sprintf("%d", in.Number),
		"governance_status": string(verdict.Status),
		"emergency_mode":    fmt.Sprintf("%t", in.EmergencyMode),
	}
	if _, err := e.audit.Append(jobID, "evaluation", inputsHash, outputsHash, metadata, in.Now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Verdict{}, gaterr.Wrap(gaterr.KindTransient, "audit evaluation", err)
	}

	span.SetAttributes(attribute.String("governance_status", string(verdict.Status)))
	span.SetStatus(codes.Ok, "evaluated")
	return verdict, nil
}

// ActivateEmergencyMode audits the act of entering emergency mode as its
// own governance event, distinct from any evaluation it subsequently
// influences.
func (e *Evaluator) ActivateEmergencyMode(ctx context.Context, repository string, number int64, activatedBy, rationale string, now time.Time) error {
	_, span := e.tracer.Start(ctx, "evaluator.activate_emergency_mode",
		trace.WithAttributes(
			attribute.String("repository", repository),
			attribute.Int64("number", number),
			attribute.String("activated_by", activatedBy),
		))
	defer span.End()

	metadata := map[string]string{
		"repository":   repository,
		"number":       fmt.Sprintf("%d", number),
		"activated_by": activatedBy,
		"rationale":    rationale,
	}
	inputsHash := crypto.HashString([]byte(fmt.Sprintf("%s|%d|%s|%s", repository, number, activatedBy, rationale)))
	if _, err := e.audit.Append(fmt.Sprintf("%s#%d-emergency@%s", repository, number, now.UTC().Format(time.RFC3339Nano)), "emergency_mode_activated", inputsHash, inputsHash, metadata, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return gaterr.Wrap(gaterr.KindTransient, "audit emergency mode activation", err)
	}
	span.SetStatus(codes.Ok, "activated")
	return nil
}

// ActivateTierOverride audits a manual, authoritative tier override as its
// own governance event (spec.md §4.3: "the override is recorded in the
// audit log with the identity and free-text rationale"), distinct from the
// "evaluation" entry the subsequent re-evaluation produces.
func (e *Evaluator) ActivateTierOverride(ctx context.Context, repository string, number int64, overriddenBy string, tier int, rationale string, now time.Time) error {
	_, span := e.tracer.Start(ctx, "evaluator.activate_tier_override",
		trace.WithAttributes(
			attribute.String("repository", repository),
			attribute.Int64("number", number),
			attribute.String("overridden_by", overriddenBy),
			attribute.Int("tier", tier),
		))
	defer span.End()

	metadata := map[string]string{
		"repository":    repository,
		"number":        fmt.Sprintf("%d", number),
		"tier":          fmt.Sprintf("%d", tier),
		"overridden_by": overriddenBy,
		"rationale":     rationale,
	}
	inputsHash := crypto.HashString([]byte(fmt.Sprintf("%s|%d|%d|%s|%s", repository, number, tier, overriddenBy, rationale)))
	if _, err := e.audit.Append(fmt.Sprintf("%s#%d-tier-override@%s", repository, number, now.UTC().Format(time.RFC3339Nano)), "tier_overridden", inputsHash, inputsHash, metadata, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return gaterr.Wrap(gaterr.KindTransient, "audit tier override", err)
	}
	span.SetStatus(codes.Ok, "overridden")
	return nil
}

// derive computes the verdict for in without any side effects. Per
// spec.md §4.8, a change request is allowed iff:
//
//	(a) the signature threshold is met, always required; and
//	(b) the review period has elapsed, unless emergency mode waives it; and
//	(c) no applicable veto is active, unless emergency mode waives it.
//
// Emergency mode never waives (a): a change request can never merge without
// its required signatures, however urgent.
func derive(in Input) Verdict {
	req := in.Requirements

	sigsOK := in.Signatures.ThresholdMet

	reviewWaived := in.EmergencyMode
	reviewOK := reviewWaived || reviewPeriodMet(in.OpenedAt, in.Now, req.ReviewPeriodDays, in.EmergencyMode)

	vetoWaived := in.EmergencyMode || !req.VetoApplicable
	vetoBlocking := req.VetoApplicable && !in.EmergencyMode && in.Veto.Active

	status := StatusBlock
	if sigsOK && reviewOK && !vetoBlocking {
		status = StatusAllow
	}

	return Verdict{
		Status:              status,
		SignaturesSatisfied: sigsOK,
		ReviewPeriodWaived:  reviewWaived,
		ReviewPeriodMet:     reviewOK,
		VetoWaived:          vetoWaived,
		VetoBlocking:        vetoBlocking,
		RemainingReviewDays: remainingDays(in.OpenedAt, in.Now, req.ReviewPeriodDays, in.EmergencyMode),
		EarliestMergeDate:   earliestMergeDate(in.OpenedAt, req.ReviewPeriodDays, in.EmergencyMode),
		ElapsedReviewDays:   elapsedDays(in.OpenedAt, in.Now),
	}
}

func hashJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", gaterr.Wrap(gaterr.KindInvariant, "encode evaluation record for hashing", err)
	}
	return crypto.HashString(raw), nil
}
