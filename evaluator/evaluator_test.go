package evaluator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgepolicy/gatekeeper/evaluator"
)

type fakeAppender struct {
	entries []appended
}

type appended struct {
	jobID, jobType, inputsHash, outputsHash string
	metadata                                map[string]string
}

func (f *fakeAppender) Append(jobID, jobType, inputsHash, outputsHash string, metadata map[string]string, now time.Time) (string, error) {
	f.entries = append(f.entries, appended{jobID, jobType, inputsHash, outputsHash, metadata})
	return "sha256:deadbeef", nil
}

func baseInput() evaluator.Input {
	opened := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return evaluator.Input{
		Repository: "org/repo",
		Number:     42,
		OpenedAt:   opened,
		Now:        opened.Add(100 * 24 * time.Hour),
		Requirements: evaluator.Requirements{
			SignaturesRequired: 5,
			SignaturesTotal:    5,
			ReviewPeriodDays:   90,
			VetoApplicable:     true,
		},
		Signatures: evaluator.SignatureTally{ThresholdMet: true},
		Veto:       evaluator.VetoTally{Active: false},
	}
}

func TestEvaluateAllowsWhenAllRequirementsMet(t *testing.T) {
	appender := &fakeAppender{}
	e := evaluator.New(appender, nil)

	verdict, err := e.Evaluate(context.Background(), baseInput())
	require.NoError(t, err)
	require.Equal(t, evaluator.StatusAllow, verdict.Status)
	require.True(t, verdict.SignaturesSatisfied)
	require.True(t, verdict.ReviewPeriodMet)
	require.False(t, verdict.VetoBlocking)
	require.Len(t, appender.entries, 1)
	require.Equal(t, "evaluation", appender.entries[0].jobType)
}

func TestEvaluateBlocksWhenReviewPeriodNotElapsed(t *testing.T) {
	appender := &fakeAppender{}
	e := evaluator.New(appender, nil)

	in := baseInput()
	in.Now = in.OpenedAt.Add(10 * 24 * time.Hour)

	verdict, err := e.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, evaluator.StatusBlock, verdict.Status)
	require.False(t, verdict.ReviewPeriodMet)
	require.Greater(t, verdict.RemainingReviewDays, 0)
}

func TestEvaluateBlocksWhenSignaturesNotMet(t *testing.T) {
	appender := &fakeAppender{}
	e := evaluator.New(appender, nil)

	in := baseInput()
	in.Signatures.ThresholdMet = false

	verdict, err := e.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, evaluator.StatusBlock, verdict.Status)
}

func TestEvaluateBlocksOnActiveVeto(t *testing.T) {
	appender := &fakeAppender{}
	e := evaluator.New(appender, nil)

	in := baseInput()
	in.Veto.Active = true

	verdict, err := e.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, evaluator.StatusBlock, verdict.Status)
	require.True(t, verdict.VetoBlocking)
}

func TestEmergencyModeWaivesReviewPeriodAndVetoButNotSignatures(t *testing.T) {
	appender := &fakeAppender{}
	e := evaluator.New(appender, nil)

	in := baseInput()
	in.EmergencyMode = true
	in.Now = in.OpenedAt.Add(time.Hour)
	in.Veto.Active = true
	in.Signatures.ThresholdMet = false

	verdict, err := e.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, evaluator.StatusBlock, verdict.Status, "signatures are never waived by emergency mode")
	require.True(t, verdict.ReviewPeriodWaived)
	require.True(t, verdict.VetoWaived)
	require.False(t, verdict.VetoBlocking)

	in.Signatures.ThresholdMet = true
	verdict, err = e.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, evaluator.StatusAllow, verdict.Status)
}

func TestVetoNotApplicableBelowTierThreeNeverBlocks(t *testing.T) {
	appender := &fakeAppender{}
	e := evaluator.New(appender, nil)

	in := baseInput()
	in.Requirements.VetoApplicable = false
	in.Veto.Active = true

	verdict, err := e.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, evaluator.StatusAllow, verdict.Status)
	require.False(t, verdict.VetoBlocking)
}

func TestActivateEmergencyModeAppendsAuditEvent(t *testing.T) {
	appender := &fakeAppender{}
	e := evaluator.New(appender, nil)

	err := e.ActivateEmergencyMode(context.Background(), "org/repo", 42, "security-team", "critical vulnerability", time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, appender.entries, 1)
	require.Equal(t, "emergency_mode_activated", appender.entries[0].jobType)
	require.Equal(t, "security-team", appender.entries[0].metadata["activated_by"])
}

func TestEarliestMergeDateAndRemainingDaysReflectNominalPeriod(t *testing.T) {
	appender := &fakeAppender{}
	e := evaluator.New(appender, nil)

	in := baseInput()
	in.Now = in.OpenedAt.Add(30 * 24 * time.Hour)

	verdict, err := e.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, in.OpenedAt.Add(90*24*time.Hour), verdict.EarliestMergeDate)
	require.Equal(t, 60, verdict.RemainingReviewDays)
	require.Equal(t, 30, verdict.ElapsedReviewDays)
}
