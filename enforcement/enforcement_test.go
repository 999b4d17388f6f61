package enforcement_test

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgepolicy/gatekeeper/enforcement"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func sampleDecision(allow bool) enforcement.Decision {
	return enforcement.Decision{
		Repository: "acme/widgets",
		Number:     7,
		Layer:      2,
		Tier:       3,
		CombinedRequirements: enforcement.Requirements{
			SignaturesRequired:   3,
			SignaturesTotal:      5,
			ReviewPeriodDays:     14,
			EconomicVetoRequired: true,
			Source:               "Combined Layer 2 + Tier 3",
		},
		CurrentState: enforcement.CurrentState{
			SignaturesCurrent: 3,
			ReviewPeriodMet:   true,
		},
		WouldAllowMerge: allow,
		Timestamp:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Rationale:       "all requirements satisfied",
	}
}

func TestLogDecisionDisabledIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enforcement.log")
	logger := enforcement.New(false, false, path, 1, 1, 1, discardLogger())
	require.NoError(t, logger.LogDecision(sampleDecision(true)))

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestLogDecisionWritesJSONLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enforcement.log")
	logger := enforcement.New(false, true, path, 1, 1, 1, discardLogger())
	require.NoError(t, logger.LogDecision(sampleDecision(true)))
	require.NoError(t, logger.LogDecision(sampleDecision(false)))
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var first enforcement.Decision
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.True(t, first.WouldAllowMerge)
	require.Equal(t, "acme/widgets", first.Repository)

	var second enforcement.Decision
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.False(t, second.WouldAllowMerge)
}
