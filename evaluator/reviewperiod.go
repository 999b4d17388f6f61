package evaluator

import "time"

// reviewPeriodMet reports whether the review period has elapsed, treating
// the interval as closed (exactly-equal elapsed time satisfies it).
// Emergency mode waives the review period entirely, per this engine's
// resolution of the waiver ambiguity: emergency waives the review period
// and the veto gate, never the signature threshold.
func reviewPeriodMet(openedAt, now time.Time, requiredDays int, emergencyMode bool) bool {
	if emergencyMode {
		return true
	}
	required := time.Duration(requiredDays) * 24 * time.Hour
	return now.Sub(openedAt) >= required
}

// remainingDays reports the whole days left before the review period is
// met, clamped to zero, or zero unconditionally in emergency mode.
func remainingDays(openedAt, now time.Time, requiredDays int, emergencyMode bool) int {
	if emergencyMode {
		return 0
	}
	required := time.Duration(requiredDays) * 24 * time.Hour
	elapsed := now.Sub(openedAt)
	remaining := required - elapsed
	if remaining <= 0 {
		return 0
	}
	return int(remaining / (24 * time.Hour))
}

// earliestMergeDate is the earliest instant the review period is satisfied.
func earliestMergeDate(openedAt time.Time, requiredDays int, emergencyMode bool) time.Time {
	if emergencyMode {
		return openedAt
	}
	return openedAt.Add(time.Duration(requiredDays) * 24 * time.Hour)
}

// elapsedDays reports the whole days elapsed since openedAt.
func elapsedDays(openedAt, now time.Time) int {
	elapsed := now.Sub(openedAt)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / (24 * time.Hour))
}
