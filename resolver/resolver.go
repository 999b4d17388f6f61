// Package resolver combines a repository's layer requirements with a change
// request's classified tier under a most-restrictive-wins rule to produce
// the concrete governance requirements the evaluator checks against.
package resolver

import "fmt"

// Requirements is the resolved set of governance requirements for one
// change request.
type Requirements struct {
	SignaturesRequired int
	SignaturesTotal    int
	ReviewPeriodDays   int
	VetoApplicable     bool
	// Source is a human-readable explanation of which input (layer or tier)
	// dominated each dimension.
	Source string
}

type layerRow struct {
	sigsRequired     int
	sigsTotal        int
	reviewPeriodDays int
}

// layerTable holds the per-layer baseline requirements (spec.md §4.4).
// Layers 1 and 2 share a row.
var layerTable = map[int]layerRow{
	1: {6, 7, 180},
	2: {6, 7, 180},
	3: {4, 5, 90},
	4: {3, 5, 60},
	5: {2, 3, 14},
}

type tierRow struct {
	sigsRequired     int
	sigsTotal        int
	reviewPeriodDays int
	vetoApplicable   bool
}

// tierTable holds the per-tier requirements (spec.md §4.4).
var tierTable = map[int]tierRow{
	1: {3, 5, 7, false},
	2: {4, 5, 30, false},
	3: {5, 5, 90, true},
	4: {4, 5, 0, false},
	5: {5, 5, 180, false},
}

// Resolve combines layer and tier requirements under most-restrictive-wins:
// each dimension takes the max of the layer's and the tier's value.
// veto_applicable is taken from the tier's row (only tier 3 is
// veto-applicable), independent of layer.
func Resolve(layer, tier int) Requirements {
	l, lok := layerTable[layer]
	t, tok := tierTable[tier]
	if !lok {
		l = layerTable[5]
	}
	if !tok {
		t = tierTable[1]
	}

	sigsRequired, sigsReqSrc := maxWithSource(l.sigsRequired, t.sigsRequired)
	sigsTotal, sigsTotalSrc := maxWithSource(l.sigsTotal, t.sigsTotal)
	reviewPeriod, reviewSrc := maxWithSource(l.reviewPeriodDays, t.reviewPeriodDays)
	vetoApplicable := t.vetoApplicable

	source := fmt.Sprintf(
		"signatures_required:%s signatures_total:%s review_period:%s veto:tier(%d)",
		sigsReqSrc, sigsTotalSrc, reviewSrc, tier,
	)

	return Requirements{
		SignaturesRequired: sigsRequired,
		SignaturesTotal:    sigsTotal,
		ReviewPeriodDays:   reviewPeriod,
		VetoApplicable:     vetoApplicable,
		Source:             source,
	}
}

func maxWithSource(layerValue, tierValue int) (int, string) {
	if layerValue >= tierValue {
		return layerValue, "layer"
	}
	return tierValue, "tier"
}
