// Package classifier maps a change request's changed files, title, and body
// to a governance tier with a confidence score, per a configurable,
// enumerated rule set (no reflection or dynamically compiled matchers: every
// valid rule shape is known in advance).
package classifier

// Rule describes one candidate tier classification.
type Rule struct {
	// Name identifies the rule for logging and audit rationale.
	Name string
	// Tier is the tier this rule assigns when it wins.
	Tier int
	// FilePatterns are glob patterns (see Glob semantics in match.go) matched
	// against every changed file path. Each match contributes FileWeight,
	// capped at FileMatchCap contributions.
	FilePatterns []string
	FileWeight   float64
	FileMatchCap int

	// TitleKeywords and BodyKeywords are case-insensitive substrings; each
	// hit contributes the corresponding weight.
	TitleKeywords []string
	TitleWeight   float64
	BodyKeywords  []string
	BodyWeight    float64

	// StrongKeywords, when any hit in title or body, add StrongBoost once.
	StrongKeywords []string
	StrongBoost    float64

	// MultiFileBoost is added once when more than one distinct file matches
	// FilePatterns.
	MultiFileBoost float64

	// ExclusionPatterns are glob patterns over changed files; each match
	// subtracts ExclusionPenalty.
	ExclusionPatterns []string
	ExclusionPenalty  float64

	// ConflictKeywords flag indicators that contradict this rule's intent
	// (e.g. a "docs" rule penalized by a hit on "consensus"); each hit
	// subtracts ConflictPenalty.
	ConflictKeywords []string
	ConflictPenalty  float64

	// ConfidenceFloor is the minimum score this rule must reach to be
	// eligible for selection.
	ConfidenceFloor float64
	// Priority breaks ties among rules meeting their confidence floor with
	// equal score; higher wins.
	Priority int
}

// RuleSet is the ordered, configured collection of classification rules plus
// the fallback behaviour when none qualifies.
type RuleSet struct {
	Rules       []Rule
	DefaultTier int
}
