package classifier

// DefaultRuleSet is the baseline tier classification configuration,
// covering the indicative cases spec.md §8's scenarios exercise: routine
// documentation changes, consensus-affecting code, and governance-affecting
// changes to the gatekeeper's own policy tables. Deployments are expected to
// tune this against their own repository layout.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		DefaultTier: 3,
		Rules: []Rule{
			{
				Name:              "documentation",
				Tier:              1,
				FilePatterns:      []string{"**/*.md", "docs/**"},
				FileWeight:        1.0,
				FileMatchCap:      5,
				TitleKeywords:     []string{"docs", "typo", "readme"},
				TitleWeight:       0.5,
				ExclusionPatterns: []string{"**/*.go", "**/*.rs"},
				ExclusionPenalty:  2.0,
				ConfidenceFloor:   1.0,
				Priority:          10,
			},
			{
				Name:            "tests-and-tooling",
				Tier:            2,
				FilePatterns:    []string{"**/*_test.go", ".github/workflows/**"},
				FileWeight:      1.0,
				FileMatchCap:    5,
				TitleKeywords:   []string{"ci", "test", "lint"},
				TitleWeight:     0.5,
				ConfidenceFloor: 1.0,
				Priority:        20,
			},
			{
				Name:             "consensus",
				Tier:             3,
				FilePatterns:     []string{"consensus/**", "core/consensus/**"},
				FileWeight:       2.0,
				FileMatchCap:     6,
				MultiFileBoost:   1.0,
				StrongKeywords:   []string{"consensus", "fork", "validator"},
				StrongBoost:      2.0,
				ConflictKeywords: []string{"docs only"},
				ConflictPenalty:  3.0,
				ConfidenceFloor:  2.0,
				Priority:         30,
			},
			{
				Name:            "emergency-hotfix",
				Tier:            4,
				TitleKeywords:   []string{"hotfix", "emergency", "critical"},
				TitleWeight:     2.0,
				BodyKeywords:    []string{"incident", "outage"},
				BodyWeight:      1.5,
				ConfidenceFloor: 2.0,
				Priority:        40,
			},
			{
				Name:            "governance",
				Tier:            5,
				FilePatterns:    []string{"resolver/**", "classifier/**", "veto/**", "config/**"},
				FileWeight:      2.0,
				FileMatchCap:    6,
				MultiFileBoost:  1.0,
				StrongKeywords:  []string{"governance", "policy", "veto threshold", "signature threshold"},
				StrongBoost:     3.0,
				ConfidenceFloor: 2.0,
				Priority:        50,
			},
		},
	}
}
