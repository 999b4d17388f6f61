package classifier

// Input is the material the classifier scores a change request against.
type Input struct {
	ChangedFiles []string
	Title        string
	Body         string
}

// Result is the classifier's output for one Input.
type Result struct {
	Tier          int
	Confidence    float64
	LowConfidence bool
	MatchedRule   string
}

// Classify scores every rule in rs against input and returns the winning
// tier, or the configured default tier marked low-confidence when no rule
// meets its own confidence floor.
func Classify(rs RuleSet, input Input) Result {
	var (
		best      Rule
		bestScore float64
		found     bool
	)

	for _, rule := range rs.Rules {
		score := scoreRule(rule, input)
		if score < rule.ConfidenceFloor {
			continue
		}
		if !found {
			best, bestScore, found = rule, score, true
			continue
		}
		if score > bestScore || (score == bestScore && rule.Priority > best.Priority) {
			best, bestScore, found = rule, score, true
		}
	}

	if !found {
		return Result{Tier: rs.DefaultTier, LowConfidence: true}
	}
	return Result{Tier: best.Tier, Confidence: bestScore, MatchedRule: best.Name}
}

func scoreRule(rule Rule, input Input) float64 {
	var score float64

	fileHits := 0
	for _, pattern := range rule.FilePatterns {
		fileHits += matchAny(pattern, input.ChangedFiles)
	}
	matchCap := rule.FileMatchCap
	if matchCap <= 0 {
		matchCap = fileHits
	}
	if fileHits > matchCap {
		fileHits = matchCap
	}
	score += float64(fileHits) * rule.FileWeight

	distinctMatched := 0
	for _, f := range input.ChangedFiles {
		for _, pattern := range rule.FilePatterns {
			if matchGlob(pattern, f) {
				distinctMatched++
				break
			}
		}
	}
	if distinctMatched > 1 {
		score += rule.MultiFileBoost
	}

	for _, kw := range rule.TitleKeywords {
		if containsKeyword(input.Title, kw) {
			score += rule.TitleWeight
		}
	}
	for _, kw := range rule.BodyKeywords {
		if containsKeyword(input.Body, kw) {
			score += rule.BodyWeight
		}
	}

	strongHit := false
	for _, kw := range rule.StrongKeywords {
		if containsKeyword(input.Title, kw) || containsKeyword(input.Body, kw) {
			strongHit = true
			break
		}
	}
	if strongHit {
		score += rule.StrongBoost
	}

	for _, pattern := range rule.ExclusionPatterns {
		if matchAny(pattern, input.ChangedFiles) > 0 {
			score -= rule.ExclusionPenalty
		}
	}

	for _, kw := range rule.ConflictKeywords {
		if containsKeyword(input.Title, kw) || containsKeyword(input.Body, kw) {
			score -= rule.ConflictPenalty
		}
	}

	if score < 0 {
		score = 0
	}
	return score
}
