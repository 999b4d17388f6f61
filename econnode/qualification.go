package econnode

import "github.com/forgepolicy/gatekeeper/gaterr"

// Qualification minima per node type (spec.md §4.6). A submission failing
// any mandated dimension is rejected at registration or re-verification.
const (
	minHashpowerPercent       = 1.0
	minExchangeHoldingsBTC    = 1_000.0
	minExchangeDailyVolumeUSD = 10_000_000.0
	minCustodianHoldingsBTC   = 5_000.0
	minPaymentProcessorUSD    = 5_000_000.0
	minMajorHolderHoldingsBTC = 1_000.0
)

func qualificationError(reason string) error {
	return gaterr.New(gaterr.KindInputFormat, "qualification-below-threshold: "+reason)
}

func verifyQualification(nodeType NodeType, proof QualificationProof) error {
	switch nodeType {
	case NodeTypeMiningPool:
		if proof.HashpowerProof == nil {
			return qualificationError("hashpower proof required for mining pools")
		}
		if proof.HashpowerProof.Percentage < minHashpowerPercent {
			return qualificationError("hashpower below minimum")
		}
	case NodeTypeExchange:
		if proof.HoldingsProof == nil || proof.VolumeProof == nil {
			return qualificationError("holdings and volume proof both required for exchanges")
		}
		if proof.HoldingsProof.TotalBTC < minExchangeHoldingsBTC {
			return qualificationError("holdings below minimum")
		}
		if proof.VolumeProof.DailyUSD < minExchangeDailyVolumeUSD {
			return qualificationError("daily volume below minimum")
		}
	case NodeTypeCustodian:
		if proof.HoldingsProof == nil {
			return qualificationError("holdings proof required for custodians")
		}
		if proof.HoldingsProof.TotalBTC < minCustodianHoldingsBTC {
			return qualificationError("holdings below minimum")
		}
	case NodeTypePaymentProcessor:
		if proof.VolumeProof == nil {
			return qualificationError("volume proof required for payment processors")
		}
		if proof.VolumeProof.MonthlyUSD < minPaymentProcessorUSD {
			return qualificationError("monthly volume below minimum")
		}
	case NodeTypeMajorHolder:
		if proof.HoldingsProof == nil {
			return qualificationError("holdings proof required for major holders")
		}
		if proof.HoldingsProof.TotalBTC < minMajorHolderHoldingsBTC {
			return qualificationError("holdings below minimum")
		}
	default:
		return gaterr.New(gaterr.KindInputFormat, "unknown node type")
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// calculateWeight derives the deterministic [0,1] weight for a node type
// from its qualification proof (spec.md §4.6).
func calculateWeight(nodeType NodeType, proof QualificationProof) (float64, error) {
	switch nodeType {
	case NodeTypeMiningPool:
		if proof.HashpowerProof == nil {
			return 0, qualificationError("hashpower proof required for mining pools")
		}
		return clamp01(proof.HashpowerProof.Percentage / 100.0), nil
	case NodeTypeExchange:
		holdings := 0.0
		if proof.HoldingsProof != nil {
			holdings = clamp01(proof.HoldingsProof.TotalBTC / 10_000.0)
		}
		volume := 0.0
		if proof.VolumeProof != nil {
			volume = clamp01(proof.VolumeProof.DailyUSD / 1e8)
		}
		return clamp01(0.7*holdings + 0.3*volume), nil
	case NodeTypeCustodian:
		if proof.HoldingsProof == nil {
			return 0, qualificationError("holdings proof required for custodians")
		}
		return clamp01(proof.HoldingsProof.TotalBTC / 10_000.0), nil
	case NodeTypePaymentProcessor:
		if proof.VolumeProof == nil {
			return 0, qualificationError("volume proof required for payment processors")
		}
		return clamp01(proof.VolumeProof.MonthlyUSD / 5e7), nil
	case NodeTypeMajorHolder:
		if proof.HoldingsProof == nil {
			return 0, qualificationError("holdings proof required for major holders")
		}
		return clamp01(proof.HoldingsProof.TotalBTC / 5_000.0), nil
	default:
		return 0, gaterr.New(gaterr.KindInputFormat, "unknown node type")
	}
}
