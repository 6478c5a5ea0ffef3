package rebalance

import (
	"fmt"
	"math"

	"github.com/harborfin/drift/internal/models"
)

// Confidence bounds for timing-backed actions. Actions without a timing
// sample are pinned low to flag low-information recommendations.
const (
	confidenceFloor    = 0.30
	confidenceCeiling  = 0.95
	confidenceNoSample = 0.20
)

// ScoreActions turns retained candidates into scored, ranked actions.
// Priority is assigned per side by amount descending, 1 = most important.
func ScoreActions(candidates []models.Candidate, actionType models.ActionType, positions map[string]models.Position, samples map[string]models.TimingSample, constraints models.Constraints) []models.Action {
	ordered := make([]models.Candidate, len(candidates))
	copy(ordered, candidates)
	sortByMagnitude(ordered)

	actions := make([]models.Action, 0, len(ordered))
	for i, c := range ordered {
		amount := round2(math.Abs(c.Amount))
		if amount <= 0 {
			continue
		}

		action := models.Action{
			Type:     actionType,
			Ticker:   c.Ticker,
			Amount:   amount,
			Priority: i + 1,
		}

		if p, ok := positions[c.Ticker]; ok {
			if p.CurrentAllocationPct != nil {
				action.CurrentAllocationPct = *p.CurrentAllocationPct
			}
			if p.TargetAllocationPct != nil {
				action.TargetAllocationPct = *p.TargetAllocationPct
			}
			action.Deviation = round2(action.TargetAllocationPct - action.CurrentAllocationPct)
		}

		if sample, ok := samples[c.Ticker]; ok {
			price := sample.CurrentPrice
			percentile := sample.Percentile
			action.CurrentPrice = &price
			action.TimingPercentile = &percentile
			action.Confidence = timingConfidence(actionType, percentile, constraints)
			action.Reason = timingReason(action, percentile)
		} else {
			action.Confidence = confidenceNoSample
			action.Reason = gapOnlyReason(action)
		}

		actions = append(actions, action)
	}

	return actions
}

// timingConfidence linearly interpolates the distance past the relevant
// percentile threshold into [confidenceFloor, confidenceCeiling].
func timingConfidence(actionType models.ActionType, percentile float64, constraints models.Constraints) float64 {
	var raw float64
	switch actionType {
	case models.ActionSell:
		span := 100 - constraints.SellPercentileThreshold
		if span <= 0 {
			return confidenceCeiling
		}
		raw = (percentile - constraints.SellPercentileThreshold) / span
	case models.ActionBuy:
		span := constraints.BuyPercentileThreshold
		if span <= 0 {
			return confidenceCeiling
		}
		raw = (span - percentile) / span
	}
	return clamp(raw, confidenceFloor, confidenceCeiling)
}

func timingReason(action models.Action, percentile float64) string {
	switch action.Type {
	case models.ActionSell:
		return fmt.Sprintf("Overweight by %.1f pts; price sits at the %.0fth percentile of the trailing year.",
			math.Abs(action.Deviation), percentile)
	default:
		return fmt.Sprintf("Underweight by %.1f pts; price sits at the %.0fth percentile of the trailing year.",
			math.Abs(action.Deviation), percentile)
	}
}

func gapOnlyReason(action models.Action) string {
	switch action.Type {
	case models.ActionSell:
		return fmt.Sprintf("Overweight by %.1f pts; timing unavailable.", math.Abs(action.Deviation))
	default:
		return fmt.Sprintf("Underweight by %.1f pts; timing unavailable.", math.Abs(action.Deviation))
	}
}
