package rebalance

import (
	"math"
	"sort"

	"github.com/harborfin/drift/internal/models"
)

// BuildCandidates converts allocation gaps into signed currency amounts.
// Positions missing either allocation percentage are skipped; gaps smaller
// than the noise threshold are discarded as rounding noise. Pure function.
func BuildCandidates(positions []models.Position, totalValue, noiseThreshold float64) []models.Candidate {
	if totalValue <= 0 {
		return nil
	}

	candidates := make([]models.Candidate, 0, len(positions))
	for _, p := range positions {
		if p.CurrentAllocationPct == nil || p.TargetAllocationPct == nil {
			continue
		}

		diff := (*p.TargetAllocationPct - *p.CurrentAllocationPct) / 100 * totalValue
		if math.Abs(diff) < noiseThreshold {
			continue
		}

		candidates = append(candidates, models.Candidate{
			Ticker: p.Ticker,
			Amount: diff,
		})
	}

	return candidates
}

// splitSides partitions candidates into sell-side (negative) and buy-side
// (positive), each ordered by gap magnitude descending.
func splitSides(candidates []models.Candidate) (sells, buys []models.Candidate) {
	for _, c := range candidates {
		if c.IsBuy() {
			buys = append(buys, c)
		} else {
			sells = append(sells, c)
		}
	}
	sortByMagnitude(sells)
	sortByMagnitude(buys)
	return sells, buys
}

// sortByMagnitude orders candidates by |amount| descending, ticker ascending
// as a deterministic tiebreak.
func sortByMagnitude(candidates []models.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ai, aj := math.Abs(candidates[i].Amount), math.Abs(candidates[j].Amount)
		if ai != aj {
			return ai > aj
		}
		return candidates[i].Ticker < candidates[j].Ticker
	})
}

// round2 rounds a currency amount to 2 decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp limits v to the range [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
