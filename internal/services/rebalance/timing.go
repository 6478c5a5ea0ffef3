package rebalance

import (
	"context"
	"math"
	"sync"

	"github.com/harborfin/drift/internal/models"
)

// ComputePercentile returns the percentage of closes at or below the current
// price, rounded to 2 decimals. Returns false when there is no history.
func ComputePercentile(currentPrice float64, closes []float64) (float64, bool) {
	if len(closes) == 0 || currentPrice <= 0 {
		return 0, false
	}

	atOrBelow := 0
	for _, c := range closes {
		if c <= currentPrice {
			atOrBelow++
		}
	}

	percentile := 100 * float64(atOrBelow) / float64(len(closes))
	return round2(percentile), true
}

// selectTimingTickers picks the candidates eligible for history fetches,
// ordered by gap magnitude descending and capped at maxTickers. The cap
// bounds the load on the rate-limited market-data provider.
func selectTimingTickers(candidates []models.Candidate, maxTickers int) []string {
	ordered := make([]models.Candidate, len(candidates))
	copy(ordered, candidates)
	sortByMagnitude(ordered)

	if maxTickers > 0 && len(ordered) > maxTickers {
		ordered = ordered[:maxTickers]
	}

	tickers := make([]string, len(ordered))
	for i, c := range ordered {
		tickers[i] = c.Ticker
	}
	return tickers
}

// fetchTimingSamples retrieves market snapshots for the selected tickers
// concurrently and computes a timing sample per ticker. A failed fetch is
// isolated: that ticker simply has no sample, the request continues.
func (s *Service) fetchTimingSamples(ctx context.Context, tickers []string) map[string]models.TimingSample {
	samples := make(map[string]models.TimingSample, len(tickers))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()

			snapshot, err := s.market.GetSnapshot(ctx, ticker)
			if err != nil {
				s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Timing sample unavailable")
				return
			}

			percentile, ok := ComputePercentile(snapshot.CurrentPrice, snapshot.Closes())
			if !ok {
				s.logger.Warn().Str("ticker", ticker).Msg("Timing sample unavailable: empty history")
				return
			}

			mu.Lock()
			samples[ticker] = models.TimingSample{
				Ticker:       ticker,
				CurrentPrice: snapshot.CurrentPrice,
				Percentile:   percentile,
				SampleSize:   len(snapshot.Bars),
			}
			mu.Unlock()
		}(ticker)
	}

	wg.Wait()
	return samples
}

// timingDecision is one side's outcome of the timing filter.
type timingDecision struct {
	retained []models.Candidate
	fallback bool // side survived only via the gap-only fallback
}

// applyTimingFilter keeps sells that are historically expensive and buys that
// are historically cheap, then caps each side at maxActions. If filtering
// empties a side that had raw candidates, the side falls back to its top
// candidates by gap magnitude: an empty timing dataset degrades to gap-only
// recommendations rather than to zero recommendations. Candidates without a
// timing sample never pass the filter but stay eligible for the fallback.
func applyTimingFilter(sells, buys []models.Candidate, samples map[string]models.TimingSample, constraints models.Constraints) (sellDecision, buyDecision timingDecision) {
	sellDecision = filterSide(sells, constraints.MaxActions, func(c models.Candidate) bool {
		sample, ok := samples[c.Ticker]
		return ok && sample.Percentile >= constraints.SellPercentileThreshold
	})

	buyDecision = filterSide(buys, constraints.MaxActions, func(c models.Candidate) bool {
		sample, ok := samples[c.Ticker]
		return ok && sample.Percentile <= constraints.BuyPercentileThreshold
	})

	return sellDecision, buyDecision
}

// filterSide retains candidates passing the timing predicate, falling back to
// the top-maxActions raw candidates when the filter would empty the side.
func filterSide(side []models.Candidate, maxActions int, pass func(models.Candidate) bool) timingDecision {
	if len(side) == 0 {
		return timingDecision{}
	}

	retained := make([]models.Candidate, 0, len(side))
	for _, c := range side {
		if pass(c) {
			retained = append(retained, c)
		}
	}

	if len(retained) == 0 {
		// Gap-only fallback
		return timingDecision{retained: capSide(side, maxActions), fallback: true}
	}

	return timingDecision{retained: capSide(retained, maxActions)}
}

// capSide orders by gap magnitude and truncates to maxActions.
func capSide(side []models.Candidate, maxActions int) []models.Candidate {
	ordered := make([]models.Candidate, len(side))
	copy(ordered, side)
	sortByMagnitude(ordered)
	if maxActions > 0 && len(ordered) > maxActions {
		ordered = ordered[:maxActions]
	}
	return ordered
}

// sumAmounts totals the absolute amounts of a candidate list.
func sumAmounts(candidates []models.Candidate) float64 {
	total := 0.0
	for _, c := range candidates {
		total += math.Abs(c.Amount)
	}
	return total
}
