package rebalance

import (
	"math"

	"github.com/harborfin/drift/internal/models"
)

// BalanceFunding enforces that buys never exceed sell proceeds plus available
// cash. Sells are never reduced: selling an overweight, well-timed position is
// valid whether or not any buy exists. When funds fall short every buy is
// scaled by fundsAvailable / totalBuys; scaled buys below the noise threshold
// are dropped, not zero-clamped. Pure function.
func BalanceFunding(sells, buys []models.Candidate, cashAvailable, noiseThreshold float64) (balancedSells, balancedBuys []models.Candidate) {
	balancedSells = sells

	if len(buys) == 0 {
		return balancedSells, nil
	}

	fundsAvailable := sumAmounts(sells) + cashAvailable
	if fundsAvailable <= 0 {
		return balancedSells, nil
	}

	totalBuys := sumAmounts(buys)
	if fundsAvailable >= totalBuys {
		return balancedSells, buys
	}

	ratio := fundsAvailable / totalBuys
	balancedBuys = make([]models.Candidate, 0, len(buys))
	for _, b := range buys {
		scaled := math.Abs(b.Amount) * ratio
		if scaled < noiseThreshold {
			continue
		}
		balancedBuys = append(balancedBuys, models.Candidate{
			Ticker: b.Ticker,
			Amount: scaled,
		})
	}

	return balancedSells, balancedBuys
}
