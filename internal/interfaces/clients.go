// Package interfaces defines service contracts for Drift
package interfaces

import (
	"context"
	"time"

	"github.com/harborfin/drift/internal/models"
)

// MarketDataClient provides current and historical prices for a ticker.
type MarketDataClient interface {
	// GetQuote retrieves the current price
	GetQuote(ctx context.Context, ticker string) (*models.Quote, error)

	// GetEOD retrieves end-of-day price data
	GetEOD(ctx context.Context, ticker string, opts ...EODOption) (*models.EODResponse, error)
}

// EODOption configures EOD data requests
type EODOption func(*EODParams)

// EODParams holds EOD query parameters
type EODParams struct {
	From   time.Time
	To     time.Time
	Period string // d=daily, w=weekly, m=monthly
	Order  string // a=ascending, d=descending
}

// WithDateRange sets the date range for EOD query
func WithDateRange(from, to time.Time) EODOption {
	return func(p *EODParams) {
		p.From = from
		p.To = to
	}
}

// WithPeriod sets the period for EOD query
func WithPeriod(period string) EODOption {
	return func(p *EODParams) {
		p.Period = period
	}
}

// AdvisorClient is the optional, untrusted external advisory. Implementations
// (including no-ops) satisfy the same contract; their output always passes
// through the rebalancing validation funnel before acceptance.
type AdvisorClient interface {
	// Available reports whether the advisory is configured and usable.
	Available() bool

	// ProposeRebalance asks the advisory to reorder/adjust/filter the
	// deterministic candidate set. The returned proposal is untrusted.
	ProposeRebalance(ctx context.Context, req *AdvisorRequest) (*models.AdvisorProposal, error)
}

// AdvisorRequest is the sanitized view of a rebalancing computation sent to
// the advisory: constraints, per-security features, and the deterministic
// candidate lists.
type AdvisorRequest struct {
	PortfolioName string
	Constraints   models.Constraints
	Features      []SecurityFeatures
	Sells         []models.Candidate
	Buys          []models.Candidate
	Risk          *models.RiskStats
}

// SecurityFeatures are the per-ticker inputs exposed to the advisory.
type SecurityFeatures struct {
	Ticker           string   `json:"ticker"`
	CurrentPct       float64  `json:"current_pct"`
	TargetPct        float64  `json:"target_pct"`
	Deviation        float64  `json:"deviation"`
	GapValue         float64  `json:"gap_value"`
	Price            *float64 `json:"price,omitempty"`
	TimingPercentile *float64 `json:"timing_percentile,omitempty"`
	UnrealizedPnLPct float64  `json:"unrealized_pnl_pct"`
	MarketValue      float64  `json:"market_value"`
}
