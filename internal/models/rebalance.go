package models

import "time"

// ActionType classifies a rebalancing action.
type ActionType string

const (
	ActionBuy  ActionType = "BUY"
	ActionSell ActionType = "SELL"
)

// Candidate is a raw rebalancing candidate derived from an allocation gap.
// Amount is signed: positive = underweight (buy), negative = overweight (sell).
// Candidates are transient and recomputed on every request.
type Candidate struct {
	Ticker string  `json:"ticker"`
	Amount float64 `json:"amount"`
}

// IsBuy reports whether the candidate is on the buy side.
func (c Candidate) IsBuy() bool { return c.Amount > 0 }

// Constraints are the operator-configured limits the pipeline enforces.
type Constraints struct {
	NoiseThreshold          float64 `json:"noise_threshold"`
	MaxActions              int     `json:"max_actions"`
	SellPercentileThreshold float64 `json:"sell_percentile_threshold"`
	BuyPercentileThreshold  float64 `json:"buy_percentile_threshold"`
	MaxTimingTickers        int     `json:"max_timing_tickers"`
	CashAvailable           float64 `json:"cash_available"`
}

// TimingSample is the historical-percentile observation for one ticker:
// the percentage of trailing-year daily closes at or below the current price.
// A high percentile means historically expensive, a low one historically cheap.
type TimingSample struct {
	Ticker       string  `json:"ticker"`
	CurrentPrice float64 `json:"current_price"`
	Percentile   float64 `json:"percentile"` // 0-100, rounded to 2 decimals
	SampleSize   int     `json:"sample_size"`
}

// Action is a single recommended trade.
type Action struct {
	Type                 ActionType `json:"type"`
	Ticker               string     `json:"ticker"`
	Amount               float64    `json:"amount"` // always > 0, 2 decimals
	CurrentAllocationPct float64    `json:"current_allocation_pct"`
	TargetAllocationPct  float64    `json:"target_allocation_pct"`
	Deviation            float64    `json:"deviation"` // target - current, pct points
	CurrentPrice         *float64   `json:"current_price,omitempty"`
	TimingPercentile     *float64   `json:"timing_percentile,omitempty"`
	Confidence           float64    `json:"confidence"` // 0-1
	Reason               string     `json:"reason"`
	Priority             int        `json:"priority"` // 1 = most important
}

// RebalancePlan is the outbound recommendation set.
type RebalancePlan struct {
	ID                      string     `json:"id"`
	PortfolioName           string     `json:"portfolio_name" badgerhold:"index"`
	TotalPortfolioValue     float64    `json:"total_portfolio_value"`
	CashAvailable           float64    `json:"cash_available"`
	TotalBuyAmount          float64    `json:"total_buy_amount"`
	TotalSellAmount         float64    `json:"total_sell_amount"`
	NetCashFlow             float64    `json:"net_cash_flow"` // buys - sells
	BuyPercentileThreshold  float64    `json:"buy_percentile_threshold"`
	SellPercentileThreshold float64    `json:"sell_percentile_threshold"`
	GeneratedAt             time.Time  `json:"generated_at"`
	Sells                   []Action   `json:"sells"`
	Buys                    []Action   `json:"buys"`
	AdvisorApplied          bool       `json:"advisor_applied"`
	AdvisorSummary          string     `json:"advisor_summary,omitempty"`
	Risk                    *RiskStats `json:"risk,omitempty"`
}

// AdvisorProposal is the neutral intermediate structure an advisory response
// is parsed into. It is never trusted: the validation funnel runs before any
// of it can influence user-visible results.
type AdvisorProposal struct {
	Actions []ProposedAction `json:"actions"`
	Summary string           `json:"summary"`
}

// ProposedAction is one untrusted action from the advisory.
type ProposedAction struct {
	Action     string  `json:"action"`
	Ticker     string  `json:"ticker"`
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// RiskStats are portfolio-level diversification and risk statistics.
type RiskStats struct {
	PortfolioName     string    `json:"portfolio_name"`
	HHI               float64   `json:"hhi"` // 0-10000, sum of squared weights
	ConcentrationRisk string    `json:"concentration_risk"`
	Volatility        float64   `json:"volatility"` // annualised, pct
	Beta              float64   `json:"beta"`
	SharpeRatio       float64   `json:"sharpe_ratio"`
	ComputedAt        time.Time `json:"computed_at"`
}
