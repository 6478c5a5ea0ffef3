// Package models defines data structures for Drift
package models

import "time"

// Portfolio represents a stock portfolio with its holdings and available cash.
type Portfolio struct {
	Name        string    `json:"name"`
	Holdings    []Holding `json:"holdings"`
	CashBalance float64   `json:"cash_balance"`
	TotalValue  float64   `json:"total_value"` // holdings market value, excludes cash
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Holding represents a single portfolio position as imported/stored.
type Holding struct {
	Ticker       string    `json:"ticker"`
	Name         string    `json:"name"`
	Units        float64   `json:"units"`
	AvgCost      float64   `json:"avg_cost"`
	CurrentPrice float64   `json:"current_price"`
	MarketValue  float64   `json:"market_value"`
	LastUpdated  time.Time `json:"last_updated"`
}

// TargetAllocations is the user-maintained target weighting per ticker,
// in percent of total portfolio value. Weights must sum to at most 100.
type TargetAllocations struct {
	PortfolioName string             `json:"portfolio_name"`
	Targets       map[string]float64 `json:"targets"` // ticker -> target pct
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Position is a point-in-time snapshot of one holding used by the rebalancing
// pipeline. Allocation percentages are nil when unknown (e.g. no target set);
// positions missing either percentage are not rebalance candidates.
type Position struct {
	Ticker               string   `json:"ticker"`
	Name                 string   `json:"name"`
	CurrentAllocationPct *float64 `json:"current_allocation_pct,omitempty"`
	TargetAllocationPct  *float64 `json:"target_allocation_pct,omitempty"`
	MarketValue          float64  `json:"market_value"`
	Shares               float64  `json:"shares"`
	CurrentPrice         float64  `json:"current_price,omitempty"`
	UnrealizedPnLPct     float64  `json:"unrealized_pnl_pct"`
}

// PositionSnapshot is the full position view handed to the rebalancing
// pipeline: the per-ticker positions plus portfolio-level totals.
type PositionSnapshot struct {
	PortfolioName string     `json:"portfolio_name"`
	Positions     []Position `json:"positions"`
	TotalValue    float64    `json:"total_value"`
	CashAvailable float64    `json:"cash_available"`
	TakenAt       time.Time  `json:"taken_at"`
}

// Tickers returns the set of tickers in the snapshot. The rebalancing
// validation funnel uses this as the known security universe.
func (s *PositionSnapshot) Tickers() map[string]bool {
	universe := make(map[string]bool, len(s.Positions))
	for _, p := range s.Positions {
		universe[p.Ticker] = true
	}
	return universe
}
