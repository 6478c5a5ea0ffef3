package models

import "time"

// EODBar represents one daily OHLCV bar, most recent first in series.
type EODBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// EODResponse wraps a daily bar series.
type EODResponse struct {
	Ticker string   `json:"ticker"`
	Data   []EODBar `json:"data"`
}

// Quote is a current price observation for a ticker.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// MarketSnapshot is the cached market view for one ticker: the current price
// and the trailing daily close history used for timing percentiles.
type MarketSnapshot struct {
	Ticker       string    `json:"ticker"`
	CurrentPrice float64   `json:"current_price"`
	QuotedAt     time.Time `json:"quoted_at"`
	Bars         []EODBar  `json:"bars"` // descending by date
	HistoryFrom  time.Time `json:"history_from"`
	HistoryTo    time.Time `json:"history_to"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Closes returns the close prices of all bars.
func (m *MarketSnapshot) Closes() []float64 {
	closes := make([]float64, 0, len(m.Bars))
	for _, b := range m.Bars {
		closes = append(closes, b.Close)
	}
	return closes
}
