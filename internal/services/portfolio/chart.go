package portfolio

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/harborfin/drift/internal/models"
)

// RenderAllocationChart renders a PNG bar chart of current vs target
// allocation per ticker. Two bars per ticker: current (blue) and target
// (gray). Returns raw PNG bytes.
func RenderAllocationChart(name string, positions []models.Position) ([]byte, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("no positions to chart")
	}

	currentStyle := chart.Style{
		FillColor:   drawing.ColorFromHex("2563eb"), // blue-600
		StrokeColor: drawing.ColorFromHex("2563eb"),
		StrokeWidth: 0,
	}
	targetStyle := chart.Style{
		FillColor:   drawing.ColorFromHex("9ca3af"), // gray-400
		StrokeColor: drawing.ColorFromHex("9ca3af"),
		StrokeWidth: 0,
	}

	bars := make([]chart.Value, 0, len(positions)*2)
	for _, p := range positions {
		current := 0.0
		if p.CurrentAllocationPct != nil {
			current = *p.CurrentAllocationPct
		}
		target := 0.0
		if p.TargetAllocationPct != nil {
			target = *p.TargetAllocationPct
		}
		bars = append(bars,
			chart.Value{Label: p.Ticker, Value: current, Style: currentStyle},
			chart.Value{Label: "tgt", Value: target, Style: targetStyle},
		)
	}

	graph := chart.BarChart{
		Title:    fmt.Sprintf("%s: current (blue) vs target (gray) allocation", name),
		Width:    max(900, len(bars)*60),
		Height:   400,
		BarWidth: 40,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f%%", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
