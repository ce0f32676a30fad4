package valuation

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/pulse/internal/models"
	"github.com/bobmcallan/pulse/internal/series"
)

// RenderValuationChart renders a valuation series as a PNG line chart.
func RenderValuationChart(result *models.ValuationResult) ([]byte, error) {
	if result == nil || len(result.Points) < 2 {
		n := 0
		if result != nil {
			n = len(result.Points)
		}
		return nil, fmt.Errorf("need at least 2 data points, got %d", n)
	}

	xValues := make([]time.Time, 0, len(result.Points))
	yValues := make([]float64, 0, len(result.Points))
	for _, p := range result.Points {
		d, err := series.ParseDateKey(p.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid point date %q: %w", p.Date, err)
		}
		xValues = append(xValues, d)
		yValues = append(yValues, p.Value)
	}

	dateFormat := "02 Jan"
	if result.Range.Monthly() {
		dateFormat = "Jan 06"
	}

	valueSeries := chart.TimeSeries{
		Name: "Portfolio Value",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"),
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: yValues,
	}

	title := fmt.Sprintf("Portfolio Value (%s)", result.Range)
	if result.IsError {
		title += " - partial data"
	}

	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format(dateFormat)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.1fk", f/1000)
				}
				return ""
			},
		},
		Series: []chart.Series{valueSeries},
	}

	// A flat series has a zero-height range, which the renderer rejects.
	if lo, hi := minMax(yValues); lo == hi {
		graph.YAxis.Range = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func minMax(values []float64) (float64, float64) {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
