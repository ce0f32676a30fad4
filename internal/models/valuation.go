package models

import (
	"fmt"
	"strings"
	"time"
)

// ValuationRange is a selectable chart range.
type ValuationRange string

const (
	Range7D  ValuationRange = "7d"
	Range30D ValuationRange = "30d"
	Range90D ValuationRange = "90d"
	Range1Y  ValuationRange = "1y"
)

// ParseValuationRange validates a range string.
func ParseValuationRange(s string) (ValuationRange, error) {
	r := ValuationRange(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case Range7D, Range30D, Range90D, Range1Y:
		return r, nil
	}
	return "", fmt.Errorf("unknown range %q (want 7d, 30d, 90d or 1y)", s)
}

// Days returns the number of calendar days the range covers.
func (r ValuationRange) Days() int {
	switch r {
	case Range7D:
		return 7
	case Range30D:
		return 30
	case Range90D:
		return 90
	case Range1Y:
		return 365
	}
	return 0
}

// Monthly reports whether the range is evaluated on a first-of-month grid.
func (r ValuationRange) Monthly() bool {
	return r == Range1Y
}

// Granularity returns the stock series granularity matching the calendar.
func (r ValuationRange) Granularity() Granularity {
	if r.Monthly() {
		return GranularityMonthly
	}
	return GranularityDaily
}

// ValuationPoint is the total portfolio value on one calendar date.
type ValuationPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// ValuationResult is a best-effort valuation series. IsError is set when at
// least one asset's history could not be fetched; the points still include
// every asset that succeeded.
type ValuationResult struct {
	Range         ValuationRange   `json:"range"`
	Points        []ValuationPoint `json:"points"`
	IsError       bool             `json:"is_error"`
	FailedSymbols []string         `json:"failed_symbols,omitempty"`
	ComputedAt    time.Time        `json:"computed_at"`
}
