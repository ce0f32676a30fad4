package valuation

import (
	"github.com/bobmcallan/pulse/internal/models"
	"github.com/bobmcallan/pulse/internal/series"
)

// holdingCursor walks one holding's price series forward as calendar dates
// progress. Dates are sorted ascending; cursor is the next unread index.
type holdingCursor struct {
	dates    []string
	prices   models.PriceSeries
	cursor   int
	last     float64
	known    bool
	quantity float64
	from     string // purchase date key; empty means no left boundary
}

// advanceTo consumes every price dated on or before date and returns the
// most recent one seen so far.
func (c *holdingCursor) advanceTo(date string) (float64, bool) {
	for c.cursor < len(c.dates) && c.dates[c.cursor] <= date {
		c.last = c.prices[c.dates[c.cursor]]
		c.known = true
		c.cursor++
	}
	return c.last, c.known
}

// Aggregate computes the total portfolio value on every calendar date.
//
// Each holding contributes price × quantity from its purchase date onward,
// using the latest price on or before the date (forward-fill). A holding with
// no price yet, or no series at all, contributes 0. Holdings sharing a symbol
// keep independent cursors. Calendar must be ascending date keys.
func Aggregate(holdings []models.Holding, seriesByAsset map[string]models.PriceSeries, calendar []string) []models.ValuationPoint {
	if len(holdings) == 0 || len(calendar) == 0 {
		return []models.ValuationPoint{}
	}

	sortedDates := make(map[string][]string)
	cursors := make([]*holdingCursor, 0, len(holdings))
	for _, h := range holdings {
		key := h.AssetKey()
		ps := seriesByAsset[key]
		dates, ok := sortedDates[key]
		if !ok {
			dates = series.SortedKeys(ps)
			sortedDates[key] = dates
		}
		from, _ := series.NormalizeDateKey(h.PurchaseDate)
		cursors = append(cursors, &holdingCursor{
			dates:    dates,
			prices:   ps,
			quantity: h.Quantity,
			from:     from,
		})
	}

	points := make([]models.ValuationPoint, 0, len(calendar))
	for _, date := range calendar {
		total := 0.0
		for _, c := range cursors {
			if c.from != "" && c.from > date {
				continue
			}
			if price, ok := c.advanceTo(date); ok {
				total += price * c.quantity
			}
		}
		points = append(points, models.ValuationPoint{Date: date, Value: total})
	}
	return points
}
