// Package alert detects significant watchlist price moves and dispatches
// them to notification sinks once per symbol per session.
package alert

import (
	"math"
	"strings"

	"github.com/bobmcallan/pulse/internal/models"
)

// SymbolSet is a set of upper-cased symbols.
type SymbolSet map[string]struct{}

// Has reports whether symbol is in the set.
func (s SymbolSet) Has(symbol string) bool {
	_, ok := s[strings.ToUpper(symbol)]
	return ok
}

// Add inserts symbol.
func (s SymbolSet) Add(symbol string) {
	s[strings.ToUpper(symbol)] = struct{}{}
}

// DetectSignificantPriceChanges returns an alert for every watchlist quote
// whose absolute change is at least thresholdPct and whose symbol has not
// been notified yet. Holdings are accepted for call-site symmetry but never
// evaluated: they carry no 24h change figure. notified is not modified.
func DetectSignificantPriceChanges(_ []models.Holding, watchlist []models.WatchlistQuote, thresholdPct float64, notified SymbolSet) []models.PriceAlert {
	alerts := make([]models.PriceAlert, 0)
	for _, wq := range watchlist {
		change := wq.ChangePct
		if math.IsNaN(change) || math.Abs(change) < thresholdPct {
			continue
		}
		if notified.Has(wq.Item.Symbol) {
			continue
		}

		direction := models.DirectionDown
		if change >= 0 {
			direction = models.DirectionUp
		}

		name := wq.Name
		if name == "" {
			name = wq.Item.DisplayName()
		}

		alerts = append(alerts, models.PriceAlert{
			Symbol:       strings.ToUpper(wq.Item.Symbol),
			Name:         name,
			ChangePct:    change,
			CurrentPrice: wq.CurrentPrice,
			Direction:    direction,
			AssetType:    wq.Item.AssetType,
		})
	}
	return alerts
}
