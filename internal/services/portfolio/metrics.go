package portfolio

import (
	"math"

	"github.com/bobmcallan/pulse/internal/models"
)

// EnrichHoldings joins holdings with live quotes keyed by asset key. A
// holding without a positive live price is valued at its purchase price and
// marked PriceSourcePurchase, so a missing quote never reads as a total loss.
func EnrichHoldings(holdings []models.Holding, quotes map[string]models.Quote) []models.EnrichedHolding {
	enriched := make([]models.EnrichedHolding, 0, len(holdings))
	for _, h := range holdings {
		price, source := h.PurchasePrice, models.PriceSourcePurchase
		if q, ok := quotes[h.AssetKey()]; ok && q.Price > 0 && !math.IsInf(q.Price, 0) {
			price, source = q.Price, models.PriceSourceLive
		}

		e := models.EnrichedHolding{
			Holding:      h,
			CurrentPrice: price,
			PriceSource:  source,
			CurrentValue: price * h.Quantity,
			CostBasis:    h.CostBasis(),
		}
		e.PLUSD = e.CurrentValue - e.CostBasis
		e.PLPct = percentOf(e.PLUSD, e.CostBasis)
		enriched = append(enriched, e)
	}
	return enriched
}

// ComputeMetrics aggregates enriched holdings. Every percentage is 0 when
// its denominator is 0; the result never contains NaN or Inf.
func ComputeMetrics(enriched []models.EnrichedHolding) models.PortfolioMetrics {
	var m models.PortfolioMetrics
	for _, e := range enriched {
		m.TotalValue += e.CurrentValue
		m.TotalCostBasis += e.CostBasis
		switch e.AssetType {
		case models.AssetStock:
			m.StockValue += e.CurrentValue
		case models.AssetCrypto:
			m.CryptoValue += e.CurrentValue
		}
	}

	m.TotalPL = m.TotalValue - m.TotalCostBasis
	m.TotalPLPct = percentOf(m.TotalPL, m.TotalCostBasis)
	m.StockPct = percentOf(m.StockValue, m.TotalValue)
	m.CryptoPct = percentOf(m.CryptoValue, m.TotalValue)
	return m
}

// percentOf returns part / whole × 100, or 0 when that is not finite.
func percentOf(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	pct := part / whole * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return pct
}
