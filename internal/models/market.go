package models

import (
	"encoding/json"
	"time"
)

// PriceSeries maps a UTC date key (YYYY-MM-DD) to a non-negative price.
type PriceSeries map[string]float64

// Granularity is the sampling resolution of a stock series.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
	GranularityUnknown Granularity = "unknown"
)

// OutputSize is the stock provider's history depth parameter.
type OutputSize string

const (
	OutputCompact OutputSize = "compact"
	OutputFull    OutputSize = "full"
)

// StockPayload is a parsed stock response, resolved once at the parser
// boundary so nothing downstream inspects the raw shape again.
type StockPayload struct {
	Kind   Granularity
	Series PriceSeries
}

// StockHistoricalCacheEntry is the persisted raw stock history for a symbol.
// Staleness only triggers a refetch; the data stays usable.
type StockHistoricalCacheEntry struct {
	Symbol      string          `json:"symbol"`
	Data        json.RawMessage `json:"data"`
	OutputSize  OutputSize      `json:"outputsize"`
	Granularity Granularity     `json:"granularity"`
	FetchedAt   int64           `json:"fetched_at"` // epoch millis
}

// FetchedTime returns FetchedAt as a time.Time.
func (e *StockHistoricalCacheEntry) FetchedTime() time.Time {
	if e == nil || e.FetchedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.FetchedAt).UTC()
}

// Satisfies reports whether the entry can answer a request of the given
// granularity and output size. A full history answers a compact request.
func (e *StockHistoricalCacheEntry) Satisfies(g Granularity, size OutputSize) bool {
	if e == nil || e.Granularity != g {
		return false
	}
	return e.OutputSize == size || e.OutputSize == OutputFull
}

// Quote is a live price for a stock or crypto asset.
type Quote struct {
	Symbol    string    `json:"symbol"`
	AssetType AssetType `json:"asset_type"`
	Price     float64   `json:"price"`
	ChangePct float64   `json:"change_pct"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// AssetRef identifies an asset to quote or fetch history for.
type AssetRef struct {
	AssetType AssetType
	ID        string // ticker for stocks, coin id for crypto
}

// Key returns the asset key for the reference.
func (r AssetRef) Key() string {
	return AssetKey(r.AssetType, r.ID)
}

// SeriesBatch is the result of a multi-asset history fetch. Series is keyed
// by asset key. Failed lists the asset keys whose fetch failed, sorted.
type SeriesBatch struct {
	Series map[string]PriceSeries
	Failed []string
}

// QuoteBatch is the result of a multi-asset quote fetch. Quotes and Errors
// are keyed by asset key; an asset appears in at most one of them.
type QuoteBatch struct {
	Quotes map[string]Quote
	Errors map[string]string
}
