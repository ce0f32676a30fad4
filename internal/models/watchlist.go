package models

import (
	"strings"
	"time"
)

// WatchlistItem is a tracked symbol with no quantity. It is used for
// alerting and display, never for valuation.
type WatchlistItem struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	AssetType AssetType `json:"asset_type"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SeriesID mirrors Holding.SeriesID.
func (w WatchlistItem) SeriesID() string {
	if w.AssetType == AssetCrypto {
		return CoinID(w.Symbol)
	}
	return strings.ToUpper(strings.TrimSpace(w.Symbol))
}

// AssetKey mirrors Holding.AssetKey.
func (w WatchlistItem) AssetKey() string {
	return AssetKey(w.AssetType, w.SeriesID())
}

// AssetRef mirrors Holding.AssetRef.
func (w WatchlistItem) AssetRef() AssetRef {
	return AssetRef{AssetType: w.AssetType, ID: w.SeriesID()}
}

// DisplayName returns Name, falling back to the symbol.
func (w WatchlistItem) DisplayName() string {
	if w.Name != "" {
		return w.Name
	}
	return strings.ToUpper(w.Symbol)
}

// WatchlistQuote is a watchlist item joined with its latest quote.
type WatchlistQuote struct {
	Item         WatchlistItem `json:"item"`
	Name         string        `json:"name"`
	ChangePct    float64       `json:"change_pct"`
	CurrentPrice float64       `json:"current_price"`
}
