// Package models defines data structures for Pulse
package models

import (
	"strings"
	"time"
)

// AssetType distinguishes the two price providers.
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetCrypto AssetType = "crypto"
)

// Valid reports whether t is a known asset type.
func (t AssetType) Valid() bool {
	return t == AssetStock || t == AssetCrypto
}

// Holding is a quantity of an asset owned by a user, with its acquisition
// date and price. PurchaseDate is an ISO date (optionally with a time part).
type Holding struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	AssetType     AssetType `json:"asset_type"`
	Quantity      float64   `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	PurchaseDate  string    `json:"purchase_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SeriesID returns the identifier the holding's price provider knows it by:
// the upper-cased ticker for stocks, the coin id for crypto.
func (h Holding) SeriesID() string {
	if h.AssetType == AssetCrypto {
		return CoinID(h.Symbol)
	}
	return strings.ToUpper(strings.TrimSpace(h.Symbol))
}

// AssetKey returns the key under which the holding's price series and
// quote are indexed.
func (h Holding) AssetKey() string {
	return AssetKey(h.AssetType, h.SeriesID())
}

// AssetRef returns the reference used to fetch the holding's prices.
func (h Holding) AssetRef() AssetRef {
	return AssetRef{AssetType: h.AssetType, ID: h.SeriesID()}
}

// CostBasis is purchase price times quantity.
func (h Holding) CostBasis() float64 {
	return h.PurchasePrice * h.Quantity
}

// AssetKey joins an asset type and provider id, e.g. "stock:AAPL" or "crypto:bitcoin".
func AssetKey(t AssetType, id string) string {
	return string(t) + ":" + id
}

// coinIDs maps common ticker symbols to CoinGecko coin ids.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"DOGE":  "dogecoin",
	"ADA":   "cardano",
	"XRP":   "ripple",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"MATIC": "matic-network",
	"LINK":  "chainlink",
	"LTC":   "litecoin",
	"BNB":   "binancecoin",
	"USDT":  "tether",
	"USDC":  "usd-coin",
}

// CoinID resolves a crypto symbol to its provider coin id. Unknown symbols
// are assumed to already be coin ids and are lower-cased.
func CoinID(symbol string) string {
	s := strings.TrimSpace(symbol)
	if id, ok := coinIDs[strings.ToUpper(s)]; ok {
		return id
	}
	return strings.ToLower(s)
}

// PriceSource records where an enriched holding's current price came from.
type PriceSource string

const (
	PriceSourceLive     PriceSource = "live"
	PriceSourcePurchase PriceSource = "purchase"
)

// EnrichedHolding is a holding joined with its current price.
type EnrichedHolding struct {
	Holding
	CurrentPrice float64     `json:"current_price"`
	PriceSource  PriceSource `json:"price_source"`
	CurrentValue float64     `json:"current_value"`
	CostBasis    float64     `json:"cost_basis"`
	PLUSD        float64     `json:"pl_usd"`
	PLPct        float64     `json:"pl_pct"`
}

// PortfolioMetrics are point-in-time aggregates over enriched holdings.
type PortfolioMetrics struct {
	TotalValue     float64 `json:"total_value"`
	TotalCostBasis float64 `json:"total_cost_basis"`
	TotalPL        float64 `json:"total_pl"`
	TotalPLPct     float64 `json:"total_pl_pct"`
	StockValue     float64 `json:"stock_value"`
	CryptoValue    float64 `json:"crypto_value"`
	StockPct       float64 `json:"stock_pct"`
	CryptoPct      float64 `json:"crypto_pct"`
}

// PortfolioSummary is the dashboard view: enriched holdings plus metrics.
type PortfolioSummary struct {
	Holdings     []EnrichedHolding `json:"holdings"`
	Metrics      PortfolioMetrics  `json:"metrics"`
	QuoteErrors  []string          `json:"quote_errors,omitempty"`
	CalculatedAt time.Time         `json:"calculated_at"`
}

// HoldingUpdate carries the fields of a partial holding update. Nil fields
// are left unchanged.
type HoldingUpdate struct {
	Quantity      *float64 `json:"quantity,omitempty"`
	PurchasePrice *float64 `json:"purchase_price,omitempty"`
	PurchaseDate  *string  `json:"purchase_date,omitempty"`
}
