package interfaces

import (
	"context"

	"github.com/bobmcallan/pulse/internal/models"
)

// StockHistoryClient provides daily/monthly close history and live quotes
// for stocks. History is returned as the provider's raw JSON so that it can
// be cached verbatim and parsed in one place.
type StockHistoryClient interface {
	GetTimeSeries(ctx context.Context, symbol string, granularity models.Granularity, outputSize models.OutputSize) ([]byte, error)
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// CryptoHistoryClient provides price-point history and spot prices for
// crypto coins, addressed by provider coin id.
type CryptoHistoryClient interface {
	GetMarketChart(ctx context.Context, coinID, vsCurrency string, days int) ([]byte, error)
	// GetSimplePrices returns quotes keyed by coin id. Coins the provider
	// does not know are absent from the map.
	GetSimplePrices(ctx context.Context, coinIDs []string, vsCurrency string) (map[string]models.Quote, error)
}

// NotificationSink delivers a price alert to a user.
type NotificationSink interface {
	Name() string
	Notify(ctx context.Context, userID string, alert models.PriceAlert) error
}
