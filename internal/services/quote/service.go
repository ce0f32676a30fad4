// Package quote provides live prices for stocks and crypto coins
package quote

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// Service implements QuoteService. Stock quotes are fetched one request per
// symbol; crypto spot prices in one batched request. Quotes younger than
// common.FreshnessQuote are served from memory.
type Service struct {
	stocks     interfaces.StockHistoryClient
	crypto     interfaces.CryptoHistoryClient
	logger     *common.Logger
	vsCurrency string
	now        func() time.Time // injectable clock for testing

	mu     sync.Mutex
	recent map[string]models.Quote
}

var _ interfaces.QuoteService = (*Service)(nil)

// NewService creates a new quote service.
func NewService(stocks interfaces.StockHistoryClient, crypto interfaces.CryptoHistoryClient, logger *common.Logger, vsCurrency string) *Service {
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	return &Service{
		stocks:     stocks,
		crypto:     crypto,
		logger:     logger,
		vsCurrency: vsCurrency,
		now:        time.Now,
		recent:     make(map[string]models.Quote),
	}
}

// GetQuotes fetches quotes for every distinct asset concurrently. Failures
// are reported per asset in the batch's Errors map.
func (s *Service) GetQuotes(ctx context.Context, assets []models.AssetRef) *models.QuoteBatch {
	batch := &models.QuoteBatch{
		Quotes: make(map[string]models.Quote),
		Errors: make(map[string]string),
	}

	var stocks, coins []string
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		key := a.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		if q, ok := s.cached(key); ok {
			batch.Quotes[key] = q
			continue
		}
		switch a.AssetType {
		case models.AssetStock:
			stocks = append(stocks, a.ID)
		case models.AssetCrypto:
			coins = append(coins, a.ID)
		default:
			batch.Errors[key] = "unsupported asset type"
		}
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	record := func(key string, q *models.Quote, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			batch.Errors[key] = err.Error()
			s.logger.Warn().Err(err).Str("asset", key).Msg("Quote fetch failed")
			return
		}
		batch.Quotes[key] = *q
		s.remember(key, *q)
	}

	for _, sym := range stocks {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			q, err := s.stocks.GetQuote(ctx, sym)
			record(models.AssetKey(models.AssetStock, sym), q, err)
		}(sym)
	}

	if len(coins) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			quotes, err := s.crypto.GetSimplePrices(ctx, coins, s.vsCurrency)
			for _, id := range coins {
				key := models.AssetKey(models.AssetCrypto, id)
				if err != nil {
					record(key, nil, err)
					continue
				}
				q, ok := quotes[id]
				if !ok {
					record(key, nil, errNoPrice)
					continue
				}
				record(key, &q, nil)
			}
		}()
	}

	wg.Wait()
	return batch
}

type quoteError string

func (e quoteError) Error() string { return string(e) }

const errNoPrice = quoteError("no price returned")

func (s *Service) cached(key string) (models.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.recent[key]
	if !ok || !common.IsFreshAt(q.Timestamp, common.FreshnessQuote, s.now()) {
		return models.Quote{}, false
	}
	return q, true
}

func (s *Service) remember(key string, q models.Quote) {
	if q.Timestamp.IsZero() {
		q.Timestamp = s.now()
	}
	s.mu.Lock()
	s.recent[key] = q
	s.mu.Unlock()
}
