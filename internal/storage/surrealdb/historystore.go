package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// stockHistoryRecord is the stored form of a cache entry. The raw provider
// payload is kept as a string so the database never reinterprets it.
type stockHistoryRecord struct {
	Symbol      string             `json:"symbol"`
	Data        string             `json:"data"`
	OutputSize  models.OutputSize  `json:"outputsize"`
	Granularity models.Granularity `json:"granularity"`
	FetchedAt   int64              `json:"fetched_at"`
}

// HistoryStore implements interfaces.HistoricalCacheStore.
type HistoryStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

var _ interfaces.HistoricalCacheStore = (*HistoryStore)(nil)

func NewHistoryStore(db *surrealdb.DB, logger *common.Logger) *HistoryStore {
	return &HistoryStore{db: db, logger: logger}
}

func historyID(symbol string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(tableStockHistory, strings.ToUpper(symbol))
}

func (s *HistoryStore) GetStockHistory(ctx context.Context, symbol string) (*models.StockHistoricalCacheEntry, error) {
	record, err := surrealdb.Select[stockHistoryRecord](ctx, s.db, historyID(symbol))
	if err != nil {
		if isNotFoundError(err) {
			return nil, fmt.Errorf("stock history %s: %w", symbol, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select stock history: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("stock history %s: %w", symbol, interfaces.ErrNotFound)
	}
	return &models.StockHistoricalCacheEntry{
		Symbol:      record.Symbol,
		Data:        []byte(record.Data),
		OutputSize:  record.OutputSize,
		Granularity: record.Granularity,
		FetchedAt:   record.FetchedAt,
	}, nil
}

func (s *HistoryStore) PutStockHistory(ctx context.Context, entry *models.StockHistoricalCacheEntry) error {
	if entry == nil || entry.Symbol == "" {
		return fmt.Errorf("stock history symbol is required")
	}
	record := stockHistoryRecord{
		Symbol:      strings.ToUpper(entry.Symbol),
		Data:        string(entry.Data),
		OutputSize:  entry.OutputSize,
		Granularity: entry.Granularity,
		FetchedAt:   entry.FetchedAt,
	}

	sql := "UPSERT $rid CONTENT $data"
	vars := map[string]any{"rid": historyID(entry.Symbol), "data": record}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]stockHistoryRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save stock history after retries: %w", lastErr)
}

func (s *HistoryStore) PurgeStockHistory(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]stockHistoryRecord](ctx, s.db, "DELETE stock_history RETURN BEFORE", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stock history: %w", err)
	}
	count := 0
	if results != nil && len(*results) > 0 {
		count = len((*results)[0].Result)
	}
	s.logger.Info().Int("count", count).Msg("Stock history purged")
	return count, nil
}
