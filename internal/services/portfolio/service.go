// Package portfolio provides holdings management and point-in-time
// portfolio metrics
package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
	"github.com/bobmcallan/pulse/internal/series"
)

// Service implements PortfolioService
type Service struct {
	store  interfaces.HoldingStore
	quotes interfaces.QuoteService
	logger *common.Logger
	now    func() time.Time // injectable clock for testing
}

var _ interfaces.PortfolioService = (*Service)(nil)

// NewService creates a new portfolio service
func NewService(store interfaces.HoldingStore, quotes interfaces.QuoteService, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		quotes: quotes,
		logger: logger,
		now:    time.Now,
	}
}

// ListHoldings returns the user's holdings in creation order
func (s *Service) ListHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	holdings, err := s.store.ListHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	return holdings, nil
}

// AddHolding validates and stores a new holding with a fresh id
func (s *Service) AddHolding(ctx context.Context, userID string, h models.Holding) (*models.Holding, error) {
	now := s.now().UTC()
	h.Symbol = strings.ToUpper(strings.TrimSpace(h.Symbol))
	if err := s.validate(&h, now); err != nil {
		return nil, err
	}

	h.ID = uuid.New().String()
	h.CreatedAt = now
	h.UpdatedAt = now

	if err := s.store.SaveHolding(ctx, userID, &h); err != nil {
		return nil, fmt.Errorf("failed to save holding: %w", err)
	}

	s.logger.Info().Str("user", userID).Str("id", h.ID).Str("symbol", h.Symbol).Float64("quantity", h.Quantity).Msg("Holding added")
	return &h, nil
}

// UpdateHolding applies a partial update (merge semantics: only fields
// present in the update are overwritten)
func (s *Service) UpdateHolding(ctx context.Context, userID, id string, update models.HoldingUpdate) (*models.Holding, error) {
	existing, err := s.store.GetHolding(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get holding: %w", err)
	}

	h := *existing
	if update.Quantity != nil {
		h.Quantity = *update.Quantity
	}
	if update.PurchasePrice != nil {
		h.PurchasePrice = *update.PurchasePrice
	}
	if update.PurchaseDate != nil {
		h.PurchaseDate = *update.PurchaseDate
	}

	now := s.now().UTC()
	if err := s.validate(&h, now); err != nil {
		return nil, err
	}
	h.UpdatedAt = now

	if err := s.store.SaveHolding(ctx, userID, &h); err != nil {
		return nil, fmt.Errorf("failed to save holding: %w", err)
	}

	s.logger.Info().Str("user", userID).Str("id", id).Msg("Holding updated")
	return &h, nil
}

// RemoveHolding deletes a holding
func (s *Service) RemoveHolding(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteHolding(ctx, userID, id); err != nil {
		return fmt.Errorf("failed to remove holding: %w", err)
	}
	s.logger.Info().Str("user", userID).Str("id", id).Msg("Holding removed")
	return nil
}

// GetPortfolioSummary values every holding at its live price and computes
// the portfolio metrics. Assets whose quote failed fall back to purchase
// price and are listed in QuoteErrors.
func (s *Service) GetPortfolioSummary(ctx context.Context, userID string) (*models.PortfolioSummary, error) {
	holdings, err := s.ListHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	quotes := map[string]models.Quote{}
	var quoteErrors []string
	if len(holdings) > 0 {
		refs := make([]models.AssetRef, 0, len(holdings))
		for _, h := range holdings {
			refs = append(refs, h.AssetRef())
		}
		batch := s.quotes.GetQuotes(ctx, refs)
		quotes = batch.Quotes
		for key := range batch.Errors {
			quoteErrors = append(quoteErrors, key)
		}
		sort.Strings(quoteErrors)
	}

	enriched := EnrichHoldings(holdings, quotes)
	return &models.PortfolioSummary{
		Holdings:     enriched,
		Metrics:      ComputeMetrics(enriched),
		QuoteErrors:  quoteErrors,
		CalculatedAt: s.now().UTC(),
	}, nil
}

// validate checks a holding and normalises its purchase date to a date key.
func (s *Service) validate(h *models.Holding, now time.Time) error {
	if h.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", interfaces.ErrInvalidInput)
	}
	if !h.AssetType.Valid() {
		return fmt.Errorf("%w: asset_type must be stock or crypto", interfaces.ErrInvalidInput)
	}
	if !(h.Quantity > 0) || math.IsInf(h.Quantity, 0) {
		return fmt.Errorf("%w: quantity must be a positive number", interfaces.ErrInvalidInput)
	}
	if !(h.PurchasePrice >= 0) || math.IsInf(h.PurchasePrice, 0) {
		return fmt.Errorf("%w: purchase_price must not be negative", interfaces.ErrInvalidInput)
	}

	key, ok := series.NormalizeDateKey(h.PurchaseDate)
	if !ok {
		return fmt.Errorf("%w: purchase_date %q is not a date (want YYYY-MM-DD)", interfaces.ErrInvalidInput, h.PurchaseDate)
	}
	if key > series.ToDateKey(now) {
		return fmt.Errorf("%w: purchase_date %s is in the future", interfaces.ErrInvalidInput, key)
	}
	h.PurchaseDate = key
	return nil
}
