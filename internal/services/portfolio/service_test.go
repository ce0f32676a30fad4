package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

type memHoldingStore struct {
	holdings map[string]models.Holding
}

func newMemHoldingStore() *memHoldingStore {
	return &memHoldingStore{holdings: make(map[string]models.Holding)}
}

func (m *memHoldingStore) ListHoldings(context.Context, string) ([]models.Holding, error) {
	out := make([]models.Holding, 0, len(m.holdings))
	for _, h := range m.holdings {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *memHoldingStore) GetHolding(_ context.Context, _ string, id string) (*models.Holding, error) {
	h, ok := m.holdings[id]
	if !ok {
		return nil, fmt.Errorf("holding %s: %w", id, interfaces.ErrNotFound)
	}
	return &h, nil
}

func (m *memHoldingStore) SaveHolding(_ context.Context, _ string, h *models.Holding) error {
	m.holdings[h.ID] = *h
	return nil
}

func (m *memHoldingStore) DeleteHolding(_ context.Context, _ string, id string) error {
	if _, ok := m.holdings[id]; !ok {
		return fmt.Errorf("holding %s: %w", id, interfaces.ErrNotFound)
	}
	delete(m.holdings, id)
	return nil
}

func (m *memHoldingStore) ListUsers(context.Context) ([]string, error) { return nil, nil }

type stubQuotes struct {
	batch *models.QuoteBatch
	refs  []models.AssetRef
}

func (s *stubQuotes) GetQuotes(_ context.Context, refs []models.AssetRef) *models.QuoteBatch {
	s.refs = refs
	return s.batch
}

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestService(store interfaces.HoldingStore, quotes interfaces.QuoteService) *Service {
	svc := NewService(store, quotes, common.NewSilentLogger())
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestAddHolding_NormalisesAndStores(t *testing.T) {
	store := newMemHoldingStore()
	svc := newTestService(store, &stubQuotes{})

	h, err := svc.AddHolding(context.Background(), "alice", models.Holding{
		Symbol:        " aapl ",
		AssetType:     models.AssetStock,
		Quantity:      3,
		PurchasePrice: 180,
		PurchaseDate:  "2024-01-02T09:30:00Z",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, h.ID)
	assert.Equal(t, "AAPL", h.Symbol)
	assert.Equal(t, "2024-01-02", h.PurchaseDate)
	assert.Equal(t, testNow, h.CreatedAt)
	assert.Contains(t, store.holdings, h.ID)
}

func TestAddHolding_Validation(t *testing.T) {
	valid := models.Holding{Symbol: "AAPL", AssetType: models.AssetStock, Quantity: 1, PurchasePrice: 10, PurchaseDate: "2024-01-02"}

	tests := []struct {
		name   string
		mutate func(h *models.Holding)
	}{
		{"empty symbol", func(h *models.Holding) { h.Symbol = "  " }},
		{"bad asset type", func(h *models.Holding) { h.AssetType = "bond" }},
		{"zero quantity", func(h *models.Holding) { h.Quantity = 0 }},
		{"negative price", func(h *models.Holding) { h.PurchasePrice = -1 }},
		{"bad date", func(h *models.Holding) { h.PurchaseDate = "02/01/2024" }},
		{"future date", func(h *models.Holding) { h.PurchaseDate = "2024-03-16" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := valid
			tt.mutate(&h)
			_, err := newTestService(newMemHoldingStore(), &stubQuotes{}).AddHolding(context.Background(), "alice", h)
			require.Error(t, err)
			assert.True(t, errors.Is(err, interfaces.ErrInvalidInput))
		})
	}
}

func TestUpdateHolding_MergesFields(t *testing.T) {
	store := newMemHoldingStore()
	svc := newTestService(store, &stubQuotes{})

	h, err := svc.AddHolding(context.Background(), "alice", models.Holding{
		Symbol: "ETH", AssetType: models.AssetCrypto, Quantity: 1, PurchasePrice: 2000, PurchaseDate: "2024-01-01",
	})
	require.NoError(t, err)

	qty := 2.5
	updated, err := svc.UpdateHolding(context.Background(), "alice", h.ID, models.HoldingUpdate{Quantity: &qty})
	require.NoError(t, err)

	assert.Equal(t, 2.5, updated.Quantity)
	assert.Equal(t, 2000.0, updated.PurchasePrice)
	assert.Equal(t, "2024-01-01", updated.PurchaseDate)
	assert.Equal(t, 2.5, store.holdings[h.ID].Quantity)

	bad := -1.0
	_, err = svc.UpdateHolding(context.Background(), "alice", h.ID, models.HoldingUpdate{Quantity: &bad})
	assert.True(t, errors.Is(err, interfaces.ErrInvalidInput))
	assert.Equal(t, 2.5, store.holdings[h.ID].Quantity)
}

func TestUpdateHolding_NotFound(t *testing.T) {
	svc := newTestService(newMemHoldingStore(), &stubQuotes{})
	_, err := svc.UpdateHolding(context.Background(), "alice", "missing", models.HoldingUpdate{})
	assert.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestRemoveHolding(t *testing.T) {
	store := newMemHoldingStore()
	svc := newTestService(store, &stubQuotes{})

	h, err := svc.AddHolding(context.Background(), "alice", models.Holding{
		Symbol: "AAPL", AssetType: models.AssetStock, Quantity: 1, PurchasePrice: 1, PurchaseDate: "2024-01-01",
	})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveHolding(context.Background(), "alice", h.ID))
	assert.Empty(t, store.holdings)
	assert.True(t, errors.Is(svc.RemoveHolding(context.Background(), "alice", h.ID), interfaces.ErrNotFound))
}

func TestGetPortfolioSummary_PartialQuotes(t *testing.T) {
	store := newMemHoldingStore()
	store.holdings["1"] = models.Holding{ID: "1", Symbol: "AAPL", AssetType: models.AssetStock, Quantity: 2, PurchasePrice: 100}
	store.holdings["2"] = models.Holding{ID: "2", Symbol: "BTC", AssetType: models.AssetCrypto, Quantity: 1, PurchasePrice: 30000}

	quotes := &stubQuotes{batch: &models.QuoteBatch{
		Quotes: map[string]models.Quote{"stock:AAPL": {Price: 125}},
		Errors: map[string]string{"crypto:bitcoin": "no price returned"},
	}}

	summary, err := newTestService(store, quotes).GetPortfolioSummary(context.Background(), "alice")
	require.NoError(t, err)

	assert.ElementsMatch(t, []models.AssetRef{
		{AssetType: models.AssetStock, ID: "AAPL"},
		{AssetType: models.AssetCrypto, ID: "bitcoin"},
	}, quotes.refs)
	assert.Equal(t, []string{"crypto:bitcoin"}, summary.QuoteErrors)
	require.Len(t, summary.Holdings, 2)
	assert.Equal(t, 30250.0, summary.Metrics.TotalValue)
	assert.Equal(t, 30200.0, summary.Metrics.TotalCostBasis)
	assert.Equal(t, 50.0, summary.Metrics.TotalPL)
	assert.Equal(t, testNow, summary.CalculatedAt)
}

func TestGetPortfolioSummary_Empty(t *testing.T) {
	quotes := &stubQuotes{}
	summary, err := newTestService(newMemHoldingStore(), quotes).GetPortfolioSummary(context.Background(), "alice")
	require.NoError(t, err)

	assert.Empty(t, summary.Holdings)
	assert.Equal(t, models.PortfolioMetrics{}, summary.Metrics)
	assert.Nil(t, quotes.refs)
}
