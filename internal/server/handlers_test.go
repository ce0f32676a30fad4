package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/pulse/internal/app"
	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// mockPortfolioService implements interfaces.PortfolioService for testing.
type mockPortfolioService struct {
	holdings []models.Holding
	added    *models.Holding
	userID   string
	update   models.HoldingUpdate
	err      error
}

func (m *mockPortfolioService) ListHoldings(_ context.Context, userID string) ([]models.Holding, error) {
	m.userID = userID
	return m.holdings, m.err
}

func (m *mockPortfolioService) AddHolding(_ context.Context, userID string, h models.Holding) (*models.Holding, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.userID = userID
	h.ID = "h-1"
	m.added = &h
	return &h, nil
}

func (m *mockPortfolioService) UpdateHolding(_ context.Context, _ string, id string, update models.HoldingUpdate) (*models.Holding, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.update = update
	return &models.Holding{ID: id, Quantity: *update.Quantity}, nil
}

func (m *mockPortfolioService) RemoveHolding(context.Context, string, string) error {
	return m.err
}

func (m *mockPortfolioService) GetPortfolioSummary(context.Context, string) (*models.PortfolioSummary, error) {
	return &models.PortfolioSummary{Metrics: models.PortfolioMetrics{TotalValue: 1234.5}}, m.err
}

type mockWatchlistService struct {
	items     []models.WatchlistItem
	removed   string
	assetType models.AssetType
	err       error
}

func (m *mockWatchlistService) GetWatchlist(context.Context, string) ([]models.WatchlistItem, error) {
	return m.items, m.err
}

func (m *mockWatchlistService) AddOrUpdateItem(_ context.Context, _ string, item models.WatchlistItem) (*models.WatchlistItem, error) {
	item.ID = "w-1"
	return &item, m.err
}

func (m *mockWatchlistService) RemoveItem(_ context.Context, _ string, symbol string, assetType models.AssetType) error {
	m.removed = symbol
	m.assetType = assetType
	return m.err
}

type mockValuationService struct {
	result *models.ValuationResult
	r      models.ValuationRange
}

func (m *mockValuationService) GetValuation(_ context.Context, _ string, r models.ValuationRange) (*models.ValuationResult, error) {
	m.r = r
	m.result.Range = r
	return m.result, nil
}

type mockAlertService struct{}

func (mockAlertService) Scan(context.Context, string) ([]models.PriceAlert, error) {
	return []models.PriceAlert{{Symbol: "AAPL", ChangePct: 10, Direction: models.DirectionUp}}, nil
}
func (mockAlertService) ResetNotified() {}

type testDeps struct {
	portfolio *mockPortfolioService
	watchlist *mockWatchlistService
	valuation *mockValuationService
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	config := common.NewDefaultConfig()
	config.Auth.DevUser = "alice"

	deps := &testDeps{
		portfolio: &mockPortfolioService{},
		watchlist: &mockWatchlistService{},
		valuation: &mockValuationService{result: &models.ValuationResult{Points: []models.ValuationPoint{
			{Date: "2024-01-01", Value: 100},
			{Date: "2024-01-02", Value: 120},
		}}},
	}
	a := &app.App{
		Config:           config,
		Logger:           common.NewSilentLogger(),
		PortfolioService: deps.portfolio,
		WatchlistService: deps.watchlist,
		ValuationService: deps.valuation,
		AlertService:     mockAlertService{},
	}
	return NewServer(a), deps
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHandleHoldings_ListEmpty(t *testing.T) {
	s, deps := newTestServer(t)

	rr := doRequest(t, s, http.MethodGet, "/api/holdings", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"holdings":[]}`, rr.Body.String())
	assert.Equal(t, "alice", deps.portfolio.userID)
}

func TestHandleHoldings_Create(t *testing.T) {
	s, deps := newTestServer(t)

	rr := doRequest(t, s, http.MethodPost, "/api/holdings", map[string]interface{}{
		"symbol": "AAPL", "asset_type": "stock", "quantity": 2, "purchase_price": 150, "purchase_date": "2024-01-02",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, deps.portfolio.added)
	assert.Equal(t, models.AssetStock, deps.portfolio.added.AssetType)
	assert.Equal(t, 2.0, deps.portfolio.added.Quantity)

	var got models.Holding
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, "h-1", got.ID)
}

func TestHandleHoldings_ValidationError(t *testing.T) {
	s, deps := newTestServer(t)
	deps.portfolio.err = fmt.Errorf("%w: quantity must be a positive number", interfaces.ErrInvalidInput)

	rr := doRequest(t, s, http.MethodPost, "/api/holdings", map[string]interface{}{"symbol": "AAPL"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "quantity")
}

func TestHandleHoldingItem_PatchAndDelete(t *testing.T) {
	s, deps := newTestServer(t)

	rr := doRequest(t, s, http.MethodPatch, "/api/holdings/h-9", map[string]interface{}{"quantity": 4})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, deps.portfolio.update.Quantity)
	assert.Nil(t, deps.portfolio.update.PurchasePrice)

	rr = doRequest(t, s, http.MethodDelete, "/api/holdings/h-9", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	deps.portfolio.err = fmt.Errorf("holding h-9: %w", interfaces.ErrNotFound)
	rr = doRequest(t, s, http.MethodDelete, "/api/holdings/h-9", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, s, http.MethodGet, "/api/holdings/h-9", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleWatchlist(t *testing.T) {
	s, deps := newTestServer(t)

	rr := doRequest(t, s, http.MethodGet, "/api/watchlist", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"items":[]}`, rr.Body.String())

	rr = doRequest(t, s, http.MethodPost, "/api/watchlist", map[string]interface{}{"symbol": "ETH", "asset_type": "crypto"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"w-1"`)

	rr = doRequest(t, s, http.MethodDelete, "/api/watchlist/ETH?asset_type=crypto", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "ETH", deps.watchlist.removed)
	assert.Equal(t, models.AssetCrypto, deps.watchlist.assetType)
}

func TestHandleValuation_RangeHandling(t *testing.T) {
	s, deps := newTestServer(t)

	rr := doRequest(t, s, http.MethodGet, "/api/portfolio/valuation", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.Range30D, deps.valuation.r)

	rr = doRequest(t, s, http.MethodGet, "/api/portfolio/valuation?range=1y", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.Range1Y, deps.valuation.r)

	var result models.ValuationResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	assert.Len(t, result.Points, 2)

	rr = doRequest(t, s, http.MethodGet, "/api/portfolio/valuation?range=5y", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleValuationChart(t *testing.T) {
	s, deps := newTestServer(t)

	rr := doRequest(t, s, http.MethodGet, "/api/portfolio/valuation/chart?range=7d", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))

	deps.valuation.result = &models.ValuationResult{Points: []models.ValuationPoint{}}
	rr = doRequest(t, s, http.MethodGet, "/api/portfolio/valuation/chart", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestHandlePortfolioSummary(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, http.MethodGet, "/api/portfolio/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var summary models.PortfolioSummary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&summary))
	assert.Equal(t, 1234.5, summary.Metrics.TotalValue)
}

func TestHandleAlertScan(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, http.MethodGet, "/api/alerts/scan", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = doRequest(t, s, http.MethodPost, "/api/alerts/scan", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"direction":"up"`)
}

func TestHandleSystemRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	rr := doRequest(t, s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = doRequest(t, s, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), common.GetVersion())

	rr = doRequest(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pulse_http_requests_total")
}

func TestServer_RequiresIdentityWithoutDevUser(t *testing.T) {
	s, _ := newTestServer(t)
	s.app.Config.Auth.DevUser = ""

	rr := doRequest(t, s, http.MethodGet, "/api/holdings", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := IssueToken(s.app.Config, "bob", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/holdings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
