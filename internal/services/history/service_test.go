package history

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

const dailyAAPL = `{"Time Series (Daily)": {"2024-01-02": {"4. close": "185.64"}, "2024-01-03": {"4. close": "184.25"}}}`
const dailyAAPLOld = `{"Time Series (Daily)": {"2023-12-29": {"4. close": "192.53"}}}`

// --- stubs ---

type stubStockClient struct {
	mu       sync.Mutex
	payloads map[string]string
	errs     map[string]error
	calls    map[string]int
	onFetch  func(symbol string)
	gate     chan struct{}
}

func newStubStockClient() *stubStockClient {
	return &stubStockClient{payloads: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (c *stubStockClient) GetTimeSeries(ctx context.Context, symbol string, _ models.Granularity, _ models.OutputSize) ([]byte, error) {
	c.mu.Lock()
	c.calls[symbol]++
	payload, err := c.payloads[symbol], c.errs[symbol]
	hook := c.onFetch
	c.mu.Unlock()

	if hook != nil {
		hook(symbol)
	}
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}

func (c *stubStockClient) GetQuote(context.Context, string) (*models.Quote, error) {
	return nil, errors.New("not implemented")
}

func (c *stubStockClient) callCount(symbol string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[symbol]
}

type stubCryptoClient struct {
	payload string
	err     error
	calls   int32
	days    int32

	// started is closed on the first call; gate holds calls until closed.
	started chan struct{}
	gate    chan struct{}
}

func (c *stubCryptoClient) GetMarketChart(ctx context.Context, _ string, _ string, days int) ([]byte, error) {
	if atomic.AddInt32(&c.calls, 1) == 1 && c.started != nil {
		close(c.started)
	}
	atomic.StoreInt32(&c.days, int32(days))
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return []byte(c.payload), nil
}

func (c *stubCryptoClient) GetSimplePrices(context.Context, []string, string) (map[string]models.Quote, error) {
	return nil, nil
}

type stubCache struct {
	mu      sync.Mutex
	entries map[string]*models.StockHistoricalCacheEntry
	puts    int
	gets    int
}

func newStubCache() *stubCache {
	return &stubCache{entries: map[string]*models.StockHistoricalCacheEntry{}}
}

func (c *stubCache) GetStockHistory(_ context.Context, symbol string) (*models.StockHistoricalCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	e, ok := c.entries[symbol]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (c *stubCache) PutStockHistory(_ context.Context, e *models.StockHistoricalCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	cp := *e
	c.entries[e.Symbol] = &cp
	return nil
}

func (c *stubCache) PurgeStockHistory(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = map[string]*models.StockHistoricalCacheEntry{}
	return n, nil
}

func (c *stubCache) get(symbol string) *models.StockHistoricalCacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[symbol]
}

var fixedNow = time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)

func newTestService(stocks *stubStockClient, crypto *stubCryptoClient, cache *stubCache) *Service {
	svc := NewService(stocks, crypto, cache, common.NewSilentLogger(), "USD")
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func stockRef(sym string) models.AssetRef {
	return models.AssetRef{AssetType: models.AssetStock, ID: sym}
}

func cryptoRef(id string) models.AssetRef {
	return models.AssetRef{AssetType: models.AssetCrypto, ID: id}
}

// --- tests ---

func TestFetchSeries_FreshCacheSkipsFetch(t *testing.T) {
	stocks := newStubStockClient()
	cache := newStubCache()
	cache.entries["AAPL"] = &models.StockHistoricalCacheEntry{
		Symbol:      "AAPL",
		Data:        []byte(dailyAAPL),
		OutputSize:  models.OutputCompact,
		Granularity: models.GranularityDaily,
		FetchedAt:   fixedNow.Add(-time.Hour).UnixMilli(),
	}
	svc := newTestService(stocks, &stubCryptoClient{}, cache)

	batch := svc.FetchSeries(context.Background(), []models.AssetRef{stockRef("AAPL")}, models.Range30D)

	assert.Equal(t, 0, stocks.callCount("AAPL"))
	assert.Empty(t, batch.Failed)
	assert.Equal(t, 185.64, batch.Series["stock:AAPL"]["2024-01-02"])
	assert.Equal(t, 0, cache.puts)
}

func TestFetchSeries_FullSatisfiesCompact(t *testing.T) {
	stocks := newStubStockClient()
	cache := newStubCache()
	cache.entries["AAPL"] = &models.StockHistoricalCacheEntry{
		Symbol: "AAPL", Data: []byte(dailyAAPL), OutputSize: models.OutputFull,
		Granularity: models.GranularityDaily, FetchedAt: fixedNow.Add(-time.Hour).UnixMilli(),
	}
	svc := newTestService(stocks, &stubCryptoClient{}, cache)

	svc.FetchSeries(context.Background(), []models.AssetRef{stockRef("AAPL")}, models.Range7D)

	assert.Equal(t, 0, stocks.callCount("AAPL"))
}

func TestFetchSeries_StaleCacheRefetchesAndWritesBack(t *testing.T) {
	stocks := newStubStockClient()
	stocks.payloads["AAPL"] = dailyAAPL
	cache := newStubCache()
	cache.entries["AAPL"] = &models.StockHistoricalCacheEntry{
		Symbol: "AAPL", Data: []byte(dailyAAPLOld), OutputSize: models.OutputCompact,
		Granularity: models.GranularityDaily, FetchedAt: fixedNow.Add(-25 * time.Hour).UnixMilli(),
	}
	svc := newTestService(stocks, &stubCryptoClient{}, cache)

	batch := svc.FetchSeries(context.Background(), []models.AssetRef{stockRef("aapl")}, models.Range30D)

	assert.Equal(t, 1, stocks.callCount("AAPL"))
	assert.Empty(t, batch.Failed)
	assert.Len(t, batch.Series["stock:AAPL"], 2)

	stored := cache.get("AAPL")
	require.NotNil(t, stored)
	assert.Equal(t, fixedNow.UnixMilli(), stored.FetchedAt)
	assert.Equal(t, models.OutputCompact, stored.OutputSize)
	assert.Equal(t, models.GranularityDaily, stored.Granularity)
	assert.JSONEq(t, dailyAAPL, string(stored.Data))
}

func TestFetchSeries_ExactlyTTLIsStale(t *testing.T) {
	stocks := newStubStockClient()
	stocks.payloads["AAPL"] = dailyAAPL
	cache := newStubCache()
	cache.entries["AAPL"] = &models.StockHistoricalCacheEntry{
		Symbol: "AAPL", Data: []byte(dailyAAPLOld), OutputSize: models.OutputCompact,
		Granularity: models.GranularityDaily, FetchedAt: fixedNow.Add(-24 * time.Hour).UnixMilli(),
	}
	svc := newTestService(stocks, &stubCryptoClient{}, cache)

	svc.FetchSeries(context.Background(), []models.AssetRef{stockRef("AAPL")}, models.Range30D)

	assert.Equal(t, 1, stocks.callCount("AAPL"))
}

func TestFetchSeries_GranularityMismatchRefetches(t *testing.T) {
	stocks := newStubStockClient()
	stocks.payloads["AAPL"] = `{"Time Series (Monthly)": {"2024-01-31": {"4. close": "184.40"}}}`
	cache := newStubCache()
	cache.entries["AAPL"] = &models.StockHistoricalCacheEntry{
		Symbol: "AAPL", Data: []byte(dailyAAPL), OutputSize: models.OutputCompact,
		Granularity: models.GranularityDaily, FetchedAt: fixedNow.Add(-time.Hour).UnixMilli(),
	}
	svc := newTestService(stocks, &stubCryptoClient{}, cache)

	batch := svc.FetchSeries(context.Background(), []models.AssetRef{stockRef("AAPL")}, models.Range1Y)

	assert.Equal(t, 1, stocks.callCount("AAPL"))
	assert.Equal(t, models.PriceSeries{"2024-01-31": 184.40}, batch.Series["stock:AAPL"])
	assert.Equal(t, models.GranularityMonthly, cache.get("AAPL").Granularity)
	assert.Equal(t, models.OutputFull, cache.get("AAPL").OutputSize)
}

func TestFetchSeries_FailureServesStalePlaceholder(t *testing.T) {
	stocks := newStubStockClient()
	stocks.errs["AAPL"] = errors.New("provider down")
	cache := newStubCache()
	cache.entries["AAPL"] = &models.StockHistoricalCacheEntry{
		Symbol: "AAPL", Data: []byte(dailyAAPLOld), OutputSize: models.OutputCompact,
		Granularity: models.GranularityDaily, FetchedAt: fixedNow.Add(-72 * time.Hour).UnixMilli(),
	}
	svc := newTestService(stocks, &stubCryptoClient{}, cache)

	batch := svc.FetchSeries(context.Background(), []models.AssetRef{stockRef("AAPL")}, models.Range30D)

	assert.Equal(t, []string{"stock:AAPL"}, batch.Failed)
	assert.Equal(t, models.PriceSeries{"2023-12-29": 192.53}, batch.Series["stock:AAPL"])
	assert.Equal(t, 0, cache.puts)
}

func TestFetchSeries_FailureWithoutCache(t *testing.T) {
	stocks := newStubStockClient()
	stocks.errs["AAPL"] = errors.New("provider down")
	stocks.payloads["MSFT"] = `{"Time Series (Daily)": {"2024-01-03": {"4. close": "370.60"}}}`
	crypto := &stubCryptoClient{payload: `{"prices": [[1704240000000, 43000]]}`}
	svc := newTestService(stocks, crypto, newStubCache())

	batch := svc.FetchSeries(context.Background(), []models.AssetRef{stockRef("AAPL"), stockRef("MSFT"), cryptoRef("bitcoin")}, models.Range7D)

	assert.Equal(t, []string{"stock:AAPL"}, batch.Failed)
	_, ok := batch.Series["stock:AAPL"]
	assert.False(t, ok)
	assert.Equal(t, 370.60, batch.Series["stock:MSFT"]["2024-01-03"])
	assert.Equal(t, 43000.0, batch.Series["crypto:bitcoin"]["2024-01-03"])
}

func TestWriteBack_DoesNotClobberFresherEntry(t *testing.T) {
	stocks := newStubStockClient()
	stocks.payloads["AAPL"] = dailyAAPLOld
	cache := newStubCache()
	fresher := &models.StockHistoricalCacheEntry{
		Symbol: "AAPL", Data: []byte(dailyAAPL), OutputSize: models.OutputCompact,
		Granularity: models.GranularityDaily, FetchedAt: fixedNow.Add(time.Minute).UnixMilli(),
	}
	// Another writer lands a fresher entry while our fetch is in flight.
	stocks.onFetch = func(string) {
		_ = cache.PutStockHistory(context.Background(), fresher)
	}
	svc := newTestService(stocks, &stubCryptoClient{}, cache)

	svc.FetchSeries(context.Background(), []models.AssetRef{stockRef("AAPL")}, models.Range30D)

	stored := cache.get("AAPL")
	assert.Equal(t, fresher.FetchedAt, stored.FetchedAt)
	assert.JSONEq(t, dailyAAPL, string(stored.Data))
	assert.Equal(t, 1, cache.puts)
}

func TestFetchSeries_UnrecognisedPayloadNotCached(t *testing.T) {
	stocks := newStubStockClient()
	stocks.payloads["AAPL"] = `{"unexpected": true}`
	cache := newStubCache()
	svc := newTestService(stocks, &stubCryptoClient{}, cache)

	batch := svc.FetchSeries(context.Background(), []models.AssetRef{stockRef("AAPL")}, models.Range30D)

	assert.Empty(t, batch.Failed)
	assert.Empty(t, batch.Series["stock:AAPL"])
	assert.Nil(t, cache.get("AAPL"))
}

func TestFetchSeries_CryptoBypassesCache(t *testing.T) {
	crypto := &stubCryptoClient{payload: `{"prices": [[1704153600000, 42000], [1704240000000, 43000]]}`}
	cache := newStubCache()
	svc := newTestService(newStubStockClient(), crypto, cache)

	batch := svc.FetchSeries(context.Background(), []models.AssetRef{cryptoRef("bitcoin"), cryptoRef("bitcoin")}, models.Range90D)

	assert.Equal(t, int32(1), atomic.LoadInt32(&crypto.calls))
	assert.Equal(t, int32(90), atomic.LoadInt32(&crypto.days))
	assert.Len(t, batch.Series["crypto:bitcoin"], 2)
	assert.Equal(t, 0, cache.gets)
	assert.Equal(t, 0, cache.puts)
}

func TestFetchSeries_CryptoFailure(t *testing.T) {
	crypto := &stubCryptoClient{err: errors.New("429")}
	svc := newTestService(newStubStockClient(), crypto, newStubCache())

	batch := svc.FetchSeries(context.Background(), []models.AssetRef{cryptoRef("ethereum")}, models.Range7D)

	assert.Equal(t, []string{"crypto:ethereum"}, batch.Failed)
	assert.Empty(t, batch.Series)
}

func TestFetchSeries_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	crypto := &stubCryptoClient{
		payload: `{"prices": [[1704153600000, 42000.5]]}`,
		started: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	svc := newTestService(newStubStockClient(), crypto, newStubCache())
	assets := []models.AssetRef{cryptoRef("bitcoin")}

	ctxA, cancelA := context.WithCancel(context.Background())
	resultA := make(chan *models.SeriesBatch, 1)
	go func() { resultA <- svc.FetchSeries(ctxA, assets, models.Range30D) }()
	<-crypto.started

	resultB := make(chan *models.SeriesBatch, 1)
	go func() { resultB <- svc.FetchSeries(context.Background(), assets, models.Range30D) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	batchA := <-resultA
	assert.Equal(t, []string{"crypto:bitcoin"}, batchA.Failed)

	close(crypto.gate)
	batchB := <-resultB
	assert.Empty(t, batchB.Failed)
	assert.Len(t, batchB.Series["crypto:bitcoin"], 1)
}

func TestFetchSeries_CancelledCallerStillCachesStock(t *testing.T) {
	stocks := newStubStockClient()
	stocks.payloads["AAPL"] = dailyAAPL
	stocks.gate = make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	stocks.onFetch = func(string) { once.Do(func() { close(started) }) }
	cache := newStubCache()
	svc := newTestService(stocks, &stubCryptoClient{}, cache)
	assets := []models.AssetRef{stockRef("AAPL")}

	ctxA, cancelA := context.WithCancel(context.Background())
	resultA := make(chan *models.SeriesBatch, 1)
	go func() { resultA <- svc.FetchSeries(ctxA, assets, models.Range30D) }()
	<-started

	resultB := make(chan *models.SeriesBatch, 1)
	go func() { resultB <- svc.FetchSeries(context.Background(), assets, models.Range30D) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.Equal(t, []string{"stock:AAPL"}, (<-resultA).Failed)

	close(stocks.gate)
	batchB := <-resultB
	assert.Empty(t, batchB.Failed)
	assert.Len(t, batchB.Series["stock:AAPL"], 2)
	require.NotNil(t, cache.get("AAPL"))
}

func TestFetchSeries_UnsupportedAssetType(t *testing.T) {
	svc := newTestService(newStubStockClient(), &stubCryptoClient{}, newStubCache())

	batch := svc.FetchSeries(context.Background(), []models.AssetRef{{AssetType: "bond", ID: "X"}}, models.Range7D)

	assert.Equal(t, []string{"bond:X"}, batch.Failed)
}

func TestOutputSizeFor(t *testing.T) {
	assert.Equal(t, models.OutputCompact, OutputSizeFor(models.Range90D))
	assert.Equal(t, models.OutputFull, OutputSizeFor(models.Range1Y))
}

func TestWarmStockHistory(t *testing.T) {
	stocks := newStubStockClient()
	stocks.payloads["AAPL"] = dailyAAPL
	cache := newStubCache()
	svc := newTestService(stocks, &stubCryptoClient{}, cache)

	batch := svc.WarmStockHistory(context.Background(), []string{" aapl "}, models.Range30D)

	assert.Empty(t, batch.Failed)
	assert.NotNil(t, cache.get("AAPL"))
}
