// Package coingecko provides a client for the CoinGecko crypto price API
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

const (
	DefaultBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second

	providerName = "coingecko"
	apiKeyHeader = "x-cg-demo-api-key"
)

// Client implements the CryptoHistoryClient interface
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	now        func() time.Time
}

var _ interfaces.CryptoHistoryClient = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new CoinGecko client. The API key is optional; the
// public endpoint works without one at a lower rate limit.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "CoinGecko",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: providerHealthy,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("CoinGecko API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// providerHealthy decides which errors count against the circuit breaker.
// An unknown coin id or a cancelled caller says nothing about the provider.
func providerHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// get performs a rate-limited, circuit-broken GET and returns the raw body.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set(apiKeyHeader, c.apiKey)
		}

		c.logger.Debug().Str("path", path).Msg("CoinGecko API request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: path}
		}
		return body, nil
	})
	if err != nil {
		common.ProviderRequests.WithLabelValues(providerName, "error").Inc()
		return nil, err
	}

	common.ProviderRequests.WithLabelValues(providerName, "ok").Inc()
	return out.([]byte), nil
}

// GetMarketChart returns the raw {"prices": [[ms, price], ...]} history of
// coinID over the trailing days.
func (c *Client) GetMarketChart(ctx context.Context, coinID, vsCurrency string, days int) ([]byte, error) {
	coinID = strings.ToLower(strings.TrimSpace(coinID))
	if coinID == "" {
		return nil, fmt.Errorf("coin id is required")
	}
	if days <= 0 {
		days = 1
	}

	params := url.Values{}
	params.Set("vs_currency", strings.ToLower(vsCurrency))
	params.Set("days", strconv.Itoa(days))

	return c.get(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", params)
}

// GetSimplePrices fetches spot prices and 24h change for many coins in one
// request.
func (c *Client) GetSimplePrices(ctx context.Context, coinIDs []string, vsCurrency string) (map[string]models.Quote, error) {
	ids := normaliseIDs(coinIDs)
	if len(ids) == 0 {
		return map[string]models.Quote{}, nil
	}
	vs := strings.ToLower(vsCurrency)

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", vs)
	params.Set("include_24hr_change", "true")

	body, err := c.get(ctx, "/simple/price", params)
	if err != nil {
		return nil, err
	}

	var resp map[string]map[string]*float64
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode simple prices: %w", err)
	}

	now := c.now().UTC()
	quotes := make(map[string]models.Quote, len(resp))
	for id, fields := range resp {
		price := fields[vs]
		if price == nil {
			continue
		}
		q := models.Quote{
			Symbol:    id,
			AssetType: models.AssetCrypto,
			Price:     *price,
			Source:    providerName,
			Timestamp: now,
		}
		if change := fields[vs+"_24h_change"]; change != nil {
			q.ChangePct = *change
		}
		quotes[id] = q
	}
	return quotes, nil
}

func normaliseIDs(coinIDs []string) []string {
	seen := make(map[string]bool, len(coinIDs))
	ids := make([]string, 0, len(coinIDs))
	for _, id := range coinIDs {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
