// Package alphavantage provides a client for the Alpha Vantage stock API
package alphavantage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
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
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	providerName = "alphavantage"
)

// Client implements the StockHistoryClient interface
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	now        func() time.Time
}

var _ interfaces.StockHistoryClient = (*Client)(nil)

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

// NewClient creates a new Alpha Vantage client
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
		Name:        "AlphaVantage",
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

// APIError represents an API error. Alpha Vantage reports throttling and
// bad symbols with HTTP 200 and a message body, so StatusCode may be 200
// and Field names the body key that carried the message.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
	Field      string
}

// symbolRejected reports whether the provider refused this request's
// parameters rather than failing as a whole.
func (e *APIError) symbolRejected() bool {
	if e.Field == fieldErrorMessage {
		return true
	}
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// providerHealthy decides which errors count against the circuit breaker.
// Bad symbols and cancelled callers say nothing about the provider.
func providerHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.symbolRejected()
	}
	return false
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Alpha Vantage API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// messageFields are the top-level keys Alpha Vantage uses instead of data
// when a request is rejected.
var messageFields = []string{fieldErrorMessage, "Note", "Information"}

const fieldErrorMessage = "Error Message"

// get performs a rate-limited, circuit-broken GET against /query and
// returns the raw body.
func (c *Client) get(ctx context.Context, function string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("function", function)
	params.Set("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s/query?%s", c.baseURL, params.Encode())

	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		c.logger.Debug().Str("function", function).Str("symbol", params.Get("symbol")).Msg("Alpha Vantage API request")

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
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body), Endpoint: function}
		}

		if field, msg := rejectionMessage(body); msg != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, Endpoint: function, Field: field}
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

func rejectionMessage(body []byte) (string, string) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", ""
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return "", ""
	}
	for _, field := range messageFields {
		raw, ok := doc[field]
		if !ok {
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil || msg == "" {
			msg = field
		}
		return field, msg
	}
	return "", ""
}

// GetTimeSeries returns the raw daily or monthly close history for symbol.
func (c *Client) GetTimeSeries(ctx context.Context, symbol string, granularity models.Granularity, outputSize models.OutputSize) ([]byte, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(strings.TrimSpace(symbol)))

	var function string
	switch granularity {
	case models.GranularityDaily:
		function = "TIME_SERIES_DAILY"
		if outputSize == "" {
			outputSize = models.OutputCompact
		}
		params.Set("outputsize", string(outputSize))
	case models.GranularityMonthly:
		function = "TIME_SERIES_MONTHLY"
	default:
		return nil, fmt.Errorf("unsupported granularity %q", granularity)
	}

	return c.get(ctx, function, params)
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Price         string `json:"05. price"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// ErrUnknownSymbol is returned by GetQuote when the provider has no quote.
var ErrUnknownSymbol = errors.New("unknown symbol")

// GetQuote retrieves the latest price and daily change for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	params := url.Values{}
	params.Set("symbol", sym)

	body, err := c.get(ctx, "GLOBAL_QUOTE", params)
	if err != nil {
		return nil, err
	}

	var resp globalQuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode quote for %s: %w", sym, err)
	}
	if resp.GlobalQuote.Price == "" {
		return nil, fmt.Errorf("quote for %s: %w", sym, ErrUnknownSymbol)
	}

	price, err := strconv.ParseFloat(resp.GlobalQuote.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for %s: %w", resp.GlobalQuote.Price, sym, err)
	}
	changePct, _ := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(resp.GlobalQuote.ChangePercent), "%"), 64)

	return &models.Quote{
		Symbol:    sym,
		AssetType: models.AssetStock,
		Price:     price,
		ChangePct: changePct,
		Source:    providerName,
		Timestamp: c.now().UTC(),
	}, nil
}
