package series

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bobmcallan/pulse/internal/models"
)

const (
	dailySeriesField   = "Time Series (Daily)"
	monthlySeriesField = "Time Series (Monthly)"
	monthlySeriesAlias = "Monthly Time Series"
	closeField         = "4. close"
)

// ParseStockPayload reads a daily or monthly close-price payload. Entries
// with an invalid date or a close that is not a finite, non-negative number
// are dropped. An empty or unrecognised payload yields an empty series of
// kind GranularityUnknown; this never fails.
func ParseStockPayload(raw []byte) models.StockPayload {
	out := models.StockPayload{Kind: models.GranularityUnknown, Series: models.PriceSeries{}}
	if len(raw) == 0 {
		return out
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return out
	}

	var body json.RawMessage
	switch {
	case len(doc[dailySeriesField]) > 0:
		out.Kind, body = models.GranularityDaily, doc[dailySeriesField]
	case len(doc[monthlySeriesField]) > 0:
		out.Kind, body = models.GranularityMonthly, doc[monthlySeriesField]
	case len(doc[monthlySeriesAlias]) > 0:
		out.Kind, body = models.GranularityMonthly, doc[monthlySeriesAlias]
	default:
		return out
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return out
	}

	for date, rawEntry := range entries {
		if _, err := ParseDateKey(date); err != nil {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(rawEntry, &fields); err != nil {
			continue
		}
		if price, ok := toPrice(fields[closeField]); ok {
			out.Series[date] = price
		}
	}
	return out
}

// ParseStockSeries returns only the series of ParseStockPayload.
func ParseStockSeries(raw []byte) models.PriceSeries {
	return ParseStockPayload(raw).Series
}

// ParseCryptoSeries reads a {"prices": [[timestampMillis, price], ...]}
// payload. Samples are bucketed by UTC day; when several land on the same
// day the last one in payload order wins. Malformed pairs are dropped.
func ParseCryptoSeries(raw []byte) models.PriceSeries {
	out := models.PriceSeries{}
	if len(raw) == 0 {
		return out
	}

	var doc struct {
		Prices []json.RawMessage `json:"prices"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return out
	}

	for _, rawPair := range doc.Prices {
		var pair []any
		if err := json.Unmarshal(rawPair, &pair); err != nil || len(pair) < 2 {
			continue
		}
		ts, ok := toNumber(pair[0])
		if !ok || ts < 0 {
			continue
		}
		price, ok := toPrice(pair[1])
		if !ok {
			continue
		}
		out[DateKeyFromMillis(int64(ts))] = price
	}
	return out
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toPrice(v any) (float64, bool) {
	f, ok := toNumber(v)
	if !ok || f < 0 {
		return 0, false
	}
	return f, true
}
