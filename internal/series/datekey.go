// Package series turns provider price payloads into date-keyed price series
// and builds the calendars they are evaluated on. All date keys are UTC
// calendar dates formatted as YYYY-MM-DD, so they order lexically.
package series

import (
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/pulse/internal/models"
)

// DateKeyLayout is the canonical date key format.
const DateKeyLayout = "2006-01-02"

// ToDateKey formats t's UTC calendar date.
func ToDateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}

// DateKeyFromMillis converts an epoch-millisecond timestamp to a date key.
func DateKeyFromMillis(ms int64) string {
	return ToDateKey(time.UnixMilli(ms))
}

// NormalizeDateKey truncates an ISO date or date-time string to its date
// key. "2024-01-02", "2024-01-02T15:04:05Z" and "2024-01-02 15:04" all give
// "2024-01-02". The date part is taken as written, without zone conversion.
func NormalizeDateKey(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateKeyLayout) {
		return "", false
	}
	if len(s) > len(DateKeyLayout) && s[10] != 'T' && s[10] != ' ' {
		return "", false
	}
	t, err := time.Parse(DateKeyLayout, s[:len(DateKeyLayout)])
	if err != nil {
		return "", false
	}
	return t.Format(DateKeyLayout), true
}

// ParseDateKey parses a date key into midnight UTC.
func ParseDateKey(key string) (time.Time, error) {
	return time.Parse(DateKeyLayout, key)
}

// SortedKeys returns the series' date keys in ascending order.
func SortedKeys(s models.PriceSeries) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
