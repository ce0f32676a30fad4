package series

import (
	"time"

	"github.com/bobmcallan/pulse/internal/models"
)

// MonthlyPoints is the number of first-of-month keys in a monthly calendar.
const MonthlyPoints = 12

// BuildDateRange returns days consecutive date keys ending at now's UTC
// date (inclusive), oldest first.
func BuildDateRange(now time.Time, days int) []string {
	if days <= 0 {
		return nil
	}

	n := now.UTC()
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)

	keys := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		keys = append(keys, ToDateKey(today.AddDate(0, 0, -i)))
	}
	return keys
}

// BuildMonthlyDateRange returns the first-of-month keys of the trailing 12
// months, current month included, oldest first.
func BuildMonthlyDateRange(now time.Time) []string {
	n := now.UTC()
	first := time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, time.UTC)

	keys := make([]string, 0, MonthlyPoints)
	for i := MonthlyPoints - 1; i >= 0; i-- {
		keys = append(keys, ToDateKey(first.AddDate(0, -i, 0)))
	}
	return keys
}

// BuildCalendar returns the evaluation grid for a range: monthly for the
// one-year view, daily otherwise.
func BuildCalendar(now time.Time, r models.ValuationRange) []string {
	if r.Monthly() {
		return BuildMonthlyDateRange(now)
	}
	return BuildDateRange(now, r.Days())
}
