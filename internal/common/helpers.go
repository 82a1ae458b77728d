// Package common contains utilities used across the project:
// pluralization, minute formatting and the JSON response helpers.
package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FormatMinutes renders a minute count the way notifications show it.
// Whole values drop the fraction: 12 → "12m", 2.5 → "2.5m".
//
// Examples:
//
//	FormatMinutes(decimal.NewFromInt(12))      → "12m"
//	FormatMinutes(decimal.RequireFromString("2.5")) → "2.5m"
func FormatMinutes(m decimal.Decimal) string {
	return m.String() + "m"
}

// FormatDateTime formats t as "2006-01-02 15:04:05 UTC" for notification texts.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

// FormatDate formats a calendar date as YYYY-MM-DD, "" for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// Truncate shortens s to n runes and appends "..." when it was cut.
// Used for log fields that carry free text.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s...", string(r[:n]))
}
