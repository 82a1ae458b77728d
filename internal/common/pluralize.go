// Package common: pluralize.go picks singular or plural nouns for
// counts shown to users ("1 day", "3 days").
package common

import "fmt"

// PluralizeDays returns "day" for ±1 and "days" otherwise.
func PluralizeDays(n int) string {
	return pluralize(int64(n), "day", "days")
}

// PluralizeMinutes returns "minute" for ±1 and "minutes" otherwise.
func PluralizeMinutes(n int64) string {
	return pluralize(n, "minute", "minutes")
}

// FormatMinutesAmount builds "+5 minutes" / "-1 minute".
// The sign is always shown.
//
// Examples:
//
//	FormatMinutesAmount(5)  → "+5 minutes"
//	FormatMinutesAmount(-1) → "-1 minute"
//	FormatMinutesAmount(0)  → "+0 minutes"
func FormatMinutesAmount(n int64) string {
	if n >= 0 {
		return fmt.Sprintf("+%d %s", n, PluralizeMinutes(n))
	}
	return fmt.Sprintf("%d %s", n, PluralizeMinutes(n))
}

func pluralize(n int64, one, many string) string {
	if n == 1 || n == -1 {
		return one
	}
	return many
}
