// Package workdays provides business-day date arithmetic used by the
// follow-up scheduler and the distributed package delivery.
// This is part of the platform layer and contains no business logic.
package workdays

import "time"

// IsBusinessDay reports whether t falls on a weekday (Mon-Fri).
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// AddBusinessDays returns the date n business days after t. The start date
// itself never counts; weekends are skipped. A weekend start rolls forward
// to the next weekday before any increment is consumed, so Saturday plus
// three business days lands on Thursday. n must be >= 0.
func AddBusinessDays(t time.Time, n int) time.Time {
	if n <= 0 {
		return t
	}
	result := t
	for !IsBusinessDay(result) {
		result = result.AddDate(0, 0, 1)
	}
	for remaining := n; remaining > 0; {
		result = result.AddDate(0, 0, 1)
		if IsBusinessDay(result) {
			remaining--
		}
	}
	return result
}

// NextBusinessDay returns the first weekday strictly after t.
func NextBusinessDay(t time.Time) time.Time {
	result := t.AddDate(0, 0, 1)
	for !IsBusinessDay(result) {
		result = result.AddDate(0, 0, 1)
	}
	return result
}
