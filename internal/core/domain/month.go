package domain

import (
	"fmt"
	"time"
)

// MonthKey identifies an accrual month as "YYYY-MM".
type MonthKey string

const monthLayout = "2006-01"

// MonthOf returns the key of the month t falls in.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(t.Format(monthLayout))
}

// ParseMonthKey validates s as a "YYYY-MM" key.
func ParseMonthKey(s string) (MonthKey, error) {
	if _, err := time.Parse(monthLayout, s); err != nil {
		return "", fmt.Errorf("invalid month key %q: expected YYYY-MM", s)
	}
	return MonthKey(s), nil
}

func (m MonthKey) IsZero() bool { return m == "" }

// Before reports whether m is strictly earlier than other. Keys are
// zero-padded so lexical order is chronological.
func (m MonthKey) Before(other MonthKey) bool {
	return m < other
}
