package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

// ErrMonthRegression is returned when accrual runs for a month earlier than
// the last one applied (clock skew or out-of-order job).
var ErrMonthRegression = errors.New("accrual month is earlier than last accrual")

// InitialAccrual is the charge applied at enrollment: one month of every student.
func InitialAccrual(students []domain.Student, schedule *FeeSchedule) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, s := range students {
		fee, err := schedule.FeeFor(s.Level)
		if err != nil {
			return decimal.Zero, fmt.Errorf("student %s: %w", s.ID, err)
		}
		total = total.Add(fee)
	}
	return total, nil
}

// MonthlyAccrual charges one month for every active student of rep. Running
// it again for the same month is a no-op. It returns the amount charged; on
// error rep is left untouched.
func MonthlyAccrual(rep *domain.Representative, schedule *FeeSchedule, month domain.MonthKey) (decimal.Decimal, error) {
	if month.IsZero() {
		return decimal.Zero, fmt.Errorf("accrual month is required")
	}
	if rep.LastAccrualMonth == month {
		return decimal.Zero, nil
	}
	if month.Before(rep.LastAccrualMonth) {
		return decimal.Zero, fmt.Errorf("%w: representative %s at %s, asked for %s",
			ErrMonthRegression, rep.ID, rep.LastAccrualMonth, month)
	}

	charge := decimal.Zero
	for _, s := range rep.Students {
		if s.Withdrawn {
			continue
		}
		fee, err := schedule.FeeFor(s.Level)
		if err != nil {
			return decimal.Zero, fmt.Errorf("representative %s, student %s: %w", rep.ID, s.ID, err)
		}
		charge = charge.Add(fee)
	}

	rep.TotalAccruedDebt = rep.TotalAccruedDebt.Add(charge)
	rep.LastAccrualMonth = month
	return charge, nil
}
