package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

// ErrMissingFee is a configuration error: a level has no monthly fee.
var ErrMissingFee = errors.New("fee schedule has no fee for level")

// FeeSchedule maps each enrollment level to its monthly charge.
type FeeSchedule struct {
	fees map[domain.Level]decimal.Decimal
}

// NewFeeSchedule validates that every level has a non-negative fee.
func NewFeeSchedule(fees map[domain.Level]decimal.Decimal) (*FeeSchedule, error) {
	s := &FeeSchedule{fees: make(map[domain.Level]decimal.Decimal, len(domain.Levels))}
	for _, level := range domain.Levels {
		amount, ok := fees[level]
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrMissingFee, level)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("fee for %s is negative: %s", level, amount)
		}
		s.fees[level] = amount
	}
	return s, nil
}

// FeeFor returns the monthly fee of level. It never defaults to zero.
func (s *FeeSchedule) FeeFor(level domain.Level) (decimal.Decimal, error) {
	if s == nil {
		return decimal.Zero, fmt.Errorf("%w %s: schedule not configured", ErrMissingFee, level)
	}
	amount, ok := s.fees[level]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w %s", ErrMissingFee, level)
	}
	return amount, nil
}

// Set changes the fee of one level. Past accruals are not touched.
func (s *FeeSchedule) Set(level domain.Level, amount decimal.Decimal) error {
	if !level.Valid() {
		return fmt.Errorf("unknown level %q", level)
	}
	if amount.IsNegative() {
		return fmt.Errorf("fee for %s is negative: %s", level, amount)
	}
	s.fees[level] = amount.Round(domain.AmountPlaces)
	return nil
}

// Fees returns a copy of the schedule for snapshots.
func (s *FeeSchedule) Fees() map[domain.Level]decimal.Decimal {
	out := make(map[domain.Level]decimal.Decimal, len(s.fees))
	for k, v := range s.fees {
		out[k] = v
	}
	return out
}
