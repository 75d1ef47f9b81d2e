package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

func TestNewFeeSchedule(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s, err := NewFeeSchedule(testFees())
		require.NoError(t, err)

		for _, level := range domain.Levels {
			fee, err := s.FeeFor(level)
			assert.NoError(t, err)
			assert.False(t, fee.IsNegative())
		}
	})

	t.Run("missing_level_is_config_error", func(t *testing.T) {
		fees := testFees()
		delete(fees, domain.Secondary)

		s, err := NewFeeSchedule(fees)

		assert.Nil(t, s)
		assert.ErrorIs(t, err, ErrMissingFee)
	})

	t.Run("negative_fee", func(t *testing.T) {
		fees := testFees()
		fees[domain.Nursery] = amt("-1")

		_, err := NewFeeSchedule(fees)
		assert.Error(t, err)
	})

	t.Run("zero_fee_is_allowed_when_explicit", func(t *testing.T) {
		fees := testFees()
		fees[domain.Nursery] = amt("0")

		s, err := NewFeeSchedule(fees)
		require.NoError(t, err)
		fee, err := s.FeeFor(domain.Nursery)
		assert.NoError(t, err)
		assert.True(t, fee.IsZero())
	})
}

func TestFeeSchedule_FeeFor(t *testing.T) {
	s := testSchedule(t)

	_, err := s.FeeFor("KINDER")
	assert.ErrorIs(t, err, ErrMissingFee)

	var unset *FeeSchedule
	_, err = unset.FeeFor(domain.Primary)
	assert.ErrorIs(t, err, ErrMissingFee)
}

func TestFeeSchedule_Set(t *testing.T) {
	s := testSchedule(t)

	require.NoError(t, s.Set(domain.Primary, amt("65")))
	fee, _ := s.FeeFor(domain.Primary)
	assert.True(t, fee.Equal(amt("65")))

	assert.Error(t, s.Set(domain.Primary, amt("-5")))
	assert.Error(t, s.Set("KINDER", amt("5")))

	fees := s.Fees()
	fees[domain.Primary] = amt("1")
	fee, _ = s.FeeFor(domain.Primary)
	assert.True(t, fee.Equal(amt("65")), "Fees must return a copy")
}
