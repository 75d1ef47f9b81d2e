package ledger

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func amt(s string) decimal.Decimal { return domain.MustAmount(s) }

func testFees() map[domain.Level]decimal.Decimal {
	return map[domain.Level]decimal.Decimal{
		domain.Nursery:   amt("40"),
		domain.Preschool: amt("50"),
		domain.Primary:   amt("60"),
		domain.Secondary: amt("70"),
	}
}

func testSchedule(t *testing.T) *FeeSchedule {
	t.Helper()
	s, err := NewFeeSchedule(testFees())
	require.NoError(t, err)
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRep(debt string) domain.Representative {
	return domain.Representative{
		ID:               "V-12345678",
		Name:             "Ana Pérez",
		EnrollmentCode:   "MAT-001",
		Students:         []domain.Student{{ID: "s1", FullName: "Luis Pérez", Level: domain.Primary, Section: "A"}},
		TotalAccruedDebt: amt(debt),
		LastAccrualMonth: "2026-09",
	}
}
