package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
	"github.com/ojedapedro/colegiopay/internal/core/normalize"
	"github.com/ojedapedro/colegiopay/internal/core/reconcile"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := discardLogger()
	now := func() time.Time { return fixedNow }
	seq := 0
	return NewService(testSchedule(t), Options{
		Merger: reconcile.NewMerger(normalize.New(domain.Transfer, logger), now, logger),
		Now:    now,
		NewID: func() string {
			seq++
			return fmt.Sprintf("POS-%03d", seq)
		},
		Logger: logger,
	})
}

func enrollTestRep(t *testing.T, s *Service) domain.Representative {
	t.Helper()
	rep, err := s.Enroll(EnrollInput{
		ID:             "V-12345678",
		Name:           "Ana Pérez",
		EnrollmentCode: "MAT-001",
		Students: []domain.Student{
			{FullName: "Luis Pérez", Level: domain.Primary, Section: "A"},
			{FullName: "Eva Pérez", Level: domain.Nursery, Section: "B"},
		},
	})
	require.NoError(t, err)
	return rep
}

func TestService_Enroll(t *testing.T) {
	s := newTestService(t)

	t.Run("ok", func(t *testing.T) {
		rep := enrollTestRep(t, s)

		assert.True(t, rep.TotalAccruedDebt.Equal(amt("100")))
		assert.Equal(t, domain.MonthKey("2026-10"), rep.LastAccrualMonth)
		for _, st := range rep.Students {
			assert.NotEmpty(t, st.ID)
		}
	})

	t.Run("duplicate_id_any_spelling", func(t *testing.T) {
		_, err := s.Enroll(EnrollInput{ID: "12.345.678", Students: []domain.Student{{Level: domain.Primary}}})
		assert.ErrorIs(t, err, ErrDuplicateRepresentative)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := s.Enroll(EnrollInput{ID: "", Students: []domain.Student{{Level: domain.Primary}}})
		assert.Error(t, err)
		_, err = s.Enroll(EnrollInput{ID: "V-1"})
		assert.Error(t, err)
		_, err = s.Enroll(EnrollInput{ID: "V-1", Students: []domain.Student{{Level: "KINDER"}}})
		assert.Error(t, err)
	})
}

func TestService_PaymentLifecycle(t *testing.T) {
	// arrange
	s := newTestService(t)
	enrollTestRep(t, s)

	// act: cash settles immediately, zelle waits for review
	cash, err := s.RecordPayment("V-12345678", PaymentInput{Amount: amt("30"), Instrument: domain.Cash})
	require.NoError(t, err)
	zelle, err := s.RecordPayment("12345678", PaymentInput{Amount: amt("40"), Instrument: domain.Zelle, Reference: "ZX1"})
	require.NoError(t, err)

	// assert
	b, err := s.ComputeBalance("V-12345678")
	require.NoError(t, err)
	assert.True(t, b.VerifiedTotal.Equal(amt("30")))
	assert.True(t, b.InTransitTotal.Equal(amt("40")))
	assert.True(t, b.Outstanding.Equal(amt("70")))
	assert.True(t, zelle.PendingBalance.Equal(amt("30")))
	assert.Equal(t, domain.StatusVerified, cash.Status)

	t.Run("newest_first", func(t *testing.T) {
		payments := s.Payments("V-12345678")
		require.Len(t, payments, 2)
		assert.Equal(t, zelle.ID, payments[0].ID)
	})

	t.Run("reject_then_reactivate_then_verify", func(t *testing.T) {
		_, err := s.Transition(zelle.ID, ActionReject, "")
		assert.ErrorIs(t, err, ErrReasonRequired)

		rejected, err := s.Transition(zelle.ID, ActionReject, "not in bank statement")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, rejected.Status)
		b, _ := s.ComputeBalance("V-12345678")
		assert.True(t, b.InTransitTotal.IsZero())

		_, err = s.Transition(zelle.ID, ActionVerify, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
		stored, _ := s.Payment(zelle.ID)
		assert.Equal(t, domain.StatusRejected, stored.Status)

		_, err = s.Transition(zelle.ID, ActionReactivate, "")
		require.NoError(t, err)
		b, _ = s.ComputeBalance("V-12345678")
		assert.True(t, b.InTransitTotal.Equal(amt("40")))

		_, err = s.Transition(zelle.ID, ActionVerify, "")
		require.NoError(t, err)
		b, _ = s.ComputeBalance("V-12345678")
		assert.True(t, b.Outstanding.Equal(amt("30")))
		assert.True(t, b.InTransitTotal.IsZero())
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := s.Transition("POS-missing", ActionVerify, "")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.RecordPayment("V-999", PaymentInput{Amount: amt("1"), Instrument: domain.Cash})
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.ComputeBalance("V-999")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_MergeExternal(t *testing.T) {
	s := newTestService(t)
	enrollTestRep(t, s)
	batch := []map[string]any{
		{"Referencia": "R1", "Monto": "25,50", "Método": "Pago Móvil", "Cédula": "12.345.678"},
		{"Referencia": "R2", "Monto": "10", "Método": "Zelle", "Cédula": "V-55555555"},
		{"Referencia": "R3", "Monto": "10", "Método": "Zelle", "Estado": "Aprobado"},
	}

	fresh, report := s.MergeExternal(batch)

	require.Len(t, fresh, 2)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, "V-12345678", fresh[0].RepresentativeID)
	assert.Equal(t, "MAT-001", fresh[0].EnrollmentCode)
	assert.Equal(t, domain.Primary, fresh[0].Level)
	assert.True(t, fresh[0].PendingBalance.Equal(amt("74.50")))

	b, _ := s.ComputeBalance("V-12345678")
	assert.True(t, b.InTransitTotal.Equal(amt("25.50")))

	again, report := s.MergeExternal(batch)
	assert.Empty(t, again)
	assert.Equal(t, 2, report.Duplicates)
	assert.Len(t, s.Snapshot().Payments, 2)

	queue := s.ReviewQueue()
	require.Len(t, queue, 2)
	assert.Equal(t, domain.OriginVirtualOffice, queue[0].Origin())
}

func TestService_RunMonthlyAccrual(t *testing.T) {
	t.Run("idempotent_per_month", func(t *testing.T) {
		s := newTestService(t)
		enrollTestRep(t, s)

		first, err := s.RunMonthlyAccrual("2026-11")
		require.NoError(t, err)
		second, err := s.RunMonthlyAccrual("2026-11")
		require.NoError(t, err)

		assert.Equal(t, 1, first.Charged)
		assert.True(t, first.Total.Equal(amt("100")))
		assert.Equal(t, 0, second.Charged)
		rep, _ := s.Representative("V-12345678")
		assert.True(t, rep.TotalAccruedDebt.Equal(amt("200")))
	})

	t.Run("all_or_nothing", func(t *testing.T) {
		s := newTestService(t)
		enrollTestRep(t, s)
		require.NoError(t, s.Replace(func() domain.Snapshot {
			snap := s.Snapshot()
			snap.Representatives = append(snap.Representatives, domain.Representative{
				ID: "V-2", LastAccrualMonth: "2026-12", TotalAccruedDebt: amt("10"),
			})
			return snap
		}()))

		_, err := s.RunMonthlyAccrual("2026-11")

		assert.ErrorIs(t, err, ErrMonthRegression)
		rep, _ := s.Representative("V-12345678")
		assert.True(t, rep.TotalAccruedDebt.Equal(amt("100")), "first representative must not be charged")
	})
}

func TestService_ReplaceAndSnapshot(t *testing.T) {
	s := newTestService(t)
	enrollTestRep(t, s)

	t.Run("partial_fees_rejected", func(t *testing.T) {
		snap := s.Snapshot()
		delete(snap.Fees, domain.Secondary)
		err := s.Replace(snap)
		assert.ErrorIs(t, err, ErrMissingFee)
		assert.Len(t, s.Snapshot().Representatives, 1)
	})

	t.Run("empty_fees_keep_schedule", func(t *testing.T) {
		snap := s.Snapshot()
		snap.Fees = nil
		require.NoError(t, s.Replace(snap))
		assert.Len(t, s.Fees(), len(domain.Levels))
	})

	t.Run("snapshot_is_a_copy", func(t *testing.T) {
		snap := s.Snapshot()
		snap.Representatives[0].Name = "changed"
		rep, _ := s.Representative("V-12345678")
		assert.Equal(t, "Ana Pérez", rep.Name)
	})

	t.Run("set_fee", func(t *testing.T) {
		require.NoError(t, s.SetFee(domain.Primary, amt("75")))
		assert.True(t, s.Fees()[domain.Primary].Equal(amt("75")))
		assert.Error(t, s.SetFee(domain.Primary, amt("-1")))
	})
}

func TestService_ConcurrentReaders(t *testing.T) {
	s := newTestService(t)
	enrollTestRep(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.ComputeBalance("V-12345678")
			_ = s.ReviewQueue()
		}()
		go func(i int) {
			defer wg.Done()
			_, _ = s.MergeExternal([]map[string]any{{"Referencia": fmt.Sprintf("C%d", i), "Monto": "1", "Cedula": "12345678"}})
		}(i)
	}
	wg.Wait()

	b, err := s.ComputeBalance("V-12345678")
	require.NoError(t, err)
	// every goroutine used position 0 with a different reference
	assert.True(t, b.InTransitTotal.Equal(amt("8")))
}
