package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
	"github.com/ojedapedro/colegiopay/internal/core/ledger"
)

// RunAccrual charges the month containing now. Accrual is idempotent per
// month, so calling this on every tick is safe.
func RunAccrual(ctx context.Context, service *ledger.Service, syncer *Syncer, now time.Time) (ledger.AccrualReport, error) {
	report, err := service.RunMonthlyAccrual(domain.MonthOf(now))
	if err != nil {
		return report, err
	}
	if report.Charged > 0 && syncer != nil {
		if err := syncer.Push(ctx); err != nil {
			slog.Warn("⚠️ Accrual applied but not pushed", "month", report.Month, "error", err)
		}
	}
	return report, nil
}

// StartAccrualScheduler checks every interval whether a new month started.
func StartAccrualScheduler(ctx context.Context, service *ledger.Service, syncer *Syncer, interval time.Duration) {
	go func() {
		slog.Info("Scheduler started...", "interval", interval.String())
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if _, err := RunAccrual(ctx, service, syncer, now); err != nil {
					slog.Error("Error running monthly accrual", "error", err)
				}
			}
		}
	}()
}
