package jobs

import (
	"context"
	"time"
)

// SummaryRefresher пересчитывает сводки прогресса в списке аккаунтов.
type SummaryRefresher interface {
	Ready() bool
	RefreshSummaries(ctx context.Context) (int, error)
}

const SummaryRefreshJob = "summary_refresh"

func StartSummaryRefresh(r *Runner, interval time.Duration, svc SummaryRefresher) {
	if interval <= 0 {
		return
	}
	r.Every(interval, SummaryRefreshJob, func(ctx context.Context) error {
		if !svc.Ready() {
			return ErrSkipped
		}
		_, err := svc.RefreshSummaries(ctx)
		return err
	})
}
