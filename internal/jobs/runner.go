package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/observability"
)

type Job func(ctx context.Context) error

// ErrSkipped — задача решила не выполняться в этот тик; не считается ошибкой.
var ErrSkipped = errors.New("job skipped")

type Runner struct {
	ctx context.Context
	log *zap.Logger
}

func New(ctx context.Context, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{ctx: ctx, log: log.Named("jobs")}
}

func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				r.run(name, fn)
			}
		}
	}()
}

// run выполняет один прогон задачи; паника не роняет цикл.
func (r *Runner) run(name string, fn Job) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			jobErrors.WithLabelValues(name).Inc()
			err := fmt.Errorf("panic in job %s: %v", name, rec)
			r.log.Error("паника в фоновой задаче", zap.String("job", name), zap.Error(err))
			observability.CaptureErr(err)
		}
		jobRuns.WithLabelValues(name).Inc()
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	err := fn(r.ctx)
	switch {
	case err == nil:
		jobLastSuccess.WithLabelValues(name).SetToCurrentTime()
	case errors.Is(err, ErrSkipped):
		jobSkipped.WithLabelValues(name).Inc()
		r.log.Debug("фоновая задача пропущена", zap.String("job", name))
	default:
		jobErrors.WithLabelValues(name).Inc()
		r.log.Warn("фоновая задача завершилась с ошибкой", zap.String("job", name), zap.Error(err))
	}
}
