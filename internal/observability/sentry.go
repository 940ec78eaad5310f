package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Spok95/ada-portal/internal/ctxutil"
)

// InitSentry без DSN ничего не делает; возвращаемая функция дожидается отправки событий.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// CaptureTagged отправляет ошибку с тегами (collection, kind и т.п.).
func CaptureTagged(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CaptureRequest — как CaptureTagged, теги берутся из контекста HTTP-запроса.
func CaptureRequest(ctx context.Context, err error) {
	tags := map[string]string{}
	if id, ok := ctxutil.RequestID(ctx); ok {
		tags["request_id"] = id
	}
	if op, ok := ctxutil.Op(ctx); ok {
		tags["route"] = op
	}
	CaptureTagged(err, tags)
}
