package ctxutil

import (
	"context"
	"time"
)

// приватные ключи, чтобы исключить коллизии
type key int

const (
	keyEmail key = iota
	keyOpName
	keyRequestID
)

// WithEmail /Email — прокидываем email аккаунта в контекст
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, keyEmail, email)
}

func Email(ctx context.Context) (string, bool) {
	v := ctx.Value(keyEmail)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// WithRequestID /RequestID — идентификатор HTTP-запроса
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestID(ctx context.Context) (string, bool) {
	v := ctx.Value(keyRequestID)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// WithOp /Op — имя операции (для логов/трейса)
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	v := ctx.Value(keyOpName)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// DefaultWriteTimeout — бюджет удалённой записи, если конфиг его не задал.
var DefaultWriteTimeout = 5 * time.Second

// WithTimeout — удобная обёртка над context.WithTimeout.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		// d<=0 — без таймаута
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// WithBudget — таймаут d, но не дольше остатка у родителя.
func WithBudget(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultWriteTimeout
	}
	if dl, ok := parent.Deadline(); ok {
		if remain := time.Until(dl); remain < d {
			return context.WithTimeout(parent, remain)
		}
	}
	return context.WithTimeout(parent, d)
}
