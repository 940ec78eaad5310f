package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Spok95/ada-portal/internal/ctxutil"
)

type Log struct {
	Base   *zap.Logger
	Sugar  *zap.SugaredLogger
	Level  zap.AtomicLevel
	Closer func()
}

// ServiceName добавляется полем "service" к каждой записи.
const ServiceName = "ada-portal"

func newConfig(env string, lvl zap.AtomicLevel) zap.Config {
	cfg := zap.NewDevelopmentConfig()
	if strings.EqualFold(env, "prod") {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 50}
	}
	cfg.Level = lvl
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

// Init собирает логгер; нераспознанный уровень превращается в info.
func Init(level, env string) (*Log, error) {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	base, err := newConfig(env, lvl).Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return nil, err
	}
	base = base.With(zap.String("service", ServiceName))
	return &Log{
		Base:   base,
		Sugar:  base.Sugar(),
		Level:  lvl,
		Closer: func() { _ = base.Sync() },
	}, nil
}

// FromContext добавляет к логгеру request_id, op и скрытый email из контекста запроса.
func FromContext(ctx context.Context, log *zap.Logger) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	fields := make([]zap.Field, 0, 3)
	if id, ok := ctxutil.RequestID(ctx); ok {
		fields = append(fields, zap.String("request_id", id))
	}
	if op, ok := ctxutil.Op(ctx); ok {
		fields = append(fields, zap.String("op", op))
	}
	if email, ok := ctxutil.Email(ctx); ok {
		fields = append(fields, Email(email))
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// Email — поле лога с частично скрытым адресом: "an***@corp.com".
func Email(email string) zap.Field {
	return zap.String("email", MaskEmail(email))
}

func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	local, domain := email[:at], email[at:]
	keep := 2
	if len(local) <= keep {
		keep = 1
	}
	return local[:keep] + "***" + domain
}
