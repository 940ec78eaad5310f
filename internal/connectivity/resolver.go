package connectivity

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/metrics"
)

// Значения-заглушки, с которыми в хранилище не ходим вовсе.
var builtinPlaceholders = []string{
	"TU_API_KEY_PENDIENTE",
	"YOUR_API_KEY",
	"CHANGE_ME",
	"CHANGEME",
	"PLACEHOLDER",
	"REPLACE_ME",
}

type Config struct {
	Project      string
	Credential   string
	Placeholders []string
}

func (c Config) placeholder() bool {
	cred := strings.ToUpper(strings.TrimSpace(c.Credential))
	if cred == "" {
		return false
	}
	for _, p := range append(builtinPlaceholders, c.Placeholders...) {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" && strings.Contains(cred, p) {
			return true
		}
	}
	return false
}

// OpenFunc получает дескриптор удалённого хранилища.
type OpenFunc func(ctx context.Context) error

// Resolver владеет состоянием связности на весь процесс.
// Состояние только понижается: вернуться в Ready можно лишь перезапуском.
type Resolver struct {
	log *zap.Logger

	once        sync.Once
	mu          sync.Mutex
	state       State
	onDowngrade func(State, error)
}

func NewResolver(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{log: log.Named("connectivity"), state: State{Kind: KindNone}}
	metrics.SetConnectivity(r.state.Status.String())
	return r
}

// OnDowngrade регистрирует хук на переход ready -> error. Вызывается синхронно, один раз.
func (r *Resolver) OnDowngrade(fn func(State, error)) {
	r.mu.Lock()
	r.onDowngrade = fn
	r.mu.Unlock()
}

// Initialize делает ровно одну попытку за время жизни процесса.
// Параллельные вызовы ждут её исхода, повторные возвращают текущее состояние.
func (r *Resolver) Initialize(ctx context.Context, cfg Config, open OpenFunc) State {
	r.once.Do(func() { r.initialize(ctx, cfg, open) })
	return r.State()
}

func (r *Resolver) initialize(ctx context.Context, cfg Config, open OpenFunc) State {
	if cfg.placeholder() {
		r.log.Warn("учётные данные хранилища — заглушка, удалённый доступ выключен", zap.String("project", cfg.Project))
		return r.set(State{Status: Failed, Kind: KindBlockedCredential})
	}

	if err := open(ctx); err != nil {
		kind := Classify(err)
		metrics.RemoteErrors.WithLabelValues(string(kind)).Inc()
		r.log.Error("хранилище недоступно при старте",
			zap.String("project", cfg.Project), zap.String("kind", string(kind)), zap.Error(err))
		return r.set(State{Status: Failed, Kind: kind})
	}

	r.log.Info("хранилище подключено", zap.String("project", cfg.Project))
	return r.set(State{Status: Ready, Kind: KindNone})
}

func (r *Resolver) set(st State) State {
	r.mu.Lock()
	r.state = st
	r.mu.Unlock()
	metrics.SetConnectivity(st.Status.String())
	return st
}

func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ErrorKind возвращает категорию отказа, либо KindNone.
func (r *Resolver) ErrorKind() Kind {
	st := r.State()
	if st.Status != Failed || st.Kind == "" {
		return KindNone
	}
	return st.Kind
}

// Report классифицирует отказ удалённой операции и понижает состояние.
// Отмена вызова самим клиентом отказом хранилища не считается.
func (r *Resolver) Report(err error) Kind {
	if err == nil {
		return r.ErrorKind()
	}
	if errors.Is(err, context.Canceled) {
		return r.ErrorKind()
	}
	kind := Classify(err)
	metrics.RemoteErrors.WithLabelValues(string(kind)).Inc()

	r.mu.Lock()
	prev := r.state
	if prev.Status == Failed && prev.Kind.sticky() {
		r.mu.Unlock()
		return prev.Kind
	}
	next := State{Status: Failed, Kind: kind}
	r.state = next
	hook := r.onDowngrade
	r.mu.Unlock()

	metrics.SetConnectivity(next.Status.String())
	if prev.Status == Ready {
		r.log.Warn("связность понижена", zap.String("kind", string(kind)), zap.Error(err))
		if hook != nil {
			hook(next, err)
		}
	} else if prev.Kind != kind {
		r.log.Info("категория отказа обновлена",
			zap.String("from", string(prev.Kind)), zap.String("to", string(kind)))
	}
	return kind
}

// Confirm фиксирует успешный удалённый вызов: пока состояние Ready, диагностика сбрасывается в none.
// В Ready из ошибки не поднимает.
func (r *Resolver) Confirm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Status == Ready {
		r.state.Kind = KindNone
	}
}
