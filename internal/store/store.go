// Package store — фасад чтения/записи агрегатов поверх трёх уровней:
// удалённое хранилище, локальный кэш, значение по умолчанию в памяти.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/cache"
	"github.com/Spok95/ada-portal/internal/connectivity"
	"github.com/Spok95/ada-portal/internal/keylock"
	"github.com/Spok95/ada-portal/internal/models"
	"github.com/Spok95/ada-portal/internal/remote"
)

var (
	ErrRemoteWriteFailed = errors.New("remote write failed")
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrLocalWriteFailed  = errors.New("local cache write failed")
)

// WriteError — отказ удалённой записи Accounts/Content. Локальная запись к этому моменту уже сделана.
type WriteError struct {
	Collection string
	Kind       connectivity.Kind
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v (kind=%s)", e.Collection, e.Err, e.Kind)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Source — откуда фактически взято значение при чтении.
type Source int

const (
	RemoteFresh Source = iota
	RemoteBootstrapped
	CacheFallback
	DefaultFallback
)

func (s Source) String() string {
	switch s {
	case RemoteFresh:
		return "remote_fresh"
	case RemoteBootstrapped:
		return "remote_bootstrapped"
	case CacheFallback:
		return "cache_fallback"
	default:
		return "default_fallback"
	}
}

// Timeouts — бюджеты удалённых вызовов по коллекциям.
type Timeouts struct {
	Accounts time.Duration
	Content  time.Duration
	Progress time.Duration
	Write    time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Accounts: 3 * time.Second,
		Content:  3 * time.Second,
		Progress: 1200 * time.Millisecond,
		Write:    5 * time.Second,
	}
}

type Config struct {
	// Remote может быть nil, если хранилище не удалось открыть.
	Remote   remote.Store
	Cache    cache.Cache
	Resolver *connectivity.Resolver
	// Master — синтезированный привилегированный аккаунт из конфига.
	Master   models.Account
	Timeouts Timeouts
	Log      *zap.Logger
}

type Store struct {
	remote   remote.Store
	cache    cache.Cache
	conn     *connectivity.Resolver
	master   models.Account
	timeouts Timeouts
	log      *zap.Logger

	// фоновые записи прогресса
	bg   sync.WaitGroup
	seq  atomic.Uint64
	keys *keylock.Map[string]
	// seqMu также сериализует записи в кэш для ключей с фоновой записью
	seqMu sync.Mutex
	// staged — последняя поставленная в очередь запись ключа, settled — последняя завершённая
	staged  map[string]uint64
	settled map[string]uint64
}

func New(cfg Config) *Store {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := cfg.Cache
	if c == nil {
		c = cache.NewMemory()
	}
	t := cfg.Timeouts
	def := DefaultTimeouts()
	if t.Accounts <= 0 {
		t.Accounts = def.Accounts
	}
	if t.Content <= 0 {
		t.Content = def.Content
	}
	if t.Progress <= 0 {
		t.Progress = def.Progress
	}
	if t.Write <= 0 {
		t.Write = def.Write
	}
	master := cfg.Master
	master.Role = models.SuperAdmin
	return &Store{
		remote:   cfg.Remote,
		cache:    c,
		conn:     cfg.Resolver,
		master:   master,
		timeouts: t,
		log:      log.Named("store"),
		keys:     keylock.New[string](),
		staged:   make(map[string]uint64),
		settled:  make(map[string]uint64),
	}
}

func (s *Store) Master() models.Account { return s.master }

func (s *Store) Resolver() *connectivity.Resolver { return s.conn }

// Cache отдаёт локальный кэш для данных, которые никогда не уходят в удалённое хранилище.
func (s *Store) Cache() cache.Cache { return s.cache }

func (s *Store) ready() bool {
	return s.remote != nil && s.conn != nil && s.conn.State().Ready()
}

// Wait дожидается фоновых записей прогресса или отмены ctx.
func (s *Store) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
