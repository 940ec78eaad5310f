package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/connectivity"
	"github.com/Spok95/ada-portal/internal/ctxutil"
	"github.com/Spok95/ada-portal/internal/metrics"
	"github.com/Spok95/ada-portal/internal/observability"
	"github.com/Spok95/ada-portal/internal/remote"
)

// collection описывает одну коллекцию: ключ документа, поле агрегата,
// бюджет чтения и значение по умолчанию.
type collection[T any] struct {
	name    string // метка метрик
	key     string // ключ документа и кэша
	field   string // "list" или "map"
	timeout time.Duration
	// surface: отказ удалённой записи возвращается вызывающему
	surface bool
	def     func() T
	// normalize применяется к любому результату чтения
	normalize func(T) T
	// overlay: локальное значение, перекрытое удалённым; nil — удалённое целиком
	overlay func(local, remote T) T
}

func (c collection[T]) finish(v T) T {
	if c.normalize != nil {
		return c.normalize(v)
	}
	return v
}

func (c collection[T]) reconcile(local T, hasLocal bool, remote T) T {
	if c.overlay != nil && hasLocal {
		return c.finish(c.overlay(local, remote))
	}
	return c.finish(remote)
}

type fetched struct {
	doc    remote.Document
	exists bool
	err    error
}

// fetch читает документ не дольше timeout. Поздний ответ выбрасывается.
func (s *Store) fetch(ctx context.Context, key string, timeout time.Duration) (remote.Document, bool, error) {
	ctx, cancel := ctxutil.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	ch := make(chan fetched, 1)
	go func() {
		doc, ok, err := s.remote.Get(ctx, key)
		ch <- fetched{doc: doc, exists: ok, err: err}
	}()

	select {
	case r := <-ch:
		metrics.ObserveRemote("get", time.Since(start))
		return r.doc, r.exists, r.err
	case <-ctx.Done():
		metrics.ObserveRemote("get", time.Since(start))
		return nil, false, fmt.Errorf("get %s: %w", key, ctx.Err())
	}
}

// push пишет документ с merge=true в тех же рамках, что и fetch.
func (s *Store) push(ctx context.Context, key string, doc remote.Document) error {
	ctx, cancel := ctxutil.WithBudget(ctx, s.timeouts.Write)
	defer cancel()

	start := time.Now()
	ch := make(chan error, 1)
	go func() { ch <- s.remote.Put(ctx, key, doc, true) }()

	select {
	case err := <-ch:
		metrics.ObserveRemote("put", time.Since(start))
		return err
	case <-ctx.Done():
		metrics.ObserveRemote("put", time.Since(start))
		return fmt.Errorf("put %s: %w", key, ctx.Err())
	}
}

// report передаёт отказ резолверу, если это не отмена со стороны вызывающего.
func (s *Store) report(caller context.Context, name string, err error) connectivity.Kind {
	if caller.Err() != nil {
		s.log.Debug("вызов отменён клиентом", zap.String("collection", name), zap.Error(err))
		return s.conn.ErrorKind()
	}
	kind := s.conn.Report(err)
	if kind == connectivity.KindUnknown {
		observability.CaptureTagged(err, map[string]string{"collection": name, "kind": string(kind)})
	}
	return kind
}

func readCache[T any](s *Store, c collection[T]) (T, bool) {
	var zero T
	raw, ok := s.cache.Get(c.key)
	if !ok {
		return zero, false
	}
	doc, err := remote.Unmarshal([]byte(raw))
	if err != nil {
		s.log.Warn("битая запись кэша", zap.String("collection", c.name), zap.Error(err))
		return zero, false
	}
	var v T
	found, err := doc.Decode(c.field, &v)
	if err != nil || !found {
		if err != nil {
			s.log.Warn("битая запись кэша", zap.String("collection", c.name), zap.Error(err))
		}
		return zero, false
	}
	return v, true
}

func writeCache[T any](s *Store, c collection[T], v T) (remote.Document, error) {
	doc, err := remote.Field(c.field, v)
	if err != nil {
		return nil, err
	}
	raw, err := remote.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(c.key, string(raw)); err != nil {
		return doc, err
	}
	return doc, nil
}

// load — чтение коллекции по порядку уровней. Ошибок наружу не отдаёт.
func load[T any](ctx context.Context, s *Store, c collection[T]) (T, Source) {
	local, hasLocal := readCache(s, c)

	fallback := func() (T, Source) {
		if hasLocal {
			metrics.StoreReads.WithLabelValues(c.name, CacheFallback.String()).Inc()
			return c.finish(local), CacheFallback
		}
		metrics.StoreReads.WithLabelValues(c.name, DefaultFallback.String()).Inc()
		return c.finish(c.def()), DefaultFallback
	}

	if !s.ready() {
		return fallback()
	}

	since := s.seq.Load()
	doc, exists, err := s.fetch(ctx, c.key, c.timeout)
	if err != nil {
		kind := s.report(ctx, c.name, err)
		s.log.Warn("чтение из хранилища не удалось, отдаём локальные данные",
			zap.String("collection", c.name), zap.String("kind", string(kind)), zap.Error(err))
		return fallback()
	}

	if !exists {
		def := c.def()
		s.bootstrap(ctx, c, def)
		v := writeBack(s, c, since, def)
		metrics.StoreReads.WithLabelValues(c.name, RemoteBootstrapped.String()).Inc()
		return v, RemoteBootstrapped
	}

	var rv T
	found, err := doc.Decode(c.field, &rv)
	if err != nil {
		// битый документ портит только эту коллекцию, связность не понижаем
		s.log.Error("документ в хранилище не разбирается",
			zap.String("collection", c.name), zap.Error(err))
		observability.CaptureTagged(fmt.Errorf("decode %s: %w", c.name, err),
			map[string]string{"collection": c.name})
		return fallback()
	}
	if !found {
		rv = c.def()
	}

	v := writeBack(s, c, since, rv)
	s.conn.Confirm()
	metrics.StoreReads.WithLabelValues(c.name, RemoteFresh.String()).Inc()
	return v, RemoteFresh
}

// writeBack сводит удалённое значение с актуальным кэшем и сохраняет итог в кэш.
// Если по ключу есть незавершённая фоновая запись или запись, поставленная после
// начала чтения (since), при совпадении ключей побеждает локальное значение.
func writeBack[T any](s *Store, c collection[T], since uint64, rv T) T {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	local, hasLocal := readCache(s, c)
	var v T
	if c.overlay != nil && hasLocal && s.localAhead(c.key, since) {
		v = c.finish(c.overlay(c.finish(rv), local))
	} else {
		v = c.reconcile(local, hasLocal, rv)
	}
	if _, err := writeCache(s, c, v); err != nil {
		s.log.Warn("не удалось обновить кэш", zap.String("collection", c.name), zap.Error(err))
	}
	return v
}

// localAhead вызывается под seqMu.
func (s *Store) localAhead(key string, since uint64) bool {
	staged := s.staged[key]
	return staged > since || s.settled[key] < staged
}

// bootstrap записывает значение по умолчанию при первом запуске. Отказ только логируется.
func (s *Store) bootstrap(ctx context.Context, c collectionMeta, v any) {
	doc, err := remote.Field(c.fieldName(), v)
	if err == nil {
		err = s.push(ctx, c.docKey(), doc)
	}
	if err != nil {
		metrics.StoreWrites.WithLabelValues(c.label(), "bootstrap_failed").Inc()
		s.log.Warn("первичная запись документа не удалась",
			zap.String("collection", c.label()), zap.Error(err))
		observability.CaptureTagged(fmt.Errorf("bootstrap %s: %w", c.label(), err),
			map[string]string{"collection": c.label()})
		return
	}
	metrics.StoreWrites.WithLabelValues(c.label(), "bootstrapped").Inc()
	s.log.Info("документ создан значением по умолчанию", zap.String("collection", c.label()))
}

// collectionMeta — нетипизированная часть коллекции.
type collectionMeta interface {
	label() string
	docKey() string
	fieldName() string
}

func (c collection[T]) label() string     { return c.name }
func (c collection[T]) docKey() string    { return c.key }
func (c collection[T]) fieldName() string { return c.field }

// save — запись: сначала локальный кэш, затем удалённое хранилище.
func save[T any](ctx context.Context, s *Store, c collection[T], v T) error {
	if !c.surface {
		return saveBackground(ctx, s, c, v)
	}

	doc, err := writeCache(s, c, v)
	if err != nil {
		return localFailed(s, c.name, err)
	}

	if !s.ready() {
		metrics.StoreWrites.WithLabelValues(c.name, "local_only").Inc()
		return &WriteError{Collection: c.name, Kind: s.conn.ErrorKind(), Err: ErrRemoteUnavailable}
	}

	if err := s.push(ctx, c.key, doc); err != nil {
		kind := s.report(ctx, c.name, err)
		metrics.StoreWrites.WithLabelValues(c.name, "remote_failed").Inc()
		s.log.Error("удалённая запись не удалась",
			zap.String("collection", c.name), zap.String("kind", string(kind)), zap.Error(err))
		return &WriteError{Collection: c.name, Kind: kind, Err: fmt.Errorf("%w: %w", ErrRemoteWriteFailed, err)}
	}
	s.conn.Confirm()
	metrics.StoreWrites.WithLabelValues(c.name, "remote_ok").Inc()
	return nil
}

func localFailed(s *Store, name string, err error) error {
	metrics.StoreWrites.WithLabelValues(name, "local_failed").Inc()
	s.log.Error("локальная запись не удалась", zap.String("collection", name), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrLocalWriteFailed, name, err)
}

// saveBackground пишет кэш и ставит удалённую запись в очередь одним шагом под seqMu,
// чтобы параллельное чтение не перезаписало кэш более старым значением.
func saveBackground[T any](ctx context.Context, s *Store, c collection[T], v T) error {
	s.seqMu.Lock()
	doc, err := writeCache(s, c, v)
	if err != nil {
		s.seqMu.Unlock()
		return localFailed(s, c.name, err)
	}
	if !s.ready() {
		s.seqMu.Unlock()
		metrics.StoreWrites.WithLabelValues(c.name, "local_only").Inc()
		return nil
	}
	seq := s.seq.Add(1)
	s.staged[c.key] = seq
	s.seqMu.Unlock()

	s.pushBackground(ctx, c.name, c.key, seq, doc)
	return nil
}

// pushBackground пишет документ без ожидания. Записи одного ключа идут по очереди;
// запись пропускается, если более новая уже завершилась или связность понижена.
func (s *Store) pushBackground(ctx context.Context, name, key string, seq uint64, doc remote.Document) {
	ctx = context.WithoutCancel(ctx)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		unlock := s.keys.Lock(key)
		defer unlock()
		defer s.settle(key, seq)

		s.seqMu.Lock()
		stale := s.settled[key] > seq
		s.seqMu.Unlock()
		if stale {
			metrics.StoreWrites.WithLabelValues(name, "superseded").Inc()
			return
		}
		if !s.ready() {
			metrics.StoreWrites.WithLabelValues(name, "local_only").Inc()
			return
		}

		if err := s.push(ctx, key, doc); err != nil {
			kind := s.report(ctx, name, err)
			metrics.StoreWrites.WithLabelValues(name, "remote_failed").Inc()
			s.log.Warn("фоновая запись не удалась",
				zap.String("collection", name), zap.String("kind", string(kind)), zap.Error(err))
			return
		}
		s.conn.Confirm()
		metrics.StoreWrites.WithLabelValues(name, "remote_ok").Inc()
	}()
}

func (s *Store) settle(key string, seq uint64) {
	s.seqMu.Lock()
	if s.settled[key] < seq {
		s.settled[key] = seq
	}
	s.seqMu.Unlock()
}

// IsWriteFailure — ошибка удалённой стороны записи (а не локального кэша).
func IsWriteFailure(err error) bool {
	return errors.Is(err, ErrRemoteWriteFailed) || errors.Is(err, ErrRemoteUnavailable)
}
