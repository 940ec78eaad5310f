// Package redisstore хранит агрегаты JSON-строками в Redis; слияние через WATCH/MULTI.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Spok95/ada-portal/internal/connectivity"
	"github.com/Spok95/ada-portal/internal/metrics"
	"github.com/Spok95/ada-portal/internal/remote"
)

const mergeAttempts = 3

type Config struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

type Store struct {
	rdb       *goredis.Client
	namespace string
}

var _ remote.Store = (*Store)(nil)

func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("redis: %w: missing address", connectivity.ErrMissingStore)
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, wrap("ping", err)
	}
	return &Store{rdb: rdb, namespace: cfg.Namespace}, nil
}

func (s *Store) key(k string) string { return s.namespace + ":" + k }

func (s *Store) Get(ctx context.Context, key string) (remote.Document, bool, error) {
	t0 := time.Now()
	defer func() { metrics.ObserveRemote("redis_get", time.Since(t0)) }()

	raw, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get "+key, err)
	}
	doc, err := remote.Unmarshal(raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *Store) Put(ctx context.Context, key string, doc remote.Document, merge bool) error {
	t0 := time.Now()
	defer func() { metrics.ObserveRemote("redis_put", time.Since(t0)) }()

	k := s.key(key)
	if !merge {
		raw, err := remote.Marshal(doc)
		if err != nil {
			return err
		}
		return wrap("put "+key, s.rdb.Set(ctx, k, raw, 0).Err())
	}

	txf := func(tx *goredis.Tx) error {
		payload := doc
		prevRaw, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			prev, err := remote.Unmarshal(prevRaw)
			if err != nil {
				return err
			}
			payload = remote.Merge(prev, doc)
		}
		raw, err := remote.Marshal(payload)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, k, raw, 0)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < mergeAttempts; attempt++ {
		err = s.rdb.Watch(ctx, txf, k)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	return wrap("put "+key, err)
}

func (s *Store) Close() error { return s.rdb.Close() }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "NOPERM"):
		return fmt.Errorf("%s: %w: %w", op, connectivity.ErrPermission, err)
	case strings.HasPrefix(msg, "WRONGPASS"), strings.HasPrefix(msg, "NOAUTH"):
		return fmt.Errorf("%s: %w: %w", op, connectivity.ErrBlockedCredential, err)
	case strings.HasPrefix(msg, "LOADING"), strings.HasPrefix(msg, "MASTERDOWN"):
		return fmt.Errorf("%s: %w: %w", op, connectivity.ErrNetwork, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
