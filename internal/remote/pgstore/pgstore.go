// Package pgstore хранит агрегаты как JSONB-строки в Postgres: одна строка на (namespace, key).
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Spok95/ada-portal/internal/connectivity"
	"github.com/Spok95/ada-portal/internal/metrics"
	"github.com/Spok95/ada-portal/internal/remote"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	pool      *pgxpool.Pool
	namespace string
}

var _ remote.Store = (*Store)(nil)

// Open подключается и проверяет, что таблица документов существует:
// отсутствующая схема классифицируется как missing_store уже при старте.
func Open(ctx context.Context, dsn, namespace string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, wrap("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrap("ping", err)
	}
	return &Store{pool: pool, namespace: namespace}, nil
}

// Probe проверяет наличие таблицы документов.
func (s *Store) Probe(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `SELECT 1 FROM portal_documents LIMIT 0`)
	return wrap("probe", err)
}

// Migrate накатывает встроенные миграции goose через пул.
func (s *Store) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer func() { _ = db.Close() }()
	return MigrateDB(ctx, db)
}

func MigrateDB(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (remote.Document, bool, error) {
	t0 := time.Now()
	defer func() { metrics.ObserveRemote("pg_get", time.Since(t0)) }()

	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM portal_documents WHERE namespace = $1 AND key = $2`,
		s.namespace, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap("get "+key, err)
	}
	doc, err := remote.Unmarshal(body)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

const upsert = `
INSERT INTO portal_documents (namespace, key, body, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (namespace, key) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`

func (s *Store) Put(ctx context.Context, key string, doc remote.Document, merge bool) error {
	t0 := time.Now()
	defer func() { metrics.ObserveRemote("pg_put", time.Since(t0)) }()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if merge {
			var body []byte
			err := tx.QueryRow(ctx,
				`SELECT body FROM portal_documents WHERE namespace = $1 AND key = $2 FOR UPDATE`,
				s.namespace, key).Scan(&body)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
			case err != nil:
				return err
			default:
				prev, err := remote.Unmarshal(body)
				if err != nil {
					return err
				}
				doc = remote.Merge(prev, doc)
			}
		}
		raw, err := remote.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, upsert, s.namespace, key, string(raw))
		return err
	})
	return wrap("put "+key, err)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// wrap навешивает сентинел связности по коду Postgres.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42P01" || pgErr.Code == "3D000":
			return fmt.Errorf("%s: %w: %w", op, connectivity.ErrMissingStore, err)
		case pgErr.Code == "42501":
			return fmt.Errorf("%s: %w: %w", op, connectivity.ErrPermission, err)
		case pgErr.Code == "28P01" || pgErr.Code == "28000":
			return fmt.Errorf("%s: %w: %w", op, connectivity.ErrBlockedCredential, err)
		case strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01" || pgErr.Code == "57P03":
			return fmt.Errorf("%s: %w: %w", op, connectivity.ErrNetwork, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %w", op, connectivity.ErrNetwork, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
