package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite хранит кэш в файле; ошибки чтения логируются и считаются промахом.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

var _ Cache = (*SQLite)(nil)

func OpenSQLite(path string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// один коннект: для :memory: каждое соединение — своя база
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv: %w", err)
	}
	log.Named("cache").Info("локальный кэш открыт", zap.String("path", path))
	return &SQLite{db: db, log: log.Named("cache")}, nil
}

func (c *SQLite) Get(key string) (string, bool) {
	var v string
	err := c.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		c.log.Warn("чтение кэша не удалось", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, true
}

func (c *SQLite) Set(key, value string) error {
	_, err := c.db.Exec(`
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *SQLite) Close() error { return c.db.Close() }
