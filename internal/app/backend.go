package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/config"
	"github.com/Spok95/ada-portal/internal/remote"
	"github.com/Spok95/ada-portal/internal/remote/gcsstore"
	"github.com/Spok95/ada-portal/internal/remote/memstore"
	"github.com/Spok95/ada-portal/internal/remote/pgstore"
	"github.com/Spok95/ada-portal/internal/remote/redisstore"
)

// OpenRemote открывает удалённое хранилище выбранного бэкенда и проверяет доступ к нему.
func OpenRemote(ctx context.Context, sc config.StoreConfig, log *zap.Logger) (remote.Store, error) {
	switch sc.Backend {
	case "memory":
		log.Warn("удалённое хранилище в памяти процесса: данные не переживут перезапуск")
		return memstore.New(), nil

	case "postgres":
		st, err := pgstore.Open(ctx, sc.DatabaseURL, sc.Namespace)
		if err != nil {
			return nil, err
		}
		if sc.Migrate {
			if err := st.Migrate(ctx); err != nil {
				_ = st.Close()
				return nil, err
			}
			log.Info("миграции применены")
		}
		if err := st.Probe(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil

	case "gcs":
		creds := sc.CredentialsJSON
		if creds == "" {
			creds = sc.CredentialsFile
		}
		st, err := gcsstore.Open(ctx, gcsstore.Config{
			Bucket:       sc.GCSBucket,
			Namespace:    sc.Namespace,
			EmulatorHost: sc.EmulatorHost,
			Credentials:  creds,
		})
		if err != nil {
			return nil, err
		}
		return st, nil

	case "redis":
		st, err := redisstore.Open(ctx, redisstore.Config{
			Addr:      sc.RedisAddr,
			Password:  sc.RedisPassword,
			DB:        sc.RedisDB,
			Namespace: sc.Namespace,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}
