// Package gcsstore хранит каждый агрегат отдельным JSON-объектом в бакете Cloud Storage.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Spok95/ada-portal/internal/connectivity"
	"github.com/Spok95/ada-portal/internal/metrics"
	"github.com/Spok95/ada-portal/internal/remote"
)

const mergeAttempts = 3

type Config struct {
	Bucket    string
	Namespace string
	// EmulatorHost включает режим эмулятора без аутентификации.
	EmulatorHost string
	// Credentials — JSON сервисного аккаунта или путь к файлу; пусто — ADC.
	Credentials string
}

type Store struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	namespace string
}

var _ remote.Store = (*Store)(nil)

func clientOptions(cfg Config) []option.ClientOption {
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		return []option.ClientOption{option.WithoutAuthentication()}
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	creds := strings.TrimSpace(cfg.Credentials)
	switch {
	case creds == "":
	case strings.HasPrefix(creds, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	default:
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}

// Open создаёт клиента и проверяет, что бакет существует и доступен.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("gcs: %w: bucket name is empty", connectivity.ErrMissingStore)
	}
	client, err := storage.NewClient(ctx, clientOptions(cfg)...)
	if err != nil {
		return nil, wrap("new client", err)
	}
	bucket := client.Bucket(cfg.Bucket)
	if _, err := bucket.Attrs(ctx); err != nil {
		_ = client.Close()
		return nil, wrap("bucket attrs", err)
	}
	return &Store{client: client, bucket: bucket, namespace: cfg.Namespace}, nil
}

func (s *Store) object(key string) string {
	return path.Join(s.namespace, key+".json")
}

func (s *Store) Get(ctx context.Context, key string) (remote.Document, bool, error) {
	t0 := time.Now()
	defer func() { metrics.ObserveRemote("gcs_get", time.Since(t0)) }()

	doc, _, exists, err := s.read(ctx, s.bucket.Object(s.object(key)))
	if err != nil {
		return nil, false, wrap("get "+key, err)
	}
	return doc, exists, nil
}

func (s *Store) read(ctx context.Context, obj *storage.ObjectHandle) (remote.Document, int64, bool, error) {
	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	defer func() { _ = r.Close() }()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, false, err
	}
	doc, err := remote.Unmarshal(raw)
	if err != nil {
		return nil, 0, false, err
	}
	return doc, r.Attrs.Generation, true, nil
}

// Put со слиянием: читаем поколение объекта и пишем с предусловием,
// при гонке повторяем.
func (s *Store) Put(ctx context.Context, key string, doc remote.Document, merge bool) error {
	t0 := time.Now()
	defer func() { metrics.ObserveRemote("gcs_put", time.Since(t0)) }()

	var lastErr error
	for attempt := 0; attempt < mergeAttempts; attempt++ {
		obj := s.bucket.Object(s.object(key))
		payload := doc
		if merge {
			prev, gen, exists, err := s.read(ctx, obj)
			if err != nil {
				return wrap("put "+key, err)
			}
			if exists {
				payload = remote.Merge(prev, doc)
				obj = obj.If(storage.Conditions{GenerationMatch: gen})
			} else {
				obj = obj.If(storage.Conditions{DoesNotExist: true})
			}
		}
		lastErr = s.write(ctx, obj, payload)
		if lastErr == nil {
			return nil
		}
		if !merge || !preconditionFailed(lastErr) {
			break
		}
	}
	return wrap("put "+key, lastErr)
}

func (s *Store) write(ctx context.Context, obj *storage.ObjectHandle, doc remote.Document) error {
	raw, err := remote.Marshal(doc)
	if err != nil {
		return err
	}
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *Store) Close() error { return s.client.Close() }

func preconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%s: %w: %w", op, connectivity.ErrMissingStore, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("%s: %w: %w", op, connectivity.ErrMissingStore, err)
		case gerr.Code == http.StatusForbidden:
			return fmt.Errorf("%s: %w: %w", op, connectivity.ErrPermission, err)
		case gerr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %w", op, connectivity.ErrBlockedCredential, err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return fmt.Errorf("%s: %w: %w", op, connectivity.ErrNetwork, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
