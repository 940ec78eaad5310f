package store

import (
	"context"

	"github.com/Spok95/ada-portal/internal/models"
)

const (
	KeyAccounts = "users"
	KeyContent  = "modules"
)

// ProgressKey — ключ документа прогресса аккаунта.
func ProgressKey(email string) string {
	return "progress_" + models.SanitizeEmail(email)
}

func (s *Store) accounts() collection[[]models.Account] {
	return collection[[]models.Account]{
		name:    "accounts",
		key:     KeyAccounts,
		field:   "list",
		timeout: s.timeouts.Accounts,
		surface: true,
		def:     func() []models.Account { return []models.Account{s.master} },
		normalize: func(list []models.Account) []models.Account {
			out, _ := models.EnsureMaster(list, s.master)
			return out
		},
	}
}

func (s *Store) content() collection[[]models.Module] {
	return collection[[]models.Module]{
		name:    "content",
		key:     KeyContent,
		field:   "list",
		timeout: s.timeouts.Content,
		surface: true,
		def:     func() []models.Module { return []models.Module{} },
		normalize: func(list []models.Module) []models.Module {
			if list == nil {
				return []models.Module{}
			}
			return list
		},
	}
}

func (s *Store) progress(email string) collection[models.ProgressMap] {
	return collection[models.ProgressMap]{
		name:    "progress",
		key:     ProgressKey(email),
		field:   "map",
		timeout: s.timeouts.Progress,
		def:     func() models.ProgressMap { return models.ProgressMap{} },
		normalize: func(m models.ProgressMap) models.ProgressMap {
			if m == nil {
				return models.ProgressMap{}
			}
			return m
		},
		overlay: func(local, remote models.ProgressMap) models.ProgressMap {
			return local.Merge(remote)
		},
	}
}

// Accounts всегда содержит привилегированный аккаунт, даже без связи и без кэша.
func (s *Store) Accounts(ctx context.Context) []models.Account {
	v, _ := load(ctx, s, s.accounts())
	return v
}

// SaveAccounts сохраняет список целиком. Отказ удалённой записи возвращается как *WriteError.
func (s *Store) SaveAccounts(ctx context.Context, accounts []models.Account) error {
	list, _ := models.EnsureMaster(accounts, s.master)
	return save(ctx, s, s.accounts(), list)
}

func (s *Store) Content(ctx context.Context) []models.Module {
	v, _ := load(ctx, s, s.content())
	return v
}

func (s *Store) SaveContent(ctx context.Context, modules []models.Module) error {
	if modules == nil {
		modules = []models.Module{}
	}
	return save(ctx, s, s.content(), modules)
}

// Progress — локальная карта, перекрытая удалённой.
func (s *Store) Progress(ctx context.Context, email string) models.ProgressMap {
	v, _ := load(ctx, s, s.progress(email))
	return v
}

// SaveProgress пишет кэш синхронно, удалённое хранилище — в фоне.
// Возвращает только ошибку локальной записи.
func (s *Store) SaveProgress(ctx context.Context, email string, m models.ProgressMap) error {
	if m == nil {
		m = models.ProgressMap{}
	}
	return save(ctx, s, s.progress(email), m)
}
