package portal

import (
	"context"

	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/models"
)

// RefreshSummaries пересчитывает денормализованные сводки прогресса аккаунтов
// и сохраняет список, только если что-то изменилось. Без связи ничего не делает.
func (s *Service) RefreshSummaries(ctx context.Context) (int, error) {
	if !s.Ready() {
		s.log.Debug("пересчёт сводок пропущен: хранилище недоступно")
		return 0, nil
	}

	unlock := s.admin.Lock("accounts")
	defer unlock()

	mods := s.store.Content(ctx)
	accounts := s.store.Accounts(ctx)
	next := make([]models.Account, len(accounts))
	changed := 0
	for i, a := range accounts {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !a.IsPrivileged() {
			sum := s.store.Progress(ctx, a.Email).Summary(mods)
			if sum != a.Progress {
				a.Progress = sum
				changed++
			}
		}
		next[i] = a
	}
	if changed == 0 {
		return 0, nil
	}
	if err := s.store.SaveAccounts(ctx, next); err != nil {
		return 0, err
	}
	s.log.Info("сводки прогресса обновлены", zap.Int("changed", changed))
	return changed, nil
}
