package portal

import (
	"context"

	"github.com/Spok95/ada-portal/internal/export"
	"github.com/Spok95/ada-portal/internal/models"
)

// Export собирает xlsx по всем аккаунтам и их прогрессу.
func (s *Service) Export(ctx context.Context) (*export.Workbook, error) {
	mods := s.store.Content(ctx)
	accounts := s.store.Accounts(ctx)
	progress := make(map[string]models.ProgressMap, len(accounts))
	for _, a := range accounts {
		progress[a.Email] = s.store.Progress(ctx, a.Email)
	}
	public := make([]models.Account, 0, len(accounts))
	for _, a := range accounts {
		public = append(public, a.Public())
	}
	return export.AccountsWorkbook(public, progress, mods)
}
