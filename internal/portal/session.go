package portal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/auth"
	"github.com/Spok95/ada-portal/internal/logging"
	"github.com/Spok95/ada-portal/internal/models"
)

type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Account   models.Account `json:"account"`
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	accounts := s.store.Accounts(ctx)
	acc, err := auth.Authenticate(accounts, s.store.Master(), s.verifier, email, password)
	if err != nil {
		s.log.Info("неудачный вход", logging.Email(email), zap.Error(err))
		return LoginResult{}, err
	}
	token, exp, err := s.sessions.Issue(acc)
	if err != nil {
		return LoginResult{}, err
	}
	s.log.Info("вход", logging.Email(acc.Email), zap.String("role", string(acc.Role)))
	return LoginResult{Token: token, ExpiresAt: exp, Account: acc.Public()}, nil
}

// Session восстанавливает аккаунт по токену: токен валиден и аккаунт всё ещё существует
// (привилегированный существует всегда).
func (s *Service) Session(ctx context.Context, token string) (models.Account, error) {
	claims, err := s.sessions.Parse(token)
	if err != nil {
		return models.Account{}, err
	}
	master := s.store.Master()
	accounts := s.store.Accounts(ctx)
	acc, _, ok := models.FindAccount(accounts, claims.Subject)
	if models.SameEmail(claims.Subject, master.Email) {
		if !ok {
			acc = master
		}
		acc.Role = models.SuperAdmin
		return acc.Public(), nil
	}
	if !ok {
		return models.Account{}, errors.Join(auth.ErrInvalidSession, auth.ErrUnknownAccount)
	}
	return acc.Public(), nil
}
