package portal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/auth"
	"github.com/Spok95/ada-portal/internal/logging"
	"github.com/Spok95/ada-portal/internal/models"
)

type NewAccount struct {
	Email       string        `json:"email" validate:"required,email,max=254"`
	DisplayName string        `json:"displayName" validate:"required,max=120"`
	Password    string        `json:"password" validate:"omitempty,min=6,max=72"`
	Role        models.Role   `json:"role" validate:"omitempty,max=40"`
	Skills      models.Skills `json:"skills"`
}

type AccountPatch struct {
	DisplayName *string        `json:"displayName" validate:"omitempty,min=1,max=120"`
	Role        *models.Role   `json:"role" validate:"omitempty,min=1,max=40"`
	Password    *string        `json:"password" validate:"omitempty,min=6,max=72"`
	Skills      *models.Skills `json:"skills"`
}

// Created — результат создания; TempPassword заполнен, если пароль сгенерирован.
type Created struct {
	Account      models.Account `json:"account"`
	TempPassword string         `json:"tempPassword,omitempty"`
}

func (s *Service) ListAccounts(ctx context.Context) []models.Account {
	list := s.store.Accounts(ctx)
	out := make([]models.Account, 0, len(list))
	for _, a := range list {
		out = append(out, a.Public())
	}
	return out
}

func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (Created, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := s.check(in); err != nil {
		return Created{}, err
	}
	if in.Role == models.SuperAdmin {
		return Created{}, ErrPrivilegedAccount
	}
	if in.Role == "" {
		in.Role = models.Learner
	}

	unlock := s.admin.Lock("accounts")
	defer unlock()

	accounts := s.store.Accounts(ctx)
	if _, _, ok := models.FindAccount(accounts, in.Email); ok {
		return Created{}, fmt.Errorf("%w: %s", ErrDuplicate, in.Email)
	}

	res := Created{}
	pw := in.Password
	if pw == "" {
		pw = auth.TempPassword()
		res.TempPassword = pw
	}
	hash, err := s.verifier.Hash(pw)
	if err != nil {
		return Created{}, err
	}
	acc := models.Account{
		Email:        in.Email,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		Role:         in.Role,
		Skills:       in.Skills,
	}
	if err := s.store.SaveAccounts(ctx, append(accounts, acc)); err != nil {
		return Created{}, err
	}
	s.log.Info("аккаунт создан", logging.Email(acc.Email), zap.String("role", string(acc.Role)))
	res.Account = acc.Public()
	return res, nil
}

func (s *Service) UpdateAccount(ctx context.Context, email string, p AccountPatch) (models.Account, error) {
	if err := s.check(p); err != nil {
		return models.Account{}, err
	}

	unlock := s.admin.Lock("accounts")
	defer unlock()

	accounts := s.store.Accounts(ctx)
	acc, idx, ok := models.FindAccount(accounts, email)
	if !ok {
		return models.Account{}, fmt.Errorf("account %s: %w", email, ErrNotFound)
	}
	if p.Role != nil && *p.Role != acc.Role && (acc.IsPrivileged() || *p.Role == models.SuperAdmin) {
		return models.Account{}, ErrPrivilegedAccount
	}
	if acc.IsPrivileged() && p.Password != nil {
		// пароль привилегированного аккаунта задаётся только конфигом
		return models.Account{}, ErrPrivilegedAccount
	}

	if p.DisplayName != nil {
		acc.DisplayName = strings.TrimSpace(*p.DisplayName)
	}
	if p.Role != nil {
		acc.Role = *p.Role
	}
	if p.Skills != nil {
		acc.Skills = *p.Skills
	}
	if p.Password != nil {
		hash, err := s.verifier.Hash(*p.Password)
		if err != nil {
			return models.Account{}, err
		}
		acc.PasswordHash = hash
	}

	next := append([]models.Account(nil), accounts...)
	next[idx] = acc
	if err := s.store.SaveAccounts(ctx, next); err != nil {
		return models.Account{}, err
	}
	s.log.Info("аккаунт изменён", logging.Email(acc.Email))
	return acc.Public(), nil
}

func (s *Service) DeleteAccount(ctx context.Context, email string) error {
	unlock := s.admin.Lock("accounts")
	defer unlock()

	accounts := s.store.Accounts(ctx)
	acc, idx, ok := models.FindAccount(accounts, email)
	if !ok {
		return fmt.Errorf("account %s: %w", email, ErrNotFound)
	}
	if acc.IsPrivileged() || models.SameEmail(acc.Email, s.store.Master().Email) {
		return ErrPrivilegedAccount
	}

	next := make([]models.Account, 0, len(accounts)-1)
	next = append(next, accounts[:idx]...)
	next = append(next, accounts[idx+1:]...)
	if err := s.store.SaveAccounts(ctx, next); err != nil {
		return err
	}
	s.log.Info("аккаунт удалён", logging.Email(acc.Email))
	return nil
}
