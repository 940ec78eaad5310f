// Package portal — сценарии портала поверх хранилища: вход, админка, каталог, прогресс, идеи, ИИ.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Spok95/ada-portal/internal/ai"
	"github.com/Spok95/ada-portal/internal/auth"
	"github.com/Spok95/ada-portal/internal/keylock"
	"github.com/Spok95/ada-portal/internal/store"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrPrivilegedAccount = errors.New("privileged account cannot be changed this way")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicate         = errors.New("already exists")
)

type Deps struct {
	Store    *store.Store
	Verifier auth.Verifier
	Sessions *auth.Sessions
	Tutor    *ai.Tutor
	Log      *zap.Logger
}

type Service struct {
	store    *store.Store
	verifier auth.Verifier
	sessions *auth.Sessions
	tutor    *ai.Tutor
	validate *validator.Validate
	// сериализует изменения прогресса и идей одного аккаунта
	locks *keylock.Map[string]
	// сериализует админские правки агрегатов
	admin *keylock.Map[string]
	log   *zap.Logger
}

func New(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	v := d.Verifier
	if v == nil {
		v = auth.Bcrypt{}
	}
	tutor := d.Tutor
	if tutor == nil {
		tutor = ai.NewTutor(nil, 0, log)
	}
	return &Service{
		store:    d.Store,
		verifier: v,
		sessions: d.Sessions,
		tutor:    tutor,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		locks:    keylock.New[string](),
		admin:    keylock.New[string](),
		log:      log.Named("portal"),
	}
}

// Warm параллельно читает аккаунты и каталог при старте, заполняя локальный кэш.
func (s *Service) Warm(ctx context.Context) (accounts, modules int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts = len(s.store.Accounts(gctx))
		return nil
	})
	g.Go(func() error {
		modules = len(s.store.Content(gctx))
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	s.log.Info("данные прогреты",
		zap.Int("accounts", accounts), zap.Int("modules", modules),
		zap.String("state", s.store.Resolver().State().String()))
	return accounts, modules, nil
}

// invalid превращает ошибки валидатора в ErrInvalidInput с перечнем полей.
func invalid(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return invalid(err)
	}
	return nil
}
