package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/ai"
	"github.com/Spok95/ada-portal/internal/app"
	"github.com/Spok95/ada-portal/internal/auth"
	"github.com/Spok95/ada-portal/internal/cache"
	"github.com/Spok95/ada-portal/internal/config"
	"github.com/Spok95/ada-portal/internal/connectivity"
	"github.com/Spok95/ada-portal/internal/jobs"
	"github.com/Spok95/ada-portal/internal/logging"
	"github.com/Spok95/ada-portal/internal/models"
	"github.com/Spok95/ada-portal/internal/notify"
	"github.com/Spok95/ada-portal/internal/observability"
	"github.com/Spok95/ada-portal/internal/portal"
	"github.com/Spok95/ada-portal/internal/remote"
	"github.com/Spok95/ada-portal/internal/store"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		log.Println("Не удалось загрузить .env файл, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		logger.Warn("sentry не инициализирован", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("портал остановлен с ошибкой", zap.Error(err))
		observability.CaptureErr(err)
		flush()
		os.Exit(1)
	}
	logger.Info("портал остановлен")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	verifier := auth.Bcrypt{}
	masterHash, err := verifier.Hash(cfg.MasterPassword)
	if err != nil {
		return err
	}
	master := models.Account{
		Email:        cfg.MasterEmail,
		PasswordHash: masterHash,
		DisplayName:  cfg.MasterName,
		Role:         models.SuperAdmin,
		Skills:       models.Skills{Prompting: 100, Tools: 100, Analysis: 100},
	}

	// Локальный кэш
	localCache, err := cache.OpenSQLite(cfg.Cache.Path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = localCache.Close() }()

	// Связность: одна попытка за процесс
	resolver := connectivity.NewResolver(logger)
	if cfg.TelegramToken != "" && len(cfg.AdminChatIDs) > 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.AdminChatIDs, logger)
		if err != nil {
			logger.Warn("оповещения в telegram выключены", zap.Error(err))
		} else {
			resolver.OnDowngrade(tg.ConnectivityDowngraded)
			defer tg.Wait()
		}
	}

	var rs remote.Store
	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	state := resolver.Initialize(initCtx, connectivity.Config{
		Project:      cfg.Store.Project,
		Credential:   cfg.Store.Credential,
		Placeholders: cfg.Store.Placeholders,
	}, func(ctx context.Context) error {
		s, err := app.OpenRemote(ctx, cfg.Store, logger)
		if err != nil {
			return err
		}
		rs = s
		return nil
	})
	cancel()
	if rs != nil {
		defer func() { _ = rs.Close() }()
	}
	logger.Info("состояние хранилища", zap.String("backend", cfg.Store.Backend), zap.Stringer("state", state))

	st := store.New(store.Config{
		Remote:   rs,
		Cache:    localCache,
		Resolver: resolver,
		Master:   master,
		Timeouts: store.Timeouts{
			Accounts: cfg.Store.TimeoutAccounts,
			Content:  cfg.Store.TimeoutContent,
			Progress: cfg.Store.TimeoutProgress,
			Write:    cfg.Store.TimeoutWrite,
		},
		Log: logger,
	})

	var completer ai.Completer
	if g, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err != nil {
		if !errors.Is(err, ai.ErrNotConfigured) {
			logger.Warn("ИИ недоступен", zap.Error(err))
		}
	} else {
		completer = g
	}

	svc := portal.New(portal.Deps{
		Store:    st,
		Verifier: verifier,
		Sessions: auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL),
		Tutor:    ai.NewTutor(completer, 0, logger),
		Log:      logger,
	})
	if _, _, err := svc.Warm(ctx); err != nil {
		return err
	}

	runner := jobs.New(ctx, logger)
	jobs.StartSummaryRefresh(runner, cfg.SummaryRefreshInterval, svc)

	srv := app.StartHTTP(ctx, cfg.HTTPAddr, app.NewAPI(svc, logger).Handler(), logger)

	<-ctx.Done()
	<-srv.Done()

	// дожидаемся фоновых записей прогресса
	waitCtx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelWait()
	if err := st.Wait(waitCtx); err != nil {
		logger.Warn("не все фоновые записи завершились", zap.Error(err))
	}
	return nil
}
