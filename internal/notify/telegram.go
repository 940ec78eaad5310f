// Package notify — оповещения операторов в Telegram.
package notify

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/connectivity"
	"github.com/Spok95/ada-portal/internal/observability"
)

// Sender — часть *tgbotapi.BotAPI, которой мы пользуемся.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot   Sender
	chats []int64
	log   *zap.Logger
	wg    sync.WaitGroup
}

func NewTelegram(token string, chats []int64, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return NewWithSender(bot, chats, log), nil
}

func NewWithSender(bot Sender, chats []int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, chats: chats, log: log.Named("notify")}
}

// Считаем системными: 5xx, 429, timeout. 400-ки и типичные телеграм-валидации в Sentry не шлём.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	if strings.Contains(s, "Bad Request") ||
		strings.Contains(s, "chat not found") ||
		strings.Contains(s, "can't parse entities") {
		return false
	}
	return strings.Contains(s, "429") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "timeout")
}

// ConnectivityDowngraded подходит как хук Resolver.OnDowngrade: отправка идёт в фоне,
// чтобы не задерживать запрос, на котором случился отказ.
func (t *Telegram) ConnectivityDowngraded(st connectivity.State, cause error) {
	text := downgradeText(st, cause)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.broadcast(text)
	}()
}

// Wait дожидается фоновых отправок.
func (t *Telegram) Wait() { t.wg.Wait() }

func downgradeText(st connectivity.State, cause error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ ADA portal: хранилище недоступно, состояние %s.\n", st)
	if hint := st.Kind.Hint(); hint != "" {
		fmt.Fprintf(&b, "Подсказка: %s\n", hint)
	}
	if cause != nil {
		fmt.Fprintf(&b, "Причина: %v", cause)
	}
	return strings.TrimSpace(b.String())
}

func (t *Telegram) broadcast(text string) {
	for _, chatID := range t.chats {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			t.log.Warn("не удалось отправить оповещение", zap.Int64("chat_id", chatID), zap.Error(err))
			if isSystemErr(err) {
				observability.CaptureErr(err)
			}
		}
	}
}
