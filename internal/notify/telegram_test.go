package notify

import (
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/ada-portal/internal/connectivity"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	fail map[int64]error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[msg.ChatID]; err != nil {
		return tgbotapi.Message{}, err
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{}, nil
}

func TestConnectivityDowngraded_SendsToEveryChat(t *testing.T) {
	f := &fakeSender{fail: map[int64]error{2: errors.New("Bad Request: chat not found")}}
	n := NewWithSender(f, []int64{1, 2, 3}, nil)

	n.ConnectivityDowngraded(connectivity.State{Status: connectivity.Failed, Kind: connectivity.KindPermission},
		errors.New("missing or insufficient permissions"))
	n.Wait()

	require.Len(t, f.sent, 2)
	assert.Equal(t, int64(1), f.sent[0].ChatID)
	assert.Contains(t, f.sent[0].Text, "error(permission)")
	assert.Contains(t, f.sent[0].Text, "access rules")
}

func TestIsSystemErr(t *testing.T) {
	assert.True(t, isSystemErr(errors.New("Too Many Requests: 429")))
	assert.True(t, isSystemErr(errors.New("net/http: timeout awaiting response headers")))
	assert.False(t, isSystemErr(errors.New("Bad Request: chat not found")))
	assert.False(t, isSystemErr(nil))
}
