package connectivity

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Сентинелы, которыми бэкенды оборачивают свои ошибки.
var (
	ErrMissingStore      = errors.New("store does not exist")
	ErrPermission        = errors.New("permission denied")
	ErrBlockedCredential = errors.New("credential blocked")
	ErrNetwork           = errors.New("network unavailable")
)

// Порядок важен: первое совпадение побеждает.
var rules = []struct {
	kind     Kind
	sentinel error
	needles  []string
}{
	{KindMissingStore, ErrMissingStore, []string{
		"not-found", "not found", "does not exist", "doesn't exist", "no such bucket",
		"api has not been used", "is disabled", "has not yet been configured",
	}},
	{KindPermission, ErrPermission, []string{
		"permission-denied", "permission denied", "insufficient permissions", "noperm", "forbidden",
	}},
	{KindBlockedCredential, ErrBlockedCredential, []string{
		"api key not valid", "api_key_invalid", "invalid credential", "credential", "expired",
		"unauthenticated", "unauthorized", "wrongpass", "noauth", "password authentication failed", "blocked",
	}},
	{KindNetwork, ErrNetwork, []string{
		"offline", "network", "connection", "timeout", "deadline exceeded", "unavailable", "refused", "dial",
	}},
}

// Classify относит ошибку удалённой операции к одной из категорий.
// Сначала типизированные признаки, потом подстроки сообщения.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, r := range rules {
		if errors.Is(err, r.sentinel) {
			return r.kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindNetwork
	}
	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, n := range r.needles {
			if strings.Contains(msg, n) {
				return r.kind
			}
		}
	}
	return KindUnknown
}
