// Package auth — проверка паролей аккаунтов и сессионные токены.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/ada-portal/internal/models"
)

var (
	ErrUnknownAccount = errors.New("unknown account")
	ErrBadCredentials = errors.New("bad credentials")
)

type Verifier interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// Bcrypt — проверка через bcrypt; Cost=0 означает bcrypt.DefaultCost.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (Bcrypt) Verify(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate ищет аккаунт по email и сверяет пароль.
// Привилегированный аккаунт сверяется с хешем из конфига, поэтому вход работает
// даже когда хранилище недоступно или в нём чужой хеш.
func Authenticate(accounts []models.Account, master models.Account, v Verifier, email, password string) (models.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.Account{}, ErrUnknownAccount
	}

	if models.SameEmail(email, master.Email) {
		if !v.Verify(master.PasswordHash, password) {
			return models.Account{}, ErrBadCredentials
		}
		acc, _, ok := models.FindAccount(accounts, email)
		if !ok {
			acc = master
		}
		acc.Role = models.SuperAdmin
		return acc, nil
	}

	acc, _, ok := models.FindAccount(accounts, email)
	if !ok {
		return models.Account{}, ErrUnknownAccount
	}
	if acc.PasswordHash == "" || !v.Verify(acc.PasswordHash, password) {
		return models.Account{}, ErrBadCredentials
	}
	return acc, nil
}

// TempPassword — временный пароль для аккаунта, созданного без пароля.
func TempPassword() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
