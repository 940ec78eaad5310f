package models

import "strings"

type Role string

const (
	// SuperAdmin — зарезервированная привилегированная роль, ровно у одного аккаунта.
	SuperAdmin Role = "Super Admin"
	Learner    Role = "user"
)

type Skills struct {
	Prompting int `json:"prompting" validate:"min=0,max=100"`
	Tools     int `json:"tools" validate:"min=0,max=100"`
	Analysis  int `json:"analysis" validate:"min=0,max=100"`
}

// ProgressSummary — денормализованная сводка; источник правды — коллекция прогресса.
type ProgressSummary struct {
	Percentage int `json:"percentage"`
	Completed  int `json:"completed"`
	Pending    int `json:"pending"`
}

type Account struct {
	Email        string          `json:"email"`
	PasswordHash string          `json:"passwordHash,omitempty"`
	DisplayName  string          `json:"displayName"`
	Role         Role            `json:"role"`
	Skills       Skills          `json:"skills"`
	Progress     ProgressSummary `json:"progressSummary"`
}

func (a Account) IsPrivileged() bool { return a.Role == SuperAdmin }

// Public — копия без хеша пароля, для отдачи наружу.
func (a Account) Public() Account {
	a.PasswordHash = ""
	return a
}

func SameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func FindAccount(accounts []Account, email string) (Account, int, bool) {
	for i, a := range accounts {
		if SameEmail(a.Email, email) {
			return a, i, true
		}
	}
	return Account{}, -1, false
}

// EnsureMaster гарантирует присутствие привилегированного аккаунта в списке
// и то, что роль SuperAdmin есть только у него. Возвращает новый срез и флаг изменений.
func EnsureMaster(accounts []Account, master Account) ([]Account, bool) {
	out := make([]Account, 0, len(accounts)+1)
	changed := false
	found := false
	for _, a := range accounts {
		switch {
		case SameEmail(a.Email, master.Email):
			if found {
				changed = true
				continue
			}
			found = true
			if a.Role != SuperAdmin {
				a.Role = SuperAdmin
				changed = true
			}
		case a.Role == SuperAdmin:
			a.Role = Learner
			changed = true
		}
		out = append(out, a)
	}
	if !found {
		out = append([]Account{master}, out...)
		changed = true
	}
	return out, changed
}
