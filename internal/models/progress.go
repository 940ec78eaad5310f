package models

import (
	"math"
	"strings"
)

// ProgressMap: id занятия -> пройдено.
type ProgressMap map[string]bool

// Merge накладывает remote поверх локальной карты: при совпадении ключей побеждает remote,
// уникальные локальные ключи остаются.
func (m ProgressMap) Merge(remote ProgressMap) ProgressMap {
	out := make(ProgressMap, len(m)+len(remote))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range remote {
		out[k] = v
	}
	return out
}

func (m ProgressMap) Clone() ProgressMap { return m.Merge(nil) }

// Summary считает сводку по всем занятиям каталога. Отметки для удалённых занятий не учитываются.
func (m ProgressMap) Summary(modules []Module) ProgressSummary {
	total := TotalClasses(modules)
	done := 0
	for _, mod := range modules {
		for _, c := range mod.Classes {
			if m[c.ID] {
				done++
			}
		}
	}
	s := ProgressSummary{Completed: done, Pending: total - done}
	if total > 0 {
		s.Percentage = int(math.Round(float64(done) * 100 / float64(total)))
	}
	return s
}

// SanitizeEmail — ключ документа прогресса: точки заменяются на подчёркивания.
func SanitizeEmail(email string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(email)), ".", "_")
}
