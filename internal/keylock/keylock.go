package keylock

import "sync"

// Map не даёт двум сценариям одновременно работать с одним ключом
// (аккаунтом, документом). Мьютексы на ключ живут до конца процесса.
type Map[K comparable] struct {
	mu   sync.Mutex
	byID map[K]*sync.Mutex
}

func New[K comparable]() *Map[K] {
	return &Map[K]{byID: make(map[K]*sync.Mutex)}
}

// Lock захватывает ключ и возвращает функцию освобождения.
func (l *Map[K]) Lock(key K) func() {
	l.mu.Lock()
	m, ok := l.byID[key]
	if !ok {
		m = &sync.Mutex{}
		l.byID[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return func() { m.Unlock() }
}
