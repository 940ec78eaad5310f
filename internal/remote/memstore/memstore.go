// Package memstore — удалённое хранилище в памяти процесса: для разработки и тестов.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/Spok95/ada-portal/internal/remote"
)

type Store struct {
	mu    sync.Mutex
	docs  map[string][]byte
	delay time.Duration
	fail  func(op, key string) error

	gets map[string]int
	puts map[string]int
}

var _ remote.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		docs: make(map[string][]byte),
		gets: make(map[string]int),
		puts: make(map[string]int),
	}
}

// SetDelay задаёт задержку каждого вызова. Задержка не смотрит на ctx,
// как медленный клиент без поддержки отмены.
func (s *Store) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// FailWith подставляет ошибку для операций "get"/"put"; nil снимает.
func (s *Store) FailWith(fn func(op, key string) error) {
	s.mu.Lock()
	s.fail = fn
	s.mu.Unlock()
}

func (s *Store) before(op, key string) error {
	s.mu.Lock()
	d, fail := s.delay, s.fail
	if op == "get" {
		s.gets[key]++
	} else {
		s.puts[key]++
	}
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
	if fail != nil {
		return fail(op, key)
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (remote.Document, bool, error) {
	if err := s.before("get", key); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	raw, ok := s.docs[key]
	s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	doc, err := remote.Unmarshal(raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *Store) Put(_ context.Context, key string, doc remote.Document, merge bool) error {
	if err := s.before("put", key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.docs[key]; ok && merge {
		old, err := remote.Unmarshal(prev)
		if err != nil {
			return err
		}
		doc = remote.Merge(old, doc)
	}
	raw, err := remote.Marshal(doc)
	if err != nil {
		return err
	}
	s.docs[key] = raw
	return nil
}

func (s *Store) Close() error { return nil }

// Raw — сохранённый JSON документа, для проверок в тестах.
func (s *Store) Raw(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.docs[key]
	return raw, ok
}

func (s *Store) Gets(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[key]
}

func (s *Store) Puts(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[key]
}
