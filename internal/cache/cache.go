// Package cache — локальный синхронный кэш "ключ -> строка", переживающий перезапуск.
package cache

import "sync"

type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

type Memory struct {
	mu sync.RWMutex
	m  map[string]string
}

var _ Cache = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{m: make(map[string]string)} }

func (c *Memory) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *Memory) Set(key, value string) error {
	c.mu.Lock()
	c.m[key] = value
	c.mu.Unlock()
	return nil
}
