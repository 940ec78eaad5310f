package models

import "time"

type IdeaKind string

const (
	KindIdea     IdeaKind = "idea"
	KindQuestion IdeaKind = "question"
)

// Idea — локальный черновик ученика, в удалённое хранилище не уходит.
type Idea struct {
	ID        string    `json:"id"`
	Kind      IdeaKind  `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
