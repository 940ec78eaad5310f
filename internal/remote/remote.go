// Package remote описывает удалённое документное хранилище: один агрегатный документ на коллекцию.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Document — поля верхнего уровня агрегата (например "list" или "map").
type Document map[string]json.RawMessage

type Store interface {
	// Get возвращает exists=false без ошибки, если документ ещё ни разу не писали.
	Get(ctx context.Context, key string) (Document, bool, error)
	// Put с merge=true добавляет новые поля и не трогает остальные.
	Put(ctx context.Context, key string, doc Document, merge bool) error
	Close() error
}

// Field кодирует значение в документ из одного поля.
func Field(name string, v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return Document{name: raw}, nil
}

// Decode читает поле документа; отсутствующее поле — ok=false.
func (d Document) Decode(name string, v any) (bool, error) {
	raw, ok := d[name]
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// Merge сливает next поверх prev: объекты сливаются рекурсивно, остальное заменяется.
func Merge(prev, next Document) Document {
	out := make(Document, len(prev)+len(next))
	for k, v := range prev {
		out[k] = v
	}
	for k, v := range next {
		if old, ok := out[k]; ok {
			out[k] = mergeRaw(old, v)
			continue
		}
		out[k] = v
	}
	return out
}

func mergeRaw(prev, next json.RawMessage) json.RawMessage {
	var a, b map[string]json.RawMessage
	if json.Unmarshal(prev, &a) != nil || json.Unmarshal(next, &b) != nil || a == nil || b == nil {
		return next
	}
	merged := Merge(a, b)
	raw, err := json.Marshal(merged)
	if err != nil {
		return next
	}
	return raw
}

func Marshal(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	return json.Marshal(doc)
}

func Unmarshal(raw []byte) (Document, error) {
	doc := Document{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
