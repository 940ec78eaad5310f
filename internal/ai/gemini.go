// Package ai — генеративные подсказки портала: тьютор по классу и сводка прогресса.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var ErrNotConfigured = errors.New("ai: api key is not configured")

// Completer — «prompt + системный контекст -> текст».
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini без ключа возвращает ErrNotConfigured; тьютор тогда работает без Completer.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		}
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
