package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/models"
)

// Тексты, которые видит пользователь, если ИИ не ответил.
const (
	TutorApology  = "Sorry, the AI tutor is not available right now. Please try again later."
	TutorEmpty    = "Sorry, I could not come up with an answer this time."
	ReportApology = "The smart report could not be generated right now."
)

const tutorSystem = `You are an expert Artificial Intelligence tutor for the ADA corporate program.
Your goal is to help learners understand the concepts of the current class.

Current class context:
%s

Answer concisely, encouragingly and professionally.
If the question is not about AI or technology, gently steer the learner back to the topic.`

const reportPrompt = `Write a short, motivating executive summary for the learner %s.
Course progress: %d%%.

Their recorded ideas and questions:
%s

The report must have 2 paragraphs:
1. Progress analysis and motivation.
2. Suggestions based on their ideas/questions (if any), or general AI study suggestions.
Format: plain text.`

// Tutor оборачивает Completer: ошибки не выходят наружу, вместо них — извинение.
type Tutor struct {
	c       Completer
	timeout time.Duration
	log     *zap.Logger
}

// NewTutor принимает nil Completer: тогда каждый ответ — извинение.
func NewTutor(c Completer, timeout time.Duration, log *zap.Logger) *Tutor {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Tutor{c: c, timeout: timeout, log: log.Named("ai")}
}

// ClassContext — описание класса для системной инструкции.
func ClassContext(m models.Module, c models.ClassSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\nClass: %s\n", m.Title, c.Title)
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", c.Description)
	}
	if c.Duration != "" {
		fmt.Fprintf(&b, "Duration: %s\n", c.Duration)
	}
	return b.String()
}

func (t *Tutor) Ask(ctx context.Context, classContext, question string) string {
	if t.c == nil {
		return TutorApology
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.c.Complete(ctx, fmt.Sprintf(tutorSystem, classContext), question)
	if err != nil {
		t.log.Warn("тьютор не ответил", zap.Error(err))
		return TutorApology
	}
	if strings.TrimSpace(out) == "" {
		return TutorEmpty
	}
	return out
}

func (t *Tutor) Report(ctx context.Context, name string, percentage int, ideas []models.Idea) string {
	if t.c == nil {
		return ReportApology
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	lines := make([]string, 0, len(ideas))
	for _, i := range ideas {
		lines = append(lines, fmt.Sprintf("- %s: %s", i.Kind, i.Text))
	}
	if len(lines) == 0 {
		lines = append(lines, "(none)")
	}

	out, err := t.c.Complete(ctx, "", fmt.Sprintf(reportPrompt, name, percentage, strings.Join(lines, "\n")))
	if err != nil {
		t.log.Warn("отчёт не сгенерирован", zap.Error(err))
		return ReportApology
	}
	if strings.TrimSpace(out) == "" {
		return ReportApology
	}
	return out
}
