package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Spok95/ada-portal/internal/models"
)

type fakeCompleter struct {
	out    string
	err    error
	system string
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	f.system, f.prompt = system, prompt
	return f.out, f.err
}

func TestTutor_Ask(t *testing.T) {
	f := &fakeCompleter{out: "Embeddings map text to vectors."}
	tutor := NewTutor(f, time.Second, nil)

	ctx := ClassContext(models.Module{Title: "Basics"}, models.ClassSession{Title: "Embeddings", Description: "Vectors"})
	got := tutor.Ask(context.Background(), ctx, "What is an embedding?")

	assert.Equal(t, "Embeddings map text to vectors.", got)
	assert.Contains(t, f.system, "Class: Embeddings")
	assert.Equal(t, "What is an embedding?", f.prompt)
}

func TestTutor_Apologies(t *testing.T) {
	assert.Equal(t, TutorApology, NewTutor(nil, 0, nil).Ask(context.Background(), "", "q"))
	assert.Equal(t, ReportApology, NewTutor(nil, 0, nil).Report(context.Background(), "Ann", 10, nil))

	failing := NewTutor(&fakeCompleter{err: errors.New("quota exceeded")}, time.Second, nil)
	assert.Equal(t, TutorApology, failing.Ask(context.Background(), "", "q"))
	assert.Equal(t, ReportApology, failing.Report(context.Background(), "Ann", 10, nil))

	empty := NewTutor(&fakeCompleter{out: "  "}, time.Second, nil)
	assert.Equal(t, TutorEmpty, empty.Ask(context.Background(), "", "q"))
}

func TestTutor_ReportPrompt(t *testing.T) {
	f := &fakeCompleter{out: "Great job."}
	tutor := NewTutor(f, time.Second, nil)

	got := tutor.Report(context.Background(), "Ann", 40, []models.Idea{
		{Kind: models.KindIdea, Text: "Automate reports"},
		{Kind: models.KindQuestion, Text: "How do agents plan?"},
	})
	assert.Equal(t, "Great job.", got)
	assert.Contains(t, f.prompt, "learner Ann")
	assert.Contains(t, f.prompt, "Course progress: 40%")
	assert.Contains(t, f.prompt, "- question: How do agents plan?")
	assert.Empty(t, f.system)
}
