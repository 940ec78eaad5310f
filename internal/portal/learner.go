package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/ai"
	"github.com/Spok95/ada-portal/internal/connectivity"
	"github.com/Spok95/ada-portal/internal/logging"
	"github.com/Spok95/ada-portal/internal/models"
)

type CatalogClass struct {
	models.ClassSession
	VideoID   string `json:"videoId,omitempty"`
	Completed bool   `json:"completed"`
}

type CatalogModule struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Classes []CatalogClass `json:"classes"`
}

type Catalog struct {
	Modules []CatalogModule        `json:"modules"`
	Stats   models.ProgressSummary `json:"stats"`
}

func (s *Service) Catalog(ctx context.Context, email string) Catalog {
	mods := s.store.Content(ctx)
	prog := s.store.Progress(ctx, email)

	out := make([]CatalogModule, 0, len(mods))
	for _, m := range mods {
		cm := CatalogModule{ID: m.ID, Title: m.Title, Classes: make([]CatalogClass, 0, len(m.Classes))}
		for _, c := range m.Classes {
			cm.Classes = append(cm.Classes, CatalogClass{ClassSession: c, VideoID: c.VideoID(), Completed: prog[c.ID]})
		}
		out = append(out, cm)
	}
	return Catalog{Modules: out, Stats: prog.Summary(mods)}
}

func (s *Service) Progress(ctx context.Context, email string) (models.ProgressMap, models.ProgressSummary) {
	mods := s.store.Content(ctx)
	prog := s.store.Progress(ctx, email)
	return prog, prog.Summary(mods)
}

// SetCompleted отмечает занятие. Изменения одного аккаунта идут строго по очереди.
func (s *Service) SetCompleted(ctx context.Context, email, classID string, done bool) (models.ProgressSummary, error) {
	mods := s.store.Content(ctx)
	if _, ok := models.FindClass(mods, classID); !ok {
		return models.ProgressSummary{}, fmt.Errorf("class %s: %w", classID, ErrNotFound)
	}

	unlock := s.locks.Lock(models.SanitizeEmail(email))
	defer unlock()

	prog := s.store.Progress(ctx, email).Clone()
	prog[classID] = done
	if err := s.store.SaveProgress(ctx, email, prog); err != nil {
		return models.ProgressSummary{}, err
	}
	s.log.Debug("прогресс обновлён", logging.Email(email), zap.String("class", classID), zap.Bool("done", done))
	return prog.Summary(mods), nil
}

type IdeaInput struct {
	Kind models.IdeaKind `json:"kind" validate:"required,oneof=idea question"`
	Text string          `json:"text" validate:"required,max=2000"`
}

func ideasKey(email string) string { return "ideas_" + models.SanitizeEmail(email) }

// Ideas — черновики аккаунта из локального кэша.
func (s *Service) Ideas(email string) []models.Idea {
	raw, ok := s.store.Cache().Get(ideasKey(email))
	if !ok {
		return []models.Idea{}
	}
	var list []models.Idea
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		s.log.Warn("битые черновики идей", logging.Email(email), zap.Error(err))
		return []models.Idea{}
	}
	return list
}

func (s *Service) AddIdea(email string, in IdeaInput) (models.Idea, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := s.check(in); err != nil {
		return models.Idea{}, err
	}

	unlock := s.locks.Lock(models.SanitizeEmail(email))
	defer unlock()

	idea := models.Idea{ID: uuid.NewString(), Kind: in.Kind, Text: in.Text, CreatedAt: time.Now().UTC()}
	list := append(s.Ideas(email), idea)
	raw, err := json.Marshal(list)
	if err != nil {
		return models.Idea{}, err
	}
	if err := s.store.Cache().Set(ideasKey(email), string(raw)); err != nil {
		return models.Idea{}, fmt.Errorf("save ideas: %w", err)
	}
	return idea, nil
}

type TutorInput struct {
	ClassID  string `json:"classId" validate:"required"`
	Question string `json:"question" validate:"required,max=2000"`
}

func (s *Service) Ask(ctx context.Context, in TutorInput) (string, error) {
	in.Question = strings.TrimSpace(in.Question)
	if err := s.check(in); err != nil {
		return "", err
	}
	for _, m := range s.store.Content(ctx) {
		for _, c := range m.Classes {
			if c.ID == in.ClassID {
				return s.tutor.Ask(ctx, ai.ClassContext(m, c), in.Question), nil
			}
		}
	}
	return "", fmt.Errorf("class %s: %w", in.ClassID, ErrNotFound)
}

func (s *Service) Report(ctx context.Context, acc models.Account) string {
	_, summary := s.Progress(ctx, acc.Email)
	name := acc.DisplayName
	if name == "" {
		name = acc.Email
	}
	return s.tutor.Report(ctx, name, summary.Percentage, s.Ideas(acc.Email))
}

type Diagnostics struct {
	State string            `json:"state"`
	Ready bool              `json:"ready"`
	Kind  connectivity.Kind `json:"kind"`
	Hint  string            `json:"hint,omitempty"`
}

// Ready — удалённое хранилище доступно для чтения и записи.
func (s *Service) Ready() bool { return s.store.Resolver().State().Ready() }

func (s *Service) Diagnostics() Diagnostics {
	st := s.store.Resolver().State()
	kind := s.store.Resolver().ErrorKind()
	return Diagnostics{State: st.String(), Ready: st.Ready(), Kind: kind, Hint: kind.Hint()}
}
