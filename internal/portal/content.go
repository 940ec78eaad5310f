package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/ada-portal/internal/models"
)

type ModuleInput struct {
	Title string `json:"title" validate:"required,max=200"`
}

type ClassInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	VideoURL    string `json:"videoUrl" validate:"omitempty,max=500,contains=/"`
	Duration    string `json:"duration" validate:"max=40"`
}

func (s *Service) Modules(ctx context.Context) []models.Module {
	return s.store.Content(ctx)
}

// ReplaceModules сохраняет каталог целиком; пустые id заполняются.
func (s *Service) ReplaceModules(ctx context.Context, modules []models.Module) ([]models.Module, error) {
	seen := map[string]bool{}
	claim := func(id string) error {
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidInput, id)
		}
		seen[id] = true
		return nil
	}
	out := make([]models.Module, 0, len(modules))
	for _, m := range modules {
		m.Title = strings.TrimSpace(m.Title)
		if err := s.check(ModuleInput{Title: m.Title}); err != nil {
			return nil, err
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if err := claim(m.ID); err != nil {
			return nil, err
		}
		classes := make([]models.ClassSession, 0, len(m.Classes))
		for _, c := range m.Classes {
			in := trimClass(classInput(c))
			if err := s.check(in); err != nil {
				return nil, err
			}
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			if err := claim(c.ID); err != nil {
				return nil, err
			}
			c.Title, c.Description, c.VideoURL, c.Duration = in.Title, in.Description, in.VideoURL, in.Duration
			classes = append(classes, c)
		}
		m.Classes = classes
		out = append(out, m)
	}

	unlock := s.admin.Lock("content")
	defer unlock()
	if err := s.store.SaveContent(ctx, out); err != nil {
		return nil, err
	}
	s.log.Info("каталог заменён", zap.Int("modules", len(out)))
	return out, nil
}

func classInput(c models.ClassSession) ClassInput {
	return ClassInput{Title: c.Title, Description: c.Description, VideoURL: c.VideoURL, Duration: c.Duration}
}

// editContent — чтение, правка и запись каталога под одним замком.
func (s *Service) editContent(ctx context.Context, fn func([]models.Module) ([]models.Module, error)) error {
	unlock := s.admin.Lock("content")
	defer unlock()

	cur := s.store.Content(ctx)
	next, err := fn(cloneModules(cur))
	if err != nil {
		return err
	}
	return s.store.SaveContent(ctx, next)
}

func cloneModules(in []models.Module) []models.Module {
	out := make([]models.Module, len(in))
	for i, m := range in {
		m.Classes = append([]models.ClassSession(nil), m.Classes...)
		out[i] = m
	}
	return out
}

func moduleIndex(mods []models.Module, id string) int {
	for i, m := range mods {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func classIndex(m models.Module, id string) int {
	for i, c := range m.Classes {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) AddModule(ctx context.Context, in ModuleInput) (models.Module, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.check(in); err != nil {
		return models.Module{}, err
	}
	m := models.Module{ID: uuid.NewString(), Title: in.Title, Classes: []models.ClassSession{}}
	err := s.editContent(ctx, func(mods []models.Module) ([]models.Module, error) {
		return append(mods, m), nil
	})
	if err != nil {
		return models.Module{}, err
	}
	s.log.Info("модуль добавлен", zap.String("module", m.ID))
	return m, nil
}

func (s *Service) UpdateModule(ctx context.Context, id string, in ModuleInput) (models.Module, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.check(in); err != nil {
		return models.Module{}, err
	}
	var out models.Module
	err := s.editContent(ctx, func(mods []models.Module) ([]models.Module, error) {
		i := moduleIndex(mods, id)
		if i < 0 {
			return nil, fmt.Errorf("module %s: %w", id, ErrNotFound)
		}
		mods[i].Title = in.Title
		out = mods[i]
		return mods, nil
	})
	return out, err
}

func (s *Service) DeleteModule(ctx context.Context, id string) error {
	return s.editContent(ctx, func(mods []models.Module) ([]models.Module, error) {
		i := moduleIndex(mods, id)
		if i < 0 {
			return nil, fmt.Errorf("module %s: %w", id, ErrNotFound)
		}
		s.log.Info("модуль удалён", zap.String("module", id))
		return append(mods[:i], mods[i+1:]...), nil
	})
}

func (s *Service) AddClass(ctx context.Context, moduleID string, in ClassInput) (models.ClassSession, error) {
	in = trimClass(in)
	if err := s.check(in); err != nil {
		return models.ClassSession{}, err
	}
	c := models.ClassSession{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		VideoURL:    in.VideoURL,
		Duration:    in.Duration,
	}
	err := s.editContent(ctx, func(mods []models.Module) ([]models.Module, error) {
		i := moduleIndex(mods, moduleID)
		if i < 0 {
			return nil, fmt.Errorf("module %s: %w", moduleID, ErrNotFound)
		}
		mods[i].Classes = append(mods[i].Classes, c)
		return mods, nil
	})
	if err != nil {
		return models.ClassSession{}, err
	}
	return c, nil
}

func (s *Service) UpdateClass(ctx context.Context, moduleID, classID string, in ClassInput) (models.ClassSession, error) {
	in = trimClass(in)
	if err := s.check(in); err != nil {
		return models.ClassSession{}, err
	}
	var out models.ClassSession
	err := s.editContent(ctx, func(mods []models.Module) ([]models.Module, error) {
		i := moduleIndex(mods, moduleID)
		if i < 0 {
			return nil, fmt.Errorf("module %s: %w", moduleID, ErrNotFound)
		}
		j := classIndex(mods[i], classID)
		if j < 0 {
			return nil, fmt.Errorf("class %s: %w", classID, ErrNotFound)
		}
		c := &mods[i].Classes[j]
		c.Title, c.Description, c.VideoURL, c.Duration = in.Title, in.Description, in.VideoURL, in.Duration
		out = *c
		return mods, nil
	})
	return out, err
}

func (s *Service) DeleteClass(ctx context.Context, moduleID, classID string) error {
	return s.editContent(ctx, func(mods []models.Module) ([]models.Module, error) {
		i := moduleIndex(mods, moduleID)
		if i < 0 {
			return nil, fmt.Errorf("module %s: %w", moduleID, ErrNotFound)
		}
		j := classIndex(mods[i], classID)
		if j < 0 {
			return nil, fmt.Errorf("class %s: %w", classID, ErrNotFound)
		}
		mods[i].Classes = append(mods[i].Classes[:j], mods[i].Classes[j+1:]...)
		return mods, nil
	})
}

func trimClass(in ClassInput) ClassInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	in.Duration = strings.TrimSpace(in.Duration)
	return in
}
