package backend

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/draftdesk/draftdesk-agent/internal/draft"
	"github.com/draftdesk/draftdesk-agent/internal/template"
	"github.com/google/uuid"
)

// MemoryRepository is an in-process template store used in offline mode and
// tests. Updates are last-write-wins and Delete is idempotent.
type MemoryRepository struct {
	mu        sync.RWMutex
	templates map[string]template.Template
	now       func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		templates: make(map[string]template.Template),
		now:       time.Now,
	}
}

// List returns templates most recently updated first.
func (m *MemoryRepository) List(ctx context.Context) ([]template.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]template.Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (template.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.templates[id]
	if !ok {
		return template.Template{}, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *MemoryRepository) Create(ctx context.Context, name string, tracks template.Tracks) (template.Template, error) {
	if err := requireName(name); err != nil {
		return template.Template{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	t := template.Template{
		ID:        uuid.NewString(),
		Name:      name,
		Tracks:    tracks.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.templates[t.ID] = t
	return t.Clone(), nil
}

func (m *MemoryRepository) Update(ctx context.Context, id, name string, tracks template.Tracks) (template.Template, error) {
	if err := requireName(name); err != nil {
		return template.Template{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.templates[id]
	if !ok {
		return template.Template{}, ErrNotFound
	}
	existing.Name = name
	existing.Tracks = tracks.Clone()
	existing.UpdatedAt = m.now()
	m.templates[id] = existing
	return existing.Clone(), nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.templates, id)
	return nil
}

// StubDraftGenerator accepts every request without contacting a backend.
type StubDraftGenerator struct {
	logger *slog.Logger
}

func NewStubDraftGenerator(logger *slog.Logger) *StubDraftGenerator {
	return &StubDraftGenerator{logger: logger}
}

func (s *StubDraftGenerator) GenerateBatchDraft(ctx context.Context, req draft.Request) (draft.Result, error) {
	id := "offline-" + uuid.NewString()[:8]
	s.logger.Info("offline stub: draft generation requested",
		"draft_id", id,
		"video_dir", req.VideoDir,
		"audio_dir", req.AudioDir,
		"has_crop", req.ImageCropSettings != nil,
	)
	return draft.Result{DraftID: id}, nil
}

// StubClient serves templates from memory and fakes draft generation.
type StubClient struct {
	templates *MemoryRepository
	drafts    *StubDraftGenerator
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{
		templates: NewMemoryRepository(),
		drafts:    NewStubDraftGenerator(logger),
	}
}

func (c *StubClient) Templates() TemplateRepository {
	return c.templates
}

func (c *StubClient) Drafts() DraftGenerator {
	return c.drafts
}
