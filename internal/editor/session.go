// Package editor holds the working copy of one template while the user edits
// it. The stored template is only replaced when Save succeeds.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/draftdesk/draftdesk-agent/internal/backend"
	"github.com/draftdesk/draftdesk-agent/internal/logging"
	"github.com/draftdesk/draftdesk-agent/internal/template"
)

const maxUndo = 100

var (
	ErrDisposed      = errors.New("editor session disposed")
	ErrNothingToUndo = errors.New("nothing to undo")
)

// Session is safe for concurrent use. Only Open and Save block on the
// repository; the lock is not held while they do.
type Session struct {
	mu       sync.Mutex
	repo     backend.TemplateRepository
	logger   *slog.Logger
	baseline template.Template
	draft    template.Template
	history  []template.Template
	version  uint64
	disposed bool
}

// New starts a session for a template that has not been saved yet.
func New(repo backend.TemplateRepository, name string, logger *slog.Logger) *Session {
	d := template.NewDraft(name)
	return &Session{
		repo:     repo,
		logger:   logger,
		baseline: d.Clone(),
		draft:    d,
	}
}

// Open loads the stored template id and starts a session on a copy of it.
func Open(ctx context.Context, repo backend.TemplateRepository, id string, logger *slog.Logger) (*Session, error) {
	t, err := repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open template %s: %w", id, err)
	}
	return &Session{
		repo:     repo,
		logger:   logging.WithTemplateID(logger, t.ID),
		baseline: t.Clone(),
		draft:    t.Clone(),
	}, nil
}

// Draft returns a copy of the working template.
func (s *Session) Draft() template.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Apply replaces the working template with fn's result. A failed fn leaves the
// draft unchanged.
func (s *Session) Apply(fn func(template.Template) (template.Template, error)) (template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return template.Template{}, ErrDisposed
	}
	next, err := fn(s.draft.Clone())
	if err != nil {
		return s.draft.Clone(), err
	}

	s.history = append(s.history, s.draft)
	if len(s.history) > maxUndo {
		s.history = s.history[len(s.history)-maxUndo:]
	}
	s.draft = next.Clone()
	s.version++
	return s.draft.Clone(), nil
}

func (s *Session) AddTrack(kind template.Kind, track template.Track) (template.Template, error) {
	return s.Apply(func(t template.Template) (template.Template, error) {
		return template.AddTrack(t, kind, track)
	})
}

func (s *Session) RemoveTrack(kind template.Kind, index int) (template.Template, error) {
	return s.Apply(func(t template.Template) (template.Template, error) {
		return template.RemoveTrack(t, kind, index)
	})
}

func (s *Session) Rename(name string) (template.Template, error) {
	return s.Apply(func(t template.Template) (template.Template, error) {
		return t.Rename(name), nil
	})
}

// Undo restores the draft as it was before the most recent Apply.
func (s *Session) Undo() (template.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return template.Template{}, ErrDisposed
	}
	if len(s.history) == 0 {
		return s.draft.Clone(), ErrNothingToUndo
	}
	last := len(s.history) - 1
	s.draft = s.history[last]
	s.history = s.history[:last]
	s.version++
	return s.draft.Clone(), nil
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history) > 0
}

// ReplaceTracks swaps in a full set of tracks, as an editor grid does after a
// cell edit.
func (s *Session) ReplaceTracks(tracks template.Tracks) (template.Template, error) {
	return s.Apply(func(t template.Template) (template.Template, error) {
		t.Tracks = tracks.Clone()
		return t, nil
	})
}

// Dirty reports whether the draft's name or tracks differ from what was last
// loaded or saved.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !sameContent(s.draft, s.baseline)
}

// Cancel throws away every edit since the last load or save.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return ErrDisposed
	}
	s.draft = s.baseline.Clone()
	s.history = nil
	s.version++
	return nil
}

// Save validates the draft and, when it is clean, creates or fully replaces
// the stored template. Violations are returned without touching the
// repository. If the session is disposed while the call is in flight the
// result is dropped and ErrDisposed is returned.
func (s *Session) Save(ctx context.Context) (template.Template, []template.Violation, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return template.Template{}, nil, ErrDisposed
	}
	snapshot := s.draft.Clone()
	startVersion := s.version
	s.mu.Unlock()

	if vs := template.Validate(snapshot); len(vs) > 0 {
		return template.Template{}, vs, nil
	}

	var (
		saved template.Template
		err   error
	)
	if snapshot.IsDraft() {
		saved, err = s.repo.Create(ctx, snapshot.Name, snapshot.Tracks)
	} else {
		saved, err = s.repo.Update(ctx, snapshot.ID, snapshot.Name, snapshot.Tracks)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		s.logger.Debug("save completed after dispose, result dropped", "error", err)
		return template.Template{}, nil, ErrDisposed
	}
	if err != nil {
		return template.Template{}, nil, fmt.Errorf("save template: %w", err)
	}

	s.baseline = saved.Clone()
	if s.version == startVersion {
		s.draft = saved.Clone()
		s.history = nil
	} else {
		// Edits made while the save was in flight are kept on top of the
		// stored identity.
		s.draft.ID = saved.ID
		s.draft.CreatedAt = saved.CreatedAt
		s.draft.UpdatedAt = saved.UpdatedAt
	}
	s.logger.Info("template saved", "template_id", saved.ID, "name", saved.Name)
	return saved.Clone(), nil, nil
}

// Dispose ends the session. It is safe to call more than once.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.history = nil
}

// Delete removes the stored template and disposes the session. Deleting a
// template the backend no longer has counts as success.
func (s *Session) Delete(ctx context.Context) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	id := s.draft.ID
	s.mu.Unlock()

	if id != "" {
		if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, backend.ErrNotFound) {
			return fmt.Errorf("delete template: %w", err)
		}
	}
	s.Dispose()
	return nil
}

func sameContent(a, b template.Template) bool {
	return a.Name == b.Name && reflect.DeepEqual(a.Tracks, b.Tracks)
}
