package editor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/draftdesk/draftdesk-agent/internal/backend"
	"github.com/draftdesk/draftdesk-agent/internal/template"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// blockingRepo parks Create/Update until release is closed.
type blockingRepo struct {
	*backend.MemoryRepository
	started chan struct{}
	release chan struct{}
}

func newBlockingRepo() *blockingRepo {
	return &blockingRepo{
		MemoryRepository: backend.NewMemoryRepository(),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
}

func (r *blockingRepo) Create(ctx context.Context, name string, tracks template.Tracks) (template.Template, error) {
	close(r.started)
	<-r.release
	return r.MemoryRepository.Create(ctx, name, tracks)
}

func TestSession_NewAndSave(t *testing.T) {
	ctx := context.Background()
	repo := backend.NewMemoryRepository()
	s := New(repo, "Intro", testLogger())

	if !s.Draft().IsDraft() {
		t.Fatal("new session should hold an unsaved draft")
	}
	if _, err := s.AddTrack(template.KindText, template.DefaultTextTrack()); err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}
	if !s.Dirty() {
		t.Error("session should be dirty after AddTrack")
	}

	saved, vs, err := s.Save(ctx)
	if err != nil || len(vs) != 0 {
		t.Fatalf("Save() = %v, %v", vs, err)
	}
	if saved.ID == "" {
		t.Fatal("saved template should have an id")
	}
	if s.Dirty() {
		t.Error("session should be clean after Save")
	}
	if s.Draft().ID != saved.ID {
		t.Error("draft should adopt the stored id")
	}

	stored, err := repo.Get(ctx, saved.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(stored.Tracks.Texts) != 1 {
		t.Errorf("stored texts = %d, want 1", len(stored.Tracks.Texts))
	}
}

func TestSession_SaveUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	repo := backend.NewMemoryRepository()
	created, _ := repo.Create(ctx, "Intro", template.Tracks{})

	s, err := Open(ctx, repo, created.ID, testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Rename("Outro")
	s.AddTrack(template.KindFilter, template.DefaultFilterTrack())

	saved, _, err := s.Save(ctx)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.ID != created.ID {
		t.Errorf("Save() created a new template: %s", saved.ID)
	}

	list, _ := repo.List(ctx)
	if len(list) != 1 || list[0].Name != "Outro" || len(list[0].Tracks.Filters) != 1 {
		t.Errorf("stored = %+v", list)
	}
}

func TestSession_OpenMissing(t *testing.T) {
	_, err := Open(context.Background(), backend.NewMemoryRepository(), "nope", testLogger())
	if !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestSession_SaveWithViolationsSkipsRepository(t *testing.T) {
	ctx := context.Background()
	repo := backend.NewMemoryRepository()
	s := New(repo, "Intro", testLogger())

	bad := template.DefaultTextTrack()
	bad.Text = ""
	s.AddTrack(template.KindText, bad)

	_, vs, err := s.Save(ctx)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(vs) != 1 || vs[0].Kind != template.KindText || vs[0].Index != 0 || vs[0].Field != "text" {
		t.Errorf("violations = %v", vs)
	}
	if list, _ := repo.List(ctx); len(list) != 0 {
		t.Errorf("repository should be untouched, has %d templates", len(list))
	}
}

func TestSession_UndoAndCancel(t *testing.T) {
	s := New(backend.NewMemoryRepository(), "Intro", testLogger())

	if _, err := s.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("Undo() on fresh session error = %v", err)
	}

	s.AddTrack(template.KindText, template.DefaultTextTrack())
	s.AddTrack(template.KindEffect, template.DefaultEffectTrack())

	d, err := s.Undo()
	if err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if d.Summary() != (template.Summary{Texts: 1}) {
		t.Errorf("after undo = %+v", d.Summary())
	}

	if err := s.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if s.Dirty() {
		t.Error("Cancel() should restore the baseline")
	}
	if s.Draft().Summary() != (template.Summary{}) {
		t.Errorf("after cancel = %+v", s.Draft().Summary())
	}
}

func TestSession_ApplyErrorKeepsDraft(t *testing.T) {
	s := New(backend.NewMemoryRepository(), "Intro", testLogger())

	_, err := s.RemoveTrack(template.KindText, 0)
	if !errors.Is(err, template.ErrIndexOutOfRange) {
		t.Fatalf("RemoveTrack() error = %v", err)
	}
	if s.Dirty() {
		t.Error("failed edit should not dirty the session")
	}
	if _, err := s.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Error("failed edit should not push undo history")
	}
}

func TestSession_DisposeDuringSave(t *testing.T) {
	ctx := context.Background()
	repo := newBlockingRepo()
	s := New(repo, "Intro", testLogger())
	s.AddTrack(template.KindText, template.DefaultTextTrack())
	before := s.Draft()

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Save(ctx)
		done <- err
	}()

	<-repo.started
	s.Dispose()
	close(repo.release)

	if err := <-done; !errors.Is(err, ErrDisposed) {
		t.Fatalf("Save() error = %v, want ErrDisposed", err)
	}
	after := s.Draft()
	if after.ID != before.ID || !after.IsDraft() {
		t.Error("disposed session state changed after late save")
	}

	s.Dispose()
	if _, err := s.AddTrack(template.KindText, template.DefaultTextTrack()); !errors.Is(err, ErrDisposed) {
		t.Errorf("AddTrack() after dispose error = %v", err)
	}
}

func TestSession_DeleteTreatsMissingAsSuccess(t *testing.T) {
	ctx := context.Background()
	repo := backend.NewMemoryRepository()
	created, _ := repo.Create(ctx, "Intro", template.Tracks{})

	s, _ := Open(ctx, repo, created.ID, testLogger())
	repo.Delete(ctx, created.ID)

	if err := s.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, _, err := s.Save(ctx); !errors.Is(err, ErrDisposed) {
		t.Errorf("Save() after Delete error = %v", err)
	}
}

func TestSession_ReplaceTracksAndCanUndo(t *testing.T) {
	s := New(backend.NewMemoryRepository(), "Intro", testLogger())
	if s.CanUndo() {
		t.Fatal("fresh session should have nothing to undo")
	}

	tracks := template.Tracks{Filters: []template.FilterTrack{template.DefaultFilterTrack()}}
	got, err := s.ReplaceTracks(tracks)
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary().Filters != 1 || !s.CanUndo() {
		t.Errorf("after replace: %+v, canUndo=%v", got.Summary(), s.CanUndo())
	}

	tracks.Filters[0].EffectType = "changed"
	if s.Draft().Tracks.Filters[0].EffectType == "changed" {
		t.Error("session must not alias the caller's slice")
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	s := New(backend.NewMemoryRepository(), "Intro", testLogger())

	id := reg.Add(s)
	if got, ok := reg.Get(id); !ok || got != s {
		t.Fatalf("Get(%q) = %v, %v", id, got, ok)
	}

	reg.Close(id)
	if _, ok := reg.Get(id); ok {
		t.Error("closed session still registered")
	}
	if _, err := s.Rename("x"); !errors.Is(err, ErrDisposed) {
		t.Errorf("Rename() after Close error = %v, want ErrDisposed", err)
	}
	reg.Close(id)

	other := New(backend.NewMemoryRepository(), "Outro", testLogger())
	reg.Add(other)
	reg.CloseAll()
	if reg.Len() != 0 {
		t.Errorf("Len() = %d after CloseAll", reg.Len())
	}
	if err := other.Cancel(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Cancel() after CloseAll error = %v, want ErrDisposed", err)
	}
}
