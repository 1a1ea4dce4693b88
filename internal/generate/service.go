// Package generate submits draft requests to the backend and records every
// attempt in the local generation history.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/draftdesk/draftdesk-agent/internal/backend"
	"github.com/draftdesk/draftdesk-agent/internal/draft"
	"github.com/draftdesk/draftdesk-agent/internal/logging"
	"github.com/draftdesk/draftdesk-agent/internal/store"
	"github.com/google/uuid"
)

type Service struct {
	repo      store.Repository
	generator backend.DraftGenerator
	logger    *slog.Logger

	// defaultDraftFolder is used when neither the form nor the stored
	// settings name one.
	defaultDraftFolder string

	mu         sync.RWMutex
	onComplete func(*store.Generation)
}

func NewService(repo store.Repository, generator backend.DraftGenerator, defaultDraftFolder string, logger *slog.Logger) *Service {
	return &Service{
		repo:               repo,
		generator:          generator,
		defaultDraftFolder: defaultDraftFolder,
		logger:             logger,
	}
}

// OnComplete registers fn to run after each generation finishes, successful
// or not.
func (s *Service) OnComplete(fn func(*store.Generation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = fn
}

// Generate validates in and, when it is clean, sends it to the backend.
// Violations are returned without recording anything. When the backend call
// fails the failed generation is returned along with the error.
func (s *Service) Generate(ctx context.Context, in draft.Input) (*store.Generation, []draft.Violation, error) {
	if strings.TrimSpace(in.DraftFolder) == "" {
		folder, err := s.draftFolder(ctx)
		if err != nil {
			return nil, nil, err
		}
		in.DraftFolder = folder
	}

	req, violations := draft.Build(in)
	if len(violations) > 0 {
		s.logger.Debug("draft request rejected", "violations", len(violations))
		return nil, violations, nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal draft request: %w", err)
	}

	now := time.Now()
	gen := &store.Generation{
		ID:         uuid.NewString(),
		TemplateID: in.TemplateID,
		Request:    body,
		Status:     store.GenerationStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateGeneration(ctx, gen); err != nil {
		return nil, nil, fmt.Errorf("record generation: %w", err)
	}

	logger := s.logger.With("generation_id", gen.ID)
	logger.Info("submitting draft request",
		"video_dir", logging.SanitizePath(req.VideoDir),
		"draft_folder", logging.SanitizePath(req.DraftFolder),
		"has_crop", req.ImageCropSettings != nil,
	)

	result, genErr := s.generator.GenerateBatchDraft(ctx, req)

	// The history must reflect the outcome even if the caller went away.
	recordCtx := context.WithoutCancel(ctx)
	if genErr != nil {
		gen.Status = store.GenerationStatusFailed
		gen.Error = genErr.Error()
		logger.Warn("draft generation failed", "error", genErr)
	} else {
		gen.Status = store.GenerationStatusSucceeded
		gen.DraftID = result.DraftID
		logger.Info("draft generated", "draft_id", result.DraftID)
		if err := s.repo.SetConfig(recordCtx, store.KeyLastDraftID, result.DraftID); err != nil {
			logger.Warn("failed to store last draft id", "error", err)
		}
	}
	gen.UpdatedAt = time.Now()

	if err := s.repo.CompleteGeneration(recordCtx, gen.ID, gen.Status, gen.DraftID, gen.Error); err != nil {
		logger.Error("failed to update generation", "error", err)
	}

	s.mu.RLock()
	hook := s.onComplete
	s.mu.RUnlock()
	if hook != nil {
		hook(gen)
	}

	if genErr != nil {
		return gen, nil, fmt.Errorf("generate draft: %w", genErr)
	}
	return gen, nil, nil
}

func (s *Service) History(ctx context.Context, limit int) ([]*store.Generation, error) {
	return s.repo.ListGenerations(ctx, limit)
}

// Get returns nil, nil for an unknown id.
func (s *Service) Get(ctx context.Context, id string) (*store.Generation, error) {
	return s.repo.GetGeneration(ctx, id)
}

// LastDraftID returns the id of the most recent successful draft, or "".
func (s *Service) LastDraftID(ctx context.Context) (string, error) {
	return s.repo.GetConfig(ctx, store.KeyLastDraftID)
}

func (s *Service) draftFolder(ctx context.Context) (string, error) {
	folder, err := s.repo.GetConfig(ctx, store.KeyDraftFolder)
	if err != nil {
		return "", fmt.Errorf("load draft folder setting: %w", err)
	}
	if folder == "" {
		folder = s.defaultDraftFolder
	}
	return folder, nil
}
