// Package backend talks to the remote draft-editing service: template CRUD and
// batch draft generation. Every response uses the envelope
// {"success": bool, "output": ..., "error": "..."}.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/draftdesk/draftdesk-agent/internal/draft"
	"github.com/draftdesk/draftdesk-agent/internal/template"
)

var (
	// ErrNotFound is shown to the user verbatim.
	ErrNotFound   = errors.New("template no longer exists, refresh the list")
	ErrValidation = errors.New("validation error")
	ErrTransport  = errors.New("backend request failed")
)

// APIError is a failure reported by the backend, either through a non-2xx
// status or an envelope with success=false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error: HTTP %d: %s", e.StatusCode, e.Message)
}

// notFound reports whether a template call failed because the template is
// gone. Only template calls are interpreted this way; a generation failure
// mentioning a missing file stays a plain backend error.
func (e *APIError) notFound() bool {
	return e.StatusCode == http.StatusNotFound || strings.Contains(strings.ToLower(e.Message), "not found")
}

type requestIDKey struct{}

// WithRequestID makes outbound backend calls made with ctx carry id as their
// X-Request-Id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// TemplateRepository is the template store. It never caches: each call is a
// fresh round-trip. Update is a full replace of name and tracks.
type TemplateRepository interface {
	List(ctx context.Context) ([]template.Template, error)
	Get(ctx context.Context, id string) (template.Template, error)
	Create(ctx context.Context, name string, tracks template.Tracks) (template.Template, error)
	Update(ctx context.Context, id, name string, tracks template.Tracks) (template.Template, error)
	Delete(ctx context.Context, id string) error
}

type DraftGenerator interface {
	GenerateBatchDraft(ctx context.Context, req draft.Request) (draft.Result, error)
}

type Client interface {
	Templates() TemplateRepository
	Drafts() DraftGenerator
}

func requireName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	return nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: template id is required", ErrValidation)
	}
	return nil
}
