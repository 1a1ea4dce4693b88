package api

import (
	"encoding/json"
	"time"

	"github.com/draftdesk/draftdesk-agent/internal/crop"
	"github.com/draftdesk/draftdesk-agent/internal/draft"
	"github.com/draftdesk/draftdesk-agent/internal/editor"
	"github.com/draftdesk/draftdesk-agent/internal/media"
	"github.com/draftdesk/draftdesk-agent/internal/store"
	"github.com/draftdesk/draftdesk-agent/internal/template"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	Offline bool   `json:"offline"`
}

type StatusResponse struct {
	State             string `json:"state"`
	DraftFolderSet    bool   `json:"draft_folder_set"`
	LastDraftID       string `json:"last_draft_id,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	GenerationsActive int    `json:"generations_active"`
}

type SettingsResponse struct {
	DraftFolder string `json:"draft_folder"`
	BackendURL  string `json:"backend_url"`
}

type SettingsRequest struct {
	DraftFolder *string `json:"draft_folder,omitempty"`
	BackendURL  *string `json:"backend_url,omitempty"`
}

type PickFolderResponse struct {
	Path      string `json:"path,omitempty"`
	Cancelled bool   `json:"cancelled"`
}

type TemplateRequest struct {
	Name   string          `json:"name"`
	Tracks template.Tracks `json:"tracks"`
}

func (r TemplateRequest) Template() template.Template {
	return template.Template{Name: r.Name, Tracks: r.Tracks.Clone()}
}

type TemplateResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Tracks    template.Tracks  `json:"tracks"`
	Summary   template.Summary `json:"summary"`
	CreatedAt string           `json:"created_at,omitempty"`
	UpdatedAt string           `json:"updated_at,omitempty"`
}

type TemplatesResponse struct {
	Templates []TemplateResponse `json:"templates"`
}

type ValidateTemplateResponse struct {
	Valid      bool                 `json:"valid"`
	Violations []template.Violation `json:"violations"`
}

type TemplateViolationsResponse struct {
	Error      string               `json:"error"`
	Code       string               `json:"code"`
	Violations []template.Violation `json:"violations"`
}

type DraftViolationResponse struct {
	Code    draft.Code    `json:"code"`
	Field   string        `json:"field"`
	Message string        `json:"message"`
	Surface draft.Surface `json:"surface"`
}

type DraftViolationsResponse struct {
	Error      string                   `json:"error"`
	Code       string                   `json:"code"`
	Violations []DraftViolationResponse `json:"violations"`
}

type GenerationResponse struct {
	ID         string          `json:"id"`
	TemplateID string          `json:"template_id,omitempty"`
	Status     string          `json:"status"`
	DraftID    string          `json:"draft_id,omitempty"`
	Error      string          `json:"error,omitempty"`
	Request    json.RawMessage `json:"request"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

type GenerationsResponse struct {
	Generations []GenerationResponse `json:"generations"`
}

type FirstImageResponse struct {
	Image *media.Image `json:"image"`
}

type NormalizeCropResponse struct {
	Corners crop.Corners `json:"corners"`
}

type OpenSessionRequest struct {
	TemplateID string `json:"template_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

type RenameSessionRequest struct {
	Name string `json:"name"`
}

type ReplaceTracksRequest struct {
	Tracks template.Tracks `json:"tracks"`
}

type AddTrackRequest struct {
	Kind  string          `json:"kind"`
	Track json.RawMessage `json:"track,omitempty"`
}

type SessionResponse struct {
	ID       string           `json:"id"`
	Template TemplateResponse `json:"template"`
	Dirty    bool             `json:"dirty"`
	CanUndo  bool             `json:"can_undo"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func TemplateToResponse(t template.Template) TemplateResponse {
	return TemplateResponse{
		ID:        t.ID,
		Name:      t.Name,
		Tracks:    t.Tracks.Clone(),
		Summary:   t.Summary(),
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	}
}

func SessionToResponse(id string, s *editor.Session) SessionResponse {
	return SessionResponse{
		ID:       id,
		Template: TemplateToResponse(s.Draft()),
		Dirty:    s.Dirty(),
		CanUndo:  s.CanUndo(),
	}
}

func GenerationToResponse(g *store.Generation) GenerationResponse {
	return GenerationResponse{
		ID:         g.ID,
		TemplateID: g.TemplateID,
		Status:     g.Status,
		DraftID:    g.DraftID,
		Error:      g.Error,
		Request:    g.Request,
		CreatedAt:  g.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  g.UpdatedAt.Format(time.RFC3339),
	}
}

func DraftViolationsToResponse(vs []draft.Violation) []DraftViolationResponse {
	out := make([]DraftViolationResponse, len(vs))
	for i, v := range vs {
		out[i] = DraftViolationResponse{
			Code:    v.Code,
			Field:   v.Field,
			Message: v.Message,
			Surface: v.Surface(),
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
