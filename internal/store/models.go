// Package store persists agent settings and the history of draft generation
// requests in the local sqlite database.
package store

import (
	"encoding/json"
	"time"
)

const (
	GenerationStatusPending   = "pending"
	GenerationStatusSucceeded = "succeeded"
	GenerationStatusFailed    = "failed"
)

// Generation is one submitted draft request. Request holds the exact JSON body
// that was sent to the backend.
type Generation struct {
	ID         string          `json:"id"`
	TemplateID string          `json:"template_id,omitempty"`
	Request    json.RawMessage `json:"request"`
	Status     string          `json:"status"`
	DraftID    string          `json:"draft_id,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (g *Generation) Done() bool {
	return g.Status == GenerationStatusSucceeded || g.Status == GenerationStatusFailed
}

// Config keys.
const (
	KeyDraftFolder = "draft_folder"
	KeyBackendURL  = "backend_url"
	KeyAuthToken   = "auth_token"
	KeyLastDraftID = "last_draft_id"
)
