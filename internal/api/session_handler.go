package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/draftdesk/draftdesk-agent/internal/editor"
	"github.com/draftdesk/draftdesk-agent/internal/template"
	"github.com/go-chi/chi/v5"
)

// Session routes let the shell edit one template at a time on the agent. The
// working draft lives here until save, so a closed window cannot leave a
// half-written template on the backend.

func sessionRoutes(cfg ServerConfig) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/", openSessionHandler(cfg))
		r.Route("/{sid}", func(r chi.Router) {
			r.Get("/", withSession(cfg, getSession))
			r.Delete("/", closeSessionHandler(cfg))
			r.Put("/name", withSession(cfg, renameSession))
			r.Put("/tracks", withSession(cfg, replaceSessionTracks))
			r.Post("/tracks", withSession(cfg, addSessionTrack))
			r.Delete("/tracks/{kind}/{index}", withSession(cfg, removeSessionTrack))
			r.Post("/undo", withSession(cfg, undoSession))
			r.Post("/cancel", withSession(cfg, cancelSession))
			r.Post("/save", withSession(cfg, saveSession))
			r.Delete("/template", deleteSessionTemplateHandler(cfg))
		})
	}
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, cfg ServerConfig, id string, s *editor.Session)

func withSession(cfg ServerConfig, h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sid")
		s, ok := cfg.Sessions.Get(id)
		if !ok {
			WriteError(w, http.StatusNotFound, "editor session not found", "SESSION_NOT_FOUND")
			return
		}
		h(w, r, cfg, id, s)
	}
}

func openSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenSessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var s *editor.Session
		if req.TemplateID != "" {
			opened, err := editor.Open(r.Context(), cfg.Templates, req.TemplateID, cfg.Logger)
			if err != nil {
				writeBackendError(w, cfg, r, err)
				return
			}
			s = opened
		} else {
			s = editor.New(cfg.Templates, req.Name, cfg.Logger)
		}

		id := cfg.Sessions.Add(s)
		WriteJSON(w, http.StatusCreated, SessionToResponse(id, s))
	}
}

func getSession(w http.ResponseWriter, r *http.Request, cfg ServerConfig, id string, s *editor.Session) {
	WriteJSON(w, http.StatusOK, SessionToResponse(id, s))
}

func closeSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Sessions.Close(chi.URLParam(r, "sid"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func renameSession(w http.ResponseWriter, r *http.Request, cfg ServerConfig, id string, s *editor.Session) {
	var req RenameSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	_, err := s.Rename(req.Name)
	writeSessionResult(w, id, s, err)
}

func replaceSessionTracks(w http.ResponseWriter, r *http.Request, cfg ServerConfig, id string, s *editor.Session) {
	var req ReplaceTracksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	_, err := s.ReplaceTracks(req.Tracks)
	writeSessionResult(w, id, s, err)
}

func addSessionTrack(w http.ResponseWriter, r *http.Request, cfg ServerConfig, id string, s *editor.Session) {
	var req AddTrackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	kind, err := template.ParseKind(req.Kind)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_KIND")
		return
	}
	track, err := decodeTrack(kind, req.Track)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_TRACK")
		return
	}
	_, err = s.AddTrack(kind, track)
	writeSessionResult(w, id, s, err)
}

func removeSessionTrack(w http.ResponseWriter, r *http.Request, cfg ServerConfig, id string, s *editor.Session) {
	kind, err := template.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_KIND")
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "index must be an integer", "BAD_REQUEST")
		return
	}
	_, err = s.RemoveTrack(kind, index)
	writeSessionResult(w, id, s, err)
}

func undoSession(w http.ResponseWriter, r *http.Request, cfg ServerConfig, id string, s *editor.Session) {
	_, err := s.Undo()
	writeSessionResult(w, id, s, err)
}

func cancelSession(w http.ResponseWriter, r *http.Request, cfg ServerConfig, id string, s *editor.Session) {
	writeSessionResult(w, id, s, s.Cancel())
}

func saveSession(w http.ResponseWriter, r *http.Request, cfg ServerConfig, id string, s *editor.Session) {
	_, vs, err := s.Save(r.Context())
	if len(vs) > 0 {
		writeTemplateViolations(w, vs)
		return
	}
	if errors.Is(err, editor.ErrDisposed) {
		writeSessionResult(w, id, s, err)
		return
	}
	if err != nil {
		writeBackendError(w, cfg, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, SessionToResponse(id, s))
}

// deleteSessionTemplateHandler deletes the stored template and closes the
// session.
func deleteSessionTemplateHandler(cfg ServerConfig) http.HandlerFunc {
	return withSession(cfg, func(w http.ResponseWriter, r *http.Request, cfg ServerConfig, id string, s *editor.Session) {
		if err := s.Delete(r.Context()); err != nil {
			if errors.Is(err, editor.ErrDisposed) {
				writeSessionResult(w, id, s, err)
				return
			}
			writeBackendError(w, cfg, r, err)
			return
		}
		cfg.Sessions.Close(id)
		w.WriteHeader(http.StatusNoContent)
	})
}

func writeSessionResult(w http.ResponseWriter, id string, s *editor.Session, err error) {
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, SessionToResponse(id, s))
	case errors.Is(err, editor.ErrDisposed):
		WriteError(w, http.StatusGone, err.Error(), "SESSION_CLOSED")
	case errors.Is(err, editor.ErrNothingToUndo):
		WriteError(w, http.StatusConflict, err.Error(), "NOTHING_TO_UNDO")
	case errors.Is(err, template.ErrIndexOutOfRange), errors.Is(err, template.ErrKindMismatch):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_TRACK")
	default:
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// decodeTrack parses raw as a track of kind. An absent track means the
// editor's default row for that kind.
func decodeTrack(kind template.Kind, raw json.RawMessage) (template.Track, error) {
	empty := len(raw) == 0 || string(raw) == "null"
	switch kind {
	case template.KindText:
		t := template.DefaultTextTrack()
		if !empty {
			t = template.TextTrack{}
			if err := json.Unmarshal(raw, &t); err != nil {
				return nil, fmt.Errorf("decode text track: %w", err)
			}
		}
		return t, nil
	case template.KindEffect:
		t := template.DefaultEffectTrack()
		if !empty {
			t = template.EffectTrack{}
			if err := json.Unmarshal(raw, &t); err != nil {
				return nil, fmt.Errorf("decode effect track: %w", err)
			}
		}
		return t, nil
	case template.KindFilter:
		t := template.DefaultFilterTrack()
		if !empty {
			t = template.FilterTrack{}
			if err := json.Unmarshal(raw, &t); err != nil {
				return nil, fmt.Errorf("decode filter track: %w", err)
			}
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown track kind %q", kind)
}
