package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/draftdesk/draftdesk-agent/internal/backend"
	"github.com/draftdesk/draftdesk-agent/internal/crop"
	"github.com/draftdesk/draftdesk-agent/internal/draft"
	"github.com/draftdesk/draftdesk-agent/internal/editor"
	"github.com/draftdesk/draftdesk-agent/internal/logging"
	"github.com/draftdesk/draftdesk-agent/internal/media"
	"github.com/draftdesk/draftdesk-agent/internal/store"
	"github.com/draftdesk/draftdesk-agent/internal/template"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Sessions == nil {
		cfg.Sessions = editor.NewRegistry()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Store, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/settings", getSettingsHandler(cfg))
		r.Put("/settings", putSettingsHandler(cfg))
		r.Post("/settings/draft-folder/pick", pickDraftFolderHandler(cfg))

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", listTemplatesHandler(cfg))
			r.Post("/", createTemplateHandler(cfg))
			r.Post("/validate", validateTemplateHandler(cfg))
			r.Post("/import", importTemplateHandler(cfg))
			r.Get("/{id}", getTemplateHandler(cfg))
			r.Put("/{id}", updateTemplateHandler(cfg))
			r.Delete("/{id}", deleteTemplateHandler(cfg))
			r.Get("/{id}/export", exportTemplateHandler(cfg))
		})

		r.Route("/sessions", sessionRoutes(cfg))

		r.Post("/drafts", generateDraftHandler(cfg))
		r.Get("/drafts", listDraftsHandler(cfg))
		r.Get("/drafts/{id}", getDraftHandler(cfg))

		r.Get("/images/first", firstImageHandler(cfg))
		r.Post("/crop/normalize", normalizeCropHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
			Offline: cfg.Offline,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		settings, _ := store.LoadSettings(ctx, cfg.Store, cfg.Defaults)
		generations, _ := cfg.Drafts.History(ctx, 10)
		lastDraftID, _ := cfg.Drafts.LastDraftID(ctx)

		resp := StatusResponse{
			State:          "idle",
			DraftFolderSet: settings.DraftFolder != "",
			LastDraftID:    lastDraftID,
		}

		for _, g := range generations {
			if g.Status == store.GenerationStatusPending {
				resp.State = "generating"
				resp.GenerationsActive++
			}
		}
		// Only the newest finished generation decides the error state.
		for _, g := range generations {
			if !g.Done() {
				continue
			}
			if g.Status == store.GenerationStatusFailed {
				resp.LastError = g.Error
				if resp.State == "idle" {
					resp.State = "error"
				}
			}
			break
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func getSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := store.LoadSettings(r.Context(), cfg.Store, cfg.Defaults)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load settings", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, SettingsResponse(settings))
	}
}

func putSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SettingsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		settings, err := store.LoadSettings(r.Context(), cfg.Store, cfg.Defaults)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load settings", "INTERNAL_ERROR")
			return
		}
		if req.DraftFolder != nil {
			settings.DraftFolder = strings.TrimSpace(*req.DraftFolder)
		}
		if req.BackendURL != nil {
			normalized, err := backend.NormalizeBaseURL(*req.BackendURL)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_BACKEND_URL")
				return
			}
			settings.BackendURL = normalized
		}

		if err := store.SaveSettings(r.Context(), cfg.Store, settings); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_SETTINGS")
			return
		}
		if cfg.OnSettingsChanged != nil {
			if err := cfg.OnSettingsChanged(settings); err != nil {
				WriteError(w, http.StatusInternalServerError, err.Error(), "SETTINGS_NOT_APPLIED")
				return
			}
		}

		WriteJSON(w, http.StatusOK, SettingsResponse(settings))
	}
}

func pickDraftFolderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Picker == nil {
			WriteError(w, http.StatusNotImplemented, "no directory picker available", "NOT_SUPPORTED")
			return
		}

		path, err := cfg.Picker.Pick(r.Context(), "Choose the draft folder")
		if errors.Is(err, media.ErrCancelled) {
			WriteJSON(w, http.StatusOK, PickFolderResponse{Cancelled: true})
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "PICKER_FAILED")
			return
		}

		settings, err := store.LoadSettings(r.Context(), cfg.Store, cfg.Defaults)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load settings", "INTERNAL_ERROR")
			return
		}
		settings.DraftFolder = path
		if err := store.SaveSettings(r.Context(), cfg.Store, settings); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_SETTINGS")
			return
		}
		if cfg.OnSettingsChanged != nil {
			if err := cfg.OnSettingsChanged(settings); err != nil {
				cfg.Logger.Warn("settings change hook failed", "error", err)
			}
		}

		cfg.Logger.Info("draft folder chosen", "draft_folder", logging.SanitizePath(path))
		WriteJSON(w, http.StatusOK, PickFolderResponse{Path: path})
	}
}

func listTemplatesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := cfg.Templates.List(r.Context())
		if err != nil {
			writeBackendError(w, cfg, r, err)
			return
		}

		resp := TemplatesResponse{Templates: make([]TemplateResponse, len(templates))}
		for i, t := range templates {
			resp.Templates[i] = TemplateToResponse(t)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getTemplateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := cfg.Templates.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeBackendError(w, cfg, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, TemplateToResponse(t))
	}
}

func createTemplateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TemplateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		t := req.Template()
		if vs := template.Validate(t); len(vs) > 0 {
			writeTemplateViolations(w, vs)
			return
		}

		created, err := cfg.Templates.Create(r.Context(), t.Name, t.Tracks)
		if err != nil {
			writeBackendError(w, cfg, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, TemplateToResponse(created))
	}
}

func updateTemplateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TemplateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		t := req.Template()
		if vs := template.Validate(t); len(vs) > 0 {
			writeTemplateViolations(w, vs)
			return
		}

		updated, err := cfg.Templates.Update(r.Context(), chi.URLParam(r, "id"), t.Name, t.Tracks)
		if err != nil {
			writeBackendError(w, cfg, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, TemplateToResponse(updated))
	}
}

// deleteTemplateHandler treats an already-deleted template as success.
func deleteTemplateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := cfg.Templates.Delete(r.Context(), chi.URLParam(r, "id"))
		if err != nil && !errors.Is(err, backend.ErrNotFound) {
			writeBackendError(w, cfg, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func validateTemplateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TemplateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		vs := template.Validate(req.Template())
		if vs == nil {
			vs = []template.Violation{}
		}
		WriteJSON(w, http.StatusOK, ValidateTemplateResponse{Valid: len(vs) == 0, Violations: vs})
	}
}

func generateDraftHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in draft.Input
		if err := decodeJSON(w, r, &in); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		gen, violations, err := cfg.Drafts.Generate(r.Context(), in)
		if len(violations) > 0 {
			WriteJSON(w, http.StatusUnprocessableEntity, DraftViolationsResponse{
				Error:      "draft request is incomplete",
				Code:       "VALIDATION_FAILED",
				Violations: DraftViolationsToResponse(violations),
			})
			return
		}
		if err != nil {
			writeBackendError(w, cfg, r, err)
			return
		}

		WriteJSON(w, http.StatusCreated, GenerationToResponse(gen))
	}
}

func listDraftsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 500 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500", "BAD_REQUEST")
				return
			}
			limit = n
		}

		generations, err := cfg.Drafts.History(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list generations", "INTERNAL_ERROR")
			return
		}

		resp := GenerationsResponse{Generations: make([]GenerationResponse, len(generations))}
		for i, g := range generations {
			resp.Generations[i] = GenerationToResponse(g)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getDraftHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gen, err := cfg.Drafts.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if gen == nil {
			WriteError(w, http.StatusNotFound, "generation not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, GenerationToResponse(gen))
	}
}

func firstImageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dir := r.URL.Query().Get("dir")
		if dir == "" {
			WriteError(w, http.StatusBadRequest, "dir is required", "BAD_REQUEST")
			return
		}
		if !filepath.IsAbs(dir) {
			WriteError(w, http.StatusBadRequest, "dir must be an absolute path", "BAD_REQUEST")
			return
		}

		img, ok, err := media.FirstImage(dir)
		if err != nil {
			cfg.Logger.Warn("image preview failed", "dir", logging.SanitizePath(dir), "error", err)
			WriteError(w, http.StatusBadRequest, err.Error(), "IMAGE_DIR_UNREADABLE")
			return
		}
		if !ok {
			WriteJSON(w, http.StatusOK, FirstImageResponse{})
			return
		}
		WriteJSON(w, http.StatusOK, FirstImageResponse{Image: &img})
	}
}

func normalizeCropHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rect crop.Rectangle
		if err := decodeJSON(w, r, &rect); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		corners, err := crop.Normalize(rect)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), string(draft.CodeInvalidCropRegion))
			return
		}
		WriteJSON(w, http.StatusOK, NormalizeCropResponse{Corners: corners})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeTemplateViolations(w http.ResponseWriter, vs []template.Violation) {
	WriteJSON(w, http.StatusUnprocessableEntity, TemplateViolationsResponse{
		Error:      "template has invalid fields",
		Code:       "VALIDATION_FAILED",
		Violations: vs,
	})
}

// writeBackendError maps repository and generator errors to responses.
func writeBackendError(w http.ResponseWriter, cfg ServerConfig, r *http.Request, err error) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, backend.ErrValidation):
		WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, backend.ErrNotFound):
		WriteError(w, http.StatusNotFound, backend.ErrNotFound.Error(), "NOT_FOUND")
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, "backend did not respond in time", "BACKEND_TIMEOUT")
	case errors.Is(err, backend.ErrTransport):
		WriteError(w, http.StatusBadGateway, "backend is unreachable", "BACKEND_UNAVAILABLE")
	case errors.As(err, &apiErr):
		WriteError(w, http.StatusBadGateway, apiErr.Message, "BACKEND_ERROR")
	default:
		cfg.Logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", requestID(r))
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
