package api

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/draftdesk/draftdesk-agent/internal/template"
	"github.com/go-chi/chi/v5"
)

const yamlContentType = "application/yaml"

var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// exportTemplateHandler serves a stored template as a YAML file download.
func exportTemplateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := cfg.Templates.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeBackendError(w, cfg, r, err)
			return
		}

		data, err := template.EncodeYAML(t)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to encode template", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", yamlContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.yaml"`, exportFilename(t.Name)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// importTemplateHandler creates a new template from a YAML file body.
func importTemplateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			WriteError(w, http.StatusRequestEntityTooLarge, "template file is too large", "BAD_REQUEST")
			return
		}

		t, err := template.DecodeYAML(data)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_TEMPLATE_FILE")
			return
		}
		if vs := template.Validate(t); len(vs) > 0 {
			writeTemplateViolations(w, vs)
			return
		}

		created, err := cfg.Templates.Create(r.Context(), t.Name, t.Tracks)
		if err != nil {
			writeBackendError(w, cfg, r, err)
			return
		}

		cfg.Logger.Info("template imported", "template_id", created.ID, "summary", created.Summary())
		WriteJSON(w, http.StatusCreated, TemplateToResponse(created))
	}
}

func exportFilename(name string) string {
	s := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	s = strings.Trim(s, "._")
	if r := []rune(s); len(r) > 120 {
		s = string(r[:120])
	}
	if s == "" {
		return "template"
	}
	return s
}
