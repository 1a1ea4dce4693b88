package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/draftdesk/draftdesk-agent/internal/crop"
	"github.com/draftdesk/draftdesk-agent/internal/draft"
	"github.com/draftdesk/draftdesk-agent/internal/template"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeEnvelope(w http.ResponseWriter, status int, output any, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": errMsg == "",
		"output":  output,
		"error":   errMsg,
	})
}

func TestHTTPClient_GenerateBatchDraft(t *testing.T) {
	var received map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate_batch_draft" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Error("expected X-Request-Id header")
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		writeEnvelope(w, http.StatusOK, map[string]string{"draft_id": "dfd_123"}, "")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second, testLogger())

	req, vs := draft.Build(draft.Input{
		VideoDir:    "/v",
		AudioDir:    "/a",
		DraftFolder: "/d",
		Crop:        &crop.Rectangle{WidthPct: 50, HeightPct: 50},
	})
	if len(vs) != 0 {
		t.Fatalf("violations = %v", vs)
	}

	result, err := client.Drafts().GenerateBatchDraft(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateBatchDraft() error = %v", err)
	}
	if result.DraftID != "dfd_123" {
		t.Errorf("draft_id = %q, want dfd_123", result.DraftID)
	}

	if received["video_dir"] != "/v" || received["draft_folder"] != "/d" {
		t.Errorf("payload = %v", received)
	}
	if _, ok := received["draft_name"]; ok {
		t.Error("draft_name should be omitted")
	}
	cropSettings, ok := received["image_crop_settings"].(map[string]any)
	if !ok {
		t.Fatalf("image_crop_settings missing: %v", received)
	}
	if cropSettings["lower_right_x"] != 0.5 {
		t.Errorf("lower_right_x = %v, want 0.5", cropSettings["lower_right_x"])
	}
}

func TestHTTPClient_GenerateBatchDraft_EnvelopeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "", "Hi, the required parameters 'video_dir' are missing.")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second, testLogger())
	_, err := client.GenerateBatchDraft(context.Background(), draft.Request{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if !strings.Contains(apiErr.Message, "video_dir") {
		t.Errorf("message = %q", apiErr.Message)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("envelope failure should not match ErrNotFound")
	}
}

func TestHTTPClient_GenerateBatchDraft_MissingDraftID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]string{}, "")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second, testLogger())
	if _, err := client.GenerateBatchDraft(context.Background(), draft.Request{}); err == nil {
		t.Fatal("expected error when draft_id is missing")
	}
}

func TestHTTPClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewHTTPClient(url, time.Second, testLogger())
	_, err := client.Templates().List(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
}

func TestHTTPClient_NonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second, testLogger())
	_, err := client.Templates().List(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "upstream down" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, []any{}, "")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Templates().List(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestHTTPTemplateService_List(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/templates" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"output":[
			{"id":"t1","name":"Intro","updated_at":1700000000000,
			 "tracks":{"texts":[{"text":"Hi","start":0,"end":5,"font_size":8,"font_color":"#FFFFFF"}],"effects":[],"filters":null}}
		],"error":""}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second, testLogger())
	templates, err := client.Templates().List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("templates = %d, want 1", len(templates))
	}
	got := templates[0]
	if got.ID != "t1" || got.Tracks.Texts[0].Text != "Hi" {
		t.Errorf("template = %+v", got)
	}
	if got.Tracks.Filters == nil {
		t.Error("null filters should decode as empty")
	}
	if got.UpdatedAt.UnixMilli() != 1700000000000 {
		t.Errorf("UpdatedAt = %v", got.UpdatedAt)
	}
}

func TestHTTPTemplateService_ListEmptyOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"output":null}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second, testLogger())
	templates, err := client.Templates().List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if templates == nil || len(templates) != 0 {
		t.Errorf("templates = %v, want empty slice", templates)
	}
}

func TestHTTPTemplateService_CreateSendsFullTracks(t *testing.T) {
	var body map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/templates" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		writeEnvelope(w, http.StatusOK, map[string]any{"id": "new-id", "name": "Intro", "tracks": body["tracks"]}, "")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second, testLogger())
	created, err := client.Templates().Create(context.Background(), "Intro", template.Tracks{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != "new-id" {
		t.Errorf("ID = %q, want new-id", created.ID)
	}

	tracks, ok := body["tracks"].(map[string]any)
	if !ok {
		t.Fatalf("tracks missing from body: %v", body)
	}
	for _, key := range []string{"texts", "effects", "filters"} {
		if list, ok := tracks[key].([]any); !ok || list == nil {
			t.Errorf("tracks.%s = %v, want empty list", key, tracks[key])
		}
	}
}

func TestHTTPTemplateService_CreateRejectsEmptyName(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:1", time.Second, testLogger())
	_, err := client.Templates().Create(context.Background(), "  ", template.Tracks{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestHTTPTemplateService_UpdateNotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"404 status", func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusNotFound, nil, "missing")
		}},
		{"envelope message", func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusOK, nil, "Template not found")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var method, path string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				method, path = r.Method, r.URL.Path
				tt.handler(w, r)
			}))
			defer server.Close()

			client := NewHTTPClient(server.URL, time.Second, testLogger())
			_, err := client.Templates().Update(context.Background(), "gone", "Intro", template.Tracks{})
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("error = %v, want ErrNotFound", err)
			}
			if method != http.MethodPut || path != "/templates/gone" {
				t.Errorf("request = %s %s, want PUT /templates/gone", method, path)
			}
		})
	}
}

func TestHTTPTemplateService_Delete(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		writeEnvelope(w, http.StatusOK, "", "")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second, testLogger())
	if err := client.Templates().Delete(context.Background(), "t1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if method != http.MethodDelete || path != "/templates/t1" {
		t.Errorf("request = %s %s", method, path)
	}
}

func TestHTTPClient_SetBaseURL(t *testing.T) {
	client := NewHTTPClient("http://127.0.0.1:9001", time.Second, testLogger())

	if err := client.SetBaseURL("ftp://example.com"); err == nil {
		t.Error("SetBaseURL(ftp) should fail")
	}
	if err := client.SetBaseURL("http://10.0.0.2:9001/"); err != nil {
		t.Fatalf("SetBaseURL() error = %v", err)
	}
	if got := client.BaseURL(); got != "http://10.0.0.2:9001" {
		t.Errorf("BaseURL() = %q", got)
	}
}

func TestClientsImplementInterface(t *testing.T) {
	var _ Client = (*HTTPClient)(nil)
	var _ Client = (*StubClient)(nil)
	var _ TemplateRepository = (*MemoryRepository)(nil)
}

func TestHTTPClient_GenerateBatchDraft_NotFoundMessageIsNotTemplateNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, nil, "Error occurred while generating batch draft: audio file not found.")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 5*time.Second, testLogger())
	_, err := client.GenerateBatchDraft(context.Background(), draft.Request{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("generation failure must not match ErrNotFound")
	}
}

func TestHTTPTemplateService_GetNotFoundKeepsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, nil, "Template not found")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second, testLogger())
	_, err := client.Templates().Get(context.Background(), "gone")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestHTTPClient_ForwardsRequestID(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-Id")
		writeEnvelope(w, http.StatusOK, []any{}, "")
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, time.Second, testLogger())
	ctx := WithRequestID(context.Background(), "req-42")
	if _, err := client.Templates().List(ctx); err != nil {
		t.Fatal(err)
	}
	if got != "req-42" {
		t.Errorf("X-Request-Id = %q, want req-42", got)
	}
}
