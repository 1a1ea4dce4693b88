package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/draftdesk/draftdesk-agent/internal/draft"
	"github.com/draftdesk/draftdesk-agent/internal/template"
	"github.com/google/uuid"
)

const maxResponseBytes = 4 << 20

type envelope struct {
	Success bool            `json:"success"`
	Output  json.RawMessage `json:"output,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type templatePayload struct {
	Name   string          `json:"name"`
	Tracks template.Tracks `json:"tracks"`
}

// HTTPClient talks to the backend over HTTP. It does not retry; a failed call
// is reported once and the caller decides what to do.
type HTTPClient struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	templates *HTTPTemplateService
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
	c.templates = &HTTPTemplateService{client: c}
	return c
}

func (c *HTTPClient) Templates() TemplateRepository {
	return c.templates
}

func (c *HTTPClient) Drafts() DraftGenerator {
	return c
}

func (c *HTTPClient) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL points the client at a different backend. In-flight requests keep
// the URL they started with.
func (c *HTTPClient) SetBaseURL(raw string) error {
	normalized, err := NormalizeBaseURL(raw)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.baseURL = normalized
	c.mu.Unlock()
	c.logger.Info("backend base URL changed", "base_url", normalized)
	return nil
}

func (c *HTTPClient) GenerateBatchDraft(ctx context.Context, req draft.Request) (draft.Result, error) {
	var result draft.Result
	if err := c.do(ctx, http.MethodPost, "/generate_batch_draft", req, &result); err != nil {
		return draft.Result{}, err
	}
	if result.DraftID == "" {
		return draft.Result{}, &APIError{StatusCode: http.StatusOK, Message: "response did not include a draft_id"}
	}
	return result, nil
}

// do sends body as JSON and decodes the envelope output into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.BaseURL() + path
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := requestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"body_bytes", len(respBody),
		"request_id", requestID,
	)

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		return fmt.Errorf("decode response envelope: %w", err)
	}

	if !env.Success || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Output) > 0 && string(env.Output) != "null" {
		if err := json.Unmarshal(env.Output, out); err != nil {
			return fmt.Errorf("decode response output: %w", err)
		}
	}
	return nil
}

// HTTPTemplateService implements TemplateRepository against {baseURL}/templates.
type HTTPTemplateService struct {
	client *HTTPClient
}

func (s *HTTPTemplateService) List(ctx context.Context) ([]template.Template, error) {
	var out []template.Template
	if err := s.client.do(ctx, http.MethodGet, "/templates", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []template.Template{}
	}
	return out, nil
}

func (s *HTTPTemplateService) Get(ctx context.Context, id string) (template.Template, error) {
	if err := requireID(id); err != nil {
		return template.Template{}, err
	}
	var out template.Template
	if err := s.client.do(ctx, http.MethodGet, templatePath(id), nil, &out); err != nil {
		return template.Template{}, templateError(err)
	}
	if out.ID == "" {
		return template.Template{}, ErrNotFound
	}
	return out, nil
}

func (s *HTTPTemplateService) Create(ctx context.Context, name string, tracks template.Tracks) (template.Template, error) {
	if err := requireName(name); err != nil {
		return template.Template{}, err
	}
	var out template.Template
	payload := templatePayload{Name: name, Tracks: tracks.Clone()}
	if err := s.client.do(ctx, http.MethodPost, "/templates", payload, &out); err != nil {
		return template.Template{}, err
	}
	s.client.logger.Info("template created", "template_id", out.ID, "name", out.Name)
	return out, nil
}

func (s *HTTPTemplateService) Update(ctx context.Context, id, name string, tracks template.Tracks) (template.Template, error) {
	if err := requireID(id); err != nil {
		return template.Template{}, err
	}
	if err := requireName(name); err != nil {
		return template.Template{}, err
	}
	var out template.Template
	payload := templatePayload{Name: name, Tracks: tracks.Clone()}
	if err := s.client.do(ctx, http.MethodPut, templatePath(id), payload, &out); err != nil {
		return template.Template{}, templateError(err)
	}
	s.client.logger.Info("template updated", "template_id", id)
	return out, nil
}

// Delete reports ErrNotFound only when the backend says so.
func (s *HTTPTemplateService) Delete(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	if err := s.client.do(ctx, http.MethodDelete, templatePath(id), nil, nil); err != nil {
		return templateError(err)
	}
	s.client.logger.Info("template deleted", "template_id", id)
	return nil
}

// templateError marks a backend failure on a single template as ErrNotFound
// when the backend says the template does not exist. The *APIError stays in
// the chain.
func templateError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.notFound() {
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	}
	return err
}

func templatePath(id string) string {
	return "/templates/" + url.PathEscape(id)
}
