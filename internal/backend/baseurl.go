package backend

import (
	"fmt"
	"net/url"
	"strings"
)

const DefaultBaseURL = "http://127.0.0.1:9001"

// NormalizeBaseURL validates a backend base URL and strips trailing slashes.
// An empty value falls back to DefaultBaseURL.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultBaseURL
	}
	raw = strings.TrimRight(raw, "/")

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("invalid backend URL %q: absolute URL with host is required", raw)
	}
	if u.User != nil {
		return "", fmt.Errorf("invalid backend URL %q: userinfo is not allowed", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("invalid backend URL %q: query and fragment are not allowed", raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("invalid backend URL %q: scheme must be http or https", raw)
	}
	return raw, nil
}
