// Package llm is a small provider-agnostic completion client used by the
// AI incident organizer. It talks to the provider REST APIs directly over
// net/http.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrNoAPIKey is returned by NewProvider when no key is configured.
var ErrNoAPIKey = errors.New("missing API key")

// DefaultTimeout bounds a single completion request.
const DefaultTimeout = 60 * time.Second

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns "provider/model".
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // 0 = provider default
	Temperature float64 // 0 = deterministic
	Model       string  // per-request model override
	Format      string  // "json" asks for structured output
	System      string
}

// Config holds provider configuration.
type Config struct {
	Provider string // "google", "openrouter"
	Model    string // e.g. "gemini-2.5-flash", "openai/gpt-4o-mini"
	APIKey   string // empty = read from env
	BaseURL  string
	Timeout  time.Duration
}

type providerSpec struct {
	envKeys      []string
	defaultModel string
	defaultURL   string
	build        func(key, model, baseURL string, client *http.Client) Provider
}

var providers = map[string]providerSpec{
	"google": {
		envKeys:      []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		defaultModel: "gemini-2.5-flash",
		defaultURL:   "https://generativelanguage.googleapis.com/v1beta",
		build: func(key, model, baseURL string, client *http.Client) Provider {
			return &googleProvider{apiKey: key, model: model, baseURL: baseURL, client: client}
		},
	},
	"openrouter": {
		envKeys:      []string{"OPENROUTER_API_KEY"},
		defaultModel: "openai/gpt-4o-mini",
		defaultURL:   "https://openrouter.ai/api/v1",
		build: func(key, model, baseURL string, client *http.Client) Provider {
			return &openrouterProvider{apiKey: key, model: model, baseURL: baseURL, client: client}
		},
	},
}

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	spec, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: google, openrouter)", cfg.Provider)
	}

	key := strings.TrimSpace(cfg.APIKey)
	for _, env := range spec.envKeys {
		if key != "" {
			break
		}
		key = strings.TrimSpace(os.Getenv(env))
	}
	if key == "" {
		return nil, fmt.Errorf("%s provider: %w (set %s)", name, ErrNoAPIKey, strings.Join(spec.envKeys, " or "))
	}

	model := cfg.Model
	if model == "" {
		model = spec.defaultModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = spec.defaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return spec.build(key, model, baseURL, &http.Client{Timeout: timeout}), nil
}

// ParseLLMFlag parses a --llm flag value into a Config.
// Format: "provider/model", e.g. "google/gemini-2.5-flash" or
// "openrouter/openai/gpt-4o-mini".
func ParseLLMFlag(flag string) (Config, error) {
	if flag == "" {
		return Config{Provider: "google", Model: "gemini-2.5-flash"}, nil
	}

	provider, model, ok := strings.Cut(flag, "/")
	if !ok || model == "" {
		return Config{}, fmt.Errorf("invalid --llm format %q: expected provider/model (e.g., google/gemini-2.5-flash)", flag)
	}
	provider = strings.ToLower(provider)
	if _, known := providers[provider]; !known {
		return Config{}, fmt.Errorf("unknown provider %q in --llm flag (supported: google, openrouter)", provider)
	}
	return Config{Provider: provider, Model: model}, nil
}

// postJSON sends payload and decodes a 200 response into out. Non-200
// bodies are returned in the error, truncated.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// StatusError is a non-200 reply from a provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Code, e.Body)
}

// ExtractJSON returns the JSON payload in a completion, dropping a
// surrounding ``` fence or leading prose when present.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	if start := strings.IndexAny(s, "[{"); start > 0 {
		s = s[start:]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
