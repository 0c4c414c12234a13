// Package anthropic implements the backend adapter for Anthropic models.
//
// The API differs from the OpenAI-compatible shape in three ways that matter
// here: authentication uses the x-api-key header instead of a Bearer token,
// the system prompt travels in a dedicated top-level system field, and
// temperature is capped at 1.0.
package anthropic

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

	"go.uber.org/zap"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/internal/tlsutil"
	"github.com/parleyhq/parley/types"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultTimeout = 120 * time.Second
	apiVersion     = "2023-06-01"
	maxTemperature = 1.0
)

// Config holds the adapter settings. APIKey wins over APIKeyEnv; when both
// are empty the family's conventional environment variable is consulted.
type Config struct {
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Timeout   time.Duration
}

// Provider adapts one Anthropic model descriptor to the backend.Adapter
// contract.
type Provider struct {
	desc   backend.Descriptor
	cfg    Config
	apiKey string
	keyEnv string
	client *http.Client
	logger *zap.Logger
}

// New creates an Anthropic adapter for the given descriptor.
func New(desc backend.Descriptor, cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = backend.DefaultCredentialEnv(backend.FamilyAnthropic)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(keyEnv)
	}
	return &Provider{
		desc:   desc,
		cfg:    cfg,
		apiKey: apiKey,
		keyEnv: keyEnv,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger,
	}
}

func (p *Provider) Name() string                   { return string(backend.FamilyAnthropic) }
func (p *Provider) Descriptor() backend.Descriptor { return p.desc }

// CheckCredentials verifies the API key is present. Run setup calls this once
// per selected family before any turn.
func (p *Provider) CheckCredentials() error {
	if strings.TrimSpace(p.apiKey) == "" {
		return types.Errorf(types.ErrBackendUnavailable, "%s is not set", p.keyEnv).
			WithBackend(p.Name())
	}
	return nil
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type claudeResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Content    []claudeContent `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
}

type claudeErrorResp struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

// convertMessages maps the uniform history into the wire shape. Any stray
// system-role entry is extracted into the dedicated channel rather than sent
// inline; the API accepts only user/assistant turns.
func convertMessages(msgs []types.Message) (string, []claudeMessage) {
	var system string
	out := make([]claudeMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			system = m.Content
			continue
		}
		out = append(out, claudeMessage{
			Role:    string(m.Role),
			Content: []claudeContent{{Type: "text", Text: m.Content}},
		})
	}
	return system, out
}

// Complete sends one /v1/messages call and returns the concatenated text
// blocks of the reply.
func (p *Provider) Complete(ctx context.Context, req *backend.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	system, messages := convertMessages(req.History)
	if req.SystemPrompt != "" {
		system = req.SystemPrompt
	}

	body := claudeRequest{
		Model:       p.desc.APIName,
		Messages:    messages,
		System:      system,
		MaxTokens:   p.desc.MaxOutputTokens,
		Temperature: clampTemperature(req.Temperature),
	}

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.ErrBackendCallFailed, err.Error()).WithBackend(p.Name())
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", types.Errorf(types.ErrTimeoutExceeded, "call exceeded %s", p.cfg.Timeout).
				WithBackend(p.Name()).WithCause(err)
		}
		return "", types.NewError(types.ErrBackendCallFailed, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithBackend(p.Name()).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", mapError(resp.StatusCode, readErrMsg(resp.Body), p.Name())
	}

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", types.NewError(types.ErrBackendCallFailed, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithBackend(p.Name()).
			WithCause(err)
	}

	var sb strings.Builder
	for _, c := range cr.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	content := sb.String()
	if content == "" {
		return "", types.NewError(types.ErrBackendCallFailed, "empty completion payload").
			WithBackend(p.Name())
	}

	p.logger.Debug("completion ok",
		zap.String("backend", p.Name()),
		zap.String("model", cr.Model),
		zap.String("stop_reason", cr.StopReason),
	)
	return content, nil
}

func clampTemperature(t float64) float64 {
	if t > maxTemperature {
		return maxTemperature
	}
	return t
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp claudeErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
	}
	return string(data)
}

func mapError(status int, msg string, name string) *types.Error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.Errorf(types.ErrBackendCallFailed, "rejected credential: %s", msg).
			WithHTTPStatus(status).WithBackend(name)
	case http.StatusTooManyRequests:
		return types.Errorf(types.ErrBackendCallFailed, "rate limited: %s", msg).
			WithHTTPStatus(status).WithRetryable(true).WithBackend(name)
	case http.StatusBadRequest:
		if strings.Contains(msg, "credit") || strings.Contains(msg, "quota") {
			return types.Errorf(types.ErrBackendCallFailed, "quota exhausted: %s", msg).
				WithHTTPStatus(status).WithBackend(name)
		}
		return types.Errorf(types.ErrBackendCallFailed, "invalid request: %s", msg).
			WithHTTPStatus(status).WithBackend(name)
	case 529: // anthropic-specific overloaded status
		return types.Errorf(types.ErrBackendCallFailed, "model overloaded: %s", msg).
			WithHTTPStatus(status).WithRetryable(true).WithBackend(name)
	default:
		return types.Errorf(types.ErrBackendCallFailed, "upstream error: %s", msg).
			WithHTTPStatus(status).WithRetryable(status >= 500).WithBackend(name)
	}
}
