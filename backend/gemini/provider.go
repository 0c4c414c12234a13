// Package gemini implements the backend adapter for Google Gemini models.
//
// Gemini authenticates with the x-goog-api-key header, carries the system
// prompt in a dedicated systemInstruction field, and names the assistant
// role "model" on the wire.
package gemini

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
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultTimeout = 120 * time.Second
)

// Config holds the adapter settings.
type Config struct {
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Timeout   time.Duration
}

// Provider adapts one Gemini model descriptor to the backend.Adapter
// contract.
type Provider struct {
	desc   backend.Descriptor
	cfg    Config
	apiKey string
	keyEnv string
	client *http.Client
	logger *zap.Logger
}

// New creates a Gemini adapter for the given descriptor.
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
		keyEnv = backend.DefaultCredentialEnv(backend.FamilyGemini)
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

func (p *Provider) Name() string                   { return string(backend.FamilyGemini) }
func (p *Provider) Descriptor() backend.Descriptor { return p.desc }

// CheckCredentials verifies the API key is present.
func (p *Provider) CheckCredentials() error {
	if strings.TrimSpace(p.apiKey) == "" {
		return types.Errorf(types.ErrBackendUnavailable, "%s is not set", p.keyEnv).
			WithBackend(p.Name())
	}
	return nil
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion,omitempty"`
}

type geminiErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// convertContents maps the uniform history to the wire shape. The assistant
// role is renamed "model"; stray system entries move to systemInstruction.
func convertContents(msgs []types.Message) (*geminiContent, []geminiContent) {
	var system *geminiContent
	contents := make([]geminiContent, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			system = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
			continue
		}
		role := string(m.Role)
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	return system, contents
}

// Complete sends one generateContent call and returns the first candidate's
// concatenated text parts.
func (p *Provider) Complete(ctx context.Context, req *backend.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	system, contents := convertContents(req.History)
	if req.SystemPrompt != "" {
		system = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	body := geminiRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: p.desc.MaxOutputTokens,
		},
	}

	payload, _ := json.Marshal(body)
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.desc.APIName)

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

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", types.NewError(types.ErrBackendCallFailed, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithBackend(p.Name()).
			WithCause(err)
	}
	if len(gr.Candidates) == 0 {
		return "", types.NewError(types.ErrBackendCallFailed, "empty completion payload").
			WithBackend(p.Name())
	}

	var sb strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	content := sb.String()
	if content == "" {
		return "", types.NewError(types.ErrBackendCallFailed, "empty completion payload").
			WithBackend(p.Name())
	}

	p.logger.Debug("completion ok",
		zap.String("backend", p.Name()),
		zap.String("model", gr.ModelVersion),
		zap.String("finish_reason", gr.Candidates[0].FinishReason),
	)
	return content, nil
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp geminiErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
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
		return types.Errorf(types.ErrBackendCallFailed, "invalid request: %s", msg).
			WithHTTPStatus(status).WithBackend(name)
	default:
		return types.Errorf(types.ErrBackendCallFailed, "upstream error: %s", msg).
			WithHTTPStatus(status).WithRetryable(status >= 500).WithBackend(name)
	}
}
