// Package openai implements the backend adapter for the OpenAI chat
// completions endpoint.
//
// This application routes system prompts through the first user message
// rather than the native system role, so every actor's prompt renders the
// same way regardless of backend. The o1 reasoning family additionally gets
// a completion budget above the visible output limit and rejects explicit
// temperatures; both quirks stay inside this package.
package openai

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
	defaultBaseURL = "https://api.openai.com"
	defaultTimeout = 120 * time.Second
	endpointPath   = "/v1/chat/completions"

	// o1 models spend hidden reasoning tokens before emitting visible
	// output; the request budget covers both while the descriptor still
	// advertises only the visible limit.
	o1Prefix           = "o1"
	o1CompletionBudget = 4000
)

// Config holds the adapter settings.
type Config struct {
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Timeout   time.Duration
}

// Provider adapts one OpenAI model descriptor to the backend.Adapter
// contract.
type Provider struct {
	desc   backend.Descriptor
	cfg    Config
	apiKey string
	keyEnv string
	client *http.Client
	logger *zap.Logger
}

// New creates an OpenAI adapter for the given descriptor.
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
		keyEnv = backend.DefaultCredentialEnv(backend.FamilyOpenAI)
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

func (p *Provider) Name() string                   { return string(backend.FamilyOpenAI) }
func (p *Provider) Descriptor() backend.Descriptor { return p.desc }

// CheckCredentials verifies the API key is present.
func (p *Provider) CheckCredentials() error {
	if strings.TrimSpace(p.apiKey) == "" {
		return types.Errorf(types.ErrBackendUnavailable, "%s is not set", p.keyEnv).
			WithBackend(p.Name())
	}
	return nil
}

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaRequest struct {
	Model               string      `json:"model"`
	Messages            []oaMessage `json:"messages"`
	MaxTokens           int         `json:"max_tokens,omitempty"`
	MaxCompletionTokens int         `json:"max_completion_tokens,omitempty"`
	Temperature         *float64    `json:"temperature,omitempty"`
}

type oaResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int       `json:"index"`
		FinishReason string    `json:"finish_reason"`
		Message      oaMessage `json:"message"`
	} `json:"choices"`
}

type oaErrorResp struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

// foldSystemPrompt prepends the system prompt into the first user entry,
// wrapped in <SYSTEM> markers; when no user entry exists yet the wrapped
// prompt becomes its own user message.
func foldSystemPrompt(system string, msgs []types.Message) []oaMessage {
	out := make([]oaMessage, 0, len(msgs)+1)
	for _, m := range msgs {
		out = append(out, oaMessage{Role: string(m.Role), Content: m.Content})
	}
	if system == "" {
		return out
	}
	wrapped := "<SYSTEM>" + system + "</SYSTEM>"
	for i := range out {
		if out[i].Role == string(types.RoleUser) {
			out[i].Content = wrapped + "\n\n" + out[i].Content
			return out
		}
	}
	return append(out, oaMessage{Role: string(types.RoleUser), Content: wrapped})
}

func isReasoningModel(apiName string) bool {
	return strings.HasPrefix(apiName, o1Prefix)
}

// Complete sends one chat completion call and returns the first choice's
// content.
func (p *Provider) Complete(ctx context.Context, req *backend.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	body := oaRequest{
		Model:    p.desc.APIName,
		Messages: foldSystemPrompt(req.SystemPrompt, req.History),
	}
	if isReasoningModel(p.desc.APIName) {
		body.MaxCompletionTokens = o1CompletionBudget
	} else {
		body.MaxTokens = p.desc.MaxOutputTokens
		temp := req.Temperature
		body.Temperature = &temp
	}

	payload, _ := json.Marshal(body)
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + endpointPath

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

	var or oaResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", types.NewError(types.ErrBackendCallFailed, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithBackend(p.Name()).
			WithCause(err)
	}
	if len(or.Choices) == 0 || or.Choices[0].Message.Content == "" {
		return "", types.NewError(types.ErrBackendCallFailed, "empty completion payload").
			WithBackend(p.Name())
	}

	p.logger.Debug("completion ok",
		zap.String("backend", p.Name()),
		zap.String("model", or.Model),
		zap.String("finish_reason", or.Choices[0].FinishReason),
	)
	return or.Choices[0].Message.Content, nil
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp oaErrorResp
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
		if strings.Contains(msg, "quota") || strings.Contains(msg, "billing") {
			return types.Errorf(types.ErrBackendCallFailed, "quota exhausted: %s", msg).
				WithHTTPStatus(status).WithBackend(name)
		}
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
