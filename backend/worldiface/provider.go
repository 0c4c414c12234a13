// Package worldiface implements the tool-execution backend adapter.
//
// Unlike the generative adapters, this one never calls a model: the latest
// turn's content is forwarded to the world-interface collaborator over its
// OpenAI-shaped endpoint and the reply comes back verbatim. The collaborator
// itself (command sandboxing, session state) is a black box.
package worldiface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
	defaultBaseURL = "http://localhost:3000"
	defaultTimeout = 120 * time.Second
	endpointPath   = "/v1/chat/completions"
)

// Config holds the adapter settings.
type Config struct {
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Timeout   time.Duration
}

// Provider adapts the world-interface collaborator to the backend.Adapter
// contract.
type Provider struct {
	desc   backend.Descriptor
	cfg    Config
	apiKey string
	keyEnv string
	client *http.Client
	logger *zap.Logger
}

// New creates a world-interface adapter for the given descriptor.
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
		keyEnv = backend.DefaultCredentialEnv(backend.FamilyWorldInterface)
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

func (p *Provider) Name() string                   { return string(backend.FamilyWorldInterface) }
func (p *Provider) Descriptor() backend.Descriptor { return p.desc }

// CheckCredentials verifies the collaborator key is present.
func (p *Provider) CheckCredentials() error {
	if strings.TrimSpace(p.apiKey) == "" {
		return types.Errorf(types.ErrBackendUnavailable, "%s is not set", p.keyEnv).
			WithBackend(p.Name())
	}
	return nil
}

type wiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wiRequest struct {
	Messages []wiMessage `json:"messages"`
}

type wiResponse struct {
	Choices []struct {
		Message wiMessage `json:"message"`
	} `json:"choices"`
}

// Complete forwards the latest turn to the collaborator and returns its
// reply verbatim. An empty reply is legal here: a command can produce no
// output.
func (p *Provider) Complete(ctx context.Context, req *backend.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	body := wiRequest{
		Messages: []wiMessage{{Role: "user", Content: req.LastContent()}},
	}
	payload, _ := json.Marshal(body)
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + endpointPath

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.ErrBackendCallFailed, err.Error()).WithBackend(p.Name())
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", types.Errorf(types.ErrTimeoutExceeded, "call exceeded %s", p.cfg.Timeout).
				WithBackend(p.Name()).WithCause(err)
		}
		return "", types.NewError(types.ErrBackendCallFailed, err.Error()).
			WithRetryable(true).
			WithBackend(p.Name()).
			WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return "", types.Errorf(types.ErrBackendCallFailed, "collaborator error: %s", strings.TrimSpace(string(data))).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500).
			WithBackend(p.Name())
	}

	var wr wiResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", types.NewError(types.ErrBackendCallFailed, err.Error()).
			WithBackend(p.Name()).
			WithCause(err)
	}
	if len(wr.Choices) == 0 {
		return "", types.NewError(types.ErrBackendCallFailed, "malformed collaborator payload: no choices").
			WithBackend(p.Name())
	}

	p.logger.Debug("tool call ok", zap.String("backend", p.Name()))
	return wr.Choices[0].Message.Content, nil
}
