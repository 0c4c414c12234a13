package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/types"
)

func geminiDescriptor() backend.Descriptor {
	return backend.Descriptor{
		Key:                "gemini",
		APIName:            "gemini-1.5-pro",
		DisplayName:        "Gemini",
		Family:             backend.FamilyGemini,
		MaxOutputTokens:    1024,
		SupportsSystemRole: true,
	}
}

const reply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"hi "},{"text":"there"}]},"finishReason":"STOP"}],"modelVersion":"gemini-1.5-pro"}`

func TestComplete_WireShape(t *testing.T) {
	var got geminiRequest
	var header http.Header
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(reply))
	}))
	defer srv.Close()

	p := New(geminiDescriptor(), Config{BaseURL: srv.URL, APIKey: "k"}, zap.NewNop())
	content, err := p.Complete(context.Background(), &backend.Request{
		SystemPrompt: "narrate tersely",
		History: []types.Message{
			types.NewUserMessage("hello"),
			types.NewAssistantMessage("prior reply"),
		},
		Temperature: 0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", content)

	assert.Equal(t, "k", header.Get("x-goog-api-key"))
	assert.Equal(t, "/v1beta/models/gemini-1.5-pro:generateContent", path)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "narrate tersely", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 2)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role, "assistant role is renamed on the wire")
	require.NotNil(t, got.GenerationConfig)
	assert.Equal(t, 0.9, got.GenerationConfig.Temperature)
	assert.Equal(t, 1024, got.GenerationConfig.MaxOutputTokens)
}

func TestComplete_NoCandidatesFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	p := New(geminiDescriptor(), Config{BaseURL: srv.URL, APIKey: "k"}, zap.NewNop())
	_, err := p.Complete(context.Background(), &backend.Request{
		History: []types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrBackendCallFailed))
}

func TestComplete_ErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"resource exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	p := New(geminiDescriptor(), Config{BaseURL: srv.URL, APIKey: "k"}, zap.NewNop())
	_, err := p.Complete(context.Background(), &backend.Request{
		History: []types.Message{types.NewUserMessage("hi")},
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrBackendCallFailed))
	assert.True(t, types.IsRetryable(err))
	assert.Contains(t, err.Error(), "RESOURCE_EXHAUSTED")
}

func TestCheckCredentials_MissingEnv(t *testing.T) {
	p := New(geminiDescriptor(), Config{APIKeyEnv: "PARLEY_TEST_NO_SUCH_KEY"}, zap.NewNop())
	err := p.CheckCredentials()
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrBackendUnavailable))
}
