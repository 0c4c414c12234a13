package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/parleyhq/parley/types"
)

type countingAdapter struct {
	desc  Descriptor
	calls int
}

func (c *countingAdapter) Name() string            { return "counting" }
func (c *countingAdapter) Descriptor() Descriptor  { return c.desc }
func (c *countingAdapter) CheckCredentials() error { return nil }
func (c *countingAdapter) Complete(ctx context.Context, req *Request) (string, error) {
	c.calls++
	return "ok", nil
}

func TestWithRateLimit_NilLimiterIsPassthrough(t *testing.T) {
	inner := &countingAdapter{}
	assert.Same(t, Adapter(inner), WithRateLimit(inner, nil))
}

func TestWithRateLimit_DelegatesAfterWait(t *testing.T) {
	inner := &countingAdapter{desc: Descriptor{Key: "sonnet"}}
	limited := WithRateLimit(inner, rate.NewLimiter(rate.Inf, 0))

	got, err := limited.Complete(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "counting", limited.Name())
	assert.Equal(t, "sonnet", limited.Descriptor().Key)
	assert.NoError(t, limited.CheckCredentials())
}

func TestWithRateLimit_CancelledContextFailsCall(t *testing.T) {
	inner := &countingAdapter{}
	// Zero burst means Wait can never be satisfied; the context bounds it.
	limited := WithRateLimit(inner, rate.NewLimiter(rate.Every(time.Hour), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := limited.Complete(ctx, &Request{})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrBackendCallFailed))
	assert.Zero(t, inner.calls)
}

func TestRequest_LastContent(t *testing.T) {
	r := &Request{}
	assert.Empty(t, r.LastContent())

	r.History = []types.Message{
		types.NewUserMessage("first"),
		types.NewAssistantMessage("second"),
	}
	assert.Equal(t, "second", r.LastContent())
}
