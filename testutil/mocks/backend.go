// Package mocks provides scripted in-memory implementations of the backend
// adapter interface for tests.
//
// ScriptedBackend supports fixed or queued replies, error injection, call
// recording and artificial latency.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parleyhq/parley/backend"
	"github.com/parleyhq/parley/types"
)

// BackendCall records a single Complete invocation. The request history is
// snapshotted at call time so later mutations by the caller stay invisible.
type BackendCall struct {
	SystemPrompt string
	History      []types.Message
	Temperature  float64
	Response     string
	Err          error
}

// ScriptedBackend is a backend.Adapter that replays scripted replies.
type ScriptedBackend struct {
	mu sync.Mutex

	desc backend.Descriptor

	// reply configuration
	response  string
	queue     []string
	err       error
	credsErr  error
	failAfter int // fail on the Nth call (1-based); 0 disables

	// behaviour control
	delay        time.Duration
	completeFunc func(ctx context.Context, req *backend.Request) (string, error)

	calls []BackendCall
}

// NewScriptedBackend creates a ScriptedBackend presenting the given
// descriptor. With no further configuration every call yields
// "scripted reply N".
func NewScriptedBackend(desc backend.Descriptor) *ScriptedBackend {
	return &ScriptedBackend{desc: desc}
}

// WithResponse sets a fixed reply returned by every call.
func (s *ScriptedBackend) WithResponse(response string) *ScriptedBackend {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = response
	return s
}

// WithResponses queues replies consumed one per call. Once the queue drains
// the fixed response (or the generated default) takes over.
func (s *ScriptedBackend) WithResponses(responses ...string) *ScriptedBackend {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, responses...)
	return s
}

// WithError makes every call fail with err.
func (s *ScriptedBackend) WithError(err error) *ScriptedBackend {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// WithFailAfter makes the Nth call (1-based) fail with err; earlier calls
// succeed normally.
func (s *ScriptedBackend) WithFailAfter(n int, err error) *ScriptedBackend {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = n
	s.err = err
	return s
}

// WithDelay adds artificial latency before each reply, honouring context
// cancellation during the wait.
func (s *ScriptedBackend) WithDelay(d time.Duration) *ScriptedBackend {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
	return s
}

// WithCredentialsError makes CheckCredentials fail.
func (s *ScriptedBackend) WithCredentialsError(err error) *ScriptedBackend {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credsErr = err
	return s
}

// WithCompleteFunc overrides Complete entirely. Calls are still recorded.
func (s *ScriptedBackend) WithCompleteFunc(fn func(ctx context.Context, req *backend.Request) (string, error)) *ScriptedBackend {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeFunc = fn
	return s
}

// Name implements backend.Adapter.
func (s *ScriptedBackend) Name() string { return s.desc.Key }

// Descriptor implements backend.Adapter.
func (s *ScriptedBackend) Descriptor() backend.Descriptor { return s.desc }

// CheckCredentials implements backend.Adapter.
func (s *ScriptedBackend) CheckCredentials() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credsErr
}

// Complete implements backend.Adapter.
func (s *ScriptedBackend) Complete(ctx context.Context, req *backend.Request) (string, error) {
	s.mu.Lock()
	delay := s.delay
	fn := s.completeFunc
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		s.record(req, "", err)
		return "", err
	}

	if fn != nil {
		reply, err := fn(ctx, req)
		s.record(req, reply, err)
		return reply, err
	}

	s.mu.Lock()
	n := len(s.calls) + 1
	var err error
	if s.failAfter > 0 {
		if n >= s.failAfter {
			err = s.err
		}
	} else if s.err != nil {
		err = s.err
	}
	var reply string
	if err == nil {
		switch {
		case len(s.queue) > 0:
			reply = s.queue[0]
			s.queue = s.queue[1:]
		case s.response != "":
			reply = s.response
		default:
			reply = fmt.Sprintf("scripted reply %d", n)
		}
	}
	s.calls = append(s.calls, BackendCall{
		SystemPrompt: req.SystemPrompt,
		History:      types.CloneMessages(req.History),
		Temperature:  req.Temperature,
		Response:     reply,
		Err:          err,
	})
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	return reply, nil
}

func (s *ScriptedBackend) record(req *backend.Request, reply string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, BackendCall{
		SystemPrompt: req.SystemPrompt,
		History:      types.CloneMessages(req.History),
		Temperature:  req.Temperature,
		Response:     reply,
		Err:          err,
	})
}

// Calls returns a copy of the recorded invocations.
func (s *ScriptedBackend) Calls() []BackendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BackendCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount reports how many times Complete ran.
func (s *ScriptedBackend) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// LastCall returns the most recent invocation, if any.
func (s *ScriptedBackend) LastCall() (BackendCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return BackendCall{}, false
	}
	return s.calls[len(s.calls)-1], true
}

// Reset clears recorded calls and drains the reply queue.
func (s *ScriptedBackend) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.queue = nil
}
