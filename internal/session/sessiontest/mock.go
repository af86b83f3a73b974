// Package sessiontest provides test doubles for the session package.
package sessiontest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/cronspool/internal/session"
	"github.com/flemzord/cronspool/pkg/message"
)

// Sent records one delivered message and the target it went to.
type Sent struct {
	Target  string
	Message message.EventMessage
}

// MockClient is a configurable test double for session.Client. The zero
// value confirms every delivery immediately.
type MockClient struct {
	// SendErr, when non-nil, is returned from every Send call.
	SendErr error
	// ResultErr, when non-nil, is returned from every Handle.Result call.
	ResultErr error
	// ResultDelay makes Handle.Result block before resolving, to simulate a
	// slow agent turn.
	ResultDelay time.Duration

	mu   sync.Mutex
	sent []Sent
}

// Compile-time interface check.
var _ session.Client = (*MockClient)(nil)

// Session implements session.Client.
func (c *MockClient) Session(target string) session.Session {
	return &mockSession{client: c, target: target}
}

// Sent returns a copy of every message recorded so far.
func (c *MockClient) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sent, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentTo returns the messages delivered to one target.
func (c *MockClient) SentTo(target string) []message.EventMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []message.EventMessage
	for _, s := range c.sent {
		if s.Target == target {
			out = append(out, s.Message)
		}
	}
	return out
}

type mockSession struct {
	client *MockClient
	target string
}

func (s *mockSession) Send(_ context.Context, msg message.EventMessage) (session.Handle, error) {
	if s.client.SendErr != nil {
		return nil, s.client.SendErr
	}

	s.client.mu.Lock()
	s.client.sent = append(s.client.sent, Sent{Target: s.target, Message: msg})
	s.client.mu.Unlock()

	return &mockHandle{err: s.client.ResultErr, delay: s.client.ResultDelay}, nil
}

type mockHandle struct {
	err   error
	delay time.Duration
}

func (h *mockHandle) Result(ctx context.Context) error {
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return h.err
}
