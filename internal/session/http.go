package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flemzord/cronspool/pkg/message"
)

// ErrUnknownTarget is returned when a target has no configured endpoint.
var ErrUnknownTarget = errors.New("session: unknown target")

const defaultSendTimeout = 2 * time.Minute

// HTTPClient delivers event messages to webhook-style session endpoints.
// Each target maps to a URL; a 2xx response confirms the delivery.
type HTTPClient struct {
	targets map[string]string
	client  *http.Client
}

// NewHTTPClient creates a client over a target→URL map. httpClient may be
// nil, in which case a client with a send timeout is used.
func NewHTTPClient(targets map[string]string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSendTimeout}
	}
	return &HTTPClient{targets: targets, client: httpClient}
}

// Session implements Client. Resolution errors surface on Send, so a
// misconfigured target is reported per delivery rather than at lookup.
func (c *HTTPClient) Session(target string) Session {
	return &httpSession{
		target: target,
		url:    c.targets[target],
		client: c.client,
	}
}

type httpSession struct {
	target string
	url    string
	client *http.Client
}

// Send posts the message and resolves the returned handle when the endpoint
// responds. The request runs in its own goroutine so the caller decides how
// long to wait via Handle.Result.
func (s *httpSession) Send(ctx context.Context, msg message.EventMessage) (Handle, error) {
	if s.url == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, s.target)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("session: marshal message: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.post(ctx, body)
	}()

	return &httpHandle{done: done}, nil
}

func (s *httpSession) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("session: build request for %q: %w", s.target, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("session: send to %q: %w", s.target, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("session: target %q responded %d", s.target, resp.StatusCode)
	}
	return nil
}

type httpHandle struct {
	done chan error
	err  error
	got  bool
}

// Result implements Handle. Safe to call more than once; the first outcome
// is cached.
func (h *httpHandle) Result(ctx context.Context) error {
	if h.got {
		return h.err
	}
	select {
	case err := <-h.done:
		h.err = err
		h.got = true
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
