package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/cronspool/pkg/message"
)

func TestHTTPClient_DeliversAndConfirms(t *testing.T) {
	t.Parallel()

	received := make(chan message.EventMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var msg message.EventMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		received <- msg
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewHTTPClient(map[string]string{"tui": srv.URL}, srv.Client())
	msg := message.NewCronEvent("standup-reminder", "standup reminder", "remind", time.Now())

	handle, err := c.Session("tui").Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := handle.Result(context.Background()); err != nil {
		t.Fatalf("result: %v", err)
	}

	select {
	case got := <-received:
		if got.Meta == nil || got.Meta.JobID != "standup-reminder" {
			t.Errorf("delivered message meta = %+v, want job id carried", got.Meta)
		}
		if got.Origin != message.OriginCron {
			t.Errorf("origin = %q, want %q", got.Origin, message.OriginCron)
		}
	default:
		t.Fatal("endpoint never received the message")
	}
}

func TestHTTPClient_Non2xxIsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(map[string]string{"tui": srv.URL}, srv.Client())
	handle, err := c.Session("tui").Send(context.Background(), message.EventMessage{Text: "x"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := handle.Result(context.Background()); err == nil {
		t.Error("a 503 response must not confirm delivery")
	}
}

func TestHTTPClient_UnknownTarget(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(map[string]string{}, nil)
	_, err := c.Session("ghost").Send(context.Background(), message.EventMessage{Text: "x"})
	if !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("error = %v, want ErrUnknownTarget", err)
	}
}

func TestHTTPHandle_ResultCached(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(map[string]string{"tui": srv.URL}, srv.Client())
	handle, err := c.Session("tui").Send(context.Background(), message.EventMessage{Text: "x"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := handle.Result(context.Background()); err != nil {
		t.Fatalf("first result: %v", err)
	}
	if err := handle.Result(context.Background()); err != nil {
		t.Errorf("second result should return the cached outcome, got %v", err)
	}
}
