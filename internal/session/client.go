// Package session defines the client boundary through which the scheduler
// delivers fired prompts. The agent framework behind it is a collaborator;
// only the send/confirm contract lives here.
package session

import (
	"context"

	"github.com/flemzord/cronspool/pkg/message"
)

// Handle tracks one in-flight delivery. Result blocks until the session
// reports completion; a nil return confirms the delivery.
type Handle interface {
	Result(ctx context.Context) error
}

// Session is a single destination conversation.
type Session interface {
	Send(ctx context.Context, msg message.EventMessage) (Handle, error)
}

// Client resolves a target identifier to its session.
type Client interface {
	Session(target string) Session
}
