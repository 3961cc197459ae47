package acquisition

import (
	"context"
	"log/slog"
)

type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of buttons attached to a delivered message, one
// inner slice per row.
type Keyboard [][]Button

// Messenger is the chat transport this service talks through. It is an
// async, at-least-once channel; no ordering is assumed beyond per-chat
// FIFO. The real implementation lives outside this repo.
type Messenger interface {
	Deliver(ctx context.Context, participant int64, text string, keyboard Keyboard) error
}

// Gatekeeper answers whether a participant has satisfied the membership
// requirements (e.g. joined the required channels) before they may use
// the system.
type Gatekeeper interface {
	IsMember(ctx context.Context, participant int64) (bool, error)
}

// OpenGatekeeper treats everyone as a member, for deployments without a
// join requirement.
type OpenGatekeeper struct{}

func (OpenGatekeeper) IsMember(ctx context.Context, participant int64) (bool, error) {
	return true, nil
}

// LogMessenger drops deliveries into the log. It stands in for the real
// transport in development and in the server's default wiring.
type LogMessenger struct{}

func (LogMessenger) Deliver(ctx context.Context, participant int64, text string, keyboard Keyboard) error {
	slog.InfoContext(ctx, "deliver message",
		"participant", participant,
		"text", text,
		"buttons", len(keyboard),
	)
	return nil
}
