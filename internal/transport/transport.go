// ABOUTME: Messaging transport seam consumed by the engine and tool handlers.
// ABOUTME: Fire-and-forget outbound sends keyed by chat identifier.

// Package transport declares the outbound messaging surface. The core
// never parses transport payloads; it only supplies content. Concrete
// implementations (Matrix, Telegram, a test double) live with the
// front end that owns the wire format.
package transport

import (
	"context"
	"errors"
)

// ErrBlocked is returned (possibly wrapped) by implementations when
// the recipient has blocked or left the chat. The engine soft-disables
// the conversation instead of retrying.
var ErrBlocked = errors.New("recipient is unreachable")

// Photo carries an outbound image either by URL or by raw bytes.
// Exactly one of URL and Data is expected to be set.
type Photo struct {
	URL     string
	Data    []byte
	Caption string
}

// Transport sends content to a chat. Errors mean the send did not
// happen; callers decide whether that fails the interaction or is
// merely logged.
type Transport interface {
	SendText(ctx context.Context, chatID, text string) error
	SendVoice(ctx context.Context, chatID string, voice []byte) error
	SendPhoto(ctx context.Context, chatID string, photo Photo) error
	SendDocument(ctx context.Context, chatID, filename string, data []byte) error

	// PromptForPayment asks the external payment collaborator to show
	// the user a top-up flow. The engine triggers it, never renders it.
	PromptForPayment(ctx context.Context, chatID string) error
}
