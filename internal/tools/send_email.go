// ABOUTME: Tool handler for assistant-requested email delivery.
// ABOUTME: Delegates to an external Mailer collaborator; no SMTP lives here.

package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/fold-assistant/internal/localize"
)

// Mailer is the external email collaborator.
type Mailer interface {
	Send(ctx context.Context, to, body, attachment string) error
}

// SendEmail handles the "send_email" function call.
type SendEmail struct {
	mailer    Mailer
	transport Notifier
	logger    *slog.Logger
}

// Notifier is the subset of the transport a non-billing handler needs.
type Notifier interface {
	SendText(ctx context.Context, chatID, text string) error
}

// NewSendEmail wires the handler.
func NewSendEmail(mailer Mailer, notifier Notifier, logger *slog.Logger) *SendEmail {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendEmail{
		mailer:    mailer,
		transport: notifier,
		logger:    logger.With("tool", "send_email"),
	}
}

func (h *SendEmail) Name() string { return "send_email" }

func (h *SendEmail) Handle(ctx context.Context, inv *Invocation) (string, error) {
	to, _ := inv.Args["email"].(string)
	body, _ := inv.Args["text"].(string)
	attachment, _ := inv.Args["attachment"].(string)

	if to == "" {
		return "", fmt.Errorf("send_email: missing email argument")
	}

	if err := h.mailer.Send(ctx, to, body, attachment); err != nil {
		return "", fmt.Errorf("sending email: %w", err)
	}

	p := localize.Printer(inv.Conversation.LanguageCode)
	notice := p.Sprintf(localize.MsgEmailSent)
	if err := h.transport.SendText(ctx, inv.ChatID, notice); err != nil {
		h.logger.Warn("failed to notify user", "error", err)
	}

	return notice + " There is no need to reply to the message.", nil
}
