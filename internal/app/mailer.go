// ABOUTME: File-based outbox mailer for the send_email tool.
// ABOUTME: Messages are spooled to disk for an external delivery agent.

package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// OutboxMailer spools messages as files for pickup by whatever
// delivery agent runs alongside the daemon. There is no SMTP client
// here on purpose: delivery policy, credentials and retries belong to
// the agent, not the assistant.
type OutboxMailer struct {
	dir    string
	logger *slog.Logger
}

// NewOutboxMailer creates a mailer spooling into dir.
func NewOutboxMailer(dir string, logger *slog.Logger) *OutboxMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxMailer{dir: dir, logger: logger.With("component", "outbox")}
}

func (m *OutboxMailer) Send(ctx context.Context, to, body, attachment string) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating outbox directory: %w", err)
	}

	path := filepath.Join(m.dir, fmt.Sprintf("%d.eml", time.Now().UnixNano()))
	content := fmt.Sprintf("To: %s\nDate: %s\n\n%s\n", to, time.Now().Format(time.RFC1123Z), body)
	if attachment != "" {
		content += fmt.Sprintf("\nX-Attachment: %s\n", attachment)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("spooling message: %w", err)
	}

	m.logger.Info("message spooled", "to", to, "path", path)
	return nil
}
