// ABOUTME: Console transport for the local front end
// ABOUTME: Text goes to stdout; media lands as files in the data directory

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/2389/fold-assistant/internal/transport"
)

// consoleTransport renders responses for a terminal session. Binary
// content cannot be printed, so voice, photos and documents are saved
// under the data directory and their paths announced.
type consoleTransport struct {
	out     io.Writer
	dataDir string
	logger  *slog.Logger

	reply *color.Color
	note  *color.Color
}

var _ transport.Transport = (*consoleTransport)(nil)

func newConsoleTransport(out io.Writer, dataDir string, logger *slog.Logger) *consoleTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &consoleTransport{
		out:     out,
		dataDir: dataDir,
		logger:  logger.With("component", "console"),
		reply:   color.New(color.FgWhite),
		note:    color.New(color.FgYellow),
	}
}

func (t *consoleTransport) SendText(ctx context.Context, chatID, text string) error {
	fmt.Fprintln(t.out)
	t.reply.Fprintln(t.out, text)
	return nil
}

func (t *consoleTransport) SendVoice(ctx context.Context, chatID string, voice []byte) error {
	path, err := t.save("voice", ".mp3", voice)
	if err != nil {
		return err
	}
	t.note.Fprintf(t.out, "\n[voice reply saved to %s]\n", path)
	return nil
}

func (t *consoleTransport) SendPhoto(ctx context.Context, chatID string, photo transport.Photo) error {
	if photo.URL != "" {
		t.note.Fprintf(t.out, "\n[image: %s]\n", photo.URL)
		if photo.Caption != "" {
			t.reply.Fprintln(t.out, photo.Caption)
		}
		return nil
	}

	path, err := t.save("image", ".png", photo.Data)
	if err != nil {
		return err
	}
	t.note.Fprintf(t.out, "\n[image saved to %s]\n", path)
	return nil
}

func (t *consoleTransport) SendDocument(ctx context.Context, chatID, filename string, data []byte) error {
	dir := filepath.Join(t.dataDir, "downloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating downloads directory: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	t.note.Fprintf(t.out, "\n[document saved to %s]\n", path)
	return nil
}

func (t *consoleTransport) PromptForPayment(ctx context.Context, chatID string) error {
	t.note.Fprintln(t.out, "\n[top up your balance to continue]")
	return nil
}

func (t *consoleTransport) save(prefix, ext string, data []byte) (string, error) {
	dir := filepath.Join(t.dataDir, "downloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating downloads directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%d%s", prefix, time.Now().UnixNano(), ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s file: %w", prefix, err)
	}
	return path, nil
}
