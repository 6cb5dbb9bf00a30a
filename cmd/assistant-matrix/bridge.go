// ABOUTME: Matrix bridge core for assistant-matrix
// ABOUTME: Handles Matrix client connection and message routing to the engine

package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/fold-assistant/internal/app"
	"github.com/2389/fold-assistant/internal/config"
	"github.com/2389/fold-assistant/internal/dedupe"
	"github.com/2389/fold-assistant/internal/session"
)

// dedupeTTL and dedupeSize bound the redelivery suppression window for
// synced events.
const (
	dedupeTTL  = 5 * time.Minute
	dedupeSize = 1024
)

// Bridge connects Matrix rooms to the assistant engine.
type Bridge struct {
	config *Config
	matrix *mautrix.Client
	engine *session.Engine
	logger *slog.Logger

	// Suppress events the sync protocol redelivers after reconnects
	seen *dedupe.Window

	// Track rooms we're actively processing to avoid duplicate handling
	processing sync.Map

	// ctx is the parent context for message processing goroutines
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBridge creates a new Matrix bridge hosting the engine in-process.
func NewBridge(cfg *Config) (*Bridge, func() error, error) {
	engineCfg, err := config.Load(cfg.Engine.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("loading engine config from %s: %w", cfg.Engine.Config, err)
	}

	logger, closeLog := config.SetupLogger(config.LoggingConfig{
		Level: cfg.Logging.Level,
		File:  engineCfg.Logging.File,
	})

	client, err := mautrix.NewClient(cfg.Matrix.Homeserver, id.UserID(cfg.Matrix.UserID), cfg.Matrix.AccessToken)
	if err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("creating matrix client: %w", err)
	}

	tp := newMatrixTransport(client, logger)
	mailer := app.NewOutboxMailer(filepath.Join(app.DataDir(engineCfg), "outbox"), logger)
	engine, closeEngine, err := app.Build(engineCfg, tp, mailer, logger)
	if err != nil {
		closeLog()
		return nil, nil, err
	}

	cleanup := func() error {
		err := closeEngine()
		if lerr := closeLog(); err == nil {
			err = lerr
		}
		return err
	}

	return &Bridge{
		config: cfg,
		matrix: client,
		engine: engine,
		logger: logger.With("component", "bridge"),
		seen:   dedupe.NewWindow(dedupeTTL, dedupeSize),
	}, cleanup, nil
}

// Run starts the bridge and blocks until context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("starting matrix bridge",
		"homeserver", b.config.Matrix.Homeserver,
		"user_id", b.config.Matrix.UserID,
	)

	// Store context for message processing goroutines
	b.ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()

	// Register event handler for messages
	syncer, ok := b.matrix.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.matrix.Syncer)
	}
	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)

	b.logger.Info("connecting to matrix homeserver")

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- b.matrix.SyncWithContext(b.ctx)
	}()

	b.logger.Info("matrix bridge running")

	// Wait for context cancellation or sync error
	select {
	case <-ctx.Done():
		b.logger.Info("shutting down matrix bridge")
		b.cancel()
		return nil
	case err := <-syncErr:
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// handleMessageEvent processes incoming Matrix messages.
func (b *Bridge) handleMessageEvent(ctx context.Context, evt *event.Event) {
	// Ignore our own messages
	if evt.Sender == id.UserID(b.config.Matrix.UserID) {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return
	}

	if b.seen.Seen(evt.ID.String()) {
		b.logger.Debug("ignoring redelivered event", "event_id", evt.ID.String())
		return
	}

	roomID := evt.RoomID.String()
	if !b.isRoomAllowed(roomID) {
		b.logger.Debug("ignoring message from non-allowed room", "room", roomID)
		return
	}

	switch content.MsgType {
	case event.MsgText, event.MsgImage, event.MsgAudio, event.MsgFile:
	default:
		return
	}

	// Process message in goroutine to not block sync
	// Use bridge context for graceful shutdown support
	go b.processMessage(b.ctx, evt, content)
}

// processMessage routes one message through the engine.
func (b *Bridge) processMessage(ctx context.Context, evt *event.Event, content *event.MessageEventContent) {
	roomStr := evt.RoomID.String()

	// Check if we're already processing a message in this room
	if _, loaded := b.processing.LoadOrStore(roomStr, true); loaded {
		b.logger.Debug("already processing message in room, dropping", "room", roomStr)
		return
	}
	defer b.processing.Delete(roomStr)

	// Show typing while the engine works
	if b.config.Bridge.TypingIndicator {
		b.setTyping(evt.RoomID, true)
		defer b.setTyping(evt.RoomID, false)
	}

	in := session.Inbound{
		UserID:   userIDFor(evt.Sender),
		ChatID:   roomStr,
		Username: evt.Sender.Localpart(),
	}

	var err error
	switch content.MsgType {
	case event.MsgText:
		err = b.processText(ctx, in, content.Body)
	case event.MsgImage:
		err = b.processImage(ctx, in, content)
	case event.MsgAudio:
		err = b.processMedia(ctx, in, content, b.engine.HandleVoice)
	case event.MsgFile:
		err = b.processMedia(ctx, in, content, b.engine.HandleDocument)
	}
	if err != nil {
		b.logger.Error("message processing failed",
			"room", roomStr,
			"sender", evt.Sender.String(),
			"error", err,
		)
	}
}

func (b *Bridge) processText(ctx context.Context, in session.Inbound, body string) error {
	// Check command prefix
	if prefix := b.config.Bridge.CommandPrefix; prefix != "" {
		if !strings.HasPrefix(body, prefix) {
			return nil
		}
		body = strings.TrimSpace(strings.TrimPrefix(body, prefix))
	}
	if body == "" {
		return nil
	}

	b.logger.Info("received message",
		"room", in.ChatID,
		"sender", in.Username,
		"content", truncate(body, 50),
	)

	in.Text = body
	if body == "balance" {
		return b.engine.HandleBalance(ctx, in)
	}
	return b.engine.HandleText(ctx, in)
}

func (b *Bridge) processImage(ctx context.Context, in session.Inbound, content *event.MessageEventContent) error {
	path, size, err := b.download(ctx, content)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	in.Text = imageCaption(content)
	in.FilePath = path
	in.FileExt = strings.ToLower(filepath.Ext(content.Body))
	in.FileSize = size
	in.ImageURL = b.downloadURL(content)
	if content.Info != nil {
		in.Width = content.Info.Width
		in.Height = content.Info.Height
	}
	return b.engine.HandlePhoto(ctx, in)
}

func (b *Bridge) processMedia(ctx context.Context, in session.Inbound, content *event.MessageEventContent, handle func(context.Context, session.Inbound) error) error {
	path, size, err := b.download(ctx, content)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	in.FilePath = path
	in.FileExt = strings.ToLower(filepath.Ext(content.Body))
	in.FileSize = size
	return handle(ctx, in)
}

// download fetches the event's media to a temp file and returns its
// path and size. The caller removes the file.
func (b *Bridge) download(ctx context.Context, content *event.MessageEventContent) (string, int64, error) {
	uri, err := content.URL.Parse()
	if err != nil {
		return "", 0, fmt.Errorf("parsing media uri: %w", err)
	}
	data, err := b.matrix.DownloadBytes(ctx, uri)
	if err != nil {
		return "", 0, fmt.Errorf("downloading media: %w", err)
	}

	f, err := os.CreateTemp("", "assistant-matrix-*"+filepath.Ext(content.Body))
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", 0, err
	}
	return f.Name(), int64(len(data)), nil
}

// downloadURL builds the homeserver's HTTP download URL for the
// event's media so the vision API can fetch it.
func (b *Bridge) downloadURL(content *event.MessageEventContent) string {
	uri, err := content.URL.Parse()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s/_matrix/media/v3/download/%s/%s",
		strings.TrimSuffix(b.config.Matrix.Homeserver, "/"), uri.Homeserver, uri.FileID)
}

// imageCaption returns the user-written caption, if the filename body
// was replaced by one.
func imageCaption(content *event.MessageEventContent) string {
	if content.FileName != "" && content.Body != content.FileName {
		return content.Body
	}
	return ""
}

// isRoomAllowed checks if the room is in the allowed list.
func (b *Bridge) isRoomAllowed(roomID string) bool {
	if len(b.config.Bridge.AllowedRooms) == 0 {
		return true // Allow all if no filter
	}

	for _, allowed := range b.config.Bridge.AllowedRooms {
		if allowed == roomID {
			return true
		}
	}
	return false
}

// userIDFor derives a stable numeric user id from a Matrix user id.
func userIDFor(sender id.UserID) int64 {
	h := fnv.New64a()
	h.Write([]byte(sender.String()))
	return int64(h.Sum64() & (1<<63 - 1))
}

// typingTimeout is the duration the typing indicator shows (30 seconds).
const typingTimeout = 30 * time.Second

// networkTimeout is the timeout for Matrix API calls.
const networkTimeout = 10 * time.Second

// setTyping sends typing indicator to room.
func (b *Bridge) setTyping(roomID id.RoomID, typing bool) {
	var timeout = typingTimeout
	if !typing {
		timeout = 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()
	if _, err := b.matrix.UserTyping(ctx, roomID, typing, timeout); err != nil {
		b.logger.Debug("failed to set typing indicator", "room", roomID.String(), "error", err)
	}
}

// truncate shortens a string to the given max rune count, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
