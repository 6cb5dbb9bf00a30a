// ABOUTME: Matrix implementation of the engine's transport interface
// ABOUTME: Renders markdown replies as HTML; uploads media to the homeserver

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/fold-assistant/internal/transport"
)

// sendTimeout bounds outbound Matrix API calls (uploads can be large).
const sendTimeout = 30 * time.Second

// matrixTransport sends engine output into Matrix rooms. The chat id
// is the room id.
type matrixTransport struct {
	client *mautrix.Client
	logger *slog.Logger
}

var _ transport.Transport = (*matrixTransport)(nil)

func newMatrixTransport(client *mautrix.Client, logger *slog.Logger) *matrixTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &matrixTransport{
		client: client,
		logger: logger.With("component", "matrix-transport"),
	}
}

func (t *matrixTransport) SendText(ctx context.Context, chatID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	content := event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}

	// Assistants answer in markdown; render it for clients that show
	// formatted bodies.
	var html bytes.Buffer
	if err := goldmark.Convert([]byte(text), &html); err == nil {
		content.Format = event.FormatHTML
		content.FormattedBody = html.String()
	}

	_, err := t.client.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, &content)
	return t.wrap("sending text", err)
}

func (t *matrixTransport) SendVoice(ctx context.Context, chatID string, voice []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	uri, err := t.upload(ctx, voice, "audio/mpeg")
	if err != nil {
		return err
	}

	content := event.MessageEventContent{
		MsgType: event.MsgAudio,
		Body:    "voice message",
		URL:     uri.CUString(),
		Info:    &event.FileInfo{MimeType: "audio/mpeg", Size: len(voice)},
	}
	_, err = t.client.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, &content)
	return t.wrap("sending voice", err)
}

func (t *matrixTransport) SendPhoto(ctx context.Context, chatID string, photo transport.Photo) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	data := photo.Data
	if data == nil && photo.URL != "" {
		fetched, err := fetch(ctx, photo.URL)
		if err != nil {
			return fmt.Errorf("fetching image: %w", err)
		}
		data = fetched
	}

	uri, err := t.upload(ctx, data, "image/png")
	if err != nil {
		return err
	}

	body := photo.Caption
	if body == "" {
		body = "image"
	}
	content := event.MessageEventContent{
		MsgType: event.MsgImage,
		Body:    body,
		URL:     uri.CUString(),
		Info:    &event.FileInfo{MimeType: "image/png", Size: len(data)},
	}
	_, err = t.client.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, &content)
	return t.wrap("sending photo", err)
}

func (t *matrixTransport) SendDocument(ctx context.Context, chatID, filename string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	uri, err := t.upload(ctx, data, "application/octet-stream")
	if err != nil {
		return err
	}

	content := event.MessageEventContent{
		MsgType: event.MsgFile,
		Body:    filename,
		URL:     uri.CUString(),
		Info:    &event.FileInfo{Size: len(data)},
	}
	_, err = t.client.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, &content)
	return t.wrap("sending document", err)
}

func (t *matrixTransport) PromptForPayment(ctx context.Context, chatID string) error {
	// There is no payment flow inside Matrix; point at the operator.
	return t.SendText(ctx, chatID, "To top up your balance, contact the operator of this assistant.")
}

func (t *matrixTransport) upload(ctx context.Context, data []byte, mimeType string) (id.ContentURI, error) {
	resp, err := t.client.UploadBytes(ctx, data, mimeType)
	if err != nil {
		return id.ContentURI{}, t.wrap("uploading media", err)
	}
	return resp.ContentURI, nil
}

// wrap maps Matrix API failures onto the transport error contract:
// forbidden sends mean the room kicked us or the user left.
func (t *matrixTransport) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var httpErr mautrix.HTTPError
	if errors.As(err, &httpErr) && httpErr.RespError != nil && httpErr.RespError.ErrCode == "M_FORBIDDEN" {
		return fmt.Errorf("%s: %w: %v", op, transport.ErrBlocked, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
