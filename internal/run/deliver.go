// ABOUTME: Response delivery and metering after a run completes.
// ABOUTME: Routes content by type; short text may become synthesized voice.

package run

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/2389/fold-assistant/internal/ai"
	"github.com/2389/fold-assistant/internal/money"
	"github.com/2389/fold-assistant/internal/store"
	"github.com/2389/fold-assistant/internal/transport"
)

// deliver fetches the newest message on the thread and routes each
// content item to the chat, debiting the conversation for every piece
// of metered output. Debits are post-hoc: a send that never happened
// is never charged.
func (r *Runner) deliver(ctx context.Context, conv *store.Conversation, chatID string) error {
	messages, err := r.client.ListMessages(ctx, conv.ThreadID, 1)
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}
	if len(messages) == 0 {
		return fmt.Errorf("run completed but thread %s has no messages", conv.ThreadID)
	}

	for _, content := range messages[0].Contents {
		switch content.Type {
		case ai.ContentText:
			if err := r.deliverText(ctx, conv, chatID, content); err != nil {
				return err
			}
		case ai.ContentImageFile:
			if err := r.deliverImage(ctx, conv, chatID, content.FileID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) deliverText(ctx context.Context, conv *store.Conversation, chatID string, content ai.Content) error {
	text := content.Text

	asVoice := r.shouldReplyWithVoice(text)
	if asVoice {
		if err := r.deliverVoice(ctx, conv, chatID, text); err != nil {
			// Synthesis is opportunistic; fall back to plain text.
			r.logger.Warn("voice reply failed, sending text", "error", err)
			asVoice = false
		}
	}
	if !asVoice {
		if err := r.transport.SendText(ctx, chatID, text); err != nil {
			return fmt.Errorf("sending text response: %w", err)
		}
	}

	quote := r.pricing.Quote(money.OutputText, r.counter.Count(text))
	if err := r.debit(ctx, conv, quote); err != nil {
		return err
	}

	for _, annotation := range content.Annotations {
		if err := r.deliverAnnotation(ctx, conv, chatID, annotation); err != nil {
			return err
		}
	}
	return nil
}

// shouldReplyWithVoice rolls the voice-or-text selection: only short
// responses are eligible, and only 1 in VoiceReplyChance of those.
func (r *Runner) shouldReplyWithVoice(text string) bool {
	if r.cfg.VoiceReplyChance <= 0 {
		return false
	}
	if utf8.RuneCountInString(text) > r.cfg.ShortMessageThreshold {
		return false
	}
	return r.rng.Intn(r.cfg.VoiceReplyChance) == 0
}

func (r *Runner) deliverVoice(ctx context.Context, conv *store.Conversation, chatID, text string) error {
	audio, err := r.client.SynthesizeVoice(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesizing voice: %w", err)
	}
	if err := r.transport.SendVoice(ctx, chatID, audio); err != nil {
		return fmt.Errorf("sending voice response: %w", err)
	}

	quote := r.pricing.Quote(money.VoiceSynthesis, int64(utf8.RuneCountInString(text)))
	return r.debit(ctx, conv, quote)
}

func (r *Runner) deliverImage(ctx context.Context, conv *store.Conversation, chatID, fileID string) error {
	data, err := r.client.DownloadFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("downloading image %s: %w", fileID, err)
	}
	if err := r.transport.SendPhoto(ctx, chatID, transport.Photo{Data: data}); err != nil {
		return fmt.Errorf("sending image response: %w", err)
	}

	quote := r.pricing.Quote(money.ImageGeneration, 1)
	return r.debit(ctx, conv, quote)
}

func (r *Runner) deliverAnnotation(ctx context.Context, conv *store.Conversation, chatID string, annotation ai.Annotation) error {
	data, err := r.client.DownloadFile(ctx, annotation.FileID)
	if err != nil {
		return fmt.Errorf("downloading annotated file %s: %w", annotation.FileID, err)
	}
	if err := r.transport.SendDocument(ctx, chatID, annotationFilename(annotation), data); err != nil {
		return fmt.Errorf("sending annotated file: %w", err)
	}

	quote := r.pricing.Quote(money.DocumentRetrieval, int64(len(data)))
	return r.debit(ctx, conv, quote)
}

// annotationFilename takes the last path segment of the annotation
// text, which carries the sandbox path of the generated file.
func annotationFilename(annotation ai.Annotation) string {
	name := annotation.Text
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			name = name[i+1:]
			break
		}
	}
	if name == "" {
		name = "attachment"
	}
	return name
}

// debit applies a quote to the persistent balance and mirrors it on
// the in-memory row so later gating within the same interaction sees
// the decrement.
func (r *Runner) debit(ctx context.Context, conv *store.Conversation, quote money.Quote) error {
	if quote.Amount.IsZero() {
		return nil
	}
	if err := r.biller.Debit(ctx, conv.ID, quote.Amount); err != nil {
		return fmt.Errorf("debiting %s for %s: %w", quote.Amount, quote.Kind, err)
	}
	conv.Balance = conv.Balance.Sub(quote.Amount)

	r.logger.Debug("balance debited",
		"conversation_id", conv.ID,
		"kind", string(quote.Kind),
		"quantity", quote.Quantity,
		"amount", quote.Amount.String(),
	)
	return nil
}
