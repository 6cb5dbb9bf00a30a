// ABOUTME: Tool handler for assistant-requested image generation.
// ABOUTME: Quotes prompt + image cost, gates on balance, debits actuals after success.

package tools

import (
	"context"
	"log/slog"

	"github.com/2389/fold-assistant/internal/ai"
	"github.com/2389/fold-assistant/internal/localize"
	"github.com/2389/fold-assistant/internal/money"
	"github.com/2389/fold-assistant/internal/tokens"
	"github.com/2389/fold-assistant/internal/transport"
)

// ImageGenerator is the slice of the AI client this handler needs.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (url, revisedPrompt string, err error)
}

// GenerateImage handles the "generate_image" function call: the
// assistant asks for an image, we render it, send it straight to the
// chat and tell the assistant it has already been delivered.
type GenerateImage struct {
	client    ImageGenerator
	transport transport.Transport
	biller    Biller
	pricing   money.Pricing
	counter   *tokens.Counter
	logger    *slog.Logger
}

// NewGenerateImage wires the handler.
func NewGenerateImage(client ImageGenerator, tp transport.Transport, biller Biller, pricing money.Pricing, counter *tokens.Counter, logger *slog.Logger) *GenerateImage {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateImage{
		client:    client,
		transport: tp,
		biller:    biller,
		pricing:   pricing,
		counter:   counter,
		logger:    logger.With("tool", "generate_image"),
	}
}

func (h *GenerateImage) Name() string { return "generate_image" }

func (h *GenerateImage) Handle(ctx context.Context, inv *Invocation) (string, error) {
	description, _ := inv.Args["description"].(string)
	p := localize.Printer(inv.Conversation.LanguageCode)

	// Held until the debit lands: another call in this batch must not
	// clear its gate on a balance this one is about to spend.
	unlock := inv.LockBalance()
	defer unlock()

	// Estimate: prompt tokens plus one generated image.
	estimate := h.pricing.Quote(money.InputText, h.counter.Count(description)).Amount
	estimate = estimate.Add(h.pricing.Quote(money.ImageGeneration, 1).Amount)

	if !money.Sufficient(estimate, inv.Conversation.Balance) {
		notice := p.Sprintf(localize.MsgInsufficientImage)
		h.logger.Info("insufficient balance for image generation",
			"conversation_id", inv.Conversation.ID,
			"estimate", estimate.String(),
			"balance", inv.Conversation.Balance.String(),
		)
		if err := h.transport.SendText(ctx, inv.ChatID, notice); err != nil {
			h.logger.Warn("failed to notify user", "error", err)
		}
		if err := h.transport.PromptForPayment(ctx, inv.ChatID); err != nil {
			h.logger.Warn("failed to prompt for payment", "error", err)
		}
		// The run continues; the assistant is told why nothing happened.
		return notice, nil
	}

	url, revisedPrompt, err := h.client.GenerateImage(ctx, description)
	if err != nil {
		if aerr := ai.Classify(err); aerr.Code == ai.CodeContentPolicy {
			notice := p.Sprintf(localize.MsgContentPolicy)
			if sendErr := h.transport.SendText(ctx, inv.ChatID, notice); sendErr != nil {
				h.logger.Warn("failed to notify user", "error", sendErr)
			}
			return notice, nil
		}
		return "", err
	}

	// Actual cost includes the provider's revised prompt tokens.
	actual := estimate.Add(h.pricing.Quote(money.InputText, h.counter.Count(revisedPrompt)).Amount)
	if err := h.biller.Debit(ctx, inv.Conversation.ID, actual); err != nil {
		return "", err
	}
	inv.Conversation.Balance = inv.Conversation.Balance.Sub(actual)

	h.logger.Info("image generated",
		"conversation_id", inv.Conversation.ID,
		"amount", actual.String(),
	)

	if err := h.transport.SendPhoto(ctx, inv.ChatID, transport.Photo{URL: url}); err != nil {
		return "", err
	}

	return url + " - this picture has already been sent to the user in the chat. There is no need to reply to the message.", nil
}
