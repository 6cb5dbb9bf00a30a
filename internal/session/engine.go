// ABOUTME: The engine: inbound message paths with gating, metering and recovery.
// ABOUTME: One handler per media kind; all converge on the text interaction core.

// Package session mediates between a chat user and a hosted assistant.
// Every inbound message follows the same shape: constraint check,
// pre-flight sufficiency gate on an estimate, thread freshness, the
// run itself, then post-hoc debits for what actually happened. Work
// that never ran is never charged.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/2389/fold-assistant/internal/ai"
	"github.com/2389/fold-assistant/internal/constraints"
	"github.com/2389/fold-assistant/internal/extract"
	"github.com/2389/fold-assistant/internal/localize"
	"github.com/2389/fold-assistant/internal/money"
	"github.com/2389/fold-assistant/internal/store"
	"github.com/2389/fold-assistant/internal/tokens"
	"github.com/2389/fold-assistant/internal/transport"
)

// Executor drives one run on a thread to completion. Implemented by
// run.Runner.
type Executor interface {
	Execute(ctx context.Context, conv *store.Conversation, chatID string) error
}

// Inbound is one message arriving from the transport. Text carries the
// message body or caption; the file fields describe a downloaded
// attachment when one exists.
type Inbound struct {
	UserID       int64
	ChatID       string
	Username     string
	LanguageCode string

	Text string

	FilePath string
	FileExt  string
	FileSize int64

	// Photo-only fields.
	Width    int
	Height   int
	ImageURL string
}

// EngineDeps lists the engine's collaborators.
type EngineDeps struct {
	Manager     *Manager
	Store       store.Store
	Client      ai.Client
	Executor    Executor
	Transport   transport.Transport
	Pricing     money.Pricing
	Counter     *tokens.Counter
	Checker     *constraints.Checker
	Extractor   extract.Extractor
	AssistantID string
	Logger      *slog.Logger
}

// Engine routes inbound messages through the gate-run-meter cycle.
type Engine struct {
	manager     *Manager
	store       store.Store
	client      ai.Client
	executor    Executor
	transport   transport.Transport
	pricing     money.Pricing
	counter     *tokens.Counter
	checker     *constraints.Checker
	extractor   extract.Extractor
	assistantID string
	logger      *slog.Logger
}

// NewEngine wires the engine from its dependencies.
func NewEngine(deps EngineDeps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		manager:     deps.Manager,
		store:       deps.Store,
		client:      deps.Client,
		executor:    deps.Executor,
		transport:   deps.Transport,
		pricing:     deps.Pricing,
		counter:     deps.Counter,
		checker:     deps.Checker,
		extractor:   deps.Extractor,
		assistantID: deps.AssistantID,
		logger:      logger.With("component", "engine"),
	}
}

// HandleText processes a plain text message.
func (e *Engine) HandleText(ctx context.Context, in Inbound) error {
	unlock := e.manager.Lock(in.UserID, e.assistantID)
	defer unlock()

	conv, err := e.begin(ctx, in)
	if err != nil || conv == nil {
		return err
	}
	return e.runText(ctx, conv, in.ChatID, in.Text)
}

// HandleVoice transcribes a voice message and feeds the transcript to
// the thread. Transcription is debited by actual duration after it
// succeeds; the gate only requires the minimum charge up front.
func (e *Engine) HandleVoice(ctx context.Context, in Inbound) error {
	unlock := e.manager.Lock(in.UserID, e.assistantID)
	defer unlock()

	conv, err := e.begin(ctx, in)
	if err != nil || conv == nil {
		return err
	}
	if ok := e.admit(ctx, conv, in.ChatID, constraints.MediaVoice, in); !ok {
		return nil
	}

	floor := e.pricing.Quote(money.VoiceTranscription, 1)
	if !e.gate(ctx, conv, in.ChatID, floor.Amount) {
		return nil
	}

	text, seconds, err := e.client.TranscribeVoice(ctx, in.FilePath)
	if err != nil {
		return e.fail(ctx, conv, in.ChatID, fmt.Errorf("transcribing voice: %w", err))
	}
	if err := e.debit(ctx, conv, e.pricing.Quote(money.VoiceTranscription, seconds)); err != nil {
		return err
	}

	return e.runText(ctx, conv, in.ChatID, text)
}

// HandlePhoto runs image understanding over the photo and feeds the
// description, plus any caption, to the thread.
func (e *Engine) HandlePhoto(ctx context.Context, in Inbound) error {
	unlock := e.manager.Lock(in.UserID, e.assistantID)
	defer unlock()

	conv, err := e.begin(ctx, in)
	if err != nil || conv == nil {
		return err
	}

	if ok, reason := e.checker.CheckPhoto(in.FileExt, in.FileSize, in.Width, in.Height); !ok {
		return e.reject(ctx, conv, in.ChatID, reason)
	}

	quote := e.pricing.Quote(money.ImageUnderstanding, 1)
	if !e.gate(ctx, conv, in.ChatID, quote.Amount) {
		return nil
	}

	prompt := in.Text
	if prompt == "" {
		prompt = "Describe this image in detail."
	}
	description, err := e.client.DescribeImage(ctx, in.ImageURL, prompt)
	if err != nil {
		return e.fail(ctx, conv, in.ChatID, fmt.Errorf("describing image: %w", err))
	}
	if err := e.debit(ctx, conv, quote); err != nil {
		return err
	}

	content := "The user sent an image.\nImage description: " + description
	if in.Text != "" {
		content += "\nCaption: " + in.Text
	}
	return e.runText(ctx, conv, in.ChatID, content)
}

// HandleDocument extracts the document's text and feeds it to the
// thread, charging retrieval by the file's byte size.
func (e *Engine) HandleDocument(ctx context.Context, in Inbound) error {
	unlock := e.manager.Lock(in.UserID, e.assistantID)
	defer unlock()

	conv, err := e.begin(ctx, in)
	if err != nil || conv == nil {
		return err
	}
	if ok := e.admit(ctx, conv, in.ChatID, constraints.MediaDocument, in); !ok {
		return nil
	}

	quote := e.pricing.Quote(money.DocumentRetrieval, in.FileSize)
	if !e.gate(ctx, conv, in.ChatID, quote.Amount) {
		return nil
	}

	text, err := e.extractor.Extract(ctx, in.FilePath)
	if err != nil {
		return e.fail(ctx, conv, in.ChatID, fmt.Errorf("extracting document: %w", err))
	}
	if err := e.debit(ctx, conv, quote); err != nil {
		return err
	}

	content := "The user sent a document.\nDocument text:\n" + text
	if in.Text != "" {
		content += "\nCaption: " + in.Text
	}
	return e.runText(ctx, conv, in.ChatID, content)
}

// HandleBalance reports the conversation's current balance.
func (e *Engine) HandleBalance(ctx context.Context, in Inbound) error {
	unlock := e.manager.Lock(in.UserID, e.assistantID)
	defer unlock()

	conv, err := e.begin(ctx, in)
	if err != nil || conv == nil {
		return err
	}

	balance, _ := conv.Balance.Float64()
	p := localize.Printer(conv.LanguageCode)
	if err := e.transport.SendText(ctx, in.ChatID, p.Sprintf(localize.MsgBalance, balance)); err != nil {
		e.noteUnreachable(ctx, conv, err)
	}
	return nil
}

// runText is the shared tail of every path: gate on the input token
// estimate, ensure a fresh thread, append, run, then debit the tokens
// actually appended.
func (e *Engine) runText(ctx context.Context, conv *store.Conversation, chatID, content string) error {
	quote := e.pricing.Quote(money.InputText, e.counter.Count(content))
	if !e.gate(ctx, conv, chatID, quote.Amount) {
		return nil
	}
	if err := e.manager.EnsureFresh(ctx, conv); err != nil {
		return err
	}
	if err := e.interact(ctx, conv, chatID, content); err != nil {
		return err
	}
	if err := e.debit(ctx, conv, quote); err != nil {
		return err
	}
	if err := e.store.Touch(ctx, conv.ID); err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	return nil
}

// begin loads or creates the conversation and drops messages for
// disabled rows.
func (e *Engine) begin(ctx context.Context, in Inbound) (*store.Conversation, error) {
	conv, err := e.manager.GetOrCreate(ctx, in.UserID, e.assistantID, UserMeta{
		Username:     in.Username,
		LanguageCode: in.LanguageCode,
	})
	if err != nil {
		return nil, err
	}
	if conv.Disabled {
		e.logger.Debug("dropping message for disabled conversation", "conversation_id", conv.ID)
		return nil, nil
	}
	return conv, nil
}

// admit runs the media policy check and rejects with the reason.
func (e *Engine) admit(ctx context.Context, conv *store.Conversation, chatID string, kind constraints.MediaKind, in Inbound) bool {
	if ok, reason := e.checker.Check(kind, in.FileExt, in.FileSize); !ok {
		_ = e.reject(ctx, conv, chatID, reason)
		return false
	}
	return true
}

func (e *Engine) reject(ctx context.Context, conv *store.Conversation, chatID, reason string) error {
	if err := e.transport.SendText(ctx, chatID, reason); err != nil {
		e.noteUnreachable(ctx, conv, err)
	}
	return nil
}

// gate checks the estimate against the balance. Insufficiency notifies
// the user and triggers the payment prompt; it is not an error.
func (e *Engine) gate(ctx context.Context, conv *store.Conversation, chatID string, amount decimal.Decimal) bool {
	if money.Sufficient(amount, conv.Balance) {
		return true
	}

	e.logger.Info("insufficient balance",
		"conversation_id", conv.ID,
		"balance", conv.Balance.String(),
		"required", amount.String(),
	)
	p := localize.Printer(conv.LanguageCode)
	if err := e.transport.SendText(ctx, chatID, p.Sprintf(localize.MsgInsufficientBalance)); err != nil {
		e.noteUnreachable(ctx, conv, err)
		return false
	}
	if err := e.transport.PromptForPayment(ctx, chatID); err != nil {
		e.logger.Warn("payment prompt failed", "conversation_id", conv.ID, "error", err)
	}
	return false
}

// debit applies an amount to the persistent balance and mirrors it on
// the in-memory row.
func (e *Engine) debit(ctx context.Context, conv *store.Conversation, quote money.Quote) error {
	if quote.Amount.IsZero() {
		return nil
	}
	if err := e.store.Debit(ctx, conv.ID, quote.Amount); err != nil {
		return fmt.Errorf("debiting %s for %s: %w", quote.Amount, quote.Kind, err)
	}
	conv.Balance = conv.Balance.Sub(quote.Amount)
	return nil
}

// fail surfaces a terminal failure to the user. Content policy
// refusals are the user's answer, not an engine error; everything else
// gets the generic notice and propagates.
func (e *Engine) fail(ctx context.Context, conv *store.Conversation, chatID string, err error) error {
	aerr := ai.Classify(err)
	p := localize.Printer(conv.LanguageCode)

	if aerr.Code == ai.CodeContentPolicy {
		if serr := e.transport.SendText(ctx, chatID, p.Sprintf(localize.MsgContentPolicy)); serr != nil {
			e.noteUnreachable(ctx, conv, serr)
		}
		return nil
	}

	e.logger.Error("interaction failed",
		"conversation_id", conv.ID,
		"code", string(aerr.Code),
		"error", err,
	)
	if serr := e.transport.SendText(ctx, chatID, p.Sprintf(localize.MsgGenericFailure)); serr != nil {
		e.noteUnreachable(ctx, conv, serr)
	}
	return err
}

// noteUnreachable soft-disables conversations whose user blocked the
// assistant or left the chat.
func (e *Engine) noteUnreachable(ctx context.Context, conv *store.Conversation, err error) {
	if !errors.Is(err, transport.ErrBlocked) {
		return
	}
	e.logger.Info("user unreachable, disabling conversation", "conversation_id", conv.ID)
	if derr := e.store.SetDisabled(ctx, conv.ID, true); derr != nil {
		e.logger.Error("failed to disable conversation", "conversation_id", conv.ID, "error", derr)
	}
	conv.Disabled = true
}
