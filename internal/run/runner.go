// ABOUTME: Run state machine: create, poll, dispatch tool calls, deliver, cancel.
// ABOUTME: Timer-driven polling composes the operation context with the run deadline.

// Package run owns one request-response cycle against a thread. A run
// is created, polled on a timer until terminal, fed batched tool
// outputs while it requires action, and cancelled (best effort,
// exactly once) when the wall clock runs out. Runs are never
// persisted; a run that reached a terminal status is discarded.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/2389/fold-assistant/internal/ai"
	"github.com/2389/fold-assistant/internal/money"
	"github.com/2389/fold-assistant/internal/store"
	"github.com/2389/fold-assistant/internal/tokens"
	"github.com/2389/fold-assistant/internal/tools"
	"github.com/2389/fold-assistant/internal/transport"
)

// ErrRunTimeout is returned when a run exceeds the maximum duration
// and has been cancelled.
var ErrRunTimeout = errors.New("run exceeded maximum duration")

// ErrRunEnded is returned when the remote service ends a run in a
// failure state (failed, cancelled, expired).
var ErrRunEnded = errors.New("run ended without completing")

// cancelTimeout bounds the best-effort remote cancel so a slow service
// cannot wedge the caller during cleanup.
const cancelTimeout = 10 * time.Second

// Dispatcher executes a requires_action batch. Implemented by
// tools.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, conv *store.Conversation, chatID string, calls []ai.ToolCall) ([]ai.ToolOutput, error)
}

// Config holds the state machine's timing and delivery knobs.
type Config struct {
	// PollInterval is the sleep between status fetches.
	PollInterval time.Duration
	// MaxRunDuration is the wall-clock budget for one run.
	MaxRunDuration time.Duration
	// ShortMessageThreshold is the character bound under which a text
	// response is eligible for voice conversion.
	ShortMessageThreshold int
	// VoiceReplyChance is the 1-in-N odds of converting an eligible
	// text response to synthesized voice.
	VoiceReplyChance int
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:          3 * time.Second,
		MaxRunDuration:        60 * time.Minute,
		ShortMessageThreshold: 100,
		VoiceReplyChance:      10,
	}
}

// Runner drives runs to completion for one assistant instance.
type Runner struct {
	client     ai.Client
	dispatcher Dispatcher
	transport  transport.Transport
	biller     tools.Biller
	pricing    money.Pricing
	counter    *tokens.Counter
	cfg        Config
	rng        *rand.Rand
	logger     *slog.Logger
}

// New creates a runner. A nil rng seeds one from the clock.
func New(client ai.Client, dispatcher Dispatcher, tp transport.Transport, biller tools.Biller, pricing money.Pricing, counter *tokens.Counter, cfg Config, rng *rand.Rand, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Runner{
		client:     client,
		dispatcher: dispatcher,
		transport:  tp,
		biller:     biller,
		pricing:    pricing,
		counter:    counter,
		cfg:        cfg,
		rng:        rng,
		logger:     logger.With("component", "run"),
	}
}

// Execute creates a run against the conversation's thread and drives
// it to a terminal state, delivering and metering the response on
// completion. The caller's context cancels the whole operation; the
// run-level deadline applies independently.
func (r *Runner) Execute(ctx context.Context, conv *store.Conversation, chatID string) error {
	created, err := r.client.CreateRun(ctx, conv.ThreadID, conv.AssistantID)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}

	r.logger.Debug("run created",
		"run_id", created.ID,
		"thread_id", conv.ThreadID,
		"conversation_id", conv.ID,
	)

	deadline := time.Now().Add(r.cfg.MaxRunDuration)
	timer := time.NewTimer(r.cfg.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.cancelRun(conv.ThreadID, created.ID)
			return ctx.Err()
		case <-timer.C:
		}

		if time.Now().After(deadline) {
			r.cancelRun(conv.ThreadID, created.ID)
			return fmt.Errorf("%w: run %s after %s", ErrRunTimeout, created.ID, r.cfg.MaxRunDuration)
		}

		current, err := r.client.GetRun(ctx, conv.ThreadID, created.ID)
		if err != nil {
			return fmt.Errorf("polling run %s: %w", created.ID, err)
		}

		switch current.Status {
		case ai.RunCompleted:
			return r.deliver(ctx, conv, chatID)

		case ai.RunRequiresAction:
			outputs, err := r.dispatcher.Dispatch(ctx, conv, chatID, current.ToolCalls)
			if err != nil {
				return fmt.Errorf("dispatching tool calls for run %s: %w", created.ID, err)
			}
			if err := r.client.SubmitToolOutputs(ctx, conv.ThreadID, created.ID, outputs); err != nil {
				return fmt.Errorf("submitting tool outputs for run %s: %w", created.ID, err)
			}

		case ai.RunFailed, ai.RunCancelled, ai.RunExpired:
			return fmt.Errorf("%w: run %s status %s", ErrRunEnded, created.ID, current.Status)
		}

		timer.Reset(r.cfg.PollInterval)
	}
}

// cancelRun issues a best-effort remote cancel on its own context so
// it never blocks the caller indefinitely. Failure is logged, not
// returned.
func (r *Runner) cancelRun(threadID, runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()

	if err := r.client.CancelRun(ctx, threadID, runID); err != nil {
		r.logger.Warn("failed to cancel run",
			"run_id", runID,
			"thread_id", threadID,
			"error", err,
		)
		return
	}
	r.logger.Info("run cancelled", "run_id", runID, "thread_id", threadID)
}
