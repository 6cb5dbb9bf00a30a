// ABOUTME: Bounded interaction retry driven by the remote error taxonomy.
// ABOUTME: Each code maps to one repair action; unknown codes never retry.

package session

import (
	"context"
	"fmt"

	"github.com/2389/fold-assistant/internal/ai"
	"github.com/2389/fold-assistant/internal/store"
)

// maxAttempts bounds one interaction: the original try plus one retry
// after a successful repair.
const maxAttempts = 2

// interact appends the content and drives the run, repairing and
// retrying once when the failure is in the recoverable taxonomy. The
// message is appended at most once per thread: a transient failure
// mid-run retries only the run, so the thread never holds a duplicate.
func (e *Engine) interact(ctx context.Context, conv *store.Conversation, chatID, content string) error {
	var err error
	appended := false
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !appended {
			if appendErr := e.client.AppendMessage(ctx, conv.ThreadID, "user", content); appendErr != nil {
				err = fmt.Errorf("appending message: %w", appendErr)
			} else {
				appended = true
				err = nil
			}
		}
		if appended {
			err = e.executor.Execute(ctx, conv, chatID)
		}
		if err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		thread := conv.ThreadID
		if !e.repair(ctx, conv, ai.Classify(err)) {
			break
		}
		// A repair that swapped the thread lost the appended message.
		if conv.ThreadID != thread {
			appended = false
		}
		e.logger.Info("interaction repaired, retrying",
			"conversation_id", conv.ID,
			"attempt", attempt,
		)
	}
	return e.fail(ctx, conv, chatID, err)
}

// repair applies the taxonomy's fix for a classified failure and
// reports whether a retry is worthwhile.
func (e *Engine) repair(ctx context.Context, conv *store.Conversation, aerr *ai.Error) bool {
	switch aerr.Code {
	case ai.CodeThreadNotFound:
		// The remote thread is gone; nothing to delete.
		if err := e.manager.ReplaceThread(ctx, conv); err != nil {
			e.logger.Error("thread replacement failed", "conversation_id", conv.ID, "error", err)
			return false
		}
		return true

	case ai.CodeUnsupportedContent:
		// The thread indexed content it cannot handle; only a full
		// recreation clears it.
		if err := e.manager.RecreateThread(ctx, conv); err != nil {
			e.logger.Error("thread recreation failed", "conversation_id", conv.ID, "error", err)
			return false
		}
		return true

	case ai.CodeRunActive:
		runID := aerr.RunID
		if runID == "" {
			return false
		}
		threadID := aerr.ThreadID
		if threadID == "" {
			threadID = conv.ThreadID
		}
		if err := e.client.CancelRun(ctx, threadID, runID); err != nil {
			e.logger.Error("cancelling blocking run failed",
				"thread_id", threadID,
				"run_id", runID,
				"error", err,
			)
			return false
		}
		return true

	case ai.CodeRateLimited, ai.CodeTimeout:
		return true

	default:
		return false
	}
}
