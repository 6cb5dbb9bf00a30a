// ABOUTME: Executes a requires_action batch of tool calls atomically.
// ABOUTME: Handlers run concurrently; one failure discards every output.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/2389/fold-assistant/internal/ai"
	"github.com/2389/fold-assistant/internal/store"
)

// Dispatcher resolves and executes the tool calls of one run step.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch executes every call in the batch and returns outputs in
// call order. Calls run concurrently, but billing handlers serialize
// their gate-to-debit sections on a shared batch lock, and the batch
// is atomic: if any handler fails, no outputs are returned and the
// error propagates to the run state machine.
func (d *Dispatcher) Dispatch(ctx context.Context, conv *store.Conversation, chatID string, calls []ai.ToolCall) ([]ai.ToolOutput, error) {
	outputs := make([]ai.ToolOutput, len(calls))
	balance := &sync.Mutex{}

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			args, err := parseArguments(call.ArgumentsJSON)
			if err != nil {
				return fmt.Errorf("tool %s (%s): %w", call.Name, call.CallID, err)
			}

			handler := d.registry.Resolve(call.Name)
			output, err := handler.Handle(gctx, &Invocation{
				Call:         call,
				Args:         args,
				Conversation: conv,
				ChatID:       chatID,
				balance:      balance,
			})
			if err != nil {
				return fmt.Errorf("tool %s (%s): %w", call.Name, call.CallID, err)
			}

			outputs[i] = ai.ToolOutput{CallID: call.CallID, Output: output}
			d.logger.Debug("tool executed", "name", call.Name, "call_id", call.CallID)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("parsing arguments: %w", err)
	}
	return args, nil
}
