// ABOUTME: Compile-time registry mapping tool names to handler implementations.
// ABOUTME: Unknown names resolve to a no-op handler so a batch never fails on them.

// Package tools dispatches mid-run tool calls to registered handlers.
// The registry is built explicitly at startup; there is no dynamic
// discovery. Handlers quote their own cost, gate on balance and debit
// after the work succeeds.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/2389/fold-assistant/internal/ai"
	"github.com/2389/fold-assistant/internal/store"
)

// ErrToolCollision indicates a handler name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// Invocation carries one tool call plus the context a handler needs:
// the live conversation (for balance gating) and the chat to notify.
type Invocation struct {
	Call         ai.ToolCall
	Args         map[string]any
	Conversation *store.Conversation
	ChatID       string

	// balance is shared by every invocation of one batch; all calls in
	// a batch bill the same conversation.
	balance *sync.Mutex
}

// LockBalance takes the batch-wide balance lock and returns its
// release. A billing handler holds it from the sufficiency gate
// through the debit so two calls in one batch cannot both pass their
// gates on the same balance.
func (inv *Invocation) LockBalance() func() {
	inv.balance.Lock()
	return inv.balance.Unlock
}

// Handler executes one named capability. The returned string is the
// tool output fed back into the run; an error fails the whole batch.
type Handler interface {
	Name() string
	Handle(ctx context.Context, inv *Invocation) (string, error)
}

// Biller applies a debit to a conversation's balance. Implemented by
// the store; declared here so handlers depend on the capability, not
// the database.
type Biller interface {
	Debit(ctx context.Context, conversationID string, amount decimal.Decimal) error
}

// Registry maps function names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "tools"),
	}
}

// Register adds a handler. Returns ErrToolCollision if the name is
// already taken.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := h.Name()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolCollision, name)
	}
	r.handlers[name] = h

	r.logger.Debug("tool registered", "name", name)
	return nil
}

// Resolve returns the handler for a name, or the no-op handler when
// the name is unknown. A completion service asking for a capability
// we don't have gets an empty output, not a failed batch.
func (r *Registry) Resolve(name string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[name]; ok {
		return h
	}
	r.logger.Warn("unknown tool requested, using no-op handler", "name", name)
	return noopHandler{name: name}
}

// noopHandler answers unknown tool names with an empty output.
type noopHandler struct {
	name string
}

func (h noopHandler) Name() string { return h.name }

func (h noopHandler) Handle(ctx context.Context, inv *Invocation) (string, error) {
	return "", nil
}
