// ABOUTME: Conversation lifecycle: get-or-create, thread recreation, staleness.
// ABOUTME: Per-conversation keyed mutexes serialize all mutation per user pair.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/2389/fold-assistant/internal/ai"
	"github.com/2389/fold-assistant/internal/store"
)

// UserMeta carries the transport-level identity details stored on a
// newly created conversation.
type UserMeta struct {
	Username     string
	LanguageCode string
}

// ManagerConfig holds the lifecycle knobs.
type ManagerConfig struct {
	// ThreadTTL bounds how long an idle thread stays usable. A thread
	// idle past the TTL is recreated before the next message. Zero
	// disables staleness recreation.
	ThreadTTL time.Duration
	// InitialBalance is credited to every new conversation.
	InitialBalance decimal.Decimal
}

// DefaultManagerConfig returns the standard lifecycle settings.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ThreadTTL:      time.Hour,
		InitialBalance: decimal.RequireFromString("1.00"),
	}
}

// Manager owns conversation rows and their remote threads. All engine
// paths take the per-conversation lock before touching either, so a
// user sending two messages at once cannot double-spend or race a
// thread recreation.
type Manager struct {
	store  store.Store
	client ai.Client
	cfg    ManagerConfig
	logger *slog.Logger

	locks sync.Map // "userID|assistantID" -> *sync.Mutex
}

// NewManager creates a manager over the given store and AI client.
func NewManager(st store.Store, client ai.Client, cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  st,
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "session"),
	}
}

// Lock acquires the conversation's mutex and returns its unlock.
// Mutexes are created on demand and never removed; the working set is
// bounded by the number of active user pairs.
func (m *Manager) Lock(userID int64, assistantID string) func() {
	key := fmt.Sprintf("%d|%s", userID, assistantID)
	v, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// GetOrCreate returns the conversation for the user pair, creating the
// remote thread and the row together when none exists. Losing a create
// race to a concurrent writer falls back to that writer's row.
func (m *Manager) GetOrCreate(ctx context.Context, userID int64, assistantID string, meta UserMeta) (*store.Conversation, error) {
	conv, err := m.store.GetConversation(ctx, userID, assistantID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	threadID, err := m.client.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating thread: %w", err)
	}

	conv = &store.Conversation{
		ID:           uuid.NewString(),
		UserID:       userID,
		AssistantID:  assistantID,
		Username:     meta.Username,
		LanguageCode: meta.LanguageCode,
		ThreadID:     threadID,
		Balance:      m.cfg.InitialBalance,
	}
	if err := m.store.CreateConversation(ctx, conv); err != nil {
		if errors.Is(err, store.ErrDuplicateConversation) {
			// Lost the race; release our thread so it does not leak on
			// the remote service, then use the winner's row.
			if delErr := m.client.DeleteThread(ctx, threadID); delErr != nil {
				m.logger.Warn("failed to delete orphaned thread",
					"thread_id", threadID,
					"error", delErr,
				)
			}
			return m.store.GetConversation(ctx, userID, assistantID)
		}
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	m.logger.Info("conversation created",
		"conversation_id", conv.ID,
		"user_id", userID,
		"thread_id", threadID,
	)
	return conv, nil
}

// RecreateThread deletes the remote thread and replaces it with a
// fresh one. The delete is best effort; an already-gone thread must
// not block recovery.
func (m *Manager) RecreateThread(ctx context.Context, conv *store.Conversation) error {
	if conv.ThreadID != "" {
		if err := m.client.DeleteThread(ctx, conv.ThreadID); err != nil {
			m.logger.Warn("failed to delete thread, abandoning it",
				"thread_id", conv.ThreadID,
				"error", err,
			)
		}
	}
	return m.ReplaceThread(ctx, conv)
}

// ReplaceThread creates a fresh remote thread and persists its id on
// the row, without touching the old thread. Used when the old thread
// no longer exists remotely.
func (m *Manager) ReplaceThread(ctx context.Context, conv *store.Conversation) error {
	threadID, err := m.client.CreateThread(ctx)
	if err != nil {
		return fmt.Errorf("creating replacement thread: %w", err)
	}
	if err := m.store.UpdateThreadID(ctx, conv.ID, threadID); err != nil {
		return fmt.Errorf("persisting replacement thread: %w", err)
	}

	m.logger.Info("thread replaced",
		"conversation_id", conv.ID,
		"old_thread_id", conv.ThreadID,
		"thread_id", threadID,
	)
	conv.ThreadID = threadID
	conv.UpdatedAt = time.Now()
	return nil
}

// EnsureFresh recreates the thread when it has been idle past the TTL
// so a days-old context does not leak into a new exchange.
func (m *Manager) EnsureFresh(ctx context.Context, conv *store.Conversation) error {
	if conv.ThreadID == "" {
		return m.ReplaceThread(ctx, conv)
	}
	if m.cfg.ThreadTTL > 0 && time.Since(conv.UpdatedAt) > m.cfg.ThreadTTL {
		m.logger.Debug("thread stale, recreating",
			"conversation_id", conv.ID,
			"idle", time.Since(conv.UpdatedAt).String(),
		)
		return m.RecreateThread(ctx, conv)
	}
	return nil
}
