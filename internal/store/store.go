// ABOUTME: Store interface and the Conversation entity for persistence.
// ABOUTME: Identity is the (user_id, assistant_id) pair; rows are never hard-deleted.

// Package store provides persistent storage for conversations using
// SQLite. The balance column is the only shared mutable state per
// user; debits and credits run inside a transaction so the balance
// mutation and the row commit share one boundary.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when a (user, assistant) pair
// already has a row.
var ErrDuplicateConversation = errors.New("conversation already exists")

// Conversation links a chat user to a remote assistant thread and
// carries the metered balance. The thread id is replaced in place when
// the thread is recreated; the row itself survives. Unreachable users
// are soft-deleted via Disabled.
type Conversation struct {
	ID           string
	UserID       int64
	AssistantID  string
	Username     string
	LanguageCode string
	ThreadID     string
	Balance      decimal.Decimal
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is the persistence surface for conversations.
type Store interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, userID int64, assistantID string) (*Conversation, error)
	UpdateThreadID(ctx context.Context, conversationID, threadID string) error

	// Debit and Credit mutate balance transactionally and bump
	// updated_at. Debit does not check sufficiency; callers gate with
	// the cost model before doing paid work.
	Debit(ctx context.Context, conversationID string, amount decimal.Decimal) error
	Credit(ctx context.Context, conversationID string, amount decimal.Decimal) error

	SetDisabled(ctx context.Context, conversationID string, disabled bool) error
	Touch(ctx context.Context, conversationID string) error

	Close() error
}
