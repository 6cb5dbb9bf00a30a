// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Automatic schema creation, WAL mode, decimal balances stored as TEXT.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			assistant_id TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			language_code TEXT NOT NULL DEFAULT '',
			thread_id TEXT NOT NULL,
			balance TEXT NOT NULL DEFAULT '0',
			disabled INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(user_id, assistant_id)
		);
		CREATE INDEX IF NOT EXISTS idx_conversations_user
			ON conversations(user_id, assistant_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a new conversation row. Returns
// ErrDuplicateConversation if the (user, assistant) pair exists.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	query := `
		INSERT INTO conversations (
			id, user_id, assistant_id, username, language_code,
			thread_id, balance, disabled, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.UserID,
		conv.AssistantID,
		conv.Username,
		conv.LanguageCode,
		conv.ThreadID,
		conv.Balance.String(),
		boolToInt(conv.Disabled),
		conv.CreatedAt.Format(time.RFC3339),
		conv.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateConversation
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("conversation created",
		"id", conv.ID,
		"user_id", conv.UserID,
		"assistant_id", conv.AssistantID,
		"thread_id", conv.ThreadID,
	)
	return nil
}

// GetConversation fetches the row for a (user, assistant) pair.
func (s *SQLiteStore) GetConversation(ctx context.Context, userID int64, assistantID string) (*Conversation, error) {
	query := `
		SELECT id, user_id, assistant_id, username, language_code,
		       thread_id, balance, disabled, created_at, updated_at
		FROM conversations
		WHERE user_id = ? AND assistant_id = ?
	`

	row := s.db.QueryRowContext(ctx, query, userID, assistantID)
	return scanConversation(row)
}

// UpdateThreadID points the row at a new remote thread and bumps
// updated_at.
func (s *SQLiteStore) UpdateThreadID(ctx context.Context, conversationID, threadID string) error {
	query := `UPDATE conversations SET thread_id = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, threadID, time.Now().UTC().Format(time.RFC3339), conversationID)
	if err != nil {
		return fmt.Errorf("updating thread id: %w", err)
	}
	return checkAffected(result)
}

// Debit subtracts amount from the balance inside a transaction.
func (s *SQLiteStore) Debit(ctx context.Context, conversationID string, amount decimal.Decimal) error {
	return s.adjustBalance(ctx, conversationID, amount.Neg())
}

// Credit adds amount to the balance inside a transaction.
func (s *SQLiteStore) Credit(ctx context.Context, conversationID string, amount decimal.Decimal) error {
	return s.adjustBalance(ctx, conversationID, amount)
}

// adjustBalance reads, mutates and writes the balance in one
// transaction so concurrent writers cannot interleave between the
// read and the commit.
func (s *SQLiteStore) adjustBalance(ctx context.Context, conversationID string, delta decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM conversations WHERE id = ?`, conversationID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading balance: %w", err)
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("parsing stored balance %q: %w", raw, err)
	}
	balance = balance.Add(delta)

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.String(), time.Now().UTC().Format(time.RFC3339), conversationID)
	if err != nil {
		return fmt.Errorf("writing balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing balance update: %w", err)
	}

	s.logger.Debug("balance adjusted",
		"conversation_id", conversationID,
		"delta", delta.String(),
		"balance", balance.String(),
	)
	return nil
}

// SetDisabled flips the soft-delete flag for unreachable users.
func (s *SQLiteStore) SetDisabled(ctx context.Context, conversationID string, disabled bool) error {
	query := `UPDATE conversations SET disabled = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		boolToInt(disabled), time.Now().UTC().Format(time.RFC3339), conversationID)
	if err != nil {
		return fmt.Errorf("setting disabled: %w", err)
	}
	return checkAffected(result)
}

// Touch advances updated_at after a successful interaction.
func (s *SQLiteStore) Touch(ctx context.Context, conversationID string) error {
	query := `UPDATE conversations SET updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC().Format(time.RFC3339), conversationID)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	return checkAffected(result)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanConversation(row scannable) (*Conversation, error) {
	var conv Conversation
	var balance, createdAt, updatedAt string
	var disabled int

	err := row.Scan(
		&conv.ID,
		&conv.UserID,
		&conv.AssistantID,
		&conv.Username,
		&conv.LanguageCode,
		&conv.ThreadID,
		&balance,
		&disabled,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	conv.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parsing stored balance %q: %w", balance, err)
	}
	conv.Disabled = disabled != 0
	if conv.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if conv.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &conv, nil
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
