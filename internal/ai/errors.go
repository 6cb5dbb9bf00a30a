// ABOUTME: Typed error taxonomy for remote completion-service failures.
// ABOUTME: Structured codes first, message matching only as a partner-API fallback.

package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrorCode classifies a remote failure for recovery decisions.
type ErrorCode string

const (
	// CodeThreadNotFound: a live row references a stale or deleted
	// remote thread. Recovery: create a fresh thread, retry once.
	CodeThreadNotFound ErrorCode = "thread_not_found"
	// CodeUnsupportedContent: the thread indexed content it cannot
	// handle and is corrupt. Recovery: recreate the thread entirely.
	CodeUnsupportedContent ErrorCode = "unsupported_content"
	// CodeRunActive: a message was rejected because a prior run is
	// still open. Recovery: cancel that run, retry.
	CodeRunActive ErrorCode = "run_active"
	// CodeRateLimited and CodeTimeout are transient; retry bounded.
	CodeRateLimited ErrorCode = "rate_limited"
	CodeTimeout     ErrorCode = "timeout"
	// CodeContentPolicy: the request was refused by the provider's
	// content policy. Surfaced to the user, never retried.
	CodeContentPolicy ErrorCode = "content_policy"
	// CodeUnknown is not recoverable locally.
	CodeUnknown ErrorCode = "unknown"
)

// Error is a classified remote failure. ThreadID and RunID are set
// when the payload identified the offending run (CodeRunActive).
type Error struct {
	Code     ErrorCode
	Status   int
	Message  string
	ThreadID string
	RunID    string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ai: %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("ai: %s: %s", e.Code, e.Message)
}

// Retryable reports whether a bounded retry may succeed without any
// repair action.
func (e *Error) Retryable() bool {
	return e.Code == CodeRateLimited || e.Code == CodeTimeout
}

var (
	threadIDPattern = regexp.MustCompile(`thread_[A-Za-z0-9]+`)
	runIDPattern    = regexp.MustCompile(`run_[A-Za-z0-9]+`)
)

// Classify maps any error to the taxonomy. A typed *Error passes
// through untouched. Everything else falls back to message matching,
// which exists only because partner APIs do not always return
// structured codes.
func Classify(err error) *Error {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr
	}

	msg := err.Error()
	classified := &Error{Code: CodeUnknown, Message: msg}

	switch {
	case strings.Contains(msg, "No thread found with id"):
		classified.Code = CodeThreadNotFound
	case strings.Contains(msg, "Failed to index file") && strings.Contains(msg, "Unsupported file"):
		classified.Code = CodeUnsupportedContent
	case strings.Contains(msg, "Can't add messages to thread"):
		classified.Code = CodeRunActive
		classified.ThreadID = threadIDPattern.FindString(msg)
		classified.RunID = runIDPattern.FindString(msg)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "Rate limit"):
		classified.Code = CodeRateLimited
	case strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "timeout"):
		classified.Code = CodeTimeout
	case strings.Contains(msg, "content_policy_violation"):
		classified.Code = CodeContentPolicy
	}

	return classified
}
