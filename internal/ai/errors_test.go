// ABOUTME: Tests for error classification: typed pass-through and string fallback.

package ai

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_TypedErrorPassesThrough(t *testing.T) {
	orig := &Error{Code: CodeRateLimited, Status: 429, Message: "slow down"}

	got := Classify(fmt.Errorf("appending message: %w", orig))

	assert.Same(t, orig, got)
}

func TestClassify_ThreadNotFound(t *testing.T) {
	err := errors.New("Error code: 404 - No thread found with id 'thread_abc123'")

	got := Classify(err)

	assert.Equal(t, CodeThreadNotFound, got.Code)
}

func TestClassify_ThreadNotFoundIsNotUnsupportedContent(t *testing.T) {
	// The thread-not-found text must route to the fresh-thread path,
	// never to the full-recreation path.
	got := Classify(errors.New("No thread found with id 'thread_abc123'"))

	assert.Equal(t, CodeThreadNotFound, got.Code)
	assert.NotEqual(t, CodeUnsupportedContent, got.Code)
}

func TestClassify_UnsupportedContent(t *testing.T) {
	err := errors.New("Failed to index file: Unsupported file file-xyz")

	got := Classify(err)

	assert.Equal(t, CodeUnsupportedContent, got.Code)
}

func TestClassify_RunActiveExtractsIDs(t *testing.T) {
	err := errors.New("Can't add messages to thread_J5kAB9 while a run run_Xy12z is active.")

	got := Classify(err)

	require.Equal(t, CodeRunActive, got.Code)
	assert.Equal(t, "thread_J5kAB9", got.ThreadID)
	assert.Equal(t, "run_Xy12z", got.RunID)
}

func TestClassify_TransientCodes(t *testing.T) {
	got := Classify(errors.New("Rate limit reached for requests"))
	assert.Equal(t, CodeRateLimited, got.Code)
	assert.True(t, got.Retryable())

	got = Classify(errors.New("Post \"https://...\": context deadline exceeded"))
	assert.Equal(t, CodeTimeout, got.Code)
	assert.True(t, got.Retryable())
}

func TestClassify_ContentPolicy(t *testing.T) {
	got := Classify(errors.New("400: content_policy_violation: your request was rejected"))

	assert.Equal(t, CodeContentPolicy, got.Code)
	assert.False(t, got.Retryable())
}

func TestClassify_UnknownDefault(t *testing.T) {
	got := Classify(errors.New("something else entirely"))

	assert.Equal(t, CodeUnknown, got.Code)
	assert.False(t, got.Retryable())
}

func TestRunStatus_Terminal(t *testing.T) {
	for _, s := range []RunStatus{RunCompleted, RunFailed, RunCancelled, RunExpired} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []RunStatus{RunQueued, RunInProgress, RunRequiresAction, RunCancelling} {
		assert.False(t, s.Terminal(), string(s))
	}
}
