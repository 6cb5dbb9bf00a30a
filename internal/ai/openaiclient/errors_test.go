// ABOUTME: Tests for API error translation into the typed taxonomy.

package openaiclient

import (
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-assistant/internal/ai"
)

func TestWrap_NonAPIErrorPassesThroughWrapped(t *testing.T) {
	sentinel := errors.New("connection refused")

	err := wrap("creating thread", sentinel)

	assert.ErrorIs(t, err, sentinel)
	var aerr *ai.Error
	assert.False(t, errors.As(err, &aerr))
}

func TestWrap_ThreadNotFound(t *testing.T) {
	err := wrap("appending message", &openai.APIError{
		HTTPStatusCode: http.StatusNotFound,
		Message:        "No thread found with id 'thread_abc'",
	})

	var aerr *ai.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ai.CodeThreadNotFound, aerr.Code)
	assert.Equal(t, http.StatusNotFound, aerr.Status)
}

func TestWrap_RateLimited(t *testing.T) {
	err := wrap("creating run", &openai.APIError{
		HTTPStatusCode: http.StatusTooManyRequests,
		Message:        "Rate limit reached",
	})

	var aerr *ai.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ai.CodeRateLimited, aerr.Code)
	assert.True(t, aerr.Retryable())
}

func TestWrap_RunActiveCarriesIDs(t *testing.T) {
	err := wrap("appending message", &openai.APIError{
		HTTPStatusCode: http.StatusBadRequest,
		Message:        "Can't add messages to thread_J5kAB9 while a run run_Xy12z is active.",
	})

	var aerr *ai.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ai.CodeRunActive, aerr.Code)
	assert.Equal(t, "thread_J5kAB9", aerr.ThreadID)
	assert.Equal(t, "run_Xy12z", aerr.RunID)
}

func TestWrap_ContentPolicyFromStructuredCode(t *testing.T) {
	err := wrap("generating image", &openai.APIError{
		HTTPStatusCode: http.StatusBadRequest,
		Code:           "content_policy_violation",
		Message:        "Your request was rejected",
	})

	var aerr *ai.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ai.CodeContentPolicy, aerr.Code)
}

func TestWrap_UnknownDefaults(t *testing.T) {
	err := wrap("listing messages", &openai.APIError{
		HTTPStatusCode: http.StatusInternalServerError,
		Message:        "server had a bad day",
	})

	var aerr *ai.Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, ai.CodeUnknown, aerr.Code)
}
