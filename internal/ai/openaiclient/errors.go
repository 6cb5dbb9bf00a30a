// ABOUTME: Maps OpenAI API errors onto the ai error taxonomy.
// ABOUTME: Uses HTTP status and structured codes, message text only as fallback.

package openaiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/2389/fold-assistant/internal/ai"
)

// wrap converts an SDK error into a typed *ai.Error with operation
// context. Non-API errors (transport failures, cancelled contexts)
// pass through wrapped so errors.Is still works on them.
func wrap(op string, err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	classified := &ai.Error{
		Code:    classifyAPIError(apiErr),
		Status:  apiErr.HTTPStatusCode,
		Message: fmt.Sprintf("%s: %s", op, apiErr.Message),
	}
	if classified.Code == ai.CodeRunActive {
		// The offending thread and run ids only appear in the message
		// payload; recover them for the cancel-and-retry path.
		fallback := ai.Classify(errors.New(apiErr.Message))
		classified.ThreadID = fallback.ThreadID
		classified.RunID = fallback.RunID
	}
	return classified
}

func classifyAPIError(apiErr *openai.APIError) ai.ErrorCode {
	if code, ok := apiErr.Code.(string); ok && strings.Contains(code, "content_policy") {
		return ai.CodeContentPolicy
	}

	switch apiErr.HTTPStatusCode {
	case http.StatusNotFound:
		if strings.Contains(apiErr.Message, "No thread found") {
			return ai.CodeThreadNotFound
		}
	case http.StatusTooManyRequests:
		return ai.CodeRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ai.CodeTimeout
	}

	// Structured classification failed; fall back to message matching.
	return ai.Classify(errors.New(apiErr.Message)).Code
}
