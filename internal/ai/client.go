// ABOUTME: Client interface and wire-adjacent types for the completion service.
// ABOUTME: Runs, tool calls and message content as the engine sees them.

package ai

import (
	"context"
	"time"
)

// RunStatus is the remote run lifecycle state.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
)

// Terminal reports whether the status ends the run.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired:
		return true
	}
	return false
}

// Run is one execution of the assistant against a thread. Ephemeral;
// owned by the run state machine for its duration and then discarded.
type Run struct {
	ID        string
	ThreadID  string
	Status    RunStatus
	StartedAt time.Time

	// ToolCalls is populated only while Status is requires_action.
	ToolCalls []ToolCall
}

// ToolCall is a mid-run request to execute a named capability.
type ToolCall struct {
	CallID        string
	Name          string
	ArgumentsJSON string
}

// ToolOutput answers one tool call. All outputs for a run are
// submitted in a single batch.
type ToolOutput struct {
	CallID string
	Output string
}

// ContentType discriminates message content items.
type ContentType string

const (
	ContentText      ContentType = "text"
	ContentImageFile ContentType = "image_file"
)

// Annotation references a file cited inside a text content item.
type Annotation struct {
	Text   string
	FileID string
}

// Content is one item of a message's content list.
type Content struct {
	Type        ContentType
	Text        string
	Annotations []Annotation
	FileID      string
}

// Message is one message on a thread, newest-first in list order.
type Message struct {
	ID       string
	Role     string
	Contents []Content
}

// Client is everything the engine needs from the completion service.
// Implementations live behind this seam; the engine treats every call
// as potentially slow and failing with the taxonomy in errors.go.
type Client interface {
	CreateThread(ctx context.Context) (threadID string, err error)
	DeleteThread(ctx context.Context, threadID string) error
	AppendMessage(ctx context.Context, threadID, role, content string) error

	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	CancelRun(ctx context.Context, threadID, runID string) error
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error

	ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)

	SynthesizeVoice(ctx context.Context, text string) ([]byte, error)
	TranscribeVoice(ctx context.Context, filePath string) (text string, seconds int64, err error)
	DescribeImage(ctx context.Context, imageURL, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (url, revisedPrompt string, err error)
}
