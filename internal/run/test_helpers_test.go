// ABOUTME: Test doubles for the run state machine tests.
// ABOUTME: Scriptable AI client, dispatcher, transport and biller mocks.

package run

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/2389/fold-assistant/internal/ai"
	"github.com/2389/fold-assistant/internal/store"
	"github.com/2389/fold-assistant/internal/transport"
)

// mockClient implements ai.Client with scriptable run statuses.
type mockClient struct {
	mu sync.Mutex

	// statuses are consumed one per GetRun call; the last one repeats.
	statuses  []ai.RunStatus
	toolCalls []ai.ToolCall

	createErr error
	getErr    error
	listErr   error
	submitErr error

	cancelCount int
	submitted   [][]ai.ToolOutput
	messages    []ai.Message
	files       map[string][]byte
	voice       []byte
	voiceErr    error
}

var _ ai.Client = (*mockClient)(nil)

func (m *mockClient) CreateThread(ctx context.Context) (string, error) { return "thread_new", nil }

func (m *mockClient) DeleteThread(ctx context.Context, threadID string) error { return nil }

func (m *mockClient) AppendMessage(ctx context.Context, threadID, role, content string) error {
	return nil
}

func (m *mockClient) CreateRun(ctx context.Context, threadID, assistantID string) (*ai.Run, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &ai.Run{ID: "run_1", ThreadID: threadID, Status: ai.RunQueued, StartedAt: time.Now()}, nil
}

func (m *mockClient) GetRun(ctx context.Context, threadID, runID string) (*ai.Run, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	status := ai.RunInProgress
	if len(m.statuses) > 0 {
		status = m.statuses[0]
		if len(m.statuses) > 1 {
			m.statuses = m.statuses[1:]
		}
	}
	run := &ai.Run{ID: runID, ThreadID: threadID, Status: status}
	if status == ai.RunRequiresAction {
		run.ToolCalls = m.toolCalls
	}
	return run, nil
}

func (m *mockClient) CancelRun(ctx context.Context, threadID, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCount++
	return nil
}

func (m *mockClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ai.ToolOutput) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, outputs)
	return nil
}

func (m *mockClient) ListMessages(ctx context.Context, threadID string, limit int) ([]ai.Message, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.messages, nil
}

func (m *mockClient) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	return m.files[fileID], nil
}

func (m *mockClient) SynthesizeVoice(ctx context.Context, text string) ([]byte, error) {
	if m.voiceErr != nil {
		return nil, m.voiceErr
	}
	return m.voice, nil
}

func (m *mockClient) TranscribeVoice(ctx context.Context, filePath string) (string, int64, error) {
	return "", 0, nil
}

func (m *mockClient) DescribeImage(ctx context.Context, imageURL, prompt string) (string, error) {
	return "", nil
}

func (m *mockClient) GenerateImage(ctx context.Context, prompt string) (string, string, error) {
	return "", "", nil
}

type mockDispatcher struct {
	outputs []ai.ToolOutput
	err     error
	calls   int
}

func (m *mockDispatcher) Dispatch(ctx context.Context, conv *store.Conversation, chatID string, calls []ai.ToolCall) ([]ai.ToolOutput, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.outputs, nil
}

type mockTransport struct {
	mu        sync.Mutex
	texts     []string
	voices    [][]byte
	photos    []transport.Photo
	documents []string
}

func (m *mockTransport) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockTransport) SendVoice(ctx context.Context, chatID string, voice []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = append(m.voices, voice)
	return nil
}

func (m *mockTransport) SendPhoto(ctx context.Context, chatID string, photo transport.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos = append(m.photos, photo)
	return nil
}

func (m *mockTransport) SendDocument(ctx context.Context, chatID, filename string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, filename)
	return nil
}

func (m *mockTransport) PromptForPayment(ctx context.Context, chatID string) error { return nil }

type mockBiller struct {
	mu     sync.Mutex
	debits []decimal.Decimal
}

func (m *mockBiller) Debit(ctx context.Context, conversationID string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debits = append(m.debits, amount)
	return nil
}

func (m *mockBiller) total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := decimal.Zero
	for _, d := range m.debits {
		sum = sum.Add(d)
	}
	return sum
}

func testConversation() *store.Conversation {
	return &store.Conversation{
		ID:           "conv-1",
		UserID:       42,
		AssistantID:  "asst_test",
		LanguageCode: "en",
		ThreadID:     "thread_1",
		Balance:      decimal.RequireFromString("5.00"),
	}
}

func textMessage(text string) []ai.Message {
	return []ai.Message{{
		ID:   "msg_1",
		Role: "assistant",
		Contents: []ai.Content{
			{Type: ai.ContentText, Text: text},
		},
	}}
}
