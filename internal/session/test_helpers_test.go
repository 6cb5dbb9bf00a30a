// ABOUTME: Test doubles for the session engine tests.
// ABOUTME: Real SQLite store in a temp dir; scriptable AI client and executor.

package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/fold-assistant/internal/ai"
	"github.com/2389/fold-assistant/internal/constraints"
	"github.com/2389/fold-assistant/internal/extract"
	"github.com/2389/fold-assistant/internal/money"
	"github.com/2389/fold-assistant/internal/store"
	"github.com/2389/fold-assistant/internal/tokens"
	"github.com/2389/fold-assistant/internal/transport"
)

func testStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// sessionClient implements ai.Client for session tests. Thread ids are
// sequential; append errors are consumed one per call.
type sessionClient struct {
	mu sync.Mutex

	threadSeq      int
	createdThreads []string
	deletedThreads []string

	appendErrs  []error
	appended    []string
	cancelled   []string
	transcript  string
	seconds     int64
	description string
}

var _ ai.Client = (*sessionClient)(nil)

func (c *sessionClient) CreateThread(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threadSeq++
	id := thread(c.threadSeq)
	c.createdThreads = append(c.createdThreads, id)
	return id, nil
}

func thread(n int) string {
	return "thread_" + string(rune('a'+n-1))
}

func (c *sessionClient) DeleteThread(ctx context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletedThreads = append(c.deletedThreads, threadID)
	return nil
}

func (c *sessionClient) AppendMessage(ctx context.Context, threadID, role, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.appendErrs) > 0 {
		err := c.appendErrs[0]
		c.appendErrs = c.appendErrs[1:]
		if err != nil {
			return err
		}
	}
	c.appended = append(c.appended, content)
	return nil
}

func (c *sessionClient) CreateRun(ctx context.Context, threadID, assistantID string) (*ai.Run, error) {
	return &ai.Run{ID: "run_1", ThreadID: threadID, Status: ai.RunQueued, StartedAt: time.Now()}, nil
}

func (c *sessionClient) GetRun(ctx context.Context, threadID, runID string) (*ai.Run, error) {
	return &ai.Run{ID: runID, ThreadID: threadID, Status: ai.RunCompleted}, nil
}

func (c *sessionClient) CancelRun(ctx context.Context, threadID, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, runID)
	return nil
}

func (c *sessionClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ai.ToolOutput) error {
	return nil
}

func (c *sessionClient) ListMessages(ctx context.Context, threadID string, limit int) ([]ai.Message, error) {
	return nil, nil
}

func (c *sessionClient) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	return nil, nil
}

func (c *sessionClient) SynthesizeVoice(ctx context.Context, text string) ([]byte, error) {
	return nil, nil
}

func (c *sessionClient) TranscribeVoice(ctx context.Context, filePath string) (string, int64, error) {
	return c.transcript, c.seconds, nil
}

func (c *sessionClient) DescribeImage(ctx context.Context, imageURL, prompt string) (string, error) {
	return c.description, nil
}

func (c *sessionClient) GenerateImage(ctx context.Context, prompt string) (string, string, error) {
	return "", "", nil
}

// mockExecutor records executions and returns scripted errors in order.
type mockExecutor struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (m *mockExecutor) Execute(ctx context.Context, conv *store.Conversation, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return nil
}

type mockTransport struct {
	mu      sync.Mutex
	texts   []string
	prompts int
	sendErr error
}

func (m *mockTransport) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.texts = append(m.texts, text)
	return nil
}

func (m *mockTransport) SendVoice(ctx context.Context, chatID string, voice []byte) error {
	return nil
}

func (m *mockTransport) SendPhoto(ctx context.Context, chatID string, photo transport.Photo) error {
	return nil
}

func (m *mockTransport) SendDocument(ctx context.Context, chatID, filename string, data []byte) error {
	return nil
}

func (m *mockTransport) PromptForPayment(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts++
	return nil
}

type fixture struct {
	engine   *Engine
	manager  *Manager
	store    store.Store
	client   *sessionClient
	executor *mockExecutor
	tp       *mockTransport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := testStore(t)
	client := &sessionClient{}
	executor := &mockExecutor{}
	tp := &mockTransport{}
	manager := NewManager(st, client, DefaultManagerConfig(), nil)

	engine := NewEngine(EngineDeps{
		Manager:     manager,
		Store:       st,
		Client:      client,
		Executor:    executor,
		Transport:   tp,
		Pricing:     money.DefaultPricing(),
		Counter:     tokens.NewApproxCounter(),
		Checker:     constraints.NewChecker(),
		Extractor:   extract.Plain{},
		AssistantID: "asst_test",
	})
	return &fixture{
		engine:   engine,
		manager:  manager,
		store:    st,
		client:   client,
		executor: executor,
		tp:       tp,
	}
}

func inboundText(text string) Inbound {
	return Inbound{
		UserID:       42,
		ChatID:       "chat-1",
		Username:     "testuser",
		LanguageCode: "en",
		Text:         text,
	}
}
