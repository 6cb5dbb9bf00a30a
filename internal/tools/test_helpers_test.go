// ABOUTME: Shared test doubles for the tools package.
// ABOUTME: Mock transport, biller, image generator and mailer.

package tools

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/2389/fold-assistant/internal/store"
	"github.com/2389/fold-assistant/internal/transport"
)

type mockTransport struct {
	mu             sync.Mutex
	texts          []string
	photos         []transport.Photo
	paymentPrompts int
	sendErr        error
}

func (m *mockTransport) SendText(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return m.sendErr
}

func (m *mockTransport) SendVoice(ctx context.Context, chatID string, voice []byte) error {
	return m.sendErr
}

func (m *mockTransport) SendPhoto(ctx context.Context, chatID string, photo transport.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos = append(m.photos, photo)
	return m.sendErr
}

func (m *mockTransport) SendDocument(ctx context.Context, chatID, filename string, data []byte) error {
	return m.sendErr
}

func (m *mockTransport) PromptForPayment(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paymentPrompts++
	return nil
}

type mockBiller struct {
	mu     sync.Mutex
	debits []decimal.Decimal
	err    error
}

func (m *mockBiller) Debit(ctx context.Context, conversationID string, amount decimal.Decimal) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debits = append(m.debits, amount)
	return nil
}

type mockImageGenerator struct {
	url     string
	revised string
	err     error
	calls   int
}

func (m *mockImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, string, error) {
	m.calls++
	if m.err != nil {
		return "", "", m.err
	}
	return m.url, m.revised, nil
}

type mockMailer struct {
	to, body string
	err      error
}

func (m *mockMailer) Send(ctx context.Context, to, body, attachment string) error {
	if m.err != nil {
		return m.err
	}
	m.to, m.body = to, body
	return nil
}

func testConversation(balance string) *store.Conversation {
	return &store.Conversation{
		ID:           "conv-1",
		UserID:       42,
		AssistantID:  "asst_test",
		LanguageCode: "en",
		ThreadID:     "thread_1",
		Balance:      decimal.RequireFromString(balance),
	}
}
