// ABOUTME: Tests for the send_email handler.

package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-assistant/internal/ai"
)

func TestSendEmail_DeliversAndNotifies(t *testing.T) {
	mailer := &mockMailer{}
	tp := &mockTransport{}
	h := NewSendEmail(mailer, tp, nil)

	output, err := h.Handle(context.Background(), &Invocation{
		Call:         ai.ToolCall{CallID: "call-1", Name: "send_email"},
		Args:         map[string]any{"email": "bob@example.com", "text": "hello"},
		Conversation: testConversation("1.00"),
		ChatID:       "chat-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", mailer.to)
	assert.Equal(t, "hello", mailer.body)
	assert.Contains(t, output, "successfully sent")
	assert.Contains(t, output, "no need to reply")
	require.Len(t, tp.texts, 1)
}

func TestSendEmail_MissingRecipientFails(t *testing.T) {
	h := NewSendEmail(&mockMailer{}, &mockTransport{}, nil)

	_, err := h.Handle(context.Background(), &Invocation{
		Args:         map[string]any{"text": "hello"},
		Conversation: testConversation("1.00"),
	})

	require.Error(t, err)
}

func TestSendEmail_MailerFailurePropagates(t *testing.T) {
	boom := errors.New("smtp down")
	h := NewSendEmail(&mockMailer{err: boom}, &mockTransport{}, nil)

	_, err := h.Handle(context.Background(), &Invocation{
		Args:         map[string]any{"email": "bob@example.com"},
		Conversation: testConversation("1.00"),
	})

	assert.ErrorIs(t, err, boom)
}
