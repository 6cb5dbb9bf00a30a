// ABOUTME: Tests for localized notice rendering and language fallback.

package localize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrinter_EnglishDefault(t *testing.T) {
	p := Printer("en")

	assert.Equal(t, "Insufficient balance to use the service.",
		p.Sprintf(MsgInsufficientBalance))
}

func TestPrinter_Russian(t *testing.T) {
	p := Printer("ru")

	got := p.Sprintf(MsgInsufficientBalance)
	assert.Equal(t, "Недостаточно средств для использования сервиса.", got)
}

func TestPrinter_UnknownLanguageFallsBack(t *testing.T) {
	p := Printer("zz-not-a-language")

	assert.Equal(t, "Goodbye! If you need assistance again, just send me a message.",
		p.Sprintf(MsgGoodbye))
}

func TestPrinter_FormattingArguments(t *testing.T) {
	p := Printer("en")

	got := p.Sprintf(MsgFileTooLarge, 5.0)
	assert.Contains(t, got, "5.00 MB")
}
