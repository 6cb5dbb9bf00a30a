// ABOUTME: Token counting for text metering using tiktoken encodings.
// ABOUTME: Falls back to a character heuristic when the encoding is unavailable.

// Package tokens counts model tokens in text so usage can be metered
// before and after completion calls.
package tokens

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// approxRunesPerToken is the fallback estimate when no encoding is
// loaded. Four characters per token is the usual rule of thumb.
const approxRunesPerToken = 4

// Counter counts tokens for one model's encoding.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter returns a counter for the given model. Loading an encoding
// may require fetching its BPE table; if that fails the counter degrades
// to a rune-based approximation rather than failing the caller.
func NewCounter(model string) *Counter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		slog.Warn("token encoding unavailable, using approximation", "model", model, "error", err)
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// NewApproxCounter returns a counter that always uses the rune
// approximation. Used in tests and offline environments.
func NewApproxCounter() *Counter {
	return &Counter{}
}

// Count returns the number of tokens in s.
func (c *Counter) Count(s string) int64 {
	if s == "" {
		return 0
	}
	if c.enc == nil {
		n := utf8.RuneCountInString(s)
		// round up so short strings never count as zero
		return int64((n + approxRunesPerToken - 1) / approxRunesPerToken)
	}
	return int64(len(c.enc.Encode(s, nil, nil)))
}
