// Package tokens provides token counting for prompt budget accounting.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// charsPerToken is the fallback ratio used when no codec is available.
const charsPerToken = 4

// Per-message structural overhead for chat-formatted prompts.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
)

// Estimator counts tokens with a tiktoken codec when one loads, and falls
// back to a character ratio otherwise. Counts feed context-budget decisions,
// not billing, so the fallback is acceptable.
type Estimator struct {
	once  sync.Once
	codec tokenizer.Codec
}

// NewEstimator creates an estimator. The codec is loaded lazily on first use.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) getCodec() tokenizer.Codec {
	e.once.Do(func() {
		codec, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err == nil {
			e.codec = codec
		}
	})
	return e.codec
}

// Count returns the token count for a text fragment.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	if codec := e.getCodec(); codec != nil {
		ids, _, err := codec.Encode(text)
		if err == nil {
			return len(ids)
		}
	}
	return ApproxTokens(text)
}

// CountMessage returns the token count for one chat message including the
// structural overhead of its framing.
func (e *Estimator) CountMessage(role, content string) int {
	return tokensPerMessage + tokensPerRole + e.Count(content)
}

// CountPrompt totals a system prompt plus message contents.
func (e *Estimator) CountPrompt(system string, contents []string) int {
	total := 0
	if system != "" {
		total += tokensPerMessage + tokensPerRole + e.Count(system)
	}
	for _, c := range contents {
		total += tokensPerMessage + tokensPerRole + e.Count(c)
	}
	return total
}

// ApproxTokens is the character-ratio estimate used when no codec is loaded.
func ApproxTokens(text string) int {
	return len(text) / charsPerToken
}
