package llm

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts and truncates text in model tokens.
type Tokenizer interface {
	Count(text string) int
	Truncate(text string, maxTokens int) string
}

// TiktokenTokenizer uses the cl100k_base family for OpenAI models. The BPE
// ranks are loaded on first use; if they cannot be loaded it degrades to a
// four-bytes-per-token estimate and never truncates.
type TiktokenTokenizer struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktokenTokenizer creates a tokenizer for the given model name.
func NewTiktokenTokenizer(model string) *TiktokenTokenizer {
	return &TiktokenTokenizer{model: model}
}

func (t *TiktokenTokenizer) encoding() *tiktoken.Tiktoken {
	t.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(t.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			slog.Warn("tiktoken unavailable, using estimated token counts", "model", t.model, "error", err)
			return
		}
		t.enc = enc
	})
	return t.enc
}

// Count returns the number of tokens in text.
func (t *TiktokenTokenizer) Count(text string) int {
	if enc := t.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// Truncate cuts text to at most maxTokens tokens.
func (t *TiktokenTokenizer) Truncate(text string, maxTokens int) string {
	enc := t.encoding()
	if enc == nil || maxTokens <= 0 {
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	out := enc.Decode(tokens[:maxTokens])
	// A cut inside a multi-byte rune decodes to a replacement char; drop it.
	for len(out) > 0 {
		r, size := utf8.DecodeLastRuneInString(out)
		if r != utf8.RuneError || size != 1 {
			break
		}
		out = out[:len(out)-size]
	}
	return out
}
