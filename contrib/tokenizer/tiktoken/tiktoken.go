package tiktoken

import (
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when no model or encoding name is given.
const DefaultEncoding = "cl100k_base"

// Tokenizer counts and truncates text in model tokens.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer resolves name as a model first and as an encoding
// second. An empty name uses DefaultEncoding.
func NewTiktokenTokenizer(name string) (*Tokenizer, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{enc: enc}, nil
}

// Encode returns the token ids of text.
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// CountTokens returns the number of tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Encode(text))
}

// DecodeIds converts token ids back to text.
func (t *Tokenizer) DecodeIds(ids []int) string {
	return t.enc.Decode(ids)
}

// Truncate keeps at most maxTokens tokens of text. A non-positive budget
// returns text unchanged.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	ids := t.Encode(text)
	if len(ids) <= maxTokens {
		return text
	}
	return t.DecodeIds(ids[:maxTokens])
}
