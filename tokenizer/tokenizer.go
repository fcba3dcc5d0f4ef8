// Package tokenizer estimates the prompt tokens an embeddings request will consume.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/stevemurr/oaiembed/types"
)

// EncodingCL100kBase is the tiktoken encoding of the OpenAI embedding models.
const EncodingCL100kBase = "cl100k_base"

// modelEncoding pairs a model prefix with its encoding.
type modelEncoding struct {
	prefix   string
	encoding string
}

// Longest prefix first.
var modelEncodings = []modelEncoding{
	{"text-embedding", EncodingCL100kBase},
}

// Counter counts tokens with tiktoken. Loaded encodings are cached, so one
// Counter should be shared.
type Counter struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
}

// New creates a Counter.
func New() *Counter {
	return &Counter{
		encodings: make(map[string]*tiktoken.Tiktoken),
	}
}

func (c *Counter) getEncoding(model types.Model) (*tiktoken.Tiktoken, error) {
	name := resolveEncoding(model)

	c.mu.RLock()
	enc, ok := c.encodings[name]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok = c.encodings[name]; ok {
		return enc, nil
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	c.encodings[name] = enc
	return enc, nil
}

// resolveEncoding falls back to cl100k_base for models it does not know.
func resolveEncoding(model types.Model) string {
	name := strings.ToLower(string(model))
	for _, me := range modelEncodings {
		if strings.HasPrefix(name, me.prefix) {
			return me.encoding
		}
	}
	return EncodingCL100kBase
}

// CountTokens counts the tokens of text under the model's encoding.
func (c *Counter) CountTokens(text string, model types.Model) (int, error) {
	if text == "" {
		return 0, nil
	}
	enc, err := c.getEncoding(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountRequest sums the tokens of every input string in req. Embedding
// requests carry no per-message overhead, so this matches prompt_tokens.
func (c *Counter) CountRequest(req types.EmbeddingRequest) (int, error) {
	total := 0
	for _, text := range req.Input().Values() {
		n, err := c.CountTokens(text, req.Model())
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
