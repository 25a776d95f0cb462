package internal

import (
	"errors"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codecsMux sync.Mutex
	codecs    = make(map[string]tokenizer.Codec)
)

// OpenAITokenizer returns the tokenizer.Codec that the given OpenAI model uses
// to encode prompts. Models that tiktoken does not know about fall back to
// cl100k_base. Codecs are loaded once per model and cached for the lifetime of
// the process.
func OpenAITokenizer(model string) (tokenizer.Codec, error) {
	codecsMux.Lock()
	defer codecsMux.Unlock()

	if codec, ok := codecs[model]; ok {
		return codec, nil
	}

	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if errors.Is(err, tokenizer.ErrModelNotSupported) {
		codec, err = tokenizer.Get(tokenizer.Cl100kBase)
	}
	if err != nil {
		return nil, err
	}

	codecs[model] = codec

	return codec, nil
}
