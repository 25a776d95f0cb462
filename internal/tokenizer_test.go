package internal_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modernice/mdmerge/internal"
	"github.com/tiktoken-go/tokenizer"
)

func TestOpenAITokenizer(t *testing.T) {
	const prompt = "Wrap every error with the operation that failed."

	base, err := tokenizer.Get(tokenizer.Cl100kBase)
	want := encode(t, mustCodec(t, base, err), prompt)

	for _, model := range []string{"gpt-3.5-turbo", "gpt-4", "not-a-model", "not-a-model"} {
		codec, err := internal.OpenAITokenizer(model)
		if err != nil {
			t.Fatalf("OpenAITokenizer(%q) failed: %v", model, err)
		}

		if got := encode(t, codec, prompt); !cmp.Equal(want, got) {
			t.Fatalf("%q should encode like cl100k_base:\n%s", model, cmp.Diff(want, got))
		}
	}
}

func mustCodec(t *testing.T, codec tokenizer.Codec, err error) tokenizer.Codec {
	t.Helper()
	if err != nil {
		t.Fatalf("load codec: %v", err)
	}
	return codec
}

func encode(t *testing.T, codec tokenizer.Codec, s string) []uint {
	t.Helper()
	ids, _, err := codec.Encode(s)
	if err != nil {
		t.Fatalf("encode %q: %v", s, err)
	}
	return ids
}
