// Package model is the boundary to a pretrained causal language model and
// its paired tokenizer.
package model

import "context"

// Token is a special token as known to the tokenizer.
type Token struct {
	Text string
	ID   int
}

// GenerateOptions mirrors the sampling knobs of the model server.
type GenerateOptions struct {
	MaxLength         int
	Temperature       float32
	DoSample          bool
	NoRepeatNgramSize int
	PadTokenID        int
}

type Tokenizer interface {
	Encode(ctx context.Context, text string) ([]int, error)
	Decode(ctx context.Context, tokens []int, skipSpecialTokens bool) (string, error)
	EOS() Token
}

type Model interface {
	Generate(ctx context.Context, input []int, opts GenerateOptions) ([]int, error)
}

// Handle owns a loaded tokenizer and model pair.
type Handle struct {
	Name      string
	Tokenizer Tokenizer
	Model     Model
}

// Loader produces a ready Handle. It may be slow.
type Loader func(ctx context.Context) (*Handle, error)
