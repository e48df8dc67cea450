package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skufu/GoSia/internal/model"
)

// Sampling settings of the generative fallback.
const (
	MaxLength         = 200
	Temperature       = 0.7
	NoRepeatNgramSize = 2
)

var (
	// ErrModelLoad means the model handle could not be obtained.
	ErrModelLoad = errors.New("model load failed")
	// ErrGeneration means encoding, generation or decoding failed, or the
	// model produced nothing usable.
	ErrGeneration = errors.New("generation failed")
)

// HandleSource hands out the shared model handle.
type HandleSource interface {
	Get(ctx context.Context) (*model.Handle, error)
}

// Generator produces a free-form single-line reply. Every call is
// independent; no conversation history is fed to the model.
type Generator struct {
	handles HandleSource
	timeout time.Duration
}

// NewGenerator returns a Generator. A zero timeout leaves generation bounded
// only by ctx.
func NewGenerator(handles HandleSource, timeout time.Duration) *Generator {
	return &Generator{handles: handles, timeout: timeout}
}

// Generate returns the first line of the model's completion of message.
func (g *Generator) Generate(ctx context.Context, message string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	h, err := g.handles.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	eos := h.Tokenizer.EOS()
	input, err := h.Tokenizer.Encode(ctx, message+eos.Text)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	output, err := h.Model.Generate(ctx, input, model.GenerateOptions{
		MaxLength:         MaxLength,
		Temperature:       Temperature,
		DoSample:          true,
		NoRepeatNgramSize: NoRepeatNgramSize,
		PadTokenID:        eos.ID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	text, err := h.Tokenizer.Decode(ctx, output, true)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%w: empty first line", ErrGeneration)
	}
	return line, nil
}
