package responder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/GoSia/internal/model"
)

type fakeTokenizer struct {
	encoded   string
	decoded   string
	encodeErr error
	decodeErr error
}

func (f *fakeTokenizer) Encode(ctx context.Context, text string) ([]int, error) {
	f.encoded = text
	return []int{1, 2, 3}, f.encodeErr
}

func (f *fakeTokenizer) Decode(ctx context.Context, tokens []int, skipSpecialTokens bool) (string, error) {
	if !skipSpecialTokens {
		return "", errors.New("special tokens must be skipped")
	}
	return f.decoded, f.decodeErr
}

func (f *fakeTokenizer) EOS() model.Token { return model.Token{Text: "<eos>", ID: 99} }

type fakeModel struct {
	opts model.GenerateOptions
	err  error
	wait time.Duration
}

func (f *fakeModel) Generate(ctx context.Context, input []int, opts model.GenerateOptions) ([]int, error) {
	f.opts = opts
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return append(input, 4, 5), f.err
}

type fixedSource struct {
	handle *model.Handle
	err    error
}

func (s fixedSource) Get(ctx context.Context) (*model.Handle, error) { return s.handle, s.err }

func TestGenerateFirstLine(t *testing.T) {
	tok := &fakeTokenizer{decoded: "what is flu? Flu is a virus.\nMore text\nEven more"}
	m := &fakeModel{}
	g := NewGenerator(fixedSource{handle: &model.Handle{Tokenizer: tok, Model: m}}, 0)

	got, err := g.Generate(context.Background(), "what is flu?")
	require.NoError(t, err)
	assert.Equal(t, "what is flu? Flu is a virus.", got)
	assert.NotContains(t, got, "\n")

	assert.Equal(t, "what is flu?<eos>", tok.encoded)
	assert.Equal(t, model.GenerateOptions{
		MaxLength:         200,
		Temperature:       0.7,
		DoSample:          true,
		NoRepeatNgramSize: 2,
		PadTokenID:        99,
	}, m.opts)
}

func TestGenerateErrorsAreTyped(t *testing.T) {
	handle := func(tok *fakeTokenizer, m *fakeModel) fixedSource {
		return fixedSource{handle: &model.Handle{Tokenizer: tok, Model: m}}
	}

	tests := []struct {
		name   string
		source fixedSource
		want   error
	}{
		{"load", fixedSource{err: errors.New("no weights")}, ErrModelLoad},
		{"encode", handle(&fakeTokenizer{encodeErr: errors.New("bad input")}, &fakeModel{}), ErrGeneration},
		{"generate", handle(&fakeTokenizer{}, &fakeModel{err: errors.New("oom")}), ErrGeneration},
		{"decode", handle(&fakeTokenizer{decodeErr: errors.New("bad ids")}, &fakeModel{}), ErrGeneration},
		{"empty first line", handle(&fakeTokenizer{decoded: "\nsecond"}, &fakeModel{}), ErrGeneration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.source, 0).Generate(context.Background(), "x")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGenerateTimeout(t *testing.T) {
	m := &fakeModel{wait: time.Second}
	g := NewGenerator(fixedSource{handle: &model.Handle{Tokenizer: &fakeTokenizer{decoded: "ok"}, Model: m}}, 10*time.Millisecond)

	_, err := g.Generate(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResponderWithGeneratorFailure(t *testing.T) {
	g := NewGenerator(fixedSource{err: errors.New("hub unreachable")}, 0)
	r := newResponder(g)

	got := r.Respond(context.Background(), "random question about taxes")
	assert.Equal(t, apologyReply, got)
	assert.False(t, strings.Contains(got, "\n"))
}

func TestResponderLowercasesPromptForGenerator(t *testing.T) {
	tok := &fakeTokenizer{decoded: "what is the capital of france paris"}
	g := NewGenerator(fixedSource{handle: &model.Handle{Tokenizer: tok, Model: &fakeModel{}}}, 0)
	r := newResponder(g)

	got := r.Reply(context.Background(), "What Is The Capital Of France")
	assert.Equal(t, SourceGenerated, got.Source)
	assert.Equal(t, "what is the capital of france<eos>", tok.encoded)
}

func TestResponderSurvivesLoaderPanic(t *testing.T) {
	shared := model.NewShared(func(ctx context.Context) (*model.Handle, error) {
		panic("tokenizer files missing")
	})
	r := newResponder(NewGenerator(shared, 0))

	assert.Equal(t, apologyReply, r.Respond(context.Background(), "tell me a story"))
}
