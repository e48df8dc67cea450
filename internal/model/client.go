package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultModelName is the model requested when none is configured.
const DefaultModelName = "distilgpt2"

// Client talks to a model server that hosts tokenizers and causal language
// models by name:
//
//	GET  /v1/models/{name}           load, returns the eos token
//	POST /v1/models/{name}/encode    {"text"} -> {"tokens"}
//	POST /v1/models/{name}/generate  {"input_ids", ...options} -> {"output_ids"}
//	POST /v1/models/{name}/decode    {"tokens", "skip_special_tokens"} -> {"text"}
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
	}
}

type modelInfo struct {
	Name       string `json:"name"`
	EOSToken   string `json:"eos_token"`
	EOSTokenID int    `json:"eos_token_id"`
}

type encodeRequest struct {
	Text string `json:"text"`
}

type encodeResponse struct {
	Tokens []int `json:"tokens"`
}

type generateRequest struct {
	InputIDs          []int   `json:"input_ids"`
	MaxLength         int     `json:"max_length"`
	Temperature       float32 `json:"temperature"`
	DoSample          bool    `json:"do_sample"`
	NoRepeatNgramSize int     `json:"no_repeat_ngram_size"`
	PadTokenID        int     `json:"pad_token_id"`
}

type generateResponse struct {
	OutputIDs []int `json:"output_ids"`
}

type decodeRequest struct {
	Tokens            []int `json:"tokens"`
	SkipSpecialTokens bool  `json:"skip_special_tokens"`
}

type decodeResponse struct {
	Text string `json:"text"`
}

// Loader returns a Loader that asks the server to load name and binds a
// Handle to it.
func (c *Client) Loader(name string) Loader {
	if name == "" {
		name = DefaultModelName
	}
	return func(ctx context.Context) (*Handle, error) {
		var info modelInfo
		if err := c.call(ctx, http.MethodGet, name, "", nil, &info); err != nil {
			return nil, fmt.Errorf("load model %s: %w", name, err)
		}
		if info.EOSToken == "" {
			return nil, fmt.Errorf("load model %s: server reported no eos token", name)
		}
		r := &remote{client: c, name: name, eos: Token{Text: info.EOSToken, ID: info.EOSTokenID}}
		return &Handle{Name: name, Tokenizer: r, Model: r}, nil
	}
}

func (c *Client) call(ctx context.Context, method, name, action string, in, out any) error {
	endpoint := fmt.Sprintf("%s/v1/models/%s", c.BaseURL, url.PathEscape(name))
	if action != "" {
		endpoint += "/" + action
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("model server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("model server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// remote is both the Tokenizer and the Model of a server-hosted handle.
type remote struct {
	client *Client
	name   string
	eos    Token
}

func (r *remote) EOS() Token { return r.eos }

func (r *remote) Encode(ctx context.Context, text string) ([]int, error) {
	var res encodeResponse
	if err := r.client.call(ctx, http.MethodPost, r.name, "encode", encodeRequest{Text: text}, &res); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return res.Tokens, nil
}

func (r *remote) Generate(ctx context.Context, input []int, opts GenerateOptions) ([]int, error) {
	req := generateRequest{
		InputIDs:          input,
		MaxLength:         opts.MaxLength,
		Temperature:       opts.Temperature,
		DoSample:          opts.DoSample,
		NoRepeatNgramSize: opts.NoRepeatNgramSize,
		PadTokenID:        opts.PadTokenID,
	}
	var res generateResponse
	if err := r.client.call(ctx, http.MethodPost, r.name, "generate", req, &res); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return res.OutputIDs, nil
}

func (r *remote) Decode(ctx context.Context, tokens []int, skipSpecialTokens bool) (string, error) {
	var res decodeResponse
	req := decodeRequest{Tokens: tokens, SkipSpecialTokens: skipSpecialTokens}
	if err := r.client.call(ctx, http.MethodPost, r.name, "decode", req, &res); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return res.Text, nil
}
