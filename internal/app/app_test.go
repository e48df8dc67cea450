package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/GoSia/internal/config"
	"github.com/Skufu/GoSia/internal/conversation"
	"github.com/Skufu/GoSia/internal/responder"
)

func modelServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models/tiny", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "tiny", "eos_token": "</s>", "eos_token_id": 2})
	})
	mux.HandleFunc("POST /v1/models/tiny/encode", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"tokens": []int{7, 2}})
	})
	mux.HandleFunc("POST /v1/models/tiny/generate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"output_ids": []int{7, 2, 8, 9}})
	})
	mux.HandleFunc("POST /v1/models/tiny/decode", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "sleep helps recovery\nand more"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStartWithoutDatabase(t *testing.T) {
	srv := modelServer(t)
	cfg := &config.Config{ModelServerURL: srv.URL, ModelName: "tiny", WarmModel: true}

	rt, err := Start(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer rt.Close()

	assert.IsType(t, &conversation.MemoryStore{}, rt.Store)
	assert.True(t, rt.Assistant.Model.Loaded())

	reply := rt.Assistant.Responder.Reply(context.Background(), "why do I need sleep")
	assert.Equal(t, responder.Reply{Text: "sleep helps recovery", Source: responder.SourceGenerated}, reply)
}

func TestStartToleratesUnreachableModel(t *testing.T) {
	cfg := &config.Config{ModelServerURL: "http://127.0.0.1:1", ModelName: "tiny", WarmModel: true}

	rt, err := Start(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer rt.Close()

	assert.False(t, rt.Assistant.Model.Loaded())
	got := rt.Assistant.Responder.Respond(context.Background(), "why do I need sleep")
	assert.Equal(t, rt.Assistant.Knowledge.Apology, got)
}

func TestNewAssistantCustomKnowledge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	doc := "apology: Sorry.\nsymptoms:\n  entries:\n    - {phrase: sneeze, reply: Bless you.}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	a, err := NewAssistant(&config.Config{KnowledgeFile: path, ModelServerURL: "http://127.0.0.1:1"}, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "Bless you.", a.Responder.Respond(context.Background(), "I SNEEZE a lot"))

	_, err = NewAssistant(&config.Config{KnowledgeFile: filepath.Join(t.TempDir(), "nope.yaml")}, quietLogger())
	assert.True(t, err != nil && strings.Contains(err.Error(), "read knowledge file"))
}
