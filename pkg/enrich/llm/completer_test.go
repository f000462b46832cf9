package llm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/enrich/llm"
)

func TestOpenAICompleter(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k1", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := llm.OpenAI{BaseURL: srv.URL + "/v1", Model: "test-model"}
	reply, err := c.Complete(context.Background(), "k1", llm.Request{Prompt: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, reply)

	assert.Equal(t, "test-model", got["model"])
	format, _ := got["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAICompleterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := llm.OpenAI{BaseURL: srv.URL}.Complete(context.Background(), "k", llm.Request{Prompt: "hi"})
	assert.Error(t, err)
}

func TestAnthropicCompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k2", r.Header.Get("X-Api-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"test-model",`+
			`"content":[{"type":"text","text":"hello "},{"type":"text","text":"there"}],`+
			`"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":2}}`)
	}))
	defer srv.Close()

	c := llm.Anthropic{BaseURL: srv.URL + "/", Model: "test-model"}
	reply, err := c.Complete(context.Background(), "k2", llm.Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
}

type countingCompleter struct{ n int }

func (c *countingCompleter) Complete(ctx context.Context, apiKey string, req llm.Request) (string, error) {
	c.n++
	return "ok", nil
}

func TestLimitedWaits(t *testing.T) {
	inner := &countingCompleter{}
	limited := llm.NewLimited(inner, 1, 1)

	_, err := limited.Complete(context.Background(), "k", llm.Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, "k", llm.Request{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.n)
}
