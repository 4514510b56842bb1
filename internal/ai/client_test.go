package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCompletionServer(t *testing.T, content string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 34, "total_tokens": 46},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type greeting struct {
	Text string `json:"text"`
}

func TestChatDecodesStructuredResponse(t *testing.T) {
	var seen map[string]any
	srv := fakeCompletionServer(t, "```json\n{\"text\":\"hi\"}\n```", &seen)

	c, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "test-model"})
	require.NoError(t, err)
	assert.Equal(t, "test-model", c.Model())

	var out greeting
	resp, err := c.Chat(context.Background(), Request{
		SystemPrompt: "sys",
		UserPrompt:   "user",
		SchemaName:   "greeting",
		Schema:       GenerateSchema[greeting](),
		Temperature:  Temp(0),
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, "hi", out.Text)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 34, resp.CompletionTokens)
	assert.Equal(t, "test-model", seen["model"])
	assert.NotNil(t, seen["response_format"])
}

func TestChatRejectsInvalidJSON(t *testing.T) {
	srv := fakeCompletionServer(t, "not json", nil)
	c, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	var out greeting
	_, err = c.Chat(context.Background(), Request{SchemaName: "greeting", Schema: GenerateSchema[greeting]()}, &out)
	assert.ErrorContains(t, err, "unmarshal response")
}

func TestComplete(t *testing.T) {
	var seen map[string]any
	srv := fakeCompletionServer(t, "Your receivables look steady.", &seen)
	c, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "how am I doing?"},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, "Your receivables look steady.", text)

	msgs, ok := seen["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripCodeFence(`  {"a":1} `))
}
