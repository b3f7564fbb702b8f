package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompatGenerate(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Write([]byte(`{
			"model": "llama-3.3-70b-versatile",
			"choices": [{"message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 2}
		}`))
	}))
	defer server.Close()

	a := NewGroqAdapter(server.URL, "gsk-test")
	assert.Equal(t, KindGroq, a.Kind())
	assert.False(t, a.SupportsVision())

	resp, err := a.Generate(context.Background(), &GenerateRequest{
		Model:   "llama-3.3-70b-versatile",
		Prompt:  "hi",
		System:  "sys",
		Options: GenerateOptions{Temperature: 0.7, MaxTokens: 100, TopP: 0.9},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, 2, resp.CompletionTokens)
	assert.Equal(t, 9, resp.PromptTokens)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
	assert.Equal(t, 100, got.MaxTokens)
}

func TestOpenAICompatGenerate_Errors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		_, err := NewTogetherAdapter("http://unused", "").Generate(context.Background(), &GenerateRequest{Model: "m"})
		be, ok := AsBackendError(err)
		require.True(t, ok)
		assert.Equal(t, ErrUnavailable, be.Kind)
		assert.Equal(t, "together", be.Backend)
	})

	t.Run("images unsupported", func(t *testing.T) {
		_, err := NewGroqAdapter("http://unused", "k").Generate(context.Background(), &GenerateRequest{Model: "m", Images: []string{"x"}})
		be, ok := AsBackendError(err)
		require.True(t, ok)
		assert.Equal(t, ErrUnsupported, be.Kind)
	})

	t.Run("empty choices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		}))
		defer server.Close()

		_, err := NewGroqAdapter(server.URL, "k").Generate(context.Background(), &GenerateRequest{Model: "m"})
		be, ok := AsBackendError(err)
		require.True(t, ok)
		assert.Equal(t, ErrMalformed, be.Kind)
	})

	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limit"}}`))
		}))
		defer server.Close()

		_, err := NewGroqAdapter(server.URL, "k").Generate(context.Background(), &GenerateRequest{Model: "m"})
		be, ok := AsBackendError(err)
		require.True(t, ok)
		assert.Equal(t, ErrHTTPStatus, be.Kind)
		assert.Equal(t, http.StatusTooManyRequests, be.StatusCode)
	})
}

func TestOpenAICompatListModels(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrapped", `{"object":"list","data":[{"id":"a"},{"id":"b"}]}`},
		{"bare array", `[{"id":"a"},{"id":"b"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/models", r.URL.Path)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			names, err := NewTogetherAdapter(server.URL, "k").ListModels(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, names)
		})
	}
}
