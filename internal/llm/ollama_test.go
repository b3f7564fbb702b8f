package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	var got ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:           "llama3.1:8b",
			Response:        "4",
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       3,
		})
	}))
	defer server.Close()

	a := NewOllamaAdapter(server.URL)
	resp, err := a.Generate(context.Background(), &GenerateRequest{
		Model:  "llama3.1:8b",
		Prompt: "What is 2+2?",
		System: "be brief",
		Options: GenerateOptions{
			Temperature: 0.3,
			MaxTokens:   2048,
			TopP:        0.9,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "4", resp.Text)
	assert.Equal(t, "llama3.1:8b", resp.Model)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 3, resp.CompletionTokens)

	assert.False(t, got.Stream)
	assert.Equal(t, "be brief", got.System)
	assert.Equal(t, 2048, got.Options.NumPredict)
	assert.InDelta(t, 0.3, got.Options.Temperature, 1e-9)
	assert.InDelta(t, 0.9, got.Options.TopP, 1e-9)
}

func TestOllamaGenerate_Images(t *testing.T) {
	var got ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Model: "llava:13b", Response: "a cat", Done: true})
	}))
	defer server.Close()

	a := NewOllamaAdapter(server.URL)
	assert.True(t, a.SupportsVision())

	resp, err := a.Generate(context.Background(), &GenerateRequest{
		Model:  "llava:13b",
		Prompt: "describe",
		Images: []string{"aGVsbG8="},
	})
	require.NoError(t, err)
	assert.Equal(t, "a cat", resp.Text)
	assert.Equal(t, []string{"aGVsbG8="}, got.Images)
}

func TestOllamaGenerate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind ErrorKind
	}{
		{
			name: "http status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"model not found"}`))
			},
			wantKind: ErrHTTPStatus,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
			wantKind: ErrMalformed,
		},
		{
			name: "error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"error":"out of memory"}`))
			},
			wantKind: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewOllamaAdapter(server.URL).Generate(context.Background(), &GenerateRequest{Model: "m"})
			require.Error(t, err)

			be, ok := AsBackendError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, be.Kind)
			assert.Equal(t, "ollama", be.Backend)
			assert.Equal(t, "m", be.Model)
		})
	}
}

func TestOllamaGenerate_StatusMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	_, err := NewOllamaAdapter(server.URL).Generate(context.Background(), &GenerateRequest{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, "ollama/m error (status 500): boom", err.Error())
}

func TestOllamaGenerate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewOllamaAdapter(server.URL).Generate(ctx, &GenerateRequest{Model: "m"})
	be, ok := AsBackendError(err)
	require.True(t, ok)
	assert.Equal(t, ErrTimeout, be.Kind)
	assert.True(t, be.Retryable())
}

func TestOllamaGenerate_Canceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := NewOllamaAdapter(server.URL).Generate(ctx, &GenerateRequest{Model: "m"})
	be, ok := AsBackendError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCanceled, be.Kind)
	assert.False(t, be.Retryable())
}

func TestOllamaGenerate_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewOllamaAdapter(url).Generate(context.Background(), &GenerateRequest{Model: "m"})
	be, ok := AsBackendError(err)
	require.True(t, ok)
	assert.Equal(t, ErrUnavailable, be.Kind)
}

func TestOllamaListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[{"name":"llama3.1:8b"},{"name":"llava:13b"}]}`))
	}))
	defer server.Close()

	names, err := NewOllamaAdapter(server.URL + "/").ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b", "llava:13b"}, names)
}

func TestOllamaAdapter_Name(t *testing.T) {
	a := NewOllamaAdapter("", WithName("gpu-box"))
	assert.Equal(t, "gpu-box", a.Name())
	assert.Equal(t, KindOllama, a.Kind())
	assert.Equal(t, DefaultOllamaEndpoint, a.endpoint)
}
