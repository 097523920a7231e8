package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutriplan/store"
)

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(128)

	a, err := h.EmbedQuery(ctx, "método tres días y carga")
	require.NoError(t, err)
	b, err := h.EmbedQuery(ctx, "método tres días y carga")
	require.NoError(t, err)
	c, err := h.EmbedQuery(ctx, "suplementación con creatina")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, store.Cosine(a, b), 1e-6)
	assert.Less(t, store.Cosine(a, c), 0.5)
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultEmbeddingModel, req.Model)
		// answer out of order to check index placement
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0,1],"index":1},{"embedding":[1,0],"index":0}]}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "a")
	assert.ErrorContains(t, err, "bad key")
}

func TestOpenAICompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		assert.Equal(t, 2500, req.MaxTokens)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  DÍA 1\n"}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAICompleter(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "sys",
		UserPrompt:   "user",
		Temperature:  0.3,
		MaxTokens:    2500,
	})
	require.NoError(t, err)
	assert.Equal(t, "DÍA 1", out)
}

func TestOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{})
	assert.Error(t, err)
	_, err = NewOpenAICompleter(OpenAIConfig{})
	assert.Error(t, err)
}

func TestOllamaCompleter_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.Equal(t, "sys", req.System)
		_, _ = w.Write([]byte("{\"response\":\"\"}\n{\"response\":\"DÍA \"}\n{\"response\":\"1\"}\n"))
	}))
	defer srv.Close()

	c := NewOllamaCompleter(srv.URL, "llama3")
	out, err := c.Complete(context.Background(), CompletionRequest{SystemPrompt: "sys", UserPrompt: "u"})
	require.NoError(t, err)
	assert.Equal(t, "DÍA 1", out)
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[3,4]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "nomic-embed-text")
	out, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 0.6, out[0][0], 1e-6)
	assert.InDelta(t, 0.8, out[0][1], 1e-6)
}

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, c.EmbedQuery)
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]float32, bool, error) {
	return nil, false, errors.New("down")
}
func (brokenCache) Set(context.Context, string, []float32) error { return errors.New("down") }

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, NewMapCache(), "test", nil)

	for i := 0; i < 3; i++ {
		v, err := c.EmbedQuery(ctx, "nutrición")
		require.NoError(t, err)
		assert.Equal(t, []float32{float32(len("nutrición"))}, v)
	}
	assert.Equal(t, 1, inner.calls)

	// documents bypass the cache
	_, err := c.EmbedDocuments(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestCachedEmbedder_CacheFailureFallsThrough(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, brokenCache{}, "test", nil)

	_, err := c.EmbedQuery(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}
