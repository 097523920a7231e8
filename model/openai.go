package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultEmbeddingModel = "text-embedding-ada-002"
	DefaultChatModel      = "gpt-4o-mini"
)

type OpenAIConfig struct {
	// APIKey is required.
	APIKey string
	// BaseURL defaults to https://api.openai.com/v1.
	BaseURL string
	Model   string
	Timeout time.Duration
}

func (cfg OpenAIConfig) withDefaults(model string, timeout time.Duration) (OpenAIConfig, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return cfg, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = timeout
	}
	return cfg, nil
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// OpenAIEmbedder calls /embeddings, batching every text of a call into one request.
type OpenAIEmbedder struct {
	cfg    OpenAIConfig
	client *http.Client
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *openAIError `json:"error,omitempty"`
}

var _ Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	cfg, err := cfg.withDefaults(DefaultEmbeddingModel, 60*time.Second)
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp embeddingResponse
	status, raw, err := e.post(ctx, "/embeddings", embeddingRequest{Model: e.cfg.Model, Input: texts}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", resp.Error.Message)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("openai error (status %d): %s", status, raw)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", data.Index)
		}
		embedding := make([]float32, len(data.Embedding))
		for i, v := range data.Embedding {
			embedding[i] = float32(v)
		}
		embeddings[data.Index] = embedding
	}
	for i, v := range embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("openai: no embedding returned for text %d", i)
		}
	}
	return embeddings, nil
}

func (e *OpenAIEmbedder) post(ctx context.Context, path string, in, out any) (int, string, error) {
	return openAIPost(ctx, e.client, e.cfg, path, in, out)
}

// OpenAICompleter calls /chat/completions with a system and a user message.
type OpenAICompleter struct {
	cfg    OpenAIConfig
	client *http.Client
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *openAIError `json:"error,omitempty"`
}

var _ Completer = (*OpenAICompleter)(nil)

func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	cfg, err := cfg.withDefaults(DefaultChatModel, 120*time.Second)
	if err != nil {
		return nil, err
	}
	return &OpenAICompleter{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	messages := make([]chatCompletionMsg, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatCompletionMsg{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatCompletionMsg{Role: "user", Content: req.UserPrompt})

	var resp chatCompletionResponse
	status, raw, err := openAIPost(ctx, c.client, c.cfg, "/chat/completions", chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai error: %s", resp.Error.Message)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("openai error (status %d): %s", status, raw)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func openAIPost(ctx context.Context, client *http.Client, cfg OpenAIConfig, path string, in, out any) (int, string, error) {
	jsonBody, err := json.Marshal(in)
	if err != nil {
		return 0, "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, string(body), fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, string(body), nil
}
