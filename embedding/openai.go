package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// OpenAIOptions configures an OpenAIEmbedder.
type OpenAIOptions struct {
	// BaseURL of the OpenAI-compatible endpoint, without /embeddings.
	BaseURL string

	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client

	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries int

	// RetryBackoff is the initial backoff; it doubles per attempt.
	RetryBackoff time.Duration
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
// It works against OpenAI, Ollama and other API-compatible servers.
type OpenAIEmbedder struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	model        string
	dimension    int
	maxRetries   int
	retryBackoff time.Duration
}

// NewOpenAIEmbedder creates a client for an OpenAI-compatible endpoint.
// dimension must match the model's output size; the manifest's per-corpus
// dimension check catches drift at load time.
func NewOpenAIEmbedder(apiKey, model string, dimension int, optFns ...func(o *OpenAIOptions)) (*OpenAIEmbedder, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding: model must not be empty")
	}

	if dimension <= 0 {
		return nil, fmt.Errorf("embedding: invalid dimension %d", dimension)
	}

	opts := OpenAIOptions{
		BaseURL:      "https://api.openai.com/v1",
		HTTPClient:   &http.Client{Timeout: 60 * time.Second},
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &OpenAIEmbedder{
		client:       opts.HTTPClient,
		baseURL:      opts.BaseURL,
		apiKey:       apiKey,
		model:        model,
		dimension:    dimension,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32

	err := retryWithBackoff(ctx, e.maxRetries, e.retryBackoff, func() error {
		var err error

		vec, err = e.embed(ctx, text)

		return err
	})
	if err != nil {
		return nil, err
	}

	return vec, nil
}

// Dimension returns the configured vector dimensionality.
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// Model returns the model identifier.
func (e *OpenAIEmbedder) Model() string { return e.model }

func (e *OpenAIEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// 429 and 5xx are transient; everything else 4xx is a caller problem.
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("embedding endpoint returned status %d: %s", resp.StatusCode, truncate(raw, 200))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}

		return nil, permanent(err)
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, permanent(fmt.Errorf("parse response (body: %s): %w", truncate(raw, 200), err))
	}

	if decoded.Error != nil {
		return nil, permanent(fmt.Errorf("embedding api error: %s", decoded.Error.Message))
	}

	if len(decoded.Data) == 0 {
		return nil, permanent(fmt.Errorf("embedding response contained no data"))
	}

	vec := decoded.Data[0].Embedding
	if len(vec) != e.dimension {
		return nil, permanent(fmt.Errorf("embedding dimension %d does not match configured %d", len(vec), e.dimension))
	}

	return vec, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}

	return string(b)
}
