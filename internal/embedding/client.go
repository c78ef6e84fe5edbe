// Package embedding wraps the external embedding service. The same client is
// used at indexing and query time; only the input type differs, which the
// embedding model requires to place documents and queries correctly in the
// shared vector space.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// InputType distinguishes indexing-time from query-time embeddings.
type InputType string

const (
	// InputTypeDocument is used when embedding chunks for the index.
	InputTypeDocument InputType = "search_document"
	// InputTypeQuery is used when embedding an incoming question.
	InputTypeQuery InputType = "search_query"
)

const embedPath = "/v1/embed"

// Client calls the embedding service. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient creates an embedding client. The model must stay consistent for
// the lifetime of an index.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

// Model returns the embedding model identifier.
func (c *Client) Model() string { return c.model }

type embedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed embeds a batch of texts in a single service call. Rate-limit and
// server errors are retried with exponential backoff; anything else fails
// immediately.
func (c *Client) Embed(ctx context.Context, texts []string, inputType InputType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{
		Texts:     texts,
		Model:     c.model,
		InputType: string(inputType),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	var embeddings [][]float32
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+embedPath, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err // network errors are retryable
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("embed request failed: %d, %s", resp.StatusCode, string(data))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		var parsed embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("decode embed response: %w", err))
		}
		if len(parsed.Embeddings) != len(texts) {
			return backoff.Permanent(fmt.Errorf("embed response has %d vectors for %d texts",
				len(parsed.Embeddings), len(texts)))
		}
		embeddings = parsed.Embeddings
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{query}, InputTypeQuery)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}
