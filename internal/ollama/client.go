// Package ollama is an HTTP client for the Ollama API covering the two
// calls the chatbot needs: embedding generation and streamed text
// generation. Responses from /api/generate arrive as newline-delimited
// JSON records and are forwarded token-by-token.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/shinhan-ai/kb-chatbot/internal/upstream"
)

// Default models. The chat model is the smaller llama3.2 build; the
// embedding model fixes the vector dimension for the whole collection.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultChatModel  = "llama3.2:3b"
	DefaultEmbedModel = "nomic-embed-text"

	// maxEmbedConcurrency bounds concurrent embedding requests in
	// EmbedBatch. Ollama serializes model execution anyway; a small
	// fan-out keeps the request pipeline full without flooding it.
	maxEmbedConcurrency = 4
)

// GenerateOptions are the sampling options sent with every generation
// request.
type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

// DefaultGenerateOptions returns the sampling defaults used by the chat
// pipeline.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Temperature: 0.7,
		TopP:        0.9,
		NumPredict:  1024,
	}
}

// Config holds client settings. Zero values fall back to the defaults
// above.
type Config struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
	Options    GenerateOptions
	HTTPClient *http.Client
}

// Client talks to one Ollama instance. It is safe for concurrent use;
// all mutable state lives in the request scope.
type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	options    GenerateOptions
	http       *http.Client
}

// NewClient creates an Ollama client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	if cfg.Options == (GenerateOptions{}) {
		cfg.Options = DefaultGenerateOptions()
	}
	if cfg.HTTPClient == nil {
		// No overall timeout: generation streams can legitimately run
		// for minutes. Callers bound requests via context.
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		options:    cfg.Options,
		http:       cfg.HTTPClient,
	}
}

// BaseURL returns the configured Ollama endpoint, used in user-facing
// connectivity hints.
func (c *Client) BaseURL() string { return c.baseURL }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates the embedding vector for a single text. Failures are
// classified (unavailable vs failed) and are not retried at this layer.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.embedModel, Prompt: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, upstream.Classify(upstream.ServiceOllama, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upstream.Failed(upstream.ServiceOllama,
			fmt.Errorf("embedding request returned %s", resp.Status))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, upstream.Failed(upstream.ServiceOllama,
			fmt.Errorf("decode embedding response: %w", err))
	}
	if len(out.Embedding) == 0 {
		return nil, upstream.Failed(upstream.ServiceOllama,
			fmt.Errorf("embedding response contained no vector"))
	}
	return out.Embedding, nil
}

// EmbedBatch embeds each text independently and concurrently (bounded
// fan-out) and returns one embedding per input in input order. Any
// single failure fails the whole batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxEmbedConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			embedding, err := c.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			embeddings[i] = embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// GenerateStream sends prompt to /api/generate with streaming enabled
// and invokes fn for every non-empty token fragment as it arrives, in
// production order. A record with done=true terminates the stream
// cleanly; malformed records are skipped without aborting. The stream is
// finite and not restartable. If fn returns an error, forwarding stops
// and that error is returned.
func (c *Client) GenerateStream(ctx context.Context, prompt string, fn func(token string) error) error {
	body, err := json.Marshal(generateRequest{
		Model:   c.chatModel,
		Prompt:  prompt,
		Stream:  true,
		Options: c.options,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return upstream.Classify(upstream.ServiceOllama, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return upstream.Failed(upstream.ServiceOllama,
			fmt.Errorf("generate request returned %s", resp.Status))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record generateResponse
		if err := json.Unmarshal(line, &record); err != nil {
			// One corrupt line must not kill an otherwise-good stream.
			continue
		}
		if record.Response != "" {
			if err := fn(record.Response); err != nil {
				return err
			}
		}
		if record.Done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return upstream.Classify(upstream.ServiceOllama, err)
	}
	// Body ended without a done record. Treat as complete: everything
	// produced has been forwarded.
	return nil
}

// Health probes the models-list endpoint. Returns nil when Ollama
// responds successfully.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return upstream.Classify(upstream.ServiceOllama, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return upstream.Failed(upstream.ServiceOllama,
			fmt.Errorf("health probe returned %s", resp.Status))
	}
	return nil
}
