package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Client wraps the Gemini API for generation and embeddings.
type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	embedder  *genai.EmbeddingModel
	modelName string
	embedName string
}

// Config configures the Gemini client. Either model may be left empty when unused.
type Config struct {
	APIKeyEnv      string
	Model          string
	EmbeddingModel string
	Temperature    float32
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c := &Client{client: client, modelName: cfg.Model, embedName: cfg.EmbeddingModel}
	if cfg.Model != "" {
		c.model = client.GenerativeModel(cfg.Model)
		c.model.SetTemperature(cfg.Temperature)
	}
	if cfg.EmbeddingModel != "" {
		c.embedder = client.EmbeddingModel(cfg.EmbeddingModel)
	}
	return c, nil
}

// Generate sends prompt to the generative model and joins the text parts of all candidates.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.model == nil {
		return "", errors.New("gemini: no generative model configured")
	}
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	var parts []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				parts = append(parts, string(text))
			}
		}
	}
	if len(parts) == 0 {
		return "", errors.New("gemini: empty response")
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

// Name identifies the embedding model.
func (c *Client) Name() string { return "gemini:" + c.embedName }

// Dimension is 768 for text-embedding-004; other models report 0 until known.
func (c *Client) Dimension() int {
	if c.embedName == "text-embedding-004" {
		return 768
	}
	return 0
}

// Embed converts text into an embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, errors.New("gemini: no embedding model configured")
	}
	resp, err := c.embedder.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, errors.New("gemini: empty embedding")
	}
	return resp.Embedding.Values, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}
