package ai

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

type OpenAIClient struct {
	config *ClientConfig
	http   *http.Client
	client openai.Client
}

func NewOpenAIClient(config *ClientConfig) (*OpenAIClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	// Set default models if not provided
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-3-small"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gpt-4o-mini"
	}
	switch {
	case config.Dim == 0:
		// Set default dimensions based on the embedding model
		switch config.EmbedModel {
		case "text-embedding-3-large":
			config.Dim = 3072
		default:
			config.Dim = 1536
		}
	case config.EmbedModel == "text-embedding-ada-002" && config.Dim != 1536:
		log.Warn().Int("dim", config.Dim).Str("embed_model", config.EmbedModel).Msg("model has a fixed dimension of 1536, ignoring configured dim")
		config.Dim = 1536
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	// Create HTTP client with optional TLS skip verification
	transport := &http.Transport{}

	// Check for environment variable to skip TLS verification (for corporate proxies, etc.)
	if skipTLS, _ := strconv.ParseBool(os.Getenv("LOANASSIST_SKIP_TLS_VERIFY")); skipTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	httpClient := &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}

	return newOpenAIClient(config, httpClient), nil
}

func newOpenAIClient(config *ClientConfig, httpClient *http.Client) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithHTTPClient(httpClient),
		// failures surface to the caller as-is
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if strings.HasPrefix(config.APIKey, "sk-proj-") && config.ProjectID != "" {
		opts = append(opts, option.WithHeader("OpenAI-Project", config.ProjectID))
	}

	return &OpenAIClient{
		config: config,
		http:   httpClient,
		client: openai.NewClient(opts...),
	}
}

func (c *OpenAIClient) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text)
}

// EmbedQuery is identical to EmbedDocument; OpenAI models are symmetric.
func (c *OpenAIClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text)
}

func (c *OpenAIClient) embed(ctx context.Context, text string) ([]float32, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY unset")
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(c.config.EmbedModel),
	}
	// Only the v3 models can shorten their output.
	if strings.HasPrefix(c.config.EmbedModel, "text-embedding-3-") && c.config.Dim > 0 {
		params.Dimensions = openai.Int(int64(c.config.Dim))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding")
	}

	src := resp.Data[0].Embedding
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(v)
	}
	return out, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.config.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY unset")
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.config.ChatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) EmbedModel() string { return c.config.EmbedModel }

func (c *OpenAIClient) ChatModel() string { return c.config.ChatModel }

func (c *OpenAIClient) Dim() int {
	return c.config.Dim
}
