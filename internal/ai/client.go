package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"time"
	"unicode"
)

// Embedder turns text into vectors. Documents and queries are embedded
// separately because retrieval models treat the two sides differently.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client provides both embedding and generation capabilities. The model
// names and dimension are the resolved values, after provider defaults.
type Client interface {
	Embedder
	Generator
	EmbedModel() string
	ChatModel() string
	Dim() int
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderVertexAI Provider = "vertexai"
	ProviderOpenAI   Provider = "openai"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dim        int
	ProjectID  string
	Location   string
	Provider   Provider
	// BaseURL overrides the provider endpoint; empty means the SDK default.
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new AI client based on configuration
func NewClient(ctx context.Context, config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderGoogle, ProviderVertexAI:
		return NewGeminiClient(ctx, config)
	case ProviderOpenAI:
		return NewOpenAIClient(config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

const defaultStubDim = 64

// StubClient is an offline Client. Embeddings are hashed bags of words, so
// chunks sharing vocabulary with a question still rank first.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim <= 0 {
		dim = defaultStubDim
	}
	return &StubClient{dim: dim}
}

func (s *StubClient) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return s.embed(text), nil
}

func (s *StubClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embed(text), nil
}

func (s *StubClient) embed(text string) []float32 {
	vec := make([]float32, s.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(s.dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

// Generate echoes the start of the prompt's context section: everything
// between the instruction line and the trailing question.
func (s *StubClient) Generate(ctx context.Context, prompt string) (string, error) {
	body := prompt
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	}
	if i := strings.LastIndex(body, "Question:"); i >= 0 {
		body = body[:i]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return "I could not find an answer in the loan documents.", nil
	}
	if len(body) > 240 {
		body = strings.ToValidUTF8(body[:240], "")
	}
	return body, nil
}

func (s *StubClient) EmbedModel() string { return string(ProviderStub) }

func (s *StubClient) ChatModel() string { return string(ProviderStub) }

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}
