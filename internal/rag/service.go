package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/loanassist/internal/ai"
	"github.com/seanblong/loanassist/internal/prompt"
	"github.com/seanblong/loanassist/internal/store"
)

const DefaultTopK = 4

var ErrEmptyQuery = errors.New("query is empty")

// Service answers questions against a fixed index. It holds no mutable
// state, so one value can serve every request concurrently.
type Service struct {
	Embedder  ai.Embedder
	Retriever store.Retriever
	Generator ai.Generator
	Prompt    *prompt.Assembler
	TopK      int
}

// NewService creates a new answering service over the given components
func NewService(embedder ai.Embedder, retriever store.Retriever, generator ai.Generator, topK int) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{
		Embedder:  embedder,
		Retriever: retriever,
		Generator: generator,
		Prompt:    prompt.New(""),
		TopK:      topK,
	}
}

// Answer runs embed -> search -> assemble -> generate for one question.
func (s *Service) Answer(ctx context.Context, q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrEmptyQuery
	}

	vec, err := s.Embedder.EmbedQuery(ctx, q)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	res, err := s.Retriever.Search(ctx, vec, s.TopK)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	log.Ctx(ctx).Debug().Int("k", s.TopK).Int("retrieved", len(res)).Msg("retrieved context")

	p, err := s.Prompt.Assemble(q, res)
	if err != nil {
		return "", err
	}

	answer, err := s.Generator.Generate(ctx, p)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return answer, nil
}
