package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/loanassist/internal/ai"
	"github.com/seanblong/loanassist/internal/chunker"
	"github.com/seanblong/loanassist/internal/config"
	"github.com/seanblong/loanassist/internal/indexer"
)

// NewClient creates the AI client named by cfg.Provider.
func NewClient(ctx context.Context, cfg config.Specification) (ai.Client, error) {
	return ai.NewClient(ctx, &ai.ClientConfig{
		APIKey:     cfg.APIKey,
		EmbedModel: cfg.EmbedModel,
		ChatModel:  cfg.ChatModel,
		Dim:        cfg.Dim,
		ProjectID:  cfg.ProjectID,
		Location:   cfg.Location,
		Provider:   ai.Provider(cfg.Provider),
		Timeout:    cfg.RequestTimeout,
	})
}

// Build loads the corpus from cfg.DataDir, chunks it, embeds it with client
// and returns a ready Service. Any failure is fatal for startup.
func Build(ctx context.Context, cfg config.Specification, client ai.Client) (*Service, error) {
	docs, err := indexer.LoadDocuments(ctx, cfg.DataDir)
	if err != nil {
		return nil, err
	}

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	chunks, err := ch.Split(docs)
	if err != nil {
		return nil, err
	}
	log.Info().Int("documents", len(docs)).Int("chunks", len(chunks)).
		Int("chunk_size", cfg.ChunkSize).Int("chunk_overlap", cfg.ChunkOverlap).
		Msg("corpus chunked")

	idx, err := indexer.Build(ctx, chunks, client, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	return NewService(client, idx, client, cfg.TopK), nil
}
