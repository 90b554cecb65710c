package indexer

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/loanassist/internal/ai"
	"github.com/seanblong/loanassist/internal/store"
	"github.com/seanblong/loanassist/pkg/models"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of concurrent embedding calls used when the
// caller does not choose one.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8 // Cap at 8 to avoid overwhelming the AI API
	}
	return n
}

// Build embeds every chunk and returns the finished index. The first
// embedding failure cancels outstanding calls and is returned; no partial
// index is produced.
func Build(ctx context.Context, chunks []models.Chunk, emb ai.Embedder, workers int) (*store.Memory, error) {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	start := time.Now()
	log.Info().Int("chunks", len(chunks)).Int("workers", workers).Msg("embedding chunks")

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ch := range chunks {
		g.Go(func() error {
			v, err := emb.EmbedDocument(gctx, ch.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %d of %s: %w", ch.Index, ch.Source, err)
			}
			vectors[i] = v
			log.Debug().Str("source", ch.Source).Int("index", ch.Index).Int("dim", len(v)).Msg("embedded chunk")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx, err := store.NewMemory(chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	log.Info().Int("chunks", idx.Len()).Int("dim", idx.Dim()).Dur("dur", time.Since(start)).Msg("index ready")
	return idx, nil
}
