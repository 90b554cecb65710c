// Package chunker splits loaded documents into overlapping windows small
// enough for the embedding model, preferring paragraph, line and word
// boundaries before falling back to a hard cut.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/seanblong/loanassist/pkg/models"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

const metaSource = "source"

// chunkNamespace scopes chunk IDs so the same source and position always
// yield the same ID.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("loanassist/chunk"))

var ErrInvalidParams = errors.New("invalid chunking parameters")

type Chunker struct {
	splitter textsplitter.TextSplitter
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidParams, size, overlap)
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}, nil
}

// Split returns the chunks of every document, in document order.
func (c *Chunker) Split(docs []models.Document) ([]models.Chunk, error) {
	in := make([]schema.Document, 0, len(docs))
	for _, d := range docs {
		in = append(in, schema.Document{
			PageContent: d.Content,
			Metadata:    map[string]any{metaSource: d.Source},
		})
	}

	parts, err := textsplitter.SplitDocuments(c.splitter, in)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}

	out := make([]models.Chunk, 0, len(parts))
	next := make(map[string]int, len(docs))
	for _, p := range parts {
		if strings.TrimSpace(p.PageContent) == "" {
			continue
		}
		src, _ := p.Metadata[metaSource].(string)
		idx := next[src]
		next[src]++
		out = append(out, models.Chunk{
			ID:      chunkID(src, idx),
			Source:  src,
			Index:   idx,
			Content: p.PageContent,
		})
	}
	return out, nil
}

func chunkID(source string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", source, index))).String()
}
