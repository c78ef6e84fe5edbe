// Package retriever answers free-text queries with the most relevant indexed
// chunks. Retrieval failure is a normal outcome, not an error: the caller
// always gets a (possibly empty) context back.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mathai-labs/tutor-core/internal/storage"
)

// Source is one retrieved chunk, exposed to callers alongside the formatted
// context so answers can cite where they came from.
type Source struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// QueryEmbedder embeds a query string into the index's vector space.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Index answers nearest-neighbor queries.
type Index interface {
	Query(ctx context.Context, embedding []float32, topK int) ([]storage.Result, error)
}

// Retriever performs semantic search with a relevance cutoff.
type Retriever struct {
	embedder    QueryEmbedder
	index       Index
	topK        int
	maxDistance float64
	log         zerolog.Logger
}

// New creates a Retriever. Results further than maxDistance are dropped:
// in a curriculum-bound tutor a false positive is worse than a false
// negative.
func New(embedder QueryEmbedder, index Index, topK int, maxDistance float64, log zerolog.Logger) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{
		embedder:    embedder,
		index:       index,
		topK:        topK,
		maxDistance: maxDistance,
		log:         log,
	}
}

// Search embeds the query, fetches the nearest chunks and formats the
// surviving ones into a context block, nearest first. Any dependency failure
// degrades to an empty result.
func (r *Retriever) Search(ctx context.Context, query string) (string, []Source) {
	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.log.Warn().Err(err).Msg("query embedding failed, returning empty context")
		return "", nil
	}

	results, err := r.index.Query(ctx, embedding, r.topK)
	if err != nil {
		r.log.Warn().Err(err).Msg("index query failed, returning empty context")
		return "", nil
	}

	var blocks strings.Builder
	var sources []Source
	for _, res := range results {
		if res.Distance > r.maxDistance {
			r.log.Debug().Float64("distance", res.Distance).Str("source", res.Source).
				Msg("dropping low-relevance result")
			continue
		}
		blocks.WriteString(formatBlock(res))
		sources = append(sources, Source{
			Text:   res.Text,
			Source: res.Source,
			Page:   res.Page,
		})
	}
	return blocks.String(), sources
}

func formatBlock(res storage.Result) string {
	page := "?"
	if res.Page > 0 {
		page = fmt.Sprintf("%d", res.Page)
	}
	return fmt.Sprintf("\n--- Source: %s (Page %s) ---\n%s\n", res.Source, page, res.Text)
}
