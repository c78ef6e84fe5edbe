// Package storage persists embedding records in a chromem-go vector index on
// the local filesystem and answers nearest-neighbor queries over them.
package storage

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
)

// Store wraps a chromem-go database. The index is written once during
// ingestion and read-only during serving, so a Store is safe for concurrent
// queries.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
}

// NewPersistent opens (or creates) a persistent index at path and binds the
// named collection.
func NewPersistent(path, collection string) (*Store, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	return bind(db, collection)
}

// NewInMemory creates a volatile index, used in tests and dry runs.
func NewInMemory(collection string) (*Store, error) {
	return bind(chromem.NewDB(), collection)
}

func bind(db *chromem.DB, name string) (*Store, error) {
	c, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}
	return &Store{db: db, collection: c, name: name}, nil
}

// Reset wipes the collection and recreates it empty. Ingestion always runs
// against a fresh collection: the index has no per-chunk update or delete,
// so a re-run is a full rebuild.
func (s *Store) Reset() error {
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	c, err := s.db.GetOrCreateCollection(s.name, nil, nil)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.collection = c
	return nil
}

// Add inserts a batch of embedding records.
func (s *Store) Add(ctx context.Context, records []Record) error {
	if s.collection == nil {
		return ErrNoCollection
	}
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Text,
			Embedding: r.Embedding,
			Metadata: map[string]string{
				metaSource:     r.Source,
				metaPage:       strconv.Itoa(r.Page),
				metaOriginalID: r.ChunkID,
			},
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (s *Store) Count() int {
	if s.collection == nil {
		return 0
	}
	return s.collection.Count()
}

// Query returns up to topK nearest records, nearest first. An empty
// collection yields zero results, not an error.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]Result, error) {
	if s.collection == nil {
		return nil, ErrNoCollection
	}
	if count := s.collection.Count(); count == 0 {
		return nil, nil
	} else if topK > count {
		topK = count
	}

	hits, err := s.collection.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		page, _ := strconv.Atoi(hit.Metadata[metaPage])
		results = append(results, Result{
			Text:   hit.Content,
			Source: hit.Metadata[metaSource],
			Page:   page,
			// chromem reports cosine similarity on unit vectors; the
			// equivalent squared Euclidean distance is 2*(1-sim).
			Distance: 2 * (1 - float64(hit.Similarity)),
		})
	}
	return results, nil
}
