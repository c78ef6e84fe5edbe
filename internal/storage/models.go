package storage

// Record is an embedding record as handed to the index: chunk text plus its
// vector and source metadata.
type Record struct {
	ID        string // index-assigned UUID, distinct from the chunk ID
	Text      string
	Embedding []float32
	Source    string
	Page      int
	ChunkID   string // the chunk's own ID, kept as metadata
}

// Result is one nearest-neighbor hit. Distance is squared Euclidean on unit
// vectors, lower is more similar. This is the space the relevance threshold
// was tuned in.
type Result struct {
	Text     string
	Source   string
	Page     int
	Distance float64
}

// Metadata keys used inside the index.
const (
	metaSource     = "source"
	metaPage       = "page"
	metaOriginalID = "original_id"
)
