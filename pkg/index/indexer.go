package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

type Splitter interface {
	SplitText(text string) ([]string, error)
}

type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the subset of the pgvector store the indexer needs.
type Store interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) error
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, filter map[string]interface{}) ([]vectorstore.SimilaritySearchResult, error)
	GetContentByMetadata(ctx context.Context, filter map[string]interface{}) ([]vectorstore.Document, error)
	DeleteByMetadata(ctx context.Context, filter map[string]interface{}) (int64, error)
}

var _ Store = (*vectorstore.PGVectorStore)(nil)

// Chunk is one indexed slice of a research job's source content.
type Chunk struct {
	JobID    string  `json:"jobId"`
	Document int     `json:"document"`
	Chunk    int     `json:"chunk"`
	Content  string  `json:"content"`
	Score    float64 `json:"score,omitempty"`
}

// SourceIndexer persists the source contents a research job collected so
// they can be searched after the job is done.
type SourceIndexer struct {
	Splitter Splitter
	Embedder Embedder
	Store    Store
	Logger   *slog.Logger
}

func NewSourceIndexer(splitter Splitter, embedder Embedder, store Store) *SourceIndexer {
	return &SourceIndexer{
		Splitter: splitter,
		Embedder: embedder,
		Store:    store,
		Logger:   slog.Default(),
	}
}

// Index replaces the job's chunks with chunks of contents and returns how
// many were stored.
func (ix *SourceIndexer) Index(ctx context.Context, jobID uuid.UUID, contents []string) (int, error) {
	job := jobID.String()

	var docs []vectorstore.Document
	for d, content := range contents {
		chunks, err := ix.Splitter.SplitText(content)
		if err != nil {
			return 0, fmt.Errorf("split document %d: %w", d, err)
		}
		for c, chunk := range chunks {
			docs = append(docs, vectorstore.Document{
				Content: chunk,
				Metadata: map[string]interface{}{
					"job_id":   job,
					"document": d,
					"chunk":    c,
				},
			})
		}
	}

	if len(docs) > 0 {
		texts := make([]string, len(docs))
		for i, doc := range docs {
			texts[i] = doc.Content
		}
		vectors, err := ix.Embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(docs) {
			return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(docs))
		}
		for i := range docs {
			docs[i].Embedding = vectors[i]
		}
	}

	if _, err := ix.Store.DeleteByMetadata(ctx, jobFilter(job)); err != nil {
		return 0, fmt.Errorf("clear previous chunks: %w", err)
	}
	if err := ix.Store.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	ix.Logger.Info("Indexed sources", "job_id", job, "documents", len(contents), "chunks", len(docs))
	return len(docs), nil
}

// Search returns the topK chunks most similar to query. A nil jobID searches
// across every job.
func (ix *SourceIndexer) Search(ctx context.Context, query string, jobID *uuid.UUID, topK int) ([]Chunk, error) {
	vec, err := ix.Embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var filter map[string]interface{}
	if jobID != nil {
		filter = jobFilter(jobID.String())
	}
	results, err := ix.Store.SimilaritySearch(ctx, vec, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		c := chunkFromDocument(r.Document)
		c.Score = r.Score
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Chunks returns every chunk of a job in document order.
func (ix *SourceIndexer) Chunks(ctx context.Context, jobID uuid.UUID) ([]Chunk, error) {
	docs, err := ix.Store.GetContentByMetadata(ctx, jobFilter(jobID.String()))
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	chunks := make([]Chunk, 0, len(docs))
	for _, d := range docs {
		chunks = append(chunks, chunkFromDocument(d))
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Document != chunks[j].Document {
			return chunks[i].Document < chunks[j].Document
		}
		return chunks[i].Chunk < chunks[j].Chunk
	})
	return chunks, nil
}

func jobFilter(job string) map[string]interface{} {
	return map[string]interface{}{"job_id": job}
}

// chunkFromDocument reads the metadata written by Index. Numbers come back
// from JSONB as float64.
func chunkFromDocument(d vectorstore.Document) Chunk {
	c := Chunk{Content: d.Content}
	if v, ok := d.Metadata["job_id"].(string); ok {
		c.JobID = v
	}
	c.Document = metadataInt(d.Metadata["document"])
	c.Chunk = metadataInt(d.Metadata["chunk"])
	return c
}

func metadataInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
