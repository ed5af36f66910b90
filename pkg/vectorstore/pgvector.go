package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Document is one stored chunk of source text.
type Document struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata"`
	Embedding []float32              `json:"embedding,omitempty"`
}

type SimilaritySearchResult struct {
	Document Document
	Score    float64
}

// PGVectorStore stores embedded source chunks in one pgvector table.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// Postgres identifiers are capped at 63 bytes.
var tableNamePattern = regexp.MustCompile(`^[a-z_][a-zA-Z0-9_]{0,62}$`)

func isValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

func NewPGVectorStore(pool *pgxpool.Pool, tableName string) (*PGVectorStore, error) {
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid collection name %q: use lowercase letters, digits and underscores (max 63)", tableName)
	}
	return &PGVectorStore{pool: pool, tableName: tableName}, nil
}

func (vs *PGVectorStore) table() string {
	return pgx.Identifier{vs.tableName}.Sanitize()
}

// AddDocuments inserts docs in a single batch.
func (vs *PGVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	insert := "INSERT INTO " + vs.table() + " (content, metadata, embedding) VALUES ($1, $2, $3)"

	batch := &pgx.Batch{}
	for i, doc := range docs {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata of chunk %d: %w", i, err)
		}
		batch.Queue(insert, doc.Content, meta, pgvector.NewVector(doc.Embedding))
	}

	br := vs.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return nil
}

// SimilaritySearch returns the topK documents closest to queryEmbedding by
// cosine distance, restricted to documents whose metadata matches filter.
func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, filter map[string]interface{}) ([]SimilaritySearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	args := []interface{}{pgvector.NewVector(queryEmbedding)}
	where, err := vs.buildMetadataQuery(filter, &args)
	if err != nil {
		return nil, err
	}
	args = append(args, topK)

	query := fmt.Sprintf(`SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s WHERE %s ORDER BY embedding <=> $1 LIMIT $%d`, vs.table(), where, len(args))

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SimilaritySearchResult, error) {
		var res SimilaritySearchResult
		var meta []byte
		if err := row.Scan(&res.Document.ID, &res.Document.Content, &meta, &res.Score); err != nil {
			return res, err
		}
		return res, json.Unmarshal(meta, &res.Document.Metadata)
	})
}

// GetContentByMetadata returns the documents matching filter in insertion order.
func (vs *PGVectorStore) GetContentByMetadata(ctx context.Context, filter map[string]interface{}) ([]Document, error) {
	var args []interface{}
	where, err := vs.buildMetadataQuery(filter, &args)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT id, content, metadata FROM %s WHERE %s ORDER BY created_at ASC", vs.table(), where)
	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return pgx.CollectRows(rows, scanDocument)
}

// DeleteByMetadata removes every document matching filter. An empty filter is
// rejected rather than truncating the collection.
func (vs *PGVectorStore) DeleteByMetadata(ctx context.Context, filter map[string]interface{}) (int64, error) {
	if len(filter) == 0 {
		return 0, errors.New("refusing to delete with an empty filter")
	}
	var args []interface{}
	where, err := vs.buildMetadataQuery(filter, &args)
	if err != nil {
		return 0, err
	}

	tag, err := vs.pool.Exec(ctx, "DELETE FROM "+vs.table()+" WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanDocument(row pgx.CollectableRow) (Document, error) {
	var doc Document
	var meta []byte
	if err := row.Scan(&doc.ID, &doc.Content, &meta); err != nil {
		return doc, err
	}
	return doc, json.Unmarshal(meta, &doc.Metadata)
}

// buildMetadataQuery turns a filter into a WHERE clause, appending its
// placeholders to args. Plain keys match with jsonb containment; "$and",
// "$or" and "$not" combine nested filters.
func (vs *PGVectorStore) buildMetadataQuery(filter map[string]interface{}, args *[]interface{}) (string, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	for _, key := range keys {
		value := filter[key]
		switch key {
		case "$and", "$or":
			list, ok := value.([]interface{})
			if !ok {
				return "", fmt.Errorf("metadata filter: %s needs a list of conditions", key)
			}
			var parts []string
			for _, item := range list {
				sub, ok := item.(map[string]interface{})
				if !ok {
					return "", fmt.Errorf("metadata filter: %s items must be objects", key)
				}
				clause, err := vs.buildMetadataQuery(sub, args)
				if err != nil {
					return "", err
				}
				parts = append(parts, "("+clause+")")
			}
			if len(parts) > 0 {
				conds = append(conds, "("+strings.Join(parts, " "+strings.ToUpper(key[1:])+" ")+")")
			}

		case "$not":
			sub, ok := value.(map[string]interface{})
			if !ok {
				return "", errors.New("metadata filter: $not needs an object")
			}
			clause, err := vs.buildMetadataQuery(sub, args)
			if err != nil {
				return "", err
			}
			conds = append(conds, "NOT ("+clause+")")

		default:
			pair, err := json.Marshal(map[string]interface{}{key: value})
			if err != nil {
				return "", fmt.Errorf("metadata filter: encode %q: %w", key, err)
			}
			*args = append(*args, pair)
			conds = append(conds, fmt.Sprintf("metadata @> $%d", len(*args)))
		}
	}

	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), nil
}
