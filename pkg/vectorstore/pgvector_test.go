package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTableName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Valid default collection", "research_sources", true},
		{"Valid with numbers", "sources2025", true},
		{"Valid short", "s", true},
		{"Valid max length", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_", true}, // 63 chars
		{"Invalid start with number", "1sources", false},
		{"Invalid dash", "research-sources", false},
		{"Invalid SQL injection", "sources; DROP TABLE research_jobs", false},
		{"Invalid empty", "", false},
		{"Invalid too long", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789__", false}, // 64 chars
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isValidTableName(tt.input), "isValidTableName(%q)", tt.input)
		})
	}
}

func TestBuildMetadataQuery(t *testing.T) {
	vs := &PGVectorStore{}

	tests := []struct {
		name          string
		filter        map[string]interface{}
		preset        int
		wantQuery     string
		wantArgsCount int
		wantErr       bool
	}{
		{
			name:      "Empty filter",
			filter:    map[string]interface{}{},
			wantQuery: "TRUE",
		},
		{
			name:          "Job filter",
			filter:        map[string]interface{}{"job_id": "6f1c"},
			wantQuery:     "metadata @> $1",
			wantArgsCount: 1,
		},
		{
			name:          "Job filter after the query embedding",
			filter:        map[string]interface{}{"job_id": "6f1c"},
			preset:        1,
			wantQuery:     "metadata @> $2",
			wantArgsCount: 2,
		},
		{
			name:          "Several keys in sorted order",
			filter:        map[string]interface{}{"job_id": "6f1c", "document": 3},
			wantQuery:     "metadata @> $1 AND metadata @> $2",
			wantArgsCount: 2,
		},
		{
			name: "$or across jobs",
			filter: map[string]interface{}{
				"$or": []interface{}{
					map[string]interface{}{"job_id": "a"},
					map[string]interface{}{"job_id": "b"},
				},
			},
			wantQuery:     "((metadata @> $1) OR (metadata @> $2))",
			wantArgsCount: 2,
		},
		{
			name: "$not a document",
			filter: map[string]interface{}{
				"$not": map[string]interface{}{"document": 0},
			},
			wantQuery:     "NOT (metadata @> $1)",
			wantArgsCount: 1,
		},
		{
			name: "Nested operators",
			filter: map[string]interface{}{
				"$and": []interface{}{
					map[string]interface{}{"job_id": "a"},
					map[string]interface{}{
						"$or": []interface{}{
							map[string]interface{}{"document": 1},
							map[string]interface{}{"document": 2},
						},
					},
				},
			},
			wantQuery:     "((metadata @> $1) AND (((metadata @> $2) OR (metadata @> $3))))",
			wantArgsCount: 3,
		},
		{
			name:    "Error: $or is not a list",
			filter:  map[string]interface{}{"$or": "invalid"},
			wantErr: true,
		},
		{
			name:    "Error: $and item is not an object",
			filter:  map[string]interface{}{"$and": []interface{}{"invalid"}},
			wantErr: true,
		},
		{
			name:    "Error: $not is not an object",
			filter:  map[string]interface{}{"$not": []interface{}{"invalid"}},
			wantErr: true,
		},
		{
			name:      "Empty operator list is ignored",
			filter:    map[string]interface{}{"$or": []interface{}{}},
			wantQuery: "TRUE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := make([]interface{}, tt.preset)
			gotQuery, err := vs.buildMetadataQuery(tt.filter, &args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, gotQuery)
			assert.Len(t, args, tt.wantArgsCount)
		})
	}
}

func TestBuildMetadataQuery_SortedArgs(t *testing.T) {
	vs := &PGVectorStore{}
	var args []interface{}
	_, err := vs.buildMetadataQuery(map[string]interface{}{"job_id": "6f1c", "document": 3}, &args)
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.JSONEq(t, `{"document":3}`, string(args[0].([]byte)))
	assert.JSONEq(t, `{"job_id":"6f1c"}`, string(args[1].([]byte)))
}

func TestNewPGVectorStore_RejectsBadName(t *testing.T) {
	_, err := NewPGVectorStore(nil, "sources; DROP TABLE research_jobs")
	assert.Error(t, err)

	vs, err := NewPGVectorStore(nil, "research_sources")
	require.NoError(t, err)
	assert.Equal(t, `"research_sources"`, vs.table())
}
