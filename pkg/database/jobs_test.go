package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJobJSON(t *testing.T) {
	tests := []struct {
		name      string
		progress  []byte
		learnings []byte
		urls      []byte
		want      Job
		wantErr   bool
	}{
		{
			name: "all null",
			want: Job{},
		},
		{
			name:      "populated",
			progress:  []byte(`{"completedQueries":3}`),
			learnings: []byte(`["a","b"]`),
			urls:      []byte(`["https://example.com"]`),
			want: Job{
				Progress:    []byte(`{"completedQueries":3}`),
				Learnings:   []string{"a", "b"},
				VisitedURLs: []string{"https://example.com"},
			},
		},
		{
			name:      "corrupt learnings",
			learnings: []byte(`{"not":"a list"}`),
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var job Job
			err := decodeJobJSON(&job, tt.progress, tt.learnings, tt.urls)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, job)
		})
	}
}

func TestNonNil(t *testing.T) {
	assert.Equal(t, []string{}, nonNil(nil))
	assert.Equal(t, []string{"x"}, nonNil([]string{"x"}))
}
