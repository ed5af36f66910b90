package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CONCURRENCY_LIMIT", "RESEARCH_BREADTH", "RESEARCH_DEPTH", "SEARCH_PROVIDER", "SEARCH_TIMEOUT_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, 2, cfg.ConcurrencyLimit)
	assert.Equal(t, 4, cfg.Breadth)
	assert.Equal(t, 2, cfg.Depth)
	assert.Equal(t, ProviderFirecrawl, cfg.SearchProvider)
	assert.Equal(t, 15*time.Second, cfg.SearchTimeout)
	assert.Equal(t, 60*time.Second, cfg.ExtractTimeout)
	assert.Equal(t, "research_sources", cfg.CollectionName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CONCURRENCY_LIMIT", "5")
	t.Setenv("RESEARCH_DEPTH", "3")
	t.Setenv("SEARCH_PROVIDER", ProviderArxiv)
	t.Setenv("SEARCH_TIMEOUT_SECONDS", "30")

	cfg := Load()
	assert.Equal(t, 5, cfg.ConcurrencyLimit)
	assert.Equal(t, 3, cfg.Depth)
	assert.Equal(t, ProviderArxiv, cfg.SearchProvider)
	assert.Equal(t, 30*time.Second, cfg.SearchTimeout)
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"Unset uses default", "", 7},
		{"Valid integer", "12", 12},
		{"Invalid integer uses default", "twelve", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEEP_RESEARCH_TEST_INT", tt.value)
			if got := getEnvAsInt("DEEP_RESEARCH_TEST_INT", 7); got != tt.want {
				t.Errorf("getEnvAsInt() = %d, want %d", got, tt.want)
			}
		})
	}
}
