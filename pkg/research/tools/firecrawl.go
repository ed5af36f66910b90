package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SearchDocument is one search hit with its page content as markdown.
type SearchDocument struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// FirecrawlClient searches the web through Firecrawl and returns each hit
// scraped to markdown.
type FirecrawlClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func NewFirecrawlClient(apiKey, baseURL string, timeout time.Duration) *FirecrawlClient {
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &FirecrawlClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{},
	}
}

type firecrawlSearchRequest struct {
	Query         string                 `json:"query"`
	Limit         int                    `json:"limit"`
	Timeout       int64                  `json:"timeout"`
	ScrapeOptions firecrawlScrapeOptions `json:"scrapeOptions"`
}

type firecrawlScrapeOptions struct {
	Formats []string `json:"formats"`
}

type firecrawlSearchResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		URL      string `json:"url"`
		Title    string `json:"title"`
		Markdown string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error"`
}

// Search runs one query. The request deadline is taken from ctx; the
// configured timeout is also sent to Firecrawl so it stops scraping in time.
func (c *FirecrawlClient) Search(ctx context.Context, query string, limit int) ([]SearchDocument, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("FIRECRAWL_API_KEY is not set")
	}
	if limit <= 0 {
		limit = 5
	}

	jsonBody, err := json.Marshal(firecrawlSearchRequest{
		Query:         query,
		Limit:         limit,
		Timeout:       c.timeout.Milliseconds(),
		ScrapeOptions: firecrawlScrapeOptions{Formats: []string{"markdown"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/search", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("firecrawl search failed with status: %s, body: %s", resp.Status, string(body))
	}

	var searchResp firecrawlSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search response: %w", err)
	}
	if !searchResp.Success {
		reason := searchResp.Error
		if reason == "" {
			reason = "request was not successful"
		}
		return nil, fmt.Errorf("firecrawl search error: %s", reason)
	}

	docs := make([]SearchDocument, 0, len(searchResp.Data))
	for _, d := range searchResp.Data {
		docs = append(docs, SearchDocument{URL: d.URL, Title: d.Title, Markdown: d.Markdown})
		if len(docs) == limit {
			break
		}
	}

	slog.Debug("Firecrawl search complete", "query", query, "results", len(docs))
	return docs, nil
}
