package tools

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

func (e ArxivEntry) pdfLink() string {
	for _, link := range e.Link {
		if link.Type == "application/pdf" {
			return link.Href
		}
	}
	return ""
}

// PDFScraper converts a PDF at a URL into markdown.
type PDFScraper interface {
	ScrapePDF(ctx context.Context, url string) (string, error)
}

// ArxivClient searches arXiv papers. With an OCR scraper set, each paper's
// PDF is converted to markdown; otherwise the abstract is the content.
//
// OCR runs for all papers in parallel, each under OCRTimeout. The caller's
// deadline only bounds the feed request, so with OCR enabled a search can
// outlast it by up to OCRTimeout. Cancelling the caller's context still stops OCR.
type ArxivClient struct {
	baseURL    string
	client     *http.Client
	OCR        PDFScraper
	OCRTimeout time.Duration
}

func NewArxivClient(ocr PDFScraper) *ArxivClient {
	return &ArxivClient{
		baseURL:    "https://export.arxiv.org/api/query",
		client:     &http.Client{},
		OCR:        ocr,
		OCRTimeout: 60 * time.Second,
	}
}

// Search queries the Arxiv API and returns one document per paper.
func (c *ArxivClient) Search(ctx context.Context, query string, limit int) ([]SearchDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	feed, err := c.fetchFeed(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	docs := make([]SearchDocument, 0, len(feed.Entry))
	var pdfs []string
	for _, entry := range feed.Entry {
		title := strings.Join(strings.Fields(entry.Title), " ")
		summary := strings.TrimSpace(entry.Summary)

		doc := SearchDocument{
			URL:      strings.TrimSpace(entry.ID),
			Title:    title,
			Markdown: fmt.Sprintf("# %s\n\nPublished: %s\n\n%s", title, entry.Published, summary),
		}
		if doc.URL == "" {
			doc.URL = entry.pdfLink()
		}
		docs = append(docs, doc)
		pdfs = append(pdfs, entry.pdfLink())
		if len(docs) == limit {
			break
		}
	}

	if c.OCR != nil {
		c.scrapeAll(ctx, docs, pdfs)
	}
	return docs, nil
}

// scrapeAll replaces each document's abstract with the OCR text of its PDF.
// Failed papers keep the abstract.
func (c *ArxivClient) scrapeAll(ctx context.Context, docs []SearchDocument, pdfs []string) {
	ocrCtx, stop := withoutDeadline(ctx)
	defer stop()

	timeout := c.OCRTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var g errgroup.Group
	for i, pdf := range pdfs {
		if pdf == "" {
			continue
		}
		g.Go(func() error {
			pdfCtx, cancel := context.WithTimeout(ocrCtx, timeout)
			defer cancel()
			text, err := c.OCR.ScrapePDF(pdfCtx, pdf)
			if err != nil {
				slog.Warn("Failed to scrape, using summary", "url", pdf, "error", err)
				return nil
			}
			docs[i].Markdown = text
			return nil
		})
	}
	_ = g.Wait()
}

// withoutDeadline detaches ctx from its deadline but still follows an
// explicit cancellation of ctx or its parents.
func withoutDeadline(ctx context.Context) (context.Context, func()) {
	detached, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopAfter := context.AfterFunc(ctx, func() {
		if errors.Is(ctx.Err(), context.Canceled) {
			cancel()
		}
	})
	return detached, func() {
		stopAfter()
		cancel()
	}
}

func (c *ArxivClient) fetchFeed(ctx context.Context, query string, maxResults int) (*ArxivFeed, error) {
	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")
	apiURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

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
		slog.Error("API returned non-200 status code", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(body))
	}

	var feed ArxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	slog.Debug("arXiv search complete", "query", query, "entries", len(feed.Entry))
	return &feed, nil
}
