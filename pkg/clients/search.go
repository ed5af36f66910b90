package clients

import (
	"fmt"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/research/tools"
)

// NewSearchProvider picks the search backend named by cfg.SearchProvider.
func NewSearchProvider(cfg *config.Config) (research.SearchProvider, error) {
	switch cfg.SearchProvider {
	case config.ProviderFirecrawl, "":
		if cfg.FirecrawlApiKey == "" {
			return nil, fmt.Errorf("FIRECRAWL_API_KEY is required for the %s provider", config.ProviderFirecrawl)
		}
		return tools.NewFirecrawlClient(cfg.FirecrawlApiKey, cfg.FirecrawlBaseURL, cfg.SearchTimeout), nil
	case config.ProviderArxiv:
		var ocr tools.PDFScraper
		if cfg.MistralApiKey != "" {
			ocr = tools.NewMistralOCR(cfg.MistralApiKey)
		}
		return tools.NewArxivClient(ocr), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.SearchProvider)
	}
}

// EngineOptions maps the configuration onto the engine's tunables.
func EngineOptions(cfg *config.Config) research.Options {
	opts := research.DefaultOptions()
	opts.ConcurrencyLimit = cfg.ConcurrencyLimit
	opts.SearchTimeout = cfg.SearchTimeout
	opts.ExtractTimeout = cfg.ExtractTimeout
	return opts
}
