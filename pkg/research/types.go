package research

import (
	"time"

	"github.com/mikeboe/deep-research/pkg/research/tools"
)

// Options holds the tunables of one Engine. Zero values fall back to DefaultOptions.
type Options struct {
	ConcurrencyLimit int
	SearchTimeout    time.Duration
	SearchLimit      int
	ExtractTimeout   time.Duration
	ContentBudget    int
	NumLearnings     int
	NumFollowUps     int
}

func DefaultOptions() Options {
	return Options{
		ConcurrencyLimit: 2,
		SearchTimeout:    15 * time.Second,
		SearchLimit:      5,
		ExtractTimeout:   60 * time.Second,
		ContentBudget:    25_000,
		NumLearnings:     3,
		NumFollowUps:     3,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ConcurrencyLimit <= 0 {
		o.ConcurrencyLimit = def.ConcurrencyLimit
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = def.SearchTimeout
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = def.SearchLimit
	}
	if o.ExtractTimeout <= 0 {
		o.ExtractTimeout = def.ExtractTimeout
	}
	if o.ContentBudget <= 0 {
		o.ContentBudget = def.ContentBudget
	}
	if o.NumLearnings <= 0 {
		o.NumLearnings = def.NumLearnings
	}
	if o.NumFollowUps <= 0 {
		o.NumFollowUps = def.NumFollowUps
	}
	return o
}

// SerpQuery is one generated sub-query together with the goal it serves.
type SerpQuery struct {
	Query        string `json:"query"`
	ResearchGoal string `json:"researchGoal"`
}

// Extraction is what the extractor derives from one batch of fetched contents.
type Extraction struct {
	Learnings         []string `json:"learnings"`
	FollowUpQuestions []string `json:"followUpQuestions"`
}

// ResearchResult is the deduplicated outcome of a research call. Slices keep
// first-seen order but carry set semantics: every entry is unique.
type ResearchResult struct {
	Learnings      []string `json:"learnings"`
	VisitedURLs    []string `json:"visitedUrls"`
	SourceContents []string `json:"sourceContents"`
}

// Request describes one top-level research run.
type Request struct {
	Query   string
	Breadth int
	Depth   int

	// Seed pre-populates the accumulators, e.g. with learnings from an earlier run.
	Seed ResearchResult

	OnProgress ProgressSink
}

// researchNode is the per-call stack state of the recursion.
type researchNode struct {
	query        string
	researchGoal string
	breadth      int
	depth        int
}

// SearchDocument is re-exported so collaborators can be implemented without
// importing the tools package.
type SearchDocument = tools.SearchDocument
