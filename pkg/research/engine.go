package research

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ResearchEngine expands a query into a tree of sub-queries and researches
// every branch concurrently. All calls on one engine share its gate, so the
// concurrency limit holds for the whole process run.
type ResearchEngine struct {
	Options Options
	Queries QueryGenerator
	Search  SearchProvider
	Extract Extractor
	Gate    *ConcurrencyGate
	Logger  *slog.Logger
}

func NewEngine(opts Options, queries QueryGenerator, search SearchProvider, extract Extractor) *ResearchEngine {
	opts = opts.withDefaults()
	return &ResearchEngine{
		Options: opts,
		Queries: queries,
		Search:  search,
		Extract: extract,
		Gate:    NewConcurrencyGate(opts.ConcurrencyLimit),
		Logger:  slog.Default(),
	}
}

// DeepResearch runs one top-level research call. A request with Depth d
// searches d levels deep; Depth 0 still searches once. Branch failures never
// surface here: a branch that times out or errors just contributes nothing.
func (e *ResearchEngine) DeepResearch(ctx context.Context, req Request) (ResearchResult, error) {
	if req.Breadth < 0 || req.Depth < 0 {
		return ResearchResult{}, fmt.Errorf("%w: breadth=%d depth=%d", ErrInvalidBudget, req.Breadth, req.Depth)
	}

	e.Logger.Info("Starting research", "query", req.Query, "breadth", req.Breadth, "depth", req.Depth, "concurrency", e.Gate.Capacity())

	acc := NewAccumulator(req.Seed)
	tracker := NewProgressTracker(req.Breadth, req.Depth, req.OnProgress)

	result, err := e.research(ctx, researchNode{
		query:   req.Query,
		breadth: req.Breadth,
		depth:   req.Depth,
	}, acc, tracker)
	if err != nil {
		return ResearchResult{}, err
	}

	e.Logger.Info("Research complete",
		"learnings", len(result.Learnings),
		"urls", len(result.VisitedURLs),
		"completed_queries", tracker.Snapshot().CompletedQueries)
	return result, nil
}

// research expands one node and blocks until its whole subtree has finished.
func (e *ResearchEngine) research(ctx context.Context, node researchNode, acc *Accumulator, tracker *ProgressTracker) (ResearchResult, error) {
	queries, err := e.Queries.GenerateQueries(ctx, node.query, acc.Learnings(), node.breadth)
	if err != nil {
		return ResearchResult{}, fmt.Errorf("generate queries: %w", err)
	}
	if len(queries) > node.breadth {
		queries = queries[:node.breadth]
	}
	e.Logger.Info("Generated queries", "count", len(queries), "depth", node.depth)

	first := ""
	if len(queries) > 0 {
		first = queries[0].Query
	}
	tracker.Update(ProgressUpdate{
		TotalQueries: ptr(len(queries)),
		CurrentQuery: ptr(first),
	})

	outcomes := make([]branchOutcome, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = e.branch(ctx, node, q, acc, tracker)
		}()
	}
	wg.Wait()

	results := make([]ResearchResult, 0, len(outcomes))
	for _, o := range outcomes {
		switch o.failure() {
		case FailureNone:
			results = append(results, o.result)
		case FailureTimeout:
			e.Logger.Warn("Branch timed out", "query", o.err.Query, "stage", o.err.Stage, "error", o.err.Err)
		case FailureProvider:
			e.Logger.Error("Branch failed", "query", o.err.Query, "stage", o.err.Stage, "error", o.err.Err)
		}
	}

	return Merge(results...), nil
}

// branch researches one generated query and, budget permitting, recurses
// into its follow-up directions.
func (e *ResearchEngine) branch(ctx context.Context, node researchNode, q SerpQuery, acc *Accumulator, tracker *ProgressTracker) branchOutcome {
	release, err := e.Gate.Acquire(ctx)
	if err != nil {
		return branchOutcome{err: newBranchError("acquire", q.Query, err)}
	}
	defer release()

	extraction, berr := e.gather(ctx, q, acc)
	if berr != nil {
		return branchOutcome{err: berr}
	}
	// The permit covers outbound work only; children acquire their own.
	release()

	childBreadth := halfUp(node.breadth)
	childDepth := node.depth - 1

	if childDepth > 0 {
		e.Logger.Info("Researching deeper", "query", q.Query, "breadth", childBreadth, "depth", childDepth)
		tracker.Update(ProgressUpdate{
			CurrentDepth:   ptr(childDepth),
			CurrentBreadth: ptr(childBreadth),
			CurrentQuery:   ptr(q.Query),
			CompletedDelta: 1,
		})

		child := researchNode{
			query:        followUpQuery(q.ResearchGoal, extraction.FollowUpQuestions),
			researchGoal: q.ResearchGoal,
			breadth:      childBreadth,
			depth:        childDepth,
		}
		result, err := e.research(ctx, child, acc, tracker)
		if err != nil {
			return branchOutcome{err: newBranchError("expand", q.Query, err)}
		}
		return branchOutcome{result: result}
	}

	tracker.Update(ProgressUpdate{
		CurrentDepth:   ptr(0),
		CurrentQuery:   ptr(q.Query),
		CompletedDelta: 1,
	})
	return branchOutcome{result: acc.Snapshot()}
}

// gather searches, extracts and appends the branch's findings to acc.
func (e *ResearchEngine) gather(ctx context.Context, q SerpQuery, acc *Accumulator) (Extraction, *BranchError) {
	searchCtx, cancel := context.WithTimeout(ctx, e.Options.SearchTimeout)
	docs, err := e.Search.Search(searchCtx, q.Query, e.Options.SearchLimit)
	cancel()
	if err != nil {
		return Extraction{}, newBranchError("search", q.Query, err)
	}

	var urls, contents []string
	for _, doc := range docs {
		if doc.URL != "" {
			urls = append(urls, doc.URL)
		}
		if doc.Markdown != "" {
			contents = append(contents, truncate(doc.Markdown, e.Options.ContentBudget))
		}
	}
	e.Logger.Info("Search complete", "query", q.Query, "documents", len(docs))

	extractCtx, cancel := context.WithTimeout(ctx, e.Options.ExtractTimeout)
	extraction, err := e.Extract.ExtractLearnings(extractCtx, q.Query, contents, e.Options.NumLearnings, e.Options.NumFollowUps)
	cancel()
	if err != nil {
		return Extraction{}, newBranchError("extract", q.Query, err)
	}
	extraction.Learnings = capped(extraction.Learnings, e.Options.NumLearnings)
	extraction.FollowUpQuestions = capped(extraction.FollowUpQuestions, e.Options.NumFollowUps)

	acc.Append(ResearchResult{
		Learnings:      extraction.Learnings,
		VisitedURLs:    urls,
		SourceContents: contents,
	})
	return extraction, nil
}

func capped(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
