package research

import "context"

// QueryGenerator turns a topic into at most maxCount distinct sub-queries.
// Returning fewer than requested is not an error.
type QueryGenerator interface {
	GenerateQueries(ctx context.Context, query string, learnings []string, maxCount int) ([]SerpQuery, error)
}

// SearchProvider fetches up to limit documents for a query as markdown.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]SearchDocument, error)
}

// Extractor distills fetched contents into learnings and follow-up questions.
type Extractor interface {
	ExtractLearnings(ctx context.Context, query string, contents []string, numLearnings, numFollowUps int) (Extraction, error)
}

// ReportWriter writes the markdown report body.
type ReportWriter interface {
	WriteReport(ctx context.Context, prompt, learnings string) (string, error)
}

// FactChecker verifies a report against the gathered source texts.
type FactChecker interface {
	CheckFacts(ctx context.Context, report, sources string) (FactCheckResult, error)
}

// FeedbackGenerator asks clarifying questions before research starts.
type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, query string, numQuestions int) ([]string, error)
}

// ProgressSink receives a full snapshot after every progress update.
type ProgressSink func(ProgressState)
