package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	LearningsBudget = 150_000
	SourcesBudget   = 200_000

	NoSourcesAssessment   = "Unable to fact check: no source contents were collected during research."
	FailedCheckAssessment = "Fact checking could not be completed."
	NoIssuesNotice        = "No factual issues found."
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// FlaggedClaim is one statement the fact checker could not back with sources.
type FlaggedClaim struct {
	Claim    string   `json:"claim"`
	Issue    string   `json:"issue"`
	Severity Severity `json:"severity"`
}

type FactCheckResult struct {
	UnsupportedFacts  []FlaggedClaim `json:"unsupportedFacts"`
	OverallAssessment string         `json:"overallAssessment"`
}

// ReportAssembler turns the aggregated research into the final document:
// report body, fact check section, sources section, in that order.
type ReportAssembler struct {
	Writer  ReportWriter
	Checker FactChecker
	Logger  *slog.Logger
}

func NewReportAssembler(writer ReportWriter, checker FactChecker) *ReportAssembler {
	return &ReportAssembler{
		Writer:  writer,
		Checker: checker,
		Logger:  slog.Default(),
	}
}

func (a *ReportAssembler) Assemble(ctx context.Context, prompt string, learnings, sourceContents, visitedURLs []string) (string, error) {
	a.Logger.Info("Compiling final report", "learnings", len(learnings), "sources", len(sourceContents))

	body, err := a.Writer.WriteReport(ctx, prompt, truncate(joinTagged("learning", learnings), LearningsBudget))
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	check := a.factCheck(ctx, body, sourceContents)

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(body, "\n"))
	sb.WriteString(renderFactCheck(check))
	sb.WriteString(renderSources(visitedURLs))

	a.Logger.Info("Final report generated", "length", sb.Len(), "flagged_claims", len(check.UnsupportedFacts))
	return sb.String(), nil
}

func (a *ReportAssembler) factCheck(ctx context.Context, body string, sourceContents []string) FactCheckResult {
	if len(sourceContents) == 0 {
		return FactCheckResult{UnsupportedFacts: []FlaggedClaim{}, OverallAssessment: NoSourcesAssessment}
	}

	result, err := a.Checker.CheckFacts(ctx, body, truncate(joinTagged("source", sourceContents), SourcesBudget))
	if err != nil {
		a.Logger.Warn("Fact check failed", "error", err)
		return FactCheckResult{UnsupportedFacts: []FlaggedClaim{}, OverallAssessment: FailedCheckAssessment}
	}
	return result
}

func renderFactCheck(check FactCheckResult) string {
	var sb strings.Builder
	sb.WriteString("\n\n## Fact Check\n\n")
	sb.WriteString(check.OverallAssessment)
	sb.WriteString("\n\n")

	if len(check.UnsupportedFacts) == 0 {
		sb.WriteString(NoIssuesNotice)
		sb.WriteString("\n")
		return sb.String()
	}

	for _, f := range check.UnsupportedFacts {
		sb.WriteString(fmt.Sprintf("- **[%s]** %s — %s\n", normalizeSeverity(f.Severity), f.Claim, f.Issue))
	}
	return sb.String()
}

func renderSources(urls []string) string {
	var sb strings.Builder
	sb.WriteString("\n## Sources\n\n")
	for _, u := range urls {
		sb.WriteString("- " + u + "\n")
	}
	return sb.String()
}

func normalizeSeverity(s Severity) Severity {
	switch Severity(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityMedium
	}
}
