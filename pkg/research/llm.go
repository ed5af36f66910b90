package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// LLMCollaborators backs every language-model collaborator of the engine and
// the report assembler with langchaingo models. Fast serves the per-branch
// calls; Reasoning writes and checks the report.
type LLMCollaborators struct {
	Fast       llms.Model
	Reasoning  llms.Model
	Logger     *slog.Logger
	MaxRetries int
	Backoff    time.Duration
	Now        func() time.Time
}

func NewLLMCollaborators(fast, reasoning llms.Model) *LLMCollaborators {
	if reasoning == nil {
		reasoning = fast
	}
	return &LLMCollaborators{
		Fast:       fast,
		Reasoning:  reasoning,
		Logger:     slog.Default(),
		MaxRetries: 3,
		Backoff:    time.Second,
		Now:        time.Now,
	}
}

var errNoChoices = errors.New("llm returned no choices")

// generateWithRetry attempts to generate content and validates it using the provided function.
// It retries up to MaxRetries times if the LLM fails or the validator returns an error.
func (c *LLMCollaborators) generateWithRetry(ctx context.Context, model llms.Model, prompt string, validator func(string) error) error {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt(now())),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("retry aborted: %w (last error: %v)", err, lastErr)
			}
			c.Logger.Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(c.Backoff * time.Duration(i)): // Linear backoff
			}
		}

		resp, err := model.GenerateContent(ctx, messages, llms.WithJSONMode())
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			if ctx.Err() != nil {
				return lastErr
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errNoChoices
			continue
		}

		if err := validator(stripCodeFence(resp.Choices[0].Content)); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}
		return nil
	}

	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr)
}

func (c *LLMCollaborators) GenerateQueries(ctx context.Context, query string, learnings []string, maxCount int) ([]SerpQuery, error) {
	if maxCount <= 0 {
		return nil, nil
	}

	var resp struct {
		Queries []SerpQuery `json:"queries"`
	}
	prompt := serpQueriesPrompt(query, learnings, maxCount) + "\n\n# Response Format:\n" + responseFormatPreamble + CreateSerpQueriesSchema(maxCount)
	err := c.generateWithRetry(ctx, c.Fast, prompt, func(content string) error {
		resp.Queries = nil
		if err := json.Unmarshal([]byte(content), &resp); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	queries := make([]SerpQuery, 0, len(resp.Queries))
	for _, q := range resp.Queries {
		q.Query = strings.TrimSpace(q.Query)
		if q.Query == "" || seen[q.Query] {
			continue
		}
		seen[q.Query] = true
		queries = append(queries, q)
		if len(queries) == maxCount {
			break
		}
	}

	c.Logger.Info("Created queries", "count", len(queries))
	return queries, nil
}

func (c *LLMCollaborators) ExtractLearnings(ctx context.Context, query string, contents []string, numLearnings, numFollowUps int) (Extraction, error) {
	var out Extraction
	prompt := extractionPrompt(query, contents, numLearnings, numFollowUps) + "\n\n# Response Format:\n" + responseFormatPreamble + CreateExtractionSchema(numLearnings, numFollowUps)
	err := c.generateWithRetry(ctx, c.Fast, prompt, func(content string) error {
		out = Extraction{}
		if err := json.Unmarshal([]byte(content), &out); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		if out.Learnings == nil {
			return errors.New("missing learnings")
		}
		return nil
	})
	if err != nil {
		return Extraction{}, err
	}

	out.Learnings = capped(out.Learnings, numLearnings)
	out.FollowUpQuestions = capped(out.FollowUpQuestions, numFollowUps)
	c.Logger.Info("Created learnings", "query", query, "learnings", len(out.Learnings))
	return out, nil
}

func (c *LLMCollaborators) WriteReport(ctx context.Context, prompt, learnings string) (string, error) {
	var resp struct {
		ReportMarkdown string `json:"reportMarkdown"`
	}
	err := c.generateWithRetry(ctx, c.Reasoning, reportPrompt(prompt, learnings)+"\n\n# Response Format:\n"+responseFormatPreamble+reportSchema, func(content string) error {
		resp.ReportMarkdown = ""
		if err := json.Unmarshal([]byte(content), &resp); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		if strings.TrimSpace(resp.ReportMarkdown) == "" {
			return errors.New("empty report")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return resp.ReportMarkdown, nil
}

func (c *LLMCollaborators) CheckFacts(ctx context.Context, report, sources string) (FactCheckResult, error) {
	var out FactCheckResult
	err := c.generateWithRetry(ctx, c.Reasoning, factCheckPrompt(report, sources)+"\n\n# Response Format:\n"+responseFormatPreamble+factCheckSchema, func(content string) error {
		out = FactCheckResult{}
		if err := json.Unmarshal([]byte(content), &out); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		if strings.TrimSpace(out.OverallAssessment) == "" {
			return errors.New("missing overall assessment")
		}
		return nil
	})
	if err != nil {
		return FactCheckResult{}, err
	}
	if out.UnsupportedFacts == nil {
		out.UnsupportedFacts = []FlaggedClaim{}
	}
	return out, nil
}

func (c *LLMCollaborators) GenerateFeedback(ctx context.Context, query string, numQuestions int) ([]string, error) {
	if numQuestions <= 0 {
		return nil, nil
	}
	var resp struct {
		Questions []string `json:"questions"`
	}
	err := c.generateWithRetry(ctx, c.Fast, feedbackPrompt(query, numQuestions)+"\n\n# Response Format:\n"+responseFormatPreamble+CreateFeedbackSchema(numQuestions), func(content string) error {
		resp.Questions = nil
		if err := json.Unmarshal([]byte(content), &resp); err != nil {
			return fmt.Errorf("json parse error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return capped(resp.Questions, numQuestions), nil
}

// stripCodeFence removes a surrounding ```json fence some models add despite JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var (
	_ QueryGenerator    = (*LLMCollaborators)(nil)
	_ Extractor         = (*LLMCollaborators)(nil)
	_ ReportWriter      = (*LLMCollaborators)(nil)
	_ FactChecker       = (*LLMCollaborators)(nil)
	_ FeedbackGenerator = (*LLMCollaborators)(nil)
)
