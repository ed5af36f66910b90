package research

import (
	"fmt"
	"time"
)

func systemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are an expert researcher. Today is %s.
- Topics may postdate your training data; trust the user and the provided material on recent events.
- Your reader is an experienced analyst: be detailed, precise and well organized.
- Prefer strong arguments over authority and flag speculation explicitly.
- Consider emerging and contrarian ideas, not only the conventional view.`, now.Format("2006-01-02"))
}

const responseFormatPreamble = `Return the JSON object directly without any formatting or additional text. The JSON object must follow this schema and include all required properties:`

func CreateSerpQueriesSchema(n int) string {
	return fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "maxItems": %d,
      "items": {
        "type": "object",
        "properties": {
          "query": {"type": "string", "description": "The search engine query"},
          "researchGoal": {"type": "string", "description": "What this query should uncover and how research should continue once results are in"}
        },
        "required": ["query", "researchGoal"]
      }
    }
  },
  "required": ["queries"]
}`, n)
}

func CreateExtractionSchema(numLearnings, numFollowUps int) string {
	return fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "learnings": {"type": "array", "maxItems": %d, "items": {"type": "string"}},
    "followUpQuestions": {"type": "array", "maxItems": %d, "items": {"type": "string"}}
  },
  "required": ["learnings", "followUpQuestions"]
}`, numLearnings, numFollowUps)
}

const reportSchema = `{
  "type": "object",
  "properties": {
    "reportMarkdown": {"type": "string", "description": "Final report on the topic in Markdown"}
  },
  "required": ["reportMarkdown"]
}`

const factCheckSchema = `{
  "type": "object",
  "properties": {
    "unsupportedFacts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "claim": {"type": "string"},
          "issue": {"type": "string"},
          "severity": {"type": "string", "enum": ["HIGH", "MEDIUM", "LOW"]}
        },
        "required": ["claim", "issue", "severity"]
      }
    },
    "overallAssessment": {"type": "string"}
  },
  "required": ["unsupportedFacts", "overallAssessment"]
}`

func CreateFeedbackSchema(n int) string {
	return fmt.Sprintf(`{
  "type": "object",
  "properties": {
    "questions": {"type": "array", "maxItems": %d, "items": {"type": "string"}}
  },
  "required": ["questions"]
}`, n)
}

func serpQueriesPrompt(query string, learnings []string, n int) string {
	prompt := fmt.Sprintf(`Generate up to %d search engine queries to research the topic in the prompt below. Return fewer if the prompt is narrow. Every query must be unique and meaningfully different from the others.

<prompt>%s</prompt>`, n, query)
	if len(learnings) > 0 {
		prompt += fmt.Sprintf(`

Learnings from earlier research. Use them to make the new queries more specific:
%s`, joinTagged("learning", learnings))
	}
	return prompt
}

func extractionPrompt(query string, contents []string, numLearnings, numFollowUps int) string {
	return fmt.Sprintf(`The contents below were returned by a web search for <query>%s</query>.
Extract up to %d learnings. Each learning must be unique, concise and information dense, and should keep concrete entities, numbers and dates.
Also suggest up to %d follow-up questions that would deepen the research.

<contents>%s</contents>`, query, numLearnings, numFollowUps, joinTagged("content", contents))
}

func reportPrompt(prompt, learnings string) string {
	return fmt.Sprintf(`Write a final report on the topic in the prompt below using the learnings from research. Make it as detailed as possible and include ALL of the learnings.

<prompt>%s</prompt>

<learnings>
%s
</learnings>`, prompt, learnings)
}

func factCheckPrompt(report, sources string) string {
	return fmt.Sprintf(`Check the report below against the source material. List every factual claim in the report that the sources do not support or that contradicts them, with the issue and a severity of HIGH, MEDIUM or LOW. Then give a short overall assessment of the report's accuracy.

<report>
%s
</report>

<sources>
%s
</sources>`, report, sources)
}

func feedbackPrompt(query string, n int) string {
	return fmt.Sprintf(`Ask up to %d follow-up questions that clarify the research direction for the query below. Return fewer if the query is already clear.

<query>%s</query>`, n, query)
}
