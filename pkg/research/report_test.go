package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	body      string
	err       error
	learnings string
}

func (w *fakeWriter) WriteReport(ctx context.Context, prompt, learnings string) (string, error) {
	w.learnings = learnings
	return w.body, w.err
}

type fakeChecker struct {
	result  FactCheckResult
	err     error
	calls   int
	sources string
}

func (c *fakeChecker) CheckFacts(ctx context.Context, report, sources string) (FactCheckResult, error) {
	c.calls++
	c.sources = sources
	return c.result, c.err
}

func newTestAssembler(w ReportWriter, c FactChecker) *ReportAssembler {
	a := NewReportAssembler(w, c)
	a.Logger = quietLogger()
	return a
}

func TestAssemble_NoSourcesSkipsChecker(t *testing.T) {
	writer := &fakeWriter{body: "# Report\n\nBody text.\n"}
	checker := &fakeChecker{}
	a := newTestAssembler(writer, checker)

	out, err := a.Assemble(context.Background(), "prompt", []string{"L1"}, nil, []string{"https://a.example"})
	require.NoError(t, err)

	assert.Equal(t, 0, checker.calls)
	want := "# Report\n\nBody text." +
		"\n\n## Fact Check\n\n" + NoSourcesAssessment + "\n\n" + NoIssuesNotice + "\n" +
		"\n## Sources\n\n- https://a.example\n"
	assert.Equal(t, want, out)
}

func TestAssemble_FlaggedClaims(t *testing.T) {
	writer := &fakeWriter{body: "Body"}
	checker := &fakeChecker{result: FactCheckResult{
		OverallAssessment: "Mostly supported.",
		UnsupportedFacts: []FlaggedClaim{
			{Claim: "The sky is green", Issue: "contradicted by source 1", Severity: "high"},
			{Claim: "Water is dry", Issue: "no source", Severity: "unknown"},
		},
	}}
	a := newTestAssembler(writer, checker)

	out, err := a.Assemble(context.Background(), "prompt", []string{"L1", "L2"}, []string{"S1", "S2"}, []string{"u1", "u2"})
	require.NoError(t, err)

	assert.Equal(t, 1, checker.calls)
	assert.Equal(t, "<source>\nS1\n</source>\n<source>\nS2\n</source>", checker.sources)
	assert.Equal(t, "<learning>\nL1\n</learning>\n<learning>\nL2\n</learning>", writer.learnings)

	assert.Contains(t, out, "- **[HIGH]** The sky is green — contradicted by source 1\n")
	assert.Contains(t, out, "- **[MEDIUM]** Water is dry — no source\n")
	assert.NotContains(t, out, NoIssuesNotice)

	body := strings.Index(out, "Body")
	check := strings.Index(out, "## Fact Check")
	sources := strings.Index(out, "## Sources")
	assert.True(t, body < check && check < sources, "sections out of order")
	assert.True(t, strings.HasSuffix(out, "- u1\n- u2\n"))
}

func TestAssemble_CheckerFailureDegrades(t *testing.T) {
	a := newTestAssembler(&fakeWriter{body: "Body"}, &fakeChecker{err: errors.New("timeout")})

	out, err := a.Assemble(context.Background(), "prompt", nil, []string{"S1"}, nil)
	require.NoError(t, err)
	assert.Contains(t, out, FailedCheckAssessment)
	assert.Contains(t, out, NoIssuesNotice)
	assert.True(t, strings.HasSuffix(out, "## Sources\n\n"))
}

func TestAssemble_WriterFailure(t *testing.T) {
	boom := errors.New("model unavailable")
	checker := &fakeChecker{}
	a := newTestAssembler(&fakeWriter{err: boom}, checker)

	_, err := a.Assemble(context.Background(), "prompt", []string{"L1"}, []string{"S1"}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, checker.calls)
}

func TestAssemble_InputBudgets(t *testing.T) {
	writer := &fakeWriter{body: "Body"}
	checker := &fakeChecker{result: FactCheckResult{OverallAssessment: "ok"}}
	a := newTestAssembler(writer, checker)

	big := strings.Repeat("é", SourcesBudget)
	_, err := a.Assemble(context.Background(), "prompt", []string{strings.Repeat("x", LearningsBudget)}, []string{big}, nil)
	require.NoError(t, err)

	assert.Equal(t, LearningsBudget, len([]rune(writer.learnings)))
	assert.Equal(t, SourcesBudget, len([]rune(checker.sources)))
	assert.True(t, strings.HasPrefix(checker.sources, "<source>\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", truncate("héllo", 10))
	assert.Equal(t, "hé", truncate("héllo", 2))
	assert.Equal(t, "", truncate("héllo", 0))
}
