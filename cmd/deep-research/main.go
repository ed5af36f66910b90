package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/spf13/cobra"
)

var (
	query       string
	breadth     int
	depth       int
	concurrency int
	outputPath  string
	noFeedback  bool
)

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(handler))

	// It's okay if .env doesn't exist, as long as env vars are set
	_ = godotenv.Load()
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based deep research agent",
		Long: `deep-research expands a question into search queries, researches every branch concurrently,
follows up on what it learns for the requested depth and writes a fact-checked markdown report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, cmd, cfg)
		},
	}

	rootCmd.Flags().StringVarP(&query, "query", "q", "", "The research question")
	rootCmd.Flags().IntVarP(&breadth, "breadth", "b", cfg.Breadth, "Queries generated per level")
	rootCmd.Flags().IntVarP(&depth, "depth", "d", cfg.Depth, "Recursion levels")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", cfg.ConcurrencyLimit, "Maximum branches doing outbound work at once")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "report.md", "Where to write the report")
	rootCmd.Flags().BoolVar(&noFeedback, "no-feedback", false, "Skip the clarifying questions in interactive mode")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	models, err := clients.NewModels(ctx, cfg.GoogleApiKey, cfg.FastModel, cfg.ReasoningModel)
	if err != nil {
		return err
	}
	llm := research.NewLLMCollaborators(models.Fast, models.Reasoning)

	search, err := clients.NewSearchProvider(cfg)
	if err != nil {
		return err
	}

	prompt := strings.TrimSpace(query)
	if !cmd.Flags().Changed("query") {
		// Interactive Mode
		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		prompt, err = ask(in, out, "What would you like to research? ")
		if err != nil {
			return err
		}
		if prompt == "" {
			return fmt.Errorf("query cannot be empty")
		}
		if breadth, err = askInt(in, out, "Enter research breadth", breadth); err != nil {
			return err
		}
		if depth, err = askInt(in, out, "Enter research depth", depth); err != nil {
			return err
		}

		if !noFeedback {
			questions, err := llm.GenerateFeedback(ctx, prompt, 3)
			if err != nil {
				slog.Warn("Could not generate follow-up questions", "error", err)
			}
			if len(questions) > 0 {
				fmt.Fprintln(out, "\nTo better understand your research needs, please answer these follow-up questions:")
				answers := make([]string, len(questions))
				for i, q := range questions {
					if answers[i], err = ask(in, out, "\n"+q+"\nYour answer: "); err != nil {
						return err
					}
				}
				prompt = combineQuery(prompt, questions, answers)
			}
		}
	} else if prompt == "" {
		return fmt.Errorf("--query flag provided but empty")
	}

	opts := clients.EngineOptions(cfg)
	opts.ConcurrencyLimit = concurrency
	engine := research.NewEngine(opts, llm, search, llm)

	slog.Info("Starting research", "breadth", breadth, "depth", depth, "concurrency", concurrency)
	result, err := engine.DeepResearch(ctx, research.Request{
		Query:   prompt,
		Breadth: breadth,
		Depth:   depth,
		OnProgress: func(p research.ProgressState) {
			slog.Debug("Progress",
				"depth", fmt.Sprintf("%d/%d", p.CurrentDepth, p.TotalDepth),
				"breadth", fmt.Sprintf("%d/%d", p.CurrentBreadth, p.TotalBreadth),
				"completed", p.CompletedQueries,
				"query", p.CurrentQuery)
		},
	})
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	slog.Info("Research finished", "learnings", len(result.Learnings), "urls", len(result.VisitedURLs))

	report, err := research.NewReportAssembler(llm, llm).Assemble(ctx, prompt, result.Learnings, result.SourceContents, result.VisitedURLs)
	if err != nil {
		return fmt.Errorf("report failed: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(report), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	slog.Info("Report written", "path", outputPath)
	return nil
}

func ask(in *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// askInt keeps def on an empty or non-numeric answer.
func askInt(in *bufio.Reader, out io.Writer, label string, def int) (int, error) {
	answer, err := ask(in, out, fmt.Sprintf("%s (default %d): ", label, def))
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(answer)
	if answer == "" || convErr != nil || n < 0 {
		return def, nil
	}
	return n, nil
}

func combineQuery(initial string, questions, answers []string) string {
	var sb strings.Builder
	sb.WriteString("Initial Query: ")
	sb.WriteString(initial)
	sb.WriteString("\nFollow-up Questions and Answers:")
	for i, q := range questions {
		sb.WriteString("\nQ: ")
		sb.WriteString(q)
		sb.WriteString("\nA: ")
		if i < len(answers) {
			sb.WriteString(answers[i])
		}
	}
	return sb.String()
}
