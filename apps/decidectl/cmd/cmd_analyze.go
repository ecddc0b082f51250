package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	appconfig "github.com/antinvestor/decider/apps/decider/config"
	"github.com/antinvestor/decider/apps/decider/service/analysis"
	"github.com/antinvestor/decider/apps/decider/service/repository"
	"github.com/antinvestor/decider/internal/directive"
	"github.com/antinvestor/decider/internal/embedding"
	"github.com/antinvestor/decider/internal/llm"
	"github.com/antinvestor/decider/internal/pipeline"
)

type analyzeOptions struct {
	goal     string
	followup string
	model    string
	baseURL  string
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Run an artifact through the full decision pipeline",
		Long: `Analyze reads an artifact from a file, or stdin when no file or "-" is
given, and prints the tool report, the four agent messages and the decision.

Directive markers in the artifact are honoured. --goal and --followup add
markers in front of the artifact.

Usage:
  decidectl analyze design.md
  decidectl analyze --goal API_CONTRACT -o yaml api.md
  cat notes.md | decidectl analyze --goal RISKS --followup PRIORITIZE`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.goal, "goal", "", "Analysis goal: RISKS, IMPLEMENTABLE, API_CONTRACT, TEST_PLAN or DECISION")
	f.StringVar(&opts.followup, "followup", "", "Follow-up code narrowing the goal")
	f.StringVar(&opts.model, "model", "", "Reasoning model (default: $LLM_MODEL or gpt-4o)")
	f.StringVar(&opts.baseURL, "base-url", "", "Reasoning API base URL (default: $LLM_API_BASE_URL)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts analyzeOptions) error {
	ctx := cmd.Context()

	content, err := readArtifact(cmd, args)
	if err != nil {
		return err
	}

	goal := directive.Goal(strings.ToUpper(opts.goal))
	if goal != directive.GoalNone && !goal.Valid() {
		return fmt.Errorf("unknown goal %q (use one of %v)", opts.goal, directive.Goals())
	}
	if goal != directive.GoalNone || opts.followup != "" {
		content = directive.Compose(goal, strings.ToUpper(opts.followup), content)
	}

	cfg, err := loadConfig(globalFlags.configPath)
	if err != nil {
		return err
	}
	setString(&cfg.LLMModel, opts.model)
	setString(&cfg.LLMAPIBaseURL, opts.baseURL)

	svc, err := buildService(cmd, cfg)
	if err != nil {
		return err
	}

	resp, err := svc.Analyze(ctx, content)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), globalFlags.output, resp)
}

// buildService wires the pipeline against an in-memory repository.
func buildService(cmd *cobra.Command, cfg *appconfig.DeciderConfig) (*analysis.Service, error) {
	client, err := llm.NewProviderClient(cfg.LLMClientConfig())
	if err != nil {
		return nil, fmt.Errorf("reasoning provider: %w", err)
	}

	engine, err := embedding.NewEngine(cmd.Context(), cfg.EmbeddingConfig())
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	composer, err := pipeline.NewComposer(cfg.SimilarityLimit)
	if err != nil {
		return nil, err
	}
	orchestrator := pipeline.NewOrchestrator(
		composer,
		pipeline.NewExecutor(pipeline.NewLLMReasoner(client, llm.Model(cfg.LLMModel))),
		pipeline.WithRetryPolicy(cfg.RetryPolicy()),
	)

	return analysis.NewService(repository.NewMemoryRepository(), engine, orchestrator,
		analysis.WithSimilarityLimit(cfg.SimilarityLimit)), nil
}

// readArtifact reads the file named by args[0], or stdin.
func readArtifact(cmd *cobra.Command, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}
	return string(data), nil
}
