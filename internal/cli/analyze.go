package cli

import (
	"context"
	"fmt"
	"sync"

	"postulamatch/internal/ai"
	"postulamatch/internal/common"
	"postulamatch/internal/formatters"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a resume against a job posting",
	Long: `Analyze a resume against a job posting and print the fit report:
verdict, comparison matrix, weekly study path with assessments and the final
evaluation.

With --all-reports the five secondary reports (market, salary, interview,
senior, decoder) are generated concurrently after the analysis. A failed
report does not fail the command; its error is listed in the output.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return analyzeFlags.resolveFormat(getConfigFromContext(cmd.Context()))
	},
	RunE: runAnalyze,
}

var (
	analyzeFlags documentFlags
	allReports   bool
)

func init() {
	analyzeFlags.register(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&allReports, "all-reports", false, "Also generate the five secondary reports")
	_ = analyzeCmd.MarkFlagRequired("resume")
	_ = analyzeCmd.MarkFlagRequired("job")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	provider, err := newProvider(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	op := func(ctx context.Context, in common.Inputs) (any, error) {
		result, err := provider.Analyze(ctx, in.Resume, in.Job)
		if err != nil {
			return nil, err
		}
		if !allReports {
			return result, nil
		}
		bundle := &formatters.Bundle{Analysis: result}
		collectReports(ctx, provider, in, bundle)
		return bundle, nil
	}

	err = common.RunCommand(cmd.Context(), logger,
		common.NewFileProcessor(logger, common.MaxFileSize(cfg)),
		analyzeFlags.CommandConfig,
		analyzeFlags.ResumeFile, analyzeFlags.JobFile,
		"analysis", op,
		common.NewOutputHandler(logger))
	if err != nil {
		return fmt.Errorf("failed to analyze: %w", err)
	}
	return nil
}

// collectReports runs the five secondary reports concurrently. Failures are
// recorded in the bundle instead of aborting the others.
func collectReports(ctx context.Context, gen ai.Generator, in common.Inputs, bundle *formatters.Bundle) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	record := func(name string, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if bundle.Errors == nil {
			bundle.Errors = make(map[string]string)
		}
		bundle.Errors[name] = err.Error()
	}

	g.Go(func() error {
		v, err := gen.MarketTrends(ctx, bundle.Analysis.UserProfile)
		record("market", err)
		bundle.Market = v
		return nil
	})
	g.Go(func() error {
		v, err := gen.SalaryNegotiation(ctx, in.Resume, in.Job)
		record("salary", err)
		bundle.Salary = v
		return nil
	})
	g.Go(func() error {
		v, err := gen.InterviewSimulation(ctx, in.Resume, in.Job)
		record("interview", err)
		bundle.Interview = v
		return nil
	})
	g.Go(func() error {
		v, err := gen.SeniorFeedback(ctx, in.Resume)
		record("senior", err)
		bundle.Senior = v
		return nil
	})
	g.Go(func() error {
		v, err := gen.JobTranslation(ctx, in.Job)
		record("decoder", err)
		bundle.Decoder = v
		return nil
	})
	_ = g.Wait()
}
