package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"postulamatch/internal/ai"
	"postulamatch/internal/common"

	"github.com/spf13/cobra"
)

// reportDef describes which documents a report reads and how it is generated
type reportDef struct {
	needsResume bool
	needsJob    bool
	run         func(ctx context.Context, gen ai.Generator, in common.Inputs) (any, error)
}

var reports = map[string]reportDef{
	"market": {needsResume: true, needsJob: true, run: func(ctx context.Context, gen ai.Generator, in common.Inputs) (any, error) {
		// market trends are derived from the profile of a primary analysis
		analysis, err := gen.Analyze(ctx, in.Resume, in.Job)
		if err != nil {
			return nil, err
		}
		return gen.MarketTrends(ctx, analysis.UserProfile)
	}},
	"salary": {needsResume: true, needsJob: true, run: func(ctx context.Context, gen ai.Generator, in common.Inputs) (any, error) {
		return gen.SalaryNegotiation(ctx, in.Resume, in.Job)
	}},
	"interview": {needsResume: true, needsJob: true, run: func(ctx context.Context, gen ai.Generator, in common.Inputs) (any, error) {
		return gen.InterviewSimulation(ctx, in.Resume, in.Job)
	}},
	"senior": {needsResume: true, run: func(ctx context.Context, gen ai.Generator, in common.Inputs) (any, error) {
		return gen.SeniorFeedback(ctx, in.Resume)
	}},
	"decoder": {needsJob: true, run: func(ctx context.Context, gen ai.Generator, in common.Inputs) (any, error) {
		return gen.JobTranslation(ctx, in.Job)
	}},
	"red-flags": {needsJob: true, run: func(ctx context.Context, gen ai.Generator, in common.Inputs) (any, error) {
		return gen.RedFlags(ctx, in.Job)
	}},
}

func reportNames() []string {
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var reportCmd = &cobra.Command{
	Use:   "report <market|salary|interview|senior|decoder|red-flags>",
	Short: "Generate one secondary report",
	Long: `Generate a single secondary report.

  market     market trends for the candidate profile (resume and job)
  salary     salary negotiation coaching (resume and job)
  interview  mock interview with tough questions (resume and job)
  senior     blunt senior mentoring (resume only)
  decoder    job posting translated into plain language (job only)
  red-flags  warning signs in the job posting (job only)`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: reportNames(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		rs := reports[args[0]]
		var missing []string
		if rs.needsResume && reportFlags.ResumeFile == "" {
			missing = append(missing, "--resume")
		}
		if rs.needsJob && reportFlags.JobFile == "" {
			missing = append(missing, "--job")
		}
		if len(missing) > 0 {
			return fmt.Errorf("report %s requires %s", args[0], strings.Join(missing, " and "))
		}
		return reportFlags.resolveFormat(getConfigFromContext(cmd.Context()))
	},
	RunE: runReport,
}

var reportFlags documentFlags

func init() {
	reportFlags.register(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())
	name := args[0]
	rs := reports[name]

	provider, err := newProvider(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	resumePath, jobPath := reportFlags.ResumeFile, reportFlags.JobFile
	if !rs.needsResume {
		resumePath = ""
	}
	if !rs.needsJob {
		jobPath = ""
	}

	err = common.RunCommand(cmd.Context(), logger,
		common.NewFileProcessor(logger, common.MaxFileSize(cfg)),
		reportFlags.CommandConfig,
		resumePath, jobPath,
		name+" report",
		func(ctx context.Context, in common.Inputs) (any, error) {
			return rs.run(ctx, provider, in)
		},
		common.NewOutputHandler(logger))
	if err != nil {
		return fmt.Errorf("failed to generate %s report: %w", name, err)
	}
	return nil
}
