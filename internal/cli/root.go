package cli

import (
	"context"
	"fmt"

	"postulamatch/internal/ai"
	"postulamatch/internal/common"
	"postulamatch/internal/config"
	"postulamatch/internal/errors"

	"github.com/spf13/cobra"
)

type configKeyType struct{}
type loggerKeyType struct{}

var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

var rootCmd = &cobra.Command{
	Use:   "postulamatch",
	Short: "AI career coach that matches a resume against a job posting",
	Long: `PostulaMatch compares a resume with a job posting and produces a fit
verdict, a weekly study path with quizzes, and secondary reports: market
trends, salary negotiation, a mock interview, senior mentoring, a decoded job
posting and its red flags.

Run "postulamatch serve" for the session API or use the one-shot commands.`,
	SilenceUsage: true,
}

// Execute runs the root command with the config and logger attached to ctx
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context")
}

func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context")
}

// documentFlags are the input and output flags shared by the one-shot commands
type documentFlags struct {
	ResumeFile string
	JobFile    string
	common.CommandConfig
}

func (f *documentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ResumeFile, "resume", "", "Resume file (PDF, DOCX or TXT)")
	cmd.Flags().StringVar(&f.JobFile, "job", "", "Job posting file (PDF, DOCX or TXT)")
	cmd.Flags().StringVarP(&f.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&f.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return common.NewOutputHandler(nil).GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
	})
}

// resolveFormat applies the default format and validates it
func (f *documentFlags) resolveFormat(cfg *config.Config) error {
	if f.OutputFormat == "" {
		f.OutputFormat = cfg.App.DefaultFormat
	}
	return common.ValidateOutputFormat(f.OutputFormat, cfg.App.SupportedFormats)
}

func newProvider(ctx context.Context, cfg *config.Config, logger *errors.Logger) (ai.Provider, error) {
	provider, err := ai.NewProvider(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}
	return provider, nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
}
