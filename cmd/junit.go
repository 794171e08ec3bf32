package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/cisift/internal/config"
	"github.com/bimmerbailey/cisift/internal/junit"
	"github.com/bimmerbailey/cisift/internal/scan"
)

var junitCmd = &cobra.Command{
	Use:   "junit [flags] <file|dir|glob>...",
	Short: "Summarize JUnit XML test reports",
	Long: `Parse JUnit XML reports, classify each failing test as an assertion
or an exception, and group failures within a suite that share one error
signature into a blast radius. Files that are not JUnit XML are listed
as skipped instead of failing the run.

Directories are searched recursively for .xml files.

Examples:
  cisift junit target/surefire-reports
  cisift junit "build/test-results/**/TEST-*.xml"
  cisift junit --blast-threshold 0.5 --blast-min 2 reports/
  cisift junit --format json --redact reports/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runJUnit,
}

func init() {
	addJUnitFlags(junitCmd)
	rootCmd.AddCommand(junitCmd)
}

func addJUnitFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("blast-threshold", junit.DefaultBlastThreshold, "share of a suite's failures a blast group must hold")
	cmd.Flags().Int("blast-min", junit.DefaultBlastMinSize, "smallest failure group reported as a blast radius")
	cmd.Flags().Bool("redact", false, "replace secrets in the output with placeholders")
	cmd.Flags().Int("workers", scan.DefaultWorkers, "files processed concurrently")
	cmd.Flags().Int64("max-bytes", scan.DefaultMaxBytes, "skip reports larger than this many bytes")
}

func runJUnit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyJUnitFlags(cmd, cfg); err != nil {
		return err
	}
	logger := cfg.Logger(cmd.ErrOrStderr())

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	redactor, err := newRedactor(cfg)
	if err != nil {
		return err
	}

	paths, err := config.ExpandGlobs(args, ".xml")
	if err != nil {
		return err
	}
	logger.Debug("analyzing reports", "files", len(paths))

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := scan.Reports(ctx, analyzer, paths, cfg.ScanOptions(logger))
	if err != nil {
		return err
	}
	redactor.Analysis(res)
	return newWriter(cmd, cfg).WriteAnalysis(res)
}

// applyJUnitFlags copies explicitly set flags over the loaded config.
func applyJUnitFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("blast-threshold") {
		cfg.JUnit.BlastThreshold, _ = flags.GetFloat64("blast-threshold")
	}
	if flags.Changed("blast-min") {
		cfg.JUnit.BlastMinSize, _ = flags.GetInt("blast-min")
	}
	if flags.Changed("workers") {
		cfg.Scan.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("max-bytes") {
		cfg.Scan.MaxBytes, _ = flags.GetInt64("max-bytes")
	}
	if on, _ := flags.GetBool("redact"); on {
		cfg.Redaction.Enabled = true
	}
	return cfg.Validate()
}

func newAnalyzer(cfg *config.Config) (*junit.Analyzer, error) {
	opts := []junit.Option{
		junit.WithParseConfig(cfg.ParseConfig()),
		junit.WithBlastConfig(cfg.BlastConfig()),
	}

	file, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}
	if file != nil {
		cc, err := file.ClassifierConfig(junit.DefaultClassifierConfig())
		if err != nil {
			return nil, err
		}
		opts = append(opts, junit.WithClassifierConfig(cc))
	}

	a, err := junit.NewAnalyzer(opts...)
	if err != nil {
		return nil, fmt.Errorf("building report analyzer: %w", err)
	}
	return a, nil
}
