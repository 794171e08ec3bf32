package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/cisift/internal/config"
	"github.com/bimmerbailey/cisift/internal/extract"
	"github.com/bimmerbailey/cisift/internal/output"
	"github.com/bimmerbailey/cisift/internal/redact"
	"github.com/bimmerbailey/cisift/internal/scan"
	"github.com/bimmerbailey/cisift/internal/watch"
)

// logExtensions filters files found when a directory is passed.
var logExtensions = []string{".log", ".txt", ".out"}

var extractCmd = &cobra.Command{
	Use:   "extract [flags] <file|dir|glob|->...",
	Short: "Extract the failure-relevant lines from CI console logs",
	Long: `Reduce CI console logs to a severity-ranked digest that fits a line
budget. Critical blocks come first, then errors, then warnings; repeated
blocks collapse into one section with a repeat count. The first and last
lines of the log are kept as anchors.

Pass "-" to read a single log from stdin.

Examples:
  cisift extract build.log
  cisift extract --max-lines 100 --no-head logs/
  cisift extract --context 2 --rules ci-rules.yaml console.txt
  cisift extract --follow --follow-rotate /var/log/ci/job.log
  kubectl logs job/build | cisift extract -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	addExtractFlags(extractCmd)
	rootCmd.AddCommand(extractCmd)
}

func addExtractFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("max-lines", "n", extract.DefaultMaxLines, "soft line budget for severity sections")
	cmd.Flags().Int("hard-limit", extract.DefaultHardLimit, "absolute cap on emitted lines")
	cmd.Flags().Bool("no-head", false, "omit the log start anchor")
	cmd.Flags().Bool("no-tail", false, "omit the log end anchor")
	cmd.Flags().Int("head-lines", extract.DefaultHeadLines, "lines kept from the start of the log")
	cmd.Flags().Int("tail-lines", extract.DefaultTailLines, "lines kept from the end of the log")
	cmd.Flags().IntP("context", "C", 0, "unmatched lines attached after each match")
	cmd.Flags().Bool("redact", false, "replace secrets in the output with placeholders")
	cmd.Flags().Int("workers", scan.DefaultWorkers, "files processed concurrently")
	cmd.Flags().Int64("max-bytes", scan.DefaultMaxBytes, "read at most this many trailing bytes per file")
	cmd.Flags().Bool("follow", false, "re-extract whenever the file changes")
	cmd.Flags().Bool("follow-rotate", false, "keep following when the file is rotated")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyExtractFlags(cmd, cfg); err != nil {
		return err
	}
	logger := cfg.Logger(cmd.ErrOrStderr())

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	redactor, err := newRedactor(cfg)
	if err != nil {
		return err
	}
	wr := newWriter(cmd, cfg)
	budget := cfg.Budget()

	if len(args) == 1 && args[0] == "-" {
		res, err := engine.ExtractReader(cmd.InOrStdin(), budget)
		if err != nil {
			return fmt.Errorf("extracting stdin: %w", err)
		}
		redactor.Extraction(res)
		return wr.WriteLogs([]scan.LogResult{{File: "-", Result: res}})
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	follow, _ := cmd.Flags().GetBool("follow")
	if follow {
		if len(args) != 1 {
			return fmt.Errorf("--follow needs exactly one file, got %d", len(args))
		}
		return followLog(ctx, cfg, engine, redactor, wr, args[0], logger)
	}

	paths, err := config.ExpandGlobs(args, logExtensions...)
	if err != nil {
		return err
	}
	logger.Debug("extracting logs", "files", len(paths), "max_lines", budget.MaxLines)

	results, err := scan.Logs(ctx, engine, budget, paths, cfg.ScanOptions(logger))
	if err != nil {
		return err
	}
	for _, r := range results {
		redactor.Extraction(r.Result)
	}
	return wr.WriteLogs(results)
}

func followLog(ctx context.Context, cfg *config.Config, engine *extract.Engine, redactor *redact.Redactor, wr *output.Writer, path string, logger *slog.Logger) error {
	opts := cfg.WatchOptions(path, logger)
	opts.OnChange = func(context.Context) error {
		r := scan.Log(engine, cfg.Budget(), path, cfg.ScanOptions(logger))
		redactor.Extraction(r.Result)
		logger.Info("re-extracted", "file", path)
		return wr.WriteLogs([]scan.LogResult{r})
	}

	w, err := watch.New(opts)
	if err != nil {
		return err
	}
	err = w.Run(ctx)
	if errors.Is(err, watch.ErrRotated) {
		logger.Warn("file rotated, stopping", "file", path)
		return nil
	}
	return err
}

// applyExtractFlags copies explicitly set flags over the loaded config.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	intFlags := map[string]*int{
		"max-lines":  &cfg.Extract.MaxLines,
		"hard-limit": &cfg.Extract.HardLimit,
		"head-lines": &cfg.Extract.HeadLines,
		"tail-lines": &cfg.Extract.TailLines,
		"context":    &cfg.Extract.ContextLines,
		"workers":    &cfg.Scan.Workers,
	}
	for name, dst := range intFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}
	if flags.Changed("max-bytes") {
		cfg.Scan.MaxBytes, _ = flags.GetInt64("max-bytes")
	}
	if noHead, _ := flags.GetBool("no-head"); noHead {
		cfg.Extract.IncludeHead = false
	}
	if noTail, _ := flags.GetBool("no-tail"); noTail {
		cfg.Extract.IncludeTail = false
	}
	if on, _ := flags.GetBool("redact"); on {
		cfg.Redaction.Enabled = true
	}
	if on, _ := flags.GetBool("follow-rotate"); on {
		cfg.Watch.FollowRotate = true
	}
	return cfg.Validate()
}

func newEngine(cfg *config.Config) (*extract.Engine, error) {
	opts := cfg.EngineOptions()

	file, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}
	if file != nil {
		r, err := file.LogRules(extract.DefaultRules())
		if err != nil {
			return nil, err
		}
		opts = append(opts, extract.WithRules(r))
	}

	engine, err := extract.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("building extraction engine: %w", err)
	}
	return engine, nil
}
