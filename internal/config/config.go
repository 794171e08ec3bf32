// Package config provides configuration types and helpers for cisift.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/bimmerbailey/cisift/internal/extract"
	"github.com/bimmerbailey/cisift/internal/junit"
	"github.com/bimmerbailey/cisift/internal/scan"
	"github.com/bimmerbailey/cisift/internal/watch"
)

// Config holds the application-wide configuration.
type Config struct {
	Format    string          `mapstructure:"format"`
	Verbose   bool            `mapstructure:"verbose"`
	Color     string          `mapstructure:"color"` // auto, always, never
	Rules     string          `mapstructure:"rules"` // optional rule file
	Extract   ExtractConfig   `mapstructure:"extract"`
	JUnit     JUnitConfig     `mapstructure:"junit"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Redaction RedactionConfig `mapstructure:"redaction"`
}

// ExtractConfig holds the console log budget and engine settings.
type ExtractConfig struct {
	MaxLines       int  `mapstructure:"max_lines"`
	HardLimit      int  `mapstructure:"hard_limit"`
	IncludeHead    bool `mapstructure:"include_head"`
	IncludeTail    bool `mapstructure:"include_tail"`
	HeadLines      int  `mapstructure:"head_lines"`
	TailLines      int  `mapstructure:"tail_lines"`
	FallbackToTail bool `mapstructure:"fallback_to_tail"`
	ContextLines   int  `mapstructure:"context_lines"`
	MaxBodyLines   int  `mapstructure:"max_body_lines"`
	MaxLineBytes   int  `mapstructure:"max_line_bytes"`
}

// JUnitConfig holds report parsing and blast-radius settings.
type JUnitConfig struct {
	SuitesRoots    []string `mapstructure:"suites_roots"`
	SuiteRoots     []string `mapstructure:"suite_roots"`
	MaxDetailChars int      `mapstructure:"max_detail_chars"`
	MaxOutputChars int      `mapstructure:"max_output_chars"`
	BlastMinSize   int      `mapstructure:"blast_min_size"`
	BlastThreshold float64  `mapstructure:"blast_threshold"`
	SignatureChars int      `mapstructure:"signature_chars"`
}

// ScanConfig bounds file fan-out.
type ScanConfig struct {
	Workers  int   `mapstructure:"workers"`
	MaxBytes int64 `mapstructure:"max_bytes"` // per-file ceiling
}

// WatchConfig controls follow mode.
type WatchConfig struct {
	Debounce      time.Duration `mapstructure:"debounce"`
	FollowRotate  bool          `mapstructure:"follow_rotate"`
	RotateTimeout time.Duration `mapstructure:"rotate_timeout"`
}

// RedactionConfig holds configuration for secret redaction in rendered output.
type RedactionConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Patterns selects built-in patterns by name. Empty means the defaults.
	// Available: url_credentials, github_token, aws_key, jwt, bearer,
	// api_key, private_key, email, ipv4
	Patterns []string `mapstructure:"patterns"`
}

// SetDefaults registers every default with v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("format", "text")
	v.SetDefault("verbose", false)
	v.SetDefault("color", "auto")
	v.SetDefault("rules", "")

	budget := extract.DefaultBudget()
	v.SetDefault("extract.max_lines", budget.MaxLines)
	v.SetDefault("extract.hard_limit", budget.HardLimit)
	v.SetDefault("extract.include_head", budget.IncludeHead)
	v.SetDefault("extract.include_tail", budget.IncludeTail)
	v.SetDefault("extract.head_lines", budget.HeadLines)
	v.SetDefault("extract.tail_lines", budget.TailLines)
	v.SetDefault("extract.fallback_to_tail", budget.FallbackToTail)
	v.SetDefault("extract.context_lines", 0)
	v.SetDefault("extract.max_body_lines", extract.DefaultMaxBodyLines)
	v.SetDefault("extract.max_line_bytes", extract.DefaultMaxLineBytes)

	parse := junit.DefaultParseConfig()
	blast := junit.DefaultBlastConfig()
	v.SetDefault("junit.suites_roots", parse.SuitesRoots)
	v.SetDefault("junit.suite_roots", parse.SuiteRoots)
	v.SetDefault("junit.max_detail_chars", parse.MaxDetailChars)
	v.SetDefault("junit.max_output_chars", parse.MaxOutputChars)
	v.SetDefault("junit.blast_min_size", blast.MinSize)
	v.SetDefault("junit.blast_threshold", blast.Threshold)
	v.SetDefault("junit.signature_chars", blast.SignatureChars)

	v.SetDefault("scan.workers", scan.DefaultWorkers)
	v.SetDefault("scan.max_bytes", scan.DefaultMaxBytes)

	v.SetDefault("watch.debounce", watch.DefaultDebounce)
	v.SetDefault("watch.follow_rotate", false)
	v.SetDefault("watch.rotate_timeout", watch.DefaultRotateTimeout)

	v.SetDefault("redaction.enabled", false)
	v.SetDefault("redaction.patterns", []string{})
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Format {
	case "text", "json", "table":
	default:
		errs = append(errs, fmt.Errorf("format must be text, json or table, got %q", c.Format))
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("color must be auto, always or never, got %q", c.Color))
	}

	errs = append(errs, c.Budget().Validate())
	if c.Extract.ContextLines < 0 {
		errs = append(errs, fmt.Errorf("extract.context_lines must not be negative, got %d", c.Extract.ContextLines))
	}
	errs = append(errs, c.ParseConfig().Validate(), c.BlastConfig().Validate())

	if c.Scan.Workers < 1 {
		errs = append(errs, fmt.Errorf("scan.workers must be at least 1, got %d", c.Scan.Workers))
	}
	if c.Scan.MaxBytes < 1 {
		errs = append(errs, fmt.Errorf("scan.max_bytes must be positive, got %d", c.Scan.MaxBytes))
	}
	return errors.Join(errs...)
}

// Budget returns the extraction budget.
func (c *Config) Budget() extract.BudgetConfig {
	e := c.Extract
	return extract.BudgetConfig{
		MaxLines:       e.MaxLines,
		HardLimit:      e.HardLimit,
		IncludeHead:    e.IncludeHead,
		IncludeTail:    e.IncludeTail,
		HeadLines:      e.HeadLines,
		TailLines:      e.TailLines,
		FallbackToTail: e.FallbackToTail,
	}
}

// EngineOptions returns the extract engine options, excluding rules.
func (c *Config) EngineOptions() []extract.Option {
	return []extract.Option{
		extract.WithContextLines(c.Extract.ContextLines),
		extract.WithMaxBodyLines(c.Extract.MaxBodyLines),
		extract.WithMaxLineBytes(c.Extract.MaxLineBytes),
	}
}

// ParseConfig returns the report parser settings.
func (c *Config) ParseConfig() junit.ParseConfig {
	return junit.ParseConfig{
		SuitesRoots:    c.JUnit.SuitesRoots,
		SuiteRoots:     c.JUnit.SuiteRoots,
		MaxDetailChars: c.JUnit.MaxDetailChars,
		MaxOutputChars: c.JUnit.MaxOutputChars,
	}
}

// BlastConfig returns the blast-radius thresholds.
func (c *Config) BlastConfig() junit.BlastConfig {
	return junit.BlastConfig{
		MinSize:        c.JUnit.BlastMinSize,
		Threshold:      c.JUnit.BlastThreshold,
		SignatureChars: c.JUnit.SignatureChars,
	}
}

// ScanOptions returns the worker pool settings.
func (c *Config) ScanOptions(logger *slog.Logger) scan.Options {
	return scan.Options{Workers: c.Scan.Workers, MaxBytes: c.Scan.MaxBytes, Logger: logger}
}

// WatchOptions returns follow-mode settings for path. The caller supplies
// OnChange.
func (c *Config) WatchOptions(path string, logger *slog.Logger) watch.Options {
	return watch.Options{
		Path:          path,
		Debounce:      c.Watch.Debounce,
		FollowRotate:  c.Watch.FollowRotate,
		RotateTimeout: c.Watch.RotateTimeout,
		Logger:        logger,
	}
}

// Logger returns a text logger on w: warnings by default, debug when
// verbose.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
