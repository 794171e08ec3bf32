package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/cisift/internal/config"
	"github.com/bimmerbailey/cisift/internal/output"
	"github.com/bimmerbailey/cisift/internal/redact"
	"github.com/bimmerbailey/cisift/internal/rules"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cisift",
	Short: "Extract the signal from CI logs and test reports",
	Long: `Cisift reduces CI console logs and JUnit XML reports to the lines
that explain a failure.

It ranks log errors by severity, collapses repeats, groups test
failures that share one root cause, and keeps the result inside a
fixed line budget.

Examples:
  cisift extract build.log
  cisift extract --max-lines 120 --redact console.txt
  cisift extract --follow build.log
  cisift junit target/surefire-reports
  cisift junit --format json "reports/TEST-*.xml"`,
	SilenceUsage: true,
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cisift.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto, always, never)")
	rootCmd.PersistentFlags().String("rules", "", "YAML rule file extending the built-in patterns")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))
	_ = viper.BindPFlag("rules", rootCmd.PersistentFlags().Lookup("rules"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".cisift")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CISIFT")
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadConfig decodes the global viper state. Defaults are registered again
// so commands also work when initConfig has not run.
func loadConfig() (*config.Config, error) {
	config.SetDefaults(viper.GetViper())
	return config.Load(viper.GetViper())
}

// loadRules reads the rule file named in cfg. A missing setting yields nil.
func loadRules(cfg *config.Config) (*rules.File, error) {
	if cfg.Rules == "" {
		return nil, nil
	}
	return rules.Load(cfg.Rules)
}

// newRedactor returns nil when redaction is disabled.
func newRedactor(cfg *config.Config) (*redact.Redactor, error) {
	if !cfg.Redaction.Enabled {
		return nil, nil
	}
	r, err := redact.New(cfg.Redaction.Patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid redaction config: %w", err)
	}
	return r, nil
}

// commandContext returns the command's context, or Background when the
// command was invoked directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newWriter(cmd *cobra.Command, cfg *config.Config) *output.Writer {
	return output.New(cmd.OutOrStdout(), output.ParseFormat(cfg.Format)).
		SetColorMode(output.ParseColorMode(cfg.Color))
}
