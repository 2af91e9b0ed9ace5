package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimlink/internal/compare"
	"github.com/ppiankov/claimlink/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage claimlink configuration",
	Long: `Manage claimlink configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CLAIMLINK_*, e.g. CLAIMLINK_STORE_DRIVER)
3. Config file (~/.claimlink/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, config file, env vars and flags are merged. Secrets are redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(redact(cfg))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out, "  Current Configuration")
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out)
		fmt.Fprintln(out, string(yamlData))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(viper.GetViper()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.claimlink/config.yaml with every available option.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := filepath.Join(home, ".claimlink")
		configPath := filepath.Join(configDir, "config.yaml")

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'claimlink config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		yamlData, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		header := `# claimlink configuration file
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (CLAIMLINK_*)
#   3. This config file
#   4. Built-in defaults
#
# Secrets are best supplied through the environment:
#   export CLAIMLINK_EXTRACTOR_API_KEY=...
#   export CLAIMLINK_SERVER_JWT_SECRET=...
#   export OPENAI_API_KEY=sk-...

`
		if err := os.WriteFile(configPath, append([]byte(header), yamlData...), 0o600); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  claimlink config show\n")
		fmt.Fprintf(out, "\nTo customize, edit the file with your preferred editor:\n")
		fmt.Fprintf(out, "  $EDITOR %s\n\n", configPath)
		return nil
	},
}

// weightsCmd prints the effective weight table
var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Show the error kind weight table and thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		writeWeights(cmd.OutOrStdout(), cfg)
		return nil
	},
}

// writeWeights prints every check in evaluation order with the weight of
// the error kind it emits, followed by the severity thresholds
func writeWeights(out io.Writer, cfg model.Config) {
	fmt.Fprintf(out, "%-22s %-14s %-32s %s\n", "CHECK", "DOCUMENT", "ERROR KIND", "WEIGHT")
	for _, k := range compare.Kinds() {
		weight := "missing"
		if w, ok := cfg.Scoring.Weights[k.ErrorKind()]; ok {
			weight = fmt.Sprintf("%.2f", w)
		}
		fmt.Fprintf(out, "%-22s %-14s %-32s %s\n", k, k.Stage(), k.ErrorKind(), weight)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Low      aggregate <= %.2f\n", cfg.Scoring.LowThreshold)
	fmt.Fprintf(out, "Medium   aggregate <= %.2f\n", cfg.Scoring.MediumThreshold)
	fmt.Fprintf(out, "High     otherwise\n")
	if cfg.Scoring.AutoRejectAbove > 0 {
		fmt.Fprintf(out, "Rejected aggregate >  %.2f\n", cfg.Scoring.AutoRejectAbove)
	}
}

func redact(cfg model.Config) model.Config {
	const hidden = "********"
	for _, s := range []*string{
		&cfg.Extractor.APIKey,
		&cfg.LLM.APIKey,
		&cfg.Server.JWTSecret,
		&cfg.AWS.AccessKeyID,
		&cfg.AWS.SecretAccessKey,
	} {
		if *s != "" {
			*s = hidden
		}
	}
	return cfg
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(weightsCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}
