package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/opencode-ai/genpipe/internal/config"
	"github.com/opencode-ai/genpipe/internal/llm/generator"
	"github.com/opencode-ai/genpipe/internal/logging"
	"github.com/opencode-ai/genpipe/internal/pipeline"
	"github.com/opencode-ai/genpipe/internal/version"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "genpipe",
		Short: "Run and serialize Azure OpenAI generators",
		Long: `genpipe builds an Azure OpenAI text generator from flags, a config file
or a saved pipeline document, runs prompts through it and exports it as a
YAML or JSON pipeline that can be loaded again later.`,
		Version:      version.String(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default is $HOME/.genpipe.yaml)")
	flags.BoolP("debug", "d", false, "Debug")
	flags.String("log-level", logging.DefaultLevel, fmt.Sprintf("Log level (%s)", strings.Join(logging.ValidLevels(), ", ")))

	flags.String("endpoint", "", "Azure OpenAI endpoint (falls back to AZURE_OPENAI_ENDPOINT)")
	flags.String("api-version", "", "Azure OpenAI API version")
	flags.String("deployment", "", "Azure OpenAI deployment name")
	flags.String("api-key-env", "", "Environment variable holding the API key")
	flags.String("ad-token-env", "", "Environment variable holding an Azure AD token")
	flags.String("ad-token-provider", "", "Registered Azure AD token provider, e.g. azure_default_credential")
	flags.String("system-prompt", "", "System prompt sent before every prompt")
	flags.Float64("timeout", 0, "Request timeout in seconds (falls back to OPENAI_TIMEOUT)")
	flags.Int("max-retries", 0, "Maximum retries (falls back to OPENAI_MAX_RETRIES)")

	flags.String("pipeline", "", "Load the generator from this pipeline document instead")
	flags.String("component", "", "Component to use from --pipeline")

	rootCmd.AddCommand(newRunCmd(), newConfigCmd())
	return rootCmd
}

// Execute runs the genpipe command line.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration for cmd and installs a logger writing
// to the command's error stream.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	cfg, err := config.Load(wd, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logging.NewLogger(logging.Options{
		Level:  cfg.Log.Level,
		Output: cmd.ErrOrStderr(),
	}))
	return cfg, nil
}

// buildGenerator returns the generator named by cfg.Component in
// cfg.Pipeline, or a fresh Azure generator when no pipeline is configured.
func buildGenerator(cfg *config.Config) (generator.Generator, error) {
	if cfg.Pipeline != "" {
		p, err := loadPipeline(cfg.Pipeline)
		if err != nil {
			return nil, err
		}
		return pipeline.Lookup[generator.Generator](p, cfg.Component)
	}
	return buildAzureGenerator(cfg)
}

func buildAzureGenerator(cfg *config.Config) (*generator.AzureOpenAIGenerator, error) {
	opts, err := cfg.AzureOptions()
	if err != nil {
		return nil, err
	}
	return generator.NewAzureOpenAIGenerator(opts...)
}

func loadPipeline(path string) (*pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline: %w", err)
	}
	p, err := pipeline.Load(data)
	if err != nil {
		return nil, fmt.Errorf("loading pipeline %s: %w", path, err)
	}
	return p, nil
}
