// Package config manages CLI configuration from config files, environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/opencode-ai/genpipe/internal/llm/generator"
	"github.com/opencode-ai/genpipe/internal/logging"
	"github.com/opencode-ai/genpipe/internal/secret"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Azure describes the Azure OpenAI generator built by the CLI. Credentials
// are configured by naming the environment variables that hold them, never
// by value.
type Azure struct {
	Endpoint         string            `mapstructure:"endpoint"`
	APIVersion       string            `mapstructure:"apiVersion"`
	Deployment       string            `mapstructure:"deployment"`
	APIKeyEnv        string            `mapstructure:"apiKeyEnv"`
	ADTokenEnv       string            `mapstructure:"adTokenEnv"`
	ADTokenProvider  string            `mapstructure:"adTokenProvider"`
	Organization     string            `mapstructure:"organization"`
	SystemPrompt     string            `mapstructure:"systemPrompt"`
	GenerationKwargs map[string]any    `mapstructure:"generationKwargs"`
	DefaultHeaders   map[string]string `mapstructure:"defaultHeaders"`
	Timeout          *float64          `mapstructure:"timeout"`
	MaxRetries       *int              `mapstructure:"maxRetries"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// Config is the main configuration structure for the application.
type Config struct {
	WorkingDir string `mapstructure:"wd"`
	Azure      Azure  `mapstructure:"azure"`
	Log        Log    `mapstructure:"log"`
	// Pipeline, when set, is a pipeline document to load the generator from.
	Pipeline  string `mapstructure:"pipeline"`
	Component string `mapstructure:"component"`
	Debug     bool   `mapstructure:"debug"`
}

// Application constants
const (
	defaultLogLevel  = "info"
	defaultComponent = "llm"
	appName          = "genpipe"
)

// flagKeys maps configuration keys to the command-line flags that override
// them.
var flagKeys = map[string]string{
	"azure.endpoint":        "endpoint",
	"azure.apiVersion":      "api-version",
	"azure.deployment":      "deployment",
	"azure.apiKeyEnv":       "api-key-env",
	"azure.adTokenEnv":      "ad-token-env",
	"azure.adTokenProvider": "ad-token-provider",
	"azure.systemPrompt":    "system-prompt",
	"azure.timeout":         "timeout",
	"azure.maxRetries":      "max-retries",
	"pipeline":              "pipeline",
	"component":             "component",
	"debug":                 "debug",
	"log.level":             "log-level",
}

// Load reads $HOME/.genpipe.{json,yaml}, merges a .genpipe file from
// workingDir on top, then applies GENPIPE_* environment variables and any
// changed flags in that order of increasing precedence.
func Load(workingDir string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	configureViper(v)
	setDefaults(v)

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	if file := flagString(flags, "config"); file != "" {
		v.SetConfigFile(file)
	}
	if err := readConfig(v.ReadInConfig()); err != nil {
		return nil, err
	}
	if err := mergeLocalConfig(v, workingDir); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.WorkingDir = workingDir
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}

	logging.Debug("Configuration loaded", "file", v.ConfigFileUsed(), "pipeline", cfg.Pipeline)
	return cfg, nil
}

// configureViper sets up viper's configuration paths and environment variables.
func configureViper(v *viper.Viper) {
	v.SetConfigName(fmt.Sprintf(".%s", appName))
	v.AddConfigPath("$HOME")
	v.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default are only seen by Unmarshal when bound explicitly.
	for _, key := range []string{
		"azure.endpoint",
		"azure.apiVersion",
		"azure.deployment",
		"azure.apiKeyEnv",
		"azure.adTokenEnv",
		"azure.adTokenProvider",
		"azure.organization",
		"azure.systemPrompt",
		"azure.timeout",
		"azure.maxRetries",
		"pipeline",
	} {
		_ = v.BindEnv(key)
	}
}

// setDefaults configures default values for configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("component", defaultComponent)
	v.SetDefault("debug", false)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for key, name := range flagKeys {
		// Unchanged flags are not bound: their zero defaults would shadow
		// the environment and the generator's own fallbacks.
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

func flagString(flags *pflag.FlagSet, name string) string {
	if flags == nil || flags.Lookup(name) == nil {
		return ""
	}
	s, _ := flags.GetString(name)
	return s
}

// readConfig handles the result of reading a configuration file.
func readConfig(err error) error {
	if err == nil {
		return nil
	}

	// It's okay if the config file doesn't exist
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}

	return fmt.Errorf("failed to read config: %w", err)
}

// mergeLocalConfig loads and merges configuration from the local directory.
func mergeLocalConfig(v *viper.Viper, workingDir string) error {
	if workingDir == "" {
		return nil
	}
	local := viper.New()
	local.SetConfigName(fmt.Sprintf(".%s", appName))
	local.AddConfigPath(workingDir)

	if err := local.ReadInConfig(); err != nil {
		return readConfig(err)
	}
	return v.MergeConfigMap(local.AllSettings())
}

// AzureOptions turns the Azure section into generator options. Unset fields
// are left to the generator's own defaults and environment fallbacks.
func (c *Config) AzureOptions() ([]generator.AzureOption, error) {
	a := c.Azure
	var opts []generator.AzureOption

	if a.Endpoint != "" {
		opts = append(opts, generator.WithAzureEndpoint(a.Endpoint))
	}
	if a.APIVersion != "" {
		opts = append(opts, generator.WithAzureAPIVersion(a.APIVersion))
	}
	if a.Deployment != "" {
		opts = append(opts, generator.WithAzureDeployment(a.Deployment))
	}
	if a.APIKeyEnv != "" {
		opts = append(opts, generator.WithAzureAPIKey(secret.FromEnvVar(true, a.APIKeyEnv)))
	}
	if a.ADTokenEnv != "" {
		opts = append(opts, generator.WithAzureADToken(secret.FromEnvVar(true, a.ADTokenEnv)))
	}
	if a.ADTokenProvider != "" {
		provider, err := generator.TokenProviders.Lookup(a.ADTokenProvider)
		if err != nil {
			return nil, err
		}
		opts = append(opts, generator.WithAzureADTokenProvider(provider))
	}
	if a.Organization != "" {
		opts = append(opts, generator.WithAzureOrganization(a.Organization))
	}
	if a.SystemPrompt != "" {
		opts = append(opts, generator.WithAzureSystemPrompt(a.SystemPrompt))
	}
	if len(a.GenerationKwargs) > 0 {
		opts = append(opts, generator.WithAzureGenerationKwargs(a.GenerationKwargs))
	}
	if len(a.DefaultHeaders) > 0 {
		opts = append(opts, generator.WithAzureDefaultHeaders(a.DefaultHeaders))
	}
	if a.Timeout != nil {
		opts = append(opts, generator.WithAzureTimeout(*a.Timeout))
	}
	if a.MaxRetries != nil {
		opts = append(opts, generator.WithAzureMaxRetries(*a.MaxRetries))
	}
	return opts, nil
}
