package generator

import (
	"fmt"
	"maps"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/opencode-ai/genpipe/internal/component"
	"github.com/opencode-ai/genpipe/internal/errors"
	"github.com/opencode-ai/genpipe/internal/logging"
	"github.com/opencode-ai/genpipe/internal/secret"
)

const OpenAIGeneratorType = "generators.OpenAIGenerator"

type OpenAIConfig struct {
	APIKey            *secret.Secret
	Model             string
	APIBaseURL        string
	Organization      string
	StreamingCallback StreamingCallback
	SystemPrompt      string
	GenerationKwargs  map[string]any
	Timeout           float64
	MaxRetries        int
}

type openaiOptions struct {
	cfg        OpenAIConfig
	timeout    *float64
	maxRetries *int
}

type OpenAIOption func(*openaiOptions)

// OpenAIGenerator generates text with models served by the OpenAI API or any
// endpoint compatible with it.
type OpenAIGenerator struct {
	*chatGenerator
	cfg OpenAIConfig
}

var _ Generator = (*OpenAIGenerator)(nil)
var _ component.Component = (*OpenAIGenerator)(nil)

func init() {
	component.Register(OpenAIGeneratorType, func(doc component.Document) (component.Component, error) {
		return OpenAIGeneratorFromDocument(doc)
	})
}

func NewOpenAIGenerator(opts ...OpenAIOption) (*OpenAIGenerator, error) {
	o := openaiOptions{
		cfg: OpenAIConfig{
			APIKey: secret.FromEnvVar(true, envOpenAIAPIKey),
			Model:  defaultModel,
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg

	if cfg.APIKey == nil {
		return nil, errors.Configuration("please provide an OpenAI API key")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	var err error
	if o.timeout != nil {
		cfg.Timeout = *o.timeout
	} else if cfg.Timeout, err = timeoutFromEnv(); err != nil {
		return nil, err
	}
	if o.maxRetries != nil {
		cfg.MaxRetries = *o.maxRetries
	} else if cfg.MaxRetries, err = maxRetriesFromEnv(); err != nil {
		return nil, err
	}
	cfg.GenerationKwargs = maps.Clone(cfg.GenerationKwargs)
	if cfg.GenerationKwargs == nil {
		cfg.GenerationKwargs = map[string]any{}
	}

	apiKey, _, err := cfg.APIKey.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolving api key: %w", err)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(time.Duration(cfg.Timeout * float64(time.Second))),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIBaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.APIBaseURL))
	}
	if cfg.Organization != "" {
		clientOpts = append(clientOpts, option.WithHeader("OpenAI-Organization", cfg.Organization))
	}

	logging.Debug("OpenAI generator configured", "model", cfg.Model, "base_url", cfg.APIBaseURL, "api_key", cfg.APIKey)

	return &OpenAIGenerator{
		chatGenerator: &chatGenerator{
			client:            openai.NewClient(clientOpts...),
			model:             cfg.Model,
			systemPrompt:      cfg.SystemPrompt,
			generationKwargs:  cfg.GenerationKwargs,
			streamingCallback: cfg.StreamingCallback,
		},
		cfg: cfg,
	}, nil
}

func (g *OpenAIGenerator) Config() OpenAIConfig {
	cfg := g.cfg
	cfg.GenerationKwargs = maps.Clone(g.cfg.GenerationKwargs)
	return cfg
}

func (g *OpenAIGenerator) ToDocument() (component.Document, error) {
	apiKey, err := secretDocument(g.cfg.APIKey)
	if err != nil {
		return component.Document{}, fmt.Errorf("api_key: %w", err)
	}
	callback, err := callbackName(g.cfg.StreamingCallback)
	if err != nil {
		return component.Document{}, fmt.Errorf("streaming_callback: %w", err)
	}
	return component.NewDocument(OpenAIGeneratorType, map[string]any{
		"model":              g.cfg.Model,
		"streaming_callback": callback,
		"api_base_url":       optionalString(g.cfg.APIBaseURL),
		"organization":       optionalString(g.cfg.Organization),
		"generation_kwargs":  maps.Clone(g.cfg.GenerationKwargs),
		"system_prompt":      optionalString(g.cfg.SystemPrompt),
		"api_key":            apiKey,
		"timeout":            g.cfg.Timeout,
		"max_retries":        g.cfg.MaxRetries,
	}), nil
}

type openaiInitParameters struct {
	Model             string         `mapstructure:"model"`
	StreamingCallback string         `mapstructure:"streaming_callback"`
	APIBaseURL        string         `mapstructure:"api_base_url"`
	Organization      string         `mapstructure:"organization"`
	GenerationKwargs  map[string]any `mapstructure:"generation_kwargs"`
	SystemPrompt      string         `mapstructure:"system_prompt"`
	Timeout           *float64       `mapstructure:"timeout"`
	MaxRetries        *int           `mapstructure:"max_retries"`
}

func OpenAIGeneratorFromDocument(doc component.Document) (*OpenAIGenerator, error) {
	if doc.Type != OpenAIGeneratorType {
		return nil, errors.Configuration("document type %q is not %s", doc.Type, OpenAIGeneratorType)
	}

	var p openaiInitParameters
	secrets, err := decodeInitParameters(doc.InitParameters, &p, "api_key")
	if err != nil {
		return nil, err
	}
	callback, err := lookupStreamingCallback(p.StreamingCallback)
	if err != nil {
		return nil, err
	}

	opts := []OpenAIOption{
		WithOpenAIModel(p.Model),
		WithOpenAIBaseURL(p.APIBaseURL),
		WithOpenAIOrganization(p.Organization),
		WithOpenAIStreamingCallback(callback),
		WithOpenAISystemPrompt(p.SystemPrompt),
		WithOpenAIGenerationKwargs(p.GenerationKwargs),
	}
	if p.Timeout != nil {
		opts = append(opts, WithOpenAITimeout(*p.Timeout))
	}
	if p.MaxRetries != nil {
		opts = append(opts, WithOpenAIMaxRetries(*p.MaxRetries))
	}
	if s, ok := secrets["api_key"]; ok {
		opts = append(opts, WithOpenAIKey(s))
	}
	return NewOpenAIGenerator(opts...)
}

func WithOpenAIKey(apiKey *secret.Secret) OpenAIOption {
	return func(o *openaiOptions) {
		o.cfg.APIKey = apiKey
	}
}

func WithOpenAIModel(model string) OpenAIOption {
	return func(o *openaiOptions) {
		o.cfg.Model = model
	}
}

func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(o *openaiOptions) {
		o.cfg.APIBaseURL = baseURL
	}
}

func WithOpenAIOrganization(organization string) OpenAIOption {
	return func(o *openaiOptions) {
		o.cfg.Organization = organization
	}
}

func WithOpenAIStreamingCallback(cb StreamingCallback) OpenAIOption {
	return func(o *openaiOptions) {
		o.cfg.StreamingCallback = cb
	}
}

func WithOpenAISystemPrompt(prompt string) OpenAIOption {
	return func(o *openaiOptions) {
		o.cfg.SystemPrompt = prompt
	}
}

func WithOpenAIGenerationKwargs(kwargs map[string]any) OpenAIOption {
	return func(o *openaiOptions) {
		o.cfg.GenerationKwargs = kwargs
	}
}

func WithOpenAITimeout(seconds float64) OpenAIOption {
	return func(o *openaiOptions) {
		o.timeout = &seconds
	}
}

func WithOpenAIMaxRetries(retries int) OpenAIOption {
	return func(o *openaiOptions) {
		o.maxRetries = &retries
	}
}
