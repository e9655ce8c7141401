package generator

import (
	"fmt"
	"maps"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/opencode-ai/genpipe/internal/component"
	"github.com/opencode-ai/genpipe/internal/errors"
	"github.com/opencode-ai/genpipe/internal/logging"
	"github.com/opencode-ai/genpipe/internal/secret"
)

const (
	AzureOpenAIGeneratorType = "generators.AzureOpenAIGenerator"

	defaultAzureAPIVersion = "2023-05-15"
)

// AzureOpenAIConfig is the resolved configuration of an AzureOpenAIGenerator.
// Secrets are kept as references; their values are never stored.
type AzureOpenAIConfig struct {
	Endpoint          string
	APIVersion        string
	Deployment        string
	APIKey            *secret.Secret
	ADToken           *secret.Secret
	Organization      string
	StreamingCallback StreamingCallback
	ADTokenProvider   TokenProvider
	SystemPrompt      string
	GenerationKwargs  map[string]any
	DefaultHeaders    map[string]string
	// Timeout is the per-request timeout in seconds.
	Timeout    float64
	MaxRetries int
}

type azureOptions struct {
	cfg        AzureOpenAIConfig
	timeout    *float64
	maxRetries *int
}

type AzureOption func(*azureOptions)

// AzureOpenAIGenerator generates text with a model deployed on Azure OpenAI.
type AzureOpenAIGenerator struct {
	*chatGenerator
	cfg AzureOpenAIConfig
}

var _ Generator = (*AzureOpenAIGenerator)(nil)
var _ component.Component = (*AzureOpenAIGenerator)(nil)

func init() {
	component.Register(AzureOpenAIGeneratorType, func(doc component.Document) (component.Component, error) {
		return AzureOpenAIGeneratorFromDocument(doc)
	})
}

// NewAzureOpenAIGenerator builds the generator and its client. The endpoint
// falls back to AZURE_OPENAI_ENDPOINT; the API key and AD token default to
// non-strict references to AZURE_OPENAI_API_KEY and AZURE_OPENAI_AD_TOKEN.
// No request is sent.
func NewAzureOpenAIGenerator(opts ...AzureOption) (*AzureOpenAIGenerator, error) {
	o := azureOptions{
		cfg: AzureOpenAIConfig{
			APIVersion: defaultAzureAPIVersion,
			Deployment: defaultModel,
			APIKey:     secret.FromEnvVar(false, envAzureAPIKey),
			ADToken:    secret.FromEnvVar(false, envAzureADToken),
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg

	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv(envAzureEndpoint)
	}
	if cfg.Endpoint == "" {
		return nil, errors.Configuration("please provide an Azure endpoint or set the environment variable %s", envAzureEndpoint)
	}
	if cfg.APIKey == nil && cfg.ADToken == nil {
		return nil, errors.Configuration("please provide an API key or an Azure Active Directory token")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAzureAPIVersion
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
	cfg.DefaultHeaders = maps.Clone(cfg.DefaultHeaders)
	if cfg.DefaultHeaders == nil {
		cfg.DefaultHeaders = map[string]string{}
	}

	client, err := newAzureClient(cfg)
	if err != nil {
		return nil, err
	}

	model := cfg.Deployment
	if model == "" {
		model = defaultModel
	}
	logging.Debug("Azure OpenAI generator configured",
		"endpoint", cfg.Endpoint,
		"deployment", model,
		"api_version", cfg.APIVersion,
		"api_key", cfg.APIKey,
		"azure_ad_token", cfg.ADToken,
	)

	return &AzureOpenAIGenerator{
		chatGenerator: &chatGenerator{
			client:            client,
			model:             model,
			systemPrompt:      cfg.SystemPrompt,
			generationKwargs:  cfg.GenerationKwargs,
			streamingCallback: cfg.StreamingCallback,
		},
		cfg: cfg,
	}, nil
}

// newAzureClient resolves the secrets and builds the client. The AD
// credential is preferred: a static AD token, then the token provider, are
// sent as a bearer token; the API key is sent as the api-key header.
func newAzureClient(cfg AzureOpenAIConfig) (openai.Client, error) {
	apiKey, hasAPIKey, err := resolveOptional(cfg.APIKey)
	if err != nil {
		return openai.Client{}, fmt.Errorf("resolving api key: %w", err)
	}
	adToken, hasADToken, err := resolveOptional(cfg.ADToken)
	if err != nil {
		return openai.Client{}, fmt.Errorf("resolving azure ad token: %w", err)
	}
	if !hasAPIKey && !hasADToken && cfg.ADTokenProvider == nil {
		return openai.Client{}, errors.Configuration("missing credentials: neither the api key (%s) nor the azure ad token (%s) resolved and no token provider is set",
			cfg.APIKey, cfg.ADToken)
	}

	reqOpts := []option.RequestOption{
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		option.WithRequestTimeout(time.Duration(cfg.Timeout * float64(time.Second))),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if hasAPIKey {
		reqOpts = append(reqOpts, azure.WithAPIKey(apiKey))
	}
	if hasADToken || cfg.ADTokenProvider != nil {
		reqOpts = append(reqOpts, option.WithMiddleware(bearerTokenMiddleware(adToken, hasADToken, cfg.ADTokenProvider)))
	} else {
		// openai.NewClient picks up OPENAI_API_KEY as a bearer token by default;
		// that key belongs to a different service.
		reqOpts = append(reqOpts, option.WithHeaderDel("Authorization"))
	}
	if cfg.Organization != "" {
		reqOpts = append(reqOpts, option.WithHeader("OpenAI-Organization", cfg.Organization))
	}
	for _, key := range slices.Sorted(maps.Keys(cfg.DefaultHeaders)) {
		reqOpts = append(reqOpts, option.WithHeader(key, cfg.DefaultHeaders[key]))
	}

	return openai.NewClient(reqOpts...), nil
}

func bearerTokenMiddleware(static string, hasStatic bool, provider TokenProvider) option.Middleware {
	return func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		token := static
		if !hasStatic {
			t, err := provider(req.Context())
			if err != nil {
				return nil, fmt.Errorf("getting Azure AD token from provider: %w", err)
			}
			token = t
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return next(req)
	}
}

func resolveOptional(s *secret.Secret) (string, bool, error) {
	if s == nil {
		return "", false, nil
	}
	return s.Resolve()
}

// Config returns a copy of the generator's configuration.
func (g *AzureOpenAIGenerator) Config() AzureOpenAIConfig {
	cfg := g.cfg
	cfg.GenerationKwargs = maps.Clone(g.cfg.GenerationKwargs)
	cfg.DefaultHeaders = maps.Clone(g.cfg.DefaultHeaders)
	return cfg
}

// ToDocument serializes the configuration. Secrets are written as
// references and callables by their registered names.
func (g *AzureOpenAIGenerator) ToDocument() (component.Document, error) {
	apiKey, err := secretDocument(g.cfg.APIKey)
	if err != nil {
		return component.Document{}, fmt.Errorf("api_key: %w", err)
	}
	adToken, err := secretDocument(g.cfg.ADToken)
	if err != nil {
		return component.Document{}, fmt.Errorf("azure_ad_token: %w", err)
	}
	callback, err := callbackName(g.cfg.StreamingCallback)
	if err != nil {
		return component.Document{}, fmt.Errorf("streaming_callback: %w", err)
	}
	provider, err := tokenProviderName(g.cfg.ADTokenProvider)
	if err != nil {
		return component.Document{}, fmt.Errorf("azure_ad_token_provider: %w", err)
	}

	return component.NewDocument(AzureOpenAIGeneratorType, map[string]any{
		"azure_endpoint":          g.cfg.Endpoint,
		"azure_deployment":        g.cfg.Deployment,
		"organization":            optionalString(g.cfg.Organization),
		"api_version":             g.cfg.APIVersion,
		"streaming_callback":      callback,
		"generation_kwargs":       maps.Clone(g.cfg.GenerationKwargs),
		"system_prompt":           optionalString(g.cfg.SystemPrompt),
		"api_key":                 apiKey,
		"azure_ad_token":          adToken,
		"timeout":                 g.cfg.Timeout,
		"max_retries":             g.cfg.MaxRetries,
		"default_headers":         maps.Clone(g.cfg.DefaultHeaders),
		"azure_ad_token_provider": provider,
	}), nil
}

type azureInitParameters struct {
	AzureEndpoint        string            `mapstructure:"azure_endpoint"`
	AzureDeployment      *string           `mapstructure:"azure_deployment"`
	Organization         string            `mapstructure:"organization"`
	APIVersion           *string           `mapstructure:"api_version"`
	StreamingCallback    string            `mapstructure:"streaming_callback"`
	GenerationKwargs     map[string]any    `mapstructure:"generation_kwargs"`
	SystemPrompt         string            `mapstructure:"system_prompt"`
	Timeout              *float64          `mapstructure:"timeout"`
	MaxRetries           *int              `mapstructure:"max_retries"`
	DefaultHeaders       map[string]string `mapstructure:"default_headers"`
	AzureADTokenProvider string            `mapstructure:"azure_ad_token_provider"`
}

// AzureOpenAIGeneratorFromDocument rebuilds a generator from ToDocument's
// output. Secret references are re-created, not resolved, and named
// callables must be registered in StreamingCallbacks / TokenProviders.
func AzureOpenAIGeneratorFromDocument(doc component.Document) (*AzureOpenAIGenerator, error) {
	if doc.Type != AzureOpenAIGeneratorType {
		return nil, errors.Configuration("document type %q is not %s", doc.Type, AzureOpenAIGeneratorType)
	}

	var p azureInitParameters
	secrets, err := decodeInitParameters(doc.InitParameters, &p, "api_key", "azure_ad_token")
	if err != nil {
		return nil, err
	}
	callback, err := lookupStreamingCallback(p.StreamingCallback)
	if err != nil {
		return nil, err
	}
	provider, err := lookupTokenProvider(p.AzureADTokenProvider)
	if err != nil {
		return nil, err
	}

	opts := []AzureOption{
		WithAzureEndpoint(p.AzureEndpoint),
		WithAzureOrganization(p.Organization),
		WithAzureStreamingCallback(callback),
		WithAzureADTokenProvider(provider),
		WithAzureSystemPrompt(p.SystemPrompt),
		WithAzureGenerationKwargs(p.GenerationKwargs),
		WithAzureDefaultHeaders(p.DefaultHeaders),
	}
	if p.AzureDeployment != nil {
		opts = append(opts, WithAzureDeployment(*p.AzureDeployment))
	}
	if p.APIVersion != nil {
		opts = append(opts, WithAzureAPIVersion(*p.APIVersion))
	}
	if p.Timeout != nil {
		opts = append(opts, WithAzureTimeout(*p.Timeout))
	}
	if p.MaxRetries != nil {
		opts = append(opts, WithAzureMaxRetries(*p.MaxRetries))
	}
	if s, ok := secrets["api_key"]; ok {
		opts = append(opts, WithAzureAPIKey(s))
	}
	if s, ok := secrets["azure_ad_token"]; ok {
		opts = append(opts, WithAzureADToken(s))
	}
	return NewAzureOpenAIGenerator(opts...)
}

func WithAzureEndpoint(endpoint string) AzureOption {
	return func(o *azureOptions) {
		o.cfg.Endpoint = endpoint
	}
}

func WithAzureAPIVersion(version string) AzureOption {
	return func(o *azureOptions) {
		o.cfg.APIVersion = version
	}
}

func WithAzureDeployment(deployment string) AzureOption {
	return func(o *azureOptions) {
		o.cfg.Deployment = deployment
	}
}

// WithAzureAPIKey sets the API key reference. Passing nil removes the
// default AZURE_OPENAI_API_KEY reference.
func WithAzureAPIKey(key *secret.Secret) AzureOption {
	return func(o *azureOptions) {
		o.cfg.APIKey = key
	}
}

// WithAzureADToken sets the Azure AD token reference. Passing nil removes the
// default AZURE_OPENAI_AD_TOKEN reference.
func WithAzureADToken(token *secret.Secret) AzureOption {
	return func(o *azureOptions) {
		o.cfg.ADToken = token
	}
}

func WithAzureOrganization(organization string) AzureOption {
	return func(o *azureOptions) {
		o.cfg.Organization = organization
	}
}

func WithAzureStreamingCallback(cb StreamingCallback) AzureOption {
	return func(o *azureOptions) {
		o.cfg.StreamingCallback = cb
	}
}

func WithAzureADTokenProvider(provider TokenProvider) AzureOption {
	return func(o *azureOptions) {
		o.cfg.ADTokenProvider = provider
	}
}

func WithAzureSystemPrompt(prompt string) AzureOption {
	return func(o *azureOptions) {
		o.cfg.SystemPrompt = prompt
	}
}

func WithAzureGenerationKwargs(kwargs map[string]any) AzureOption {
	return func(o *azureOptions) {
		o.cfg.GenerationKwargs = kwargs
	}
}

func WithAzureDefaultHeaders(headers map[string]string) AzureOption {
	return func(o *azureOptions) {
		o.cfg.DefaultHeaders = headers
	}
}

// WithAzureTimeout sets the request timeout in seconds. When unset it comes
// from OPENAI_TIMEOUT, or 30.
func WithAzureTimeout(seconds float64) AzureOption {
	return func(o *azureOptions) {
		o.timeout = &seconds
	}
}

// WithAzureMaxRetries sets how often the client retries failed requests.
// When unset it comes from OPENAI_MAX_RETRIES, or 5.
func WithAzureMaxRetries(retries int) AzureOption {
	return func(o *azureOptions) {
		o.maxRetries = &retries
	}
}
