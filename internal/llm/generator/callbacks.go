package generator

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/opencode-ai/genpipe/internal/callable"
)

// TokenProvider returns a fresh Azure AD bearer token. The client calls it on
// every outbound request, possibly from several goroutines at once.
type TokenProvider func(ctx context.Context) (string, error)

// StreamingCallbacks and TokenProviders name the callables a generator
// document may refer to. Register custom handlers here before loading a
// pipeline that uses them.
var (
	StreamingCallbacks = callable.NewRegistry[StreamingCallback]()
	TokenProviders     = callable.NewRegistry[TokenProvider]()
)

func init() {
	StreamingCallbacks.MustRegister("print_streaming_chunk", PrintStreamingChunk)
	TokenProviders.MustRegister("azure_default_credential", DefaultAzureCredentialToken)
}

// PrintStreamingChunk writes each chunk to standard output as it arrives.
func PrintStreamingChunk(chunk StreamingChunk) {
	fmt.Fprint(os.Stdout, chunk.Content)
}

const cognitiveServicesScope = "https://cognitiveservices.azure.com/.default"

var (
	defaultCredentialOnce sync.Once
	defaultCredential     *azidentity.DefaultAzureCredential
	defaultCredentialErr  error
)

// DefaultAzureCredentialToken gets a Cognitive Services token from the
// azidentity default credential chain (environment, workload identity,
// managed identity, Azure CLI).
func DefaultAzureCredentialToken(ctx context.Context) (string, error) {
	defaultCredentialOnce.Do(func() {
		defaultCredential, defaultCredentialErr = azidentity.NewDefaultAzureCredential(nil)
	})
	if defaultCredentialErr != nil {
		return "", fmt.Errorf("creating default Azure credential: %w", defaultCredentialErr)
	}

	token, err := defaultCredential.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{cognitiveServicesScope},
	})
	if err != nil {
		return "", fmt.Errorf("getting Azure AD token: %w", err)
	}
	return token.Token, nil
}

// callbackName returns the registered name of cb, or nil when cb is unset.
func callbackName(cb StreamingCallback) (any, error) {
	if cb == nil {
		return nil, nil
	}
	return StreamingCallbacks.NameOf(cb)
}

func tokenProviderName(p TokenProvider) (any, error) {
	if p == nil {
		return nil, nil
	}
	return TokenProviders.NameOf(p)
}
