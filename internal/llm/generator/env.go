package generator

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	envAzureEndpoint = "AZURE_OPENAI_ENDPOINT"
	envAzureAPIKey   = "AZURE_OPENAI_API_KEY"
	envAzureADToken  = "AZURE_OPENAI_AD_TOKEN"
	envOpenAIAPIKey  = "OPENAI_API_KEY"
	envTimeout       = "OPENAI_TIMEOUT"
	envMaxRetries    = "OPENAI_MAX_RETRIES"

	defaultTimeout    = 30.0
	defaultMaxRetries = 5
)

// timeoutFromEnv returns OPENAI_TIMEOUT in seconds, or the default when the
// variable is unset. A value that is not a number is an error.
func timeoutFromEnv() (float64, error) {
	raw, ok := os.LookupEnv(envTimeout)
	if !ok {
		return defaultTimeout, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q: %w", envTimeout, raw, err)
	}
	return v, nil
}

// maxRetriesFromEnv returns OPENAI_MAX_RETRIES as a plain decimal integer.
// "010" is ten, and "0x10" or "5.0" are errors.
func maxRetriesFromEnv() (int, error) {
	raw, ok := os.LookupEnv(envMaxRetries)
	if !ok {
		return defaultMaxRetries, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q: %w", envMaxRetries, raw, err)
	}
	return v, nil
}
