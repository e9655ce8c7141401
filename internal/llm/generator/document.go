package generator

import (
	"maps"

	"github.com/go-viper/mapstructure/v2"
	"github.com/opencode-ai/genpipe/internal/errors"
	"github.com/opencode-ai/genpipe/internal/secret"
)

// decodeInitParameters pulls the secret keys out of params and decodes the
// remaining parameters into out. Unknown parameters are an error.
//
// A secret key present in the result was present in the document: a nil
// value there is an explicit null, which clears the default reference. A
// missing key keeps the default.
func decodeInitParameters(params map[string]any, out any, secretKeys ...string) (map[string]*secret.Secret, error) {
	rest := maps.Clone(params)
	if rest == nil {
		rest = map[string]any{}
	}
	if err := secret.DeserializeInPlace(rest, secretKeys...); err != nil {
		return nil, err
	}

	secrets := make(map[string]*secret.Secret, len(secretKeys))
	for _, key := range secretKeys {
		v, ok := rest[key]
		if !ok {
			continue
		}
		delete(rest, key)
		s, _ := v.(*secret.Secret)
		secrets[key] = s
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(rest); err != nil {
		return nil, errors.Wrap(errors.ErrConfiguration, err, "invalid init parameters")
	}
	return secrets, nil
}

func secretDocument(s *secret.Secret) (any, error) {
	if s == nil {
		return nil, nil
	}
	return s.ToDocument()
}

func lookupStreamingCallback(name string) (StreamingCallback, error) {
	if name == "" {
		return nil, nil
	}
	return StreamingCallbacks.Lookup(name)
}

func lookupTokenProvider(name string) (TokenProvider, error) {
	if name == "" {
		return nil, nil
	}
	return TokenProviders.Lookup(name)
}

func optionalString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
