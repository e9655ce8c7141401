// Package secret holds credential references that are resolved only when a
// value is actually needed.
//
// A Secret is either a literal token or a list of environment variable names.
// Only the environment variable form can be written to a document; literal
// tokens are refused so that resolved credentials never end up in a saved
// pipeline.
package secret

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/opencode-ai/genpipe/internal/errors"
)

type Type string

const (
	TypeToken  Type = "token"
	TypeEnvVar Type = "env_var"
)

type Secret struct {
	kind    Type
	token   string
	envVars []string
	strict  bool
}

// FromToken returns a secret holding a literal value.
func FromToken(token string) *Secret {
	return &Secret{kind: TypeToken, token: token}
}

// FromEnvVar returns a secret that resolves to the first of names that is set
// in the environment. A strict secret fails to resolve when none is set; a
// non-strict one resolves to an empty value.
func FromEnvVar(strict bool, names ...string) *Secret {
	return &Secret{kind: TypeEnvVar, envVars: slices.Clone(names), strict: strict}
}

func (s *Secret) Type() Type {
	return s.kind
}

// EnvVars returns the variable names an env_var secret reads, in lookup order.
func (s *Secret) EnvVars() []string {
	return slices.Clone(s.envVars)
}

func (s *Secret) Strict() bool {
	return s.strict
}

// Resolve returns the secret's value. ok is false when a non-strict env_var
// secret found none of its variables.
func (s *Secret) Resolve() (value string, ok bool, err error) {
	switch s.kind {
	case TypeToken:
		return s.token, true, nil
	case TypeEnvVar:
		for _, name := range s.envVars {
			if v, found := os.LookupEnv(name); found {
				return v, true, nil
			}
		}
		if s.strict {
			return "", false, errors.Resolution("none of the environment variables %s are set", strings.Join(s.envVars, ", "))
		}
		return "", false, nil
	default:
		return "", false, errors.Resolution("unknown secret type %q", s.kind)
	}
}

// Equal reports whether both secrets reference the same source. Token secrets
// compare by value.
func (s *Secret) Equal(other *Secret) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.kind == other.kind &&
		s.token == other.token &&
		s.strict == other.strict &&
		slices.Equal(s.envVars, other.envVars)
}

func (s *Secret) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.kind == TypeToken {
		return "token(***)"
	}
	return fmt.Sprintf("env_var(%s)", strings.Join(s.envVars, ","))
}

func (s *Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

type document struct {
	Type    Type     `mapstructure:"type"`
	EnvVars []string `mapstructure:"env_vars"`
	Strict  bool     `mapstructure:"strict"`
}

// ToDocument returns the serializable form of an env_var secret.
func (s *Secret) ToDocument() (map[string]any, error) {
	if s.kind != TypeEnvVar {
		return nil, errors.Configuration("cannot serialize a %s secret; use an environment variable secret instead", s.kind)
	}
	return map[string]any{
		"type":     string(TypeEnvVar),
		"env_vars": slices.Clone(s.envVars),
		"strict":   s.strict,
	}, nil
}

// FromDocument rebuilds a secret from the output of ToDocument. Environment
// variables are not read here.
func FromDocument(data map[string]any) (*Secret, error) {
	var doc document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, errors.Wrap(errors.ErrConfiguration, err, "invalid secret document")
	}

	switch doc.Type {
	case TypeEnvVar:
		if len(doc.EnvVars) == 0 {
			return nil, errors.Configuration("env_var secret document has no env_vars")
		}
		return FromEnvVar(doc.Strict, doc.EnvVars...), nil
	case TypeToken:
		return nil, errors.Configuration("token secrets cannot be loaded from a document")
	default:
		return nil, errors.Configuration("unknown secret type %q", doc.Type)
	}
}

// DeserializeInPlace replaces each of keys in params that holds a secret
// document with the corresponding *Secret. Missing and nil entries are left
// untouched.
func DeserializeInPlace(params map[string]any, keys ...string) error {
	for _, key := range keys {
		raw, ok := params[key]
		if !ok || raw == nil {
			continue
		}
		if _, already := raw.(*Secret); already {
			continue
		}
		data, ok := toStringMap(raw)
		if !ok {
			return errors.Configuration("%s: expected a secret document, got %T", key, raw)
		}
		s, err := FromDocument(data)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		params[key] = s
	}
	return nil
}

// toStringMap accepts both map[string]any (JSON, yaml.v3) and the
// map[any]any some YAML decoders produce.
func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
