package secret

import (
	"fmt"
	"testing"

	"github.com/opencode-ai/genpipe/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveToken(t *testing.T) {
	s := FromToken("sk-literal")
	v, ok, err := s.Resolve()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-literal", v)
	assert.Equal(t, "token(***)", s.String())
}

func TestResolveEnvVar(t *testing.T) {
	t.Run("first set variable wins", func(t *testing.T) {
		t.Setenv("GENPIPE_TEST_A", "")
		t.Setenv("GENPIPE_TEST_B", "from-b")
		// GENPIPE_TEST_A is set to the empty string, which still counts as set.
		v, ok, err := FromEnvVar(true, "GENPIPE_TEST_A", "GENPIPE_TEST_B").Resolve()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "", v)

		v, ok, err = FromEnvVar(true, "GENPIPE_TEST_UNSET_1", "GENPIPE_TEST_B").Resolve()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "from-b", v)
	})

	t.Run("strict missing fails", func(t *testing.T) {
		_, _, err := FromEnvVar(true, "GENPIPE_TEST_UNSET_2").Resolve()
		require.Error(t, err)
		assert.True(t, errors.IsResolution(err))
		assert.Contains(t, err.Error(), "GENPIPE_TEST_UNSET_2")
	})

	t.Run("non-strict missing is absent", func(t *testing.T) {
		v, ok, err := FromEnvVar(false, "GENPIPE_TEST_UNSET_3").Resolve()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})
}

func TestToDocument(t *testing.T) {
	t.Setenv("GENPIPE_TEST_KEY", "super-secret-value")

	doc, err := FromEnvVar(false, "GENPIPE_TEST_KEY").ToDocument()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"type":     "env_var",
		"env_vars": []string{"GENPIPE_TEST_KEY"},
		"strict":   false,
	}, doc)
	assert.NotContains(t, fmt.Sprint(doc), "super-secret-value")

	_, err = FromToken("sk-literal").ToDocument()
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestFromDocument(t *testing.T) {
	t.Run("env var round trip", func(t *testing.T) {
		orig := FromEnvVar(true, "A", "B")
		doc, err := orig.ToDocument()
		require.NoError(t, err)

		got, err := FromDocument(doc)
		require.NoError(t, err)
		assert.True(t, orig.Equal(got))
	})

	t.Run("decoded json shape", func(t *testing.T) {
		got, err := FromDocument(map[string]any{
			"type":     "env_var",
			"env_vars": []any{"AZURE_OPENAI_API_KEY"},
			"strict":   false,
		})
		require.NoError(t, err)
		assert.Equal(t, TypeEnvVar, got.Type())
		assert.Equal(t, []string{"AZURE_OPENAI_API_KEY"}, got.EnvVars())
		assert.False(t, got.Strict())
	})

	t.Run("token rejected", func(t *testing.T) {
		_, err := FromDocument(map[string]any{"type": "token"})
		require.Error(t, err)
		assert.True(t, errors.IsConfiguration(err))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := FromDocument(map[string]any{"type": "vault", "env_vars": []any{"X"}})
		require.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := FromDocument(map[string]any{"type": "env_var", "env_vars": []any{"X"}, "value": "leak"})
		require.Error(t, err)
	})
}

func TestDeserializeInPlace(t *testing.T) {
	params := map[string]any{
		"api_key":        map[string]any{"type": "env_var", "env_vars": []any{"K"}, "strict": true},
		"azure_ad_token": nil,
		"other":          "untouched",
	}
	require.NoError(t, DeserializeInPlace(params, "api_key", "azure_ad_token", "missing"))

	key, ok := params["api_key"].(*Secret)
	require.True(t, ok)
	assert.True(t, FromEnvVar(true, "K").Equal(key))
	assert.Nil(t, params["azure_ad_token"])
	assert.Equal(t, "untouched", params["other"])

	params = map[string]any{"api_key": "plain-string"}
	err := DeserializeInPlace(params, "api_key")
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestEqual(t *testing.T) {
	var nilSecret *Secret
	assert.True(t, nilSecret.Equal(nil))
	assert.False(t, nilSecret.Equal(FromToken("x")))
	assert.False(t, FromEnvVar(true, "A").Equal(FromEnvVar(false, "A")))
	assert.True(t, FromToken("x").Equal(FromToken("x")))
}
