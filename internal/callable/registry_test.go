package callable

import (
	"testing"

	"github.com/opencode-ai/genpipe/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handler func(string) string

func upper(s string) string { return "U:" + s }
func lower(s string) string { return "L:" + s }

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry[handler]()
	require.NoError(t, r.Register("upper", upper))
	require.NoError(t, r.Register("lower", lower))

	name, err := r.NameOf(upper)
	require.NoError(t, err)
	assert.Equal(t, "upper", name)

	fn, err := r.Lookup(name)
	require.NoError(t, err)
	assert.Equal(t, "U:x", fn("x"))

	assert.Equal(t, []string{"lower", "upper"}, r.Names())
}

func TestRegistryUnknown(t *testing.T) {
	r := NewRegistry[handler]()

	_, err := r.Lookup("missing")
	require.Error(t, err)
	assert.True(t, errors.IsResolution(err))

	_, err = r.NameOf(upper)
	require.Error(t, err)
	assert.True(t, errors.IsResolution(err))
}

func TestRegistryRejectsInvalid(t *testing.T) {
	r := NewRegistry[handler]()

	err := r.Register("nil", nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	err = r.Register("", upper)
	require.Error(t, err)

	ints := NewRegistry[int]()
	err = ints.Register("one", 1)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry[handler]()
	r.MustRegister("h", upper)
	r.MustRegister("h", lower)

	fn, err := r.Lookup("h")
	require.NoError(t, err)
	assert.Equal(t, "L:x", fn("x"))

	_, err = r.NameOf(upper)
	require.Error(t, err)

	name, err := r.NameOf(lower)
	require.NoError(t, err)
	assert.Equal(t, "h", name)
}

func TestRegistryFirstNameWins(t *testing.T) {
	r := NewRegistry[handler]()
	r.MustRegister("first", upper)
	r.MustRegister("alias", upper)

	name, err := r.NameOf(upper)
	require.NoError(t, err)
	assert.Equal(t, "first", name)

	fn, err := r.Lookup("alias")
	require.NoError(t, err)
	assert.Equal(t, "U:y", fn("y"))
}
