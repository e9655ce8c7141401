package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	err := New(ErrNotFound, "not found")
	require.Equal(t, "not found", err.Error())
	require.Equal(t, ErrNotFound, err.Code)

	err = Newf(ErrBadRequest, "bad request %d", 400)
	require.Equal(t, "bad request 400", err.Error())
	require.Equal(t, ErrBadRequest, err.Code)
}

func TestKinds(t *testing.T) {
	cfgErr := Configuration("missing %s", "endpoint")
	require.Equal(t, "missing endpoint", cfgErr.Error())
	require.True(t, IsConfiguration(cfgErr))
	require.False(t, IsResolution(cfgErr))

	wrapped := fmt.Errorf("building generator: %w", Resolution("env var %q not set", "X"))
	require.True(t, IsResolution(wrapped))
	require.False(t, IsConfiguration(wrapped))

	require.Equal(t, ErrUnknown, Code(io.EOF))
	require.False(t, IsConfiguration(nil))
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrResolution, io.EOF, "reading token")
	require.Equal(t, "reading token: EOF", err.Error())
	require.ErrorIs(t, err, io.EOF)
	require.True(t, IsResolution(err))
}
