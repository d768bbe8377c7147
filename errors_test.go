package wamp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFields(t *testing.T) {
	err := NewError("some_uri", "some description", map[string]any{"key": "value"})
	require.Equal(t, "some_uri", err.URI)
	require.Equal(t, "some description", err.Desc)
	require.Equal(t, map[string]any{"key": "value"}, err.Details.(map[string]any))
	require.Equal(t, "some_uri: some description", err.Error())
}

func TestErrorAs(t *testing.T) {
	var err error = NewError(BadPrefixURI, "unrecognized prefix", map[string]any{"code": 404})
	wrapped := fmt.Errorf("handling failed: %w", err)

	var werr *Error
	require.ErrorAs(t, wrapped, &werr)
	require.Equal(t, BadPrefixURI, werr.URI)
}

func TestHookMissingSentinel(t *testing.T) {
	err := fmt.Errorf("callresult: %w", ErrHookMissing)
	require.ErrorIs(t, err, ErrHookMissing)
	require.False(t, errors.Is(err, errors.New("hook not installed")))
}
