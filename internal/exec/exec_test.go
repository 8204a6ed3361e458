//go:build linux || darwin

package exec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRelease(t *testing.T) {
	// `ret` (0xC3): the smallest valid, safely callable function body.
	code := []byte{0xC3}

	ex, err := Publish(code)
	require.NoError(t, err)
	require.NotZero(t, ex.Entry)

	require.NoError(t, ex.Release())
	require.Error(t, ex.Release())
}

func TestPublishPanicsOnEmpty(t *testing.T) {
	require.Panics(t, func() {
		_, _ = Publish(nil)
	})
}
