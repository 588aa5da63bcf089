package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{string(FlagDisablePathQuery)})

	t.Run("run if enabled", func(t *testing.T) {
		var runPathQuery bool
		f.IfSet(FlagDisablePathQuery, func() {
			runPathQuery = true
		})
		require.True(t, runPathQuery)

		var runDebugInfo bool
		f.IfSet(FlagDisableDebugInfo, func() {
			runDebugInfo = true
		})
		require.False(t, runDebugInfo)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runPathQuery bool
		f.IfNotSet(FlagDisablePathQuery, func() {
			runPathQuery = true
		})
		require.False(t, runPathQuery)

		var runDebugInfo bool
		f.IfNotSet(FlagDisableDebugInfo, func() {
			runDebugInfo = true
		})
		require.True(t, runDebugInfo)
	})

	t.Run("is set", func(t *testing.T) {
		require.True(t, f.IsSet(FlagDisablePathQuery))
		require.False(t, f.IsSet(FlagDisableDebugInfo))
		require.False(t, New(nil).IsSet(FlagDisablePathQuery))
	})

	t.Run("flags are normalized", func(t *testing.T) {
		f := New([]string{" disable_map_reset ", "", "DISABLE_DEBUG_INFO"})
		require.True(t, f.IsSet(FlagDisableMapReset))
		require.True(t, f.IsSet(FlagDisableDebugInfo))
		require.Equal(t, []string{"DISABLE_DEBUG_INFO", "DISABLE_MAP_RESET"}, f.List())
	})
}
