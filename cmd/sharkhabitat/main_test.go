package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/sharkhabitat/internal/config"
)

func testApp(t *testing.T) *app {
	t.Helper()
	catalog, err := config.LoadCatalog("")
	require.NoError(t, err)
	return &app{catalog: catalog, logger: slog.Default()}
}

func names(sources []*config.SourceConfig) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Name
	}
	return out
}

func TestSelectSources(t *testing.T) {
	a := testApp(t)

	got, err := a.selectSources(config.FetchOceanColor, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"chlor_a", "sst"}, names(got))

	got, err = a.selectSources(config.FetchCMR, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sss"}, names(got))

	got, err = a.selectSources(config.FetchOceanColor, []string{"sst", "ssha"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sst"}, names(got))

	_, err = a.selectSources(config.FetchOceanColor, []string{"chlorophyll"})
	assert.ErrorContains(t, err, "unknown source")
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := setupLogger(tt.level, "text")
			assert.True(t, logger.Enabled(context.Background(), tt.want))
			assert.False(t, logger.Enabled(context.Background(), tt.want-1))
		})
	}
}

func TestRootCmd(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"build"},
		{"serve"},
		{"fetch", "oceancolor"},
		{"fetch", "cmr"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	cmd, _, err := root.Find([]string{"fetch", "oceancolor"})
	require.NoError(t, err)
	assert.NotNil(t, cmd.Flags().Lookup("verify"))
	assert.NotNil(t, cmd.InheritedFlags().Lookup("index-only"))
}
