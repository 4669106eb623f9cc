package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/sharkhabitat/internal/backend"
	"github.com/robert-malhotra/sharkhabitat/internal/granules"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, path string, v any) int {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if v != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
	}
	return w.Code
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(context.Background(), Options{Logger: quietLogger()})
	assert.Error(t, err)
}

func TestNew_Empty(t *testing.T) {
	s, err := New(context.Background(), Options{
		BaseURL:   "http://localhost:8080",
		DataDir:   t.TempDir(),
		IndexPath: filepath.Join(t.TempDir(), "missing.db"),
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	assert.Empty(t, s.Layers())

	var health map[string]any
	assert.Equal(t, http.StatusOK, get(t, s.Router(), "/health", &health))
	assert.Equal(t, false, health["index"])
	assert.Equal(t, 0.0, health["layers"])

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sample", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNew_WithIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "granules.db")
	store, err := granules.Open(path, quietLogger())
	require.NoError(t, err)
	_, err = store.Upsert(context.Background(), backend.Granule{
		ID:         "sst_20210101",
		Collection: "sst",
		URL:        "https://archive.example/sst_20210101.nc",
		Name:       "sst_20210101.nc",
		Start:      time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2021, 1, 8, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	s, err := New(context.Background(), Options{
		BaseURL:   "http://localhost:8080",
		DataDir:   t.TempDir(),
		IndexPath: path,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	var list struct {
		Collections []struct {
			ID string `json:"id"`
		} `json:"collections"`
	}
	assert.Equal(t, http.StatusOK, get(t, s.Router(), "/collections", &list))
	require.Len(t, list.Collections, 1)
	assert.Equal(t, "sst", list.Collections[0].ID)
}
