package backend

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/sharkhabitat/internal/download"
	"github.com/robert-malhotra/sharkhabitat/internal/oceancolor"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOceanColorSource_Granules(t *testing.T) {
	src := NewOceanColorSource(oceancolor.NewClient("", "", time.Second), quietLogger())
	assert.Equal(t, "oceancolor", src.Name())

	granules, err := src.Granules(context.Background(), &Request{
		Collection: "chlor_a",
		Start:      time.Date(2020, 12, 20, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2021, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, granules, 2)

	g := granules[0]
	assert.Equal(t, "AQUA_MODIS.20201226_20201231.L3m.8D.CHL.chlor_a.4km.nc", g.ID)
	assert.Equal(t, "chlor_a", g.Collection)
	assert.Equal(t, time.Date(2020, 12, 31, 23, 59, 59, 0, time.UTC), g.End)
	assert.Equal(t, download.Target{URL: oceancolor.DefaultBaseURL + g.Name, Name: g.Name}, g.Target())
}

func TestOceanColorSource_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "AQUA_MODIS.20210101.L3m.DAY.SST.sst.4km.nc\n")
	}))
	defer server.Close()

	src := NewOceanColorSource(oceancolor.NewClient("", server.URL, time.Second).WithLogger(quietLogger()), quietLogger())
	granules, err := src.Granules(context.Background(), &Request{
		Collection: "sst",
		Composite:  "daily",
		Start:      time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC),
		Verify:     true,
	})
	require.NoError(t, err)
	require.Len(t, granules, 1)
	assert.Equal(t, "AQUA_MODIS.20210101.L3m.DAY.SST.sst.4km.nc", granules[0].Name)
}

func TestOceanColorSource_Errors(t *testing.T) {
	src := NewOceanColorSource(oceancolor.NewClient("", "", time.Second), quietLogger())
	_, err := src.Granules(context.Background(), &Request{Collection: "sst", Composite: "monthly"})
	assert.Error(t, err)
	_, err = src.Granules(context.Background(), &Request{Collection: "salt"})
	assert.Error(t, err)
}

func TestDedupe(t *testing.T) {
	gs := []Granule{
		{ID: "a", URL: "https://x/1.nc"},
		{ID: "b", URL: "https://x/2.nc"},
		{ID: "c", URL: "https://x/1.nc"},
	}
	out := Dedupe(gs)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)

	targets := Targets(out)
	assert.Equal(t, "https://x/2.nc", targets[1].URL)
}
