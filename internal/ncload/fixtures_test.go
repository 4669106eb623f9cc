package ncload

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/require"
)

type ncVar struct {
	name   string
	values any
	dims   []string
	attrs  map[string]any
}

func attributes(t *testing.T, m map[string]any) api.AttributeMap {
	t.Helper()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	om, err := util.NewOrderedMap(keys, m)
	require.NoError(t, err)
	return om
}

// writeNC writes a classic NetCDF file holding vars.
func writeNC(t *testing.T, path string, vars ...ncVar) {
	t.Helper()
	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)
	for _, v := range vars {
		err := cw.AddVar(v.name, api.Variable{
			Values:     v.values,
			Dimensions: v.dims,
			Attributes: attributes(t, v.attrs),
		})
		require.NoError(t, err)
	}
	require.NoError(t, cw.Close())
}

func writeGarbage(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("<html>not a netcdf file</html>"), 0o644))
}

var (
	fixtureLats = []float32{10, 0}
	fixtureLons = []float32{100, 110}
)

func coordVars() []ncVar {
	return []ncVar{
		{name: "lat", values: fixtureLats, dims: []string{"lat"}, attrs: map[string]any{"units": "degrees_north"}},
		{name: "lon", values: fixtureLons, dims: []string{"lon"}, attrs: map[string]any{"units": "degrees_east"}},
	}
}

// writeComposite writes an 8-day SST composite with packed int16 values.
func writeComposite(t *testing.T, dir, name string, sst [][]int16) string {
	t.Helper()
	path := filepath.Join(dir, name)
	vars := append(coordVars(), ncVar{
		name:   "sst",
		values: sst,
		dims:   []string{"lat", "lon"},
		attrs: map[string]any{
			"_FillValue":   []int16{-32767},
			"scale_factor": []float32{0.01},
			"add_offset":   []float32{0},
		},
	})
	writeNC(t, path, vars...)
	return path
}
