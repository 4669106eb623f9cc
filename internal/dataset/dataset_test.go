package dataset

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
	"github.com/robert-malhotra/sharkhabitat/internal/join"
)

func sampleTable() *join.Table {
	t := &join.Table{Sources: []string{"chlor_a", "sst", "ssha"}}
	add := func(tm time.Time, lat, lon float64, label int, values ...float64) {
		row := join.Row{
			Point:  field.Point{Time: tm, Lat: lat, Lon: lon, Label: label},
			Values: values,
		}
		row.DaySin, row.DayCos = join.DayFeatures(tm)
		t.Rows = append(t.Rows, row)
	}
	add(time.Date(2021, 3, 2, 10, 15, 0, 0, time.UTC), 25.123456789, -80.1, field.Presence, 0.1234, 24.5, -0.05)
	add(time.Date(2021, 7, 19, 0, 0, 0, 0, time.UTC), 26, -79.5, field.PseudoAbsence, 1e-7, 28.25, math.NaN())
	add(time.Date(2022, 12, 31, 23, 59, 59, 0, time.UTC), -10.5, 179.99, field.PseudoAbsence, 3, 1.0/3, 0.2)
	return t
}

func TestRoundTrip(t *testing.T) {
	want := sampleTable()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, want))

	got, err := Read(&buf)
	require.NoError(t, err)

	opts := cmp.Options{
		cmpopts.EquateApprox(0, 1e-12),
		cmpopts.EquateNaNs(),
	}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_FractionalSeconds(t *testing.T) {
	tm := time.Date(2021, 3, 2, 10, 15, 0, 250_000_000, time.UTC)
	want := &join.Table{Sources: []string{"sst"}}
	row := join.Row{
		Point:  field.Point{Time: tm, Lat: 25, Lon: -80, Label: field.Presence},
		Values: []float64{24.5},
	}
	row.DaySin, row.DayCos = join.DayFeatures(tm)
	want.Rows = append(want.Rows, row)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, want))
	got, err := Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	assert.True(t, tm.Equal(got.Rows[0].Time), "got %v", got.Rows[0].Time)

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	var plain bytes.Buffer
	_, err = plain.ReadFrom(zr)
	require.NoError(t, err)
	assert.Contains(t, plain.String(), "\n2021-03-02 10:15:00.25,25,-80,24.5,")
}

func TestWriteLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleTable()))

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	var plain bytes.Buffer
	_, err = plain.ReadFrom(zr)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(plain.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "time,lat,lon,chlor_a,sst,ssha,day_sin,day_cos,presence", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2021-03-02 10:15:00,25.123456789,-80.1,0.1234,24.5,-0.05,"))
	assert.True(t, strings.HasSuffix(lines[1], ",1"))
	assert.Contains(t, lines[2], ",28.25,,")
	assert.True(t, strings.HasSuffix(lines[2], ",0"))
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "final_model_data")
	path := filepath.Join(dir, FileName)

	require.NoError(t, WriteFile(path, sampleTable()))
	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got.Rows, 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	err := WriteFile(path, &join.Table{Sources: []string{"sst"}})
	assert.ErrorIs(t, err, ErrEmptyTable)
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadBadHeader(t *testing.T) {
	encode := func(s string) *bytes.Buffer {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(s))
		_ = zw.Close()
		return &buf
	}

	_, err := Read(encode("lat,lon,time,day_sin,day_cos,presence\n"))
	assert.ErrorIs(t, err, ErrBadHeader)

	_, err = Read(encode("time,lat,lon\n"))
	assert.ErrorIs(t, err, ErrBadHeader)

	tbl, err := Read(encode("time,lat,lon,day_sin,day_cos,presence\n2021-01-01 00:00:00,1,2,0.5,0.5,1\n"))
	require.NoError(t, err)
	assert.Empty(t, tbl.Sources)
	assert.Len(t, tbl.Rows, 1)

	_, err = Read(encode("time,lat,lon,day_sin,day_cos,presence\n2021-01-01 00:00:00,1,2,0.5,0.5,7\n"))
	assert.Error(t, err)

	_, err = Read(strings.NewReader("not gzip"))
	assert.Error(t, err)
}
