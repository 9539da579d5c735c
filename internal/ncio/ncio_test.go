package ncio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper building a cube whose values survive a float32 round trip
// exactly
func testCube(name string, float32Storage bool) *Cube {
	data := sparse.ZerosDense(2, 4, 5)
	for k := range data.Elements {
		v := 0.25*float64(k) - 3
		if float32Storage {
			v = float64(float32(v))
		}
		data.Elements[k] = v
	}
	c := &Cube{
		Name: name,
		Dims: []string{"time", "latitude", "longitude"},
		Data: data,
		Attrs: map[string]interface{}{
			"units":      "K",
			"_FillValue": []float32{1e20},
		},
		Float32: float32Storage,
	}
	return c
}

func TestWriteReadRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		float32 bool
	}{
		{"float64 storage", false},
		{"float32 storage", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "field.nc")
			want := testCube("sst", tc.float32)
			require.NoError(t, WriteCube(path, want))

			got, err := ReadCube(path, "sst")
			require.NoError(t, err)

			assert.Equal(t, "sst", got.Name)
			assert.Equal(t, want.Dims, got.Dims)
			assert.Equal(t, tc.float32, got.Float32)
			require.Equal(t, want.Data.Shape, got.Data.Shape)
			for k := range want.Data.Elements {
				assert.Equal(t, want.Data.Elements[k], got.Data.Elements[k], "element %d", k)
			}
			assert.Equal(t, "K", got.Attrs["units"])
		})
	}
}

func TestSentinelFromAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.nc")
	require.NoError(t, WriteCube(path, testCube("sst", true)))

	c, err := ReadCube(path, "sst")
	require.NoError(t, err)

	s, ok := c.Sentinel()
	require.True(t, ok, "expected a sentinel from _FillValue")
	// The attribute is stored single precision; the sentinel must be its
	// float64 image so it matches the converted data exactly.
	assert.Equal(t, float64(float32(1e20)), s)

	// missing_value is honoured when _FillValue is absent.
	c2 := &Cube{Attrs: map[string]interface{}{"missing_value": []float64{-999}}}
	s2, ok := c2.Sentinel()
	require.True(t, ok)
	assert.Equal(t, -999.0, s2)

	// No marker at all.
	c3 := &Cube{Attrs: map[string]interface{}{}}
	_, ok = c3.Sentinel()
	assert.False(t, ok)
}

func TestGridAxes(t *testing.T) {
	c := testCube("sst", false) // dims: time, latitude, longitude

	lat, lon, err := c.GridAxes("", "")
	require.NoError(t, err)
	assert.Equal(t, 1, lat)
	assert.Equal(t, 2, lon)

	lat, lon, err = c.GridAxes("latitude", "longitude")
	require.NoError(t, err)
	assert.Equal(t, 1, lat)
	assert.Equal(t, 2, lon)

	// Transposed storage is resolvable by name.
	c.Dims = []string{"longitude", "latitude"}
	lat, lon, err = c.GridAxes("latitude", "longitude")
	require.NoError(t, err)
	assert.Equal(t, 1, lat)
	assert.Equal(t, 0, lon)

	_, _, err = c.GridAxes("depth", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dimension")

	c.Dims = []string{"time"}
	_, _, err = c.GridAxes("", "")
	require.Error(t, err)
}

func TestReadCubeDefaultVariable(t *testing.T) {
	// Build a file holding a 1-D coordinate variable and a 2-D field; the
	// default pick must skip the coordinate.
	path := filepath.Join(t.TempDir(), "multi.nc")
	h := cdf.NewHeader([]string{"time", "latitude", "longitude"}, []int{3, 4, 5})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddVariable("sst", []string{"latitude", "longitude"}, []float64{0})
	h.Define()

	fh, err := os.Create(path)
	require.NoError(t, err)
	f, err := cdf.Create(fh, h)
	require.NoError(t, err)
	w := f.Writer("time", []int{0}, []int{3})
	_, err = w.Write([]float64{0, 1, 2})
	require.NoError(t, err)
	field := make([]float64, 20)
	for k := range field {
		field[k] = float64(k)
	}
	w = f.Writer("sst", []int{0, 0}, []int{4, 5})
	_, err = w.Write(field)
	require.NoError(t, err)
	require.NoError(t, cdf.UpdateNumRecs(fh))
	require.NoError(t, fh.Close())

	c, err := ReadCube(path, "")
	require.NoError(t, err)
	assert.Equal(t, "sst", c.Name)
	assert.Equal(t, []int{4, 5}, c.Data.Shape)
	assert.Equal(t, 7.0, c.Data.Get(1, 2))
}

func TestReadCubeMissingVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.nc")
	require.NoError(t, WriteCube(path, testCube("sst", false)))

	_, err := ReadCube(path, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no variable")
}

func TestWriteCubeValidation(t *testing.T) {
	dir := t.TempDir()

	err := WriteCube(filepath.Join(dir, "nil.nc"), nil)
	require.Error(t, err)

	c := testCube("sst", false)
	c.Dims = []string{"only-one"}
	err = WriteCube(filepath.Join(dir, "dims.nc"), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension names")
}
