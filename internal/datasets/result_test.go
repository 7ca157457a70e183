package datasets

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/cdsstore/internal/cdstest"
)

func writeDailyFiles(t *testing.T, dir string, days ...time.Time) []string {
	t.Helper()
	var files []string
	for _, d := range days {
		path := filepath.Join(dir, "C3S-SOILMOISTURE-"+d.Format("20060102")+".nc")
		require.NoError(t, cdstest.SoilMoistureFile(path, d, []float64{0.25, 0}, []float64{0, 0.25}))
		files = append(files, path)
	}
	return files
}

func TestOpenResult_TarGz(t *testing.T) {
	src, tmp := t.TempDir(), t.TempDir()
	// archive order differs from time order
	files := writeDailyFiles(t, src, date(2015, 1, 2, 0), date(2015, 1, 1, 0))
	archive := filepath.Join(src, "result")
	require.NoError(t, cdstest.WriteTarGz(archive, files...))

	ds, err := OpenResult(archive, tmp)
	require.NoError(t, err)
	require.NoError(t, ds.Validate())

	ts, err := ds.Times()
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2015, 1, 1, 0), date(2015, 1, 2, 0)}, ts)
	assert.Equal(t, 2, ds.Dims()["time"])
}

func TestOpenResult_Zip(t *testing.T) {
	src, tmp := t.TempDir(), t.TempDir()
	files := writeDailyFiles(t, src, date(2015, 1, 1, 0), date(2015, 1, 2, 0), date(2015, 1, 3, 0))
	archive := filepath.Join(src, "result.zip")
	writeZip(t, archive, files...)

	ds, err := OpenResult(archive, tmp)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Dims()["time"])
}

func TestOpenResult_SingleFile(t *testing.T) {
	files := writeDailyFiles(t, t.TempDir(), date(2015, 1, 1, 0))

	ds, err := OpenResult(files[0], t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"flag", "sm"}, ds.DataVarNames())
}

func TestOpenResult_EmptyArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "result")
	require.NoError(t, cdstest.WriteTarGz(archive))

	_, err := OpenResult(archive, t.TempDir())
	assert.Error(t, err)
}

func TestOpenResult_SameBaseName(t *testing.T) {
	src, tmp := t.TempDir(), t.TempDir()
	day1 := writeDailyFiles(t, filepath.Join(src, "a"), date(2015, 1, 1, 0))
	day2 := writeDailyFiles(t, filepath.Join(src, "b"), date(2015, 1, 2, 0))
	archive := filepath.Join(src, "result.zip")
	writeZipMembers(t, archive, map[string]string{
		"2015/01/sm.nc": day1[0],
		"2015/02/sm.nc": day2[0],
	})

	ds, err := OpenResult(archive, tmp)
	require.NoError(t, err)
	ts, err := ds.Times()
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2015, 1, 1, 0), date(2015, 1, 2, 0)}, ts)
	assert.FileExists(t, filepath.Join(tmp, "2015", "01", "sm.nc"))
}

func writeZip(t *testing.T, path string, files ...string) {
	t.Helper()
	members := map[string]string{}
	for _, f := range files {
		members["data/"+filepath.Base(f)] = f
	}
	writeZipMembers(t, path, members)
}

// writeZipMembers writes each source file under its member name.
func writeZipMembers(t *testing.T, path string, members map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	zw := zip.NewWriter(out)
	for name, f := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		in, err := os.Open(f)
		require.NoError(t, err)
		_, err = io.Copy(w, in)
		in.Close()
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}
