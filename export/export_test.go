package export_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxitrack/oxitrack/export"
	"github.com/oxitrack/oxitrack/timeseries"
)

func sampleTable(t *testing.T) *timeseries.Table {
	t.Helper()
	s := timeseries.NewSet("TIME", "PULSE", "SPO2", "PLETH")
	require.NoError(t, s.Append(0, 72, 98, 40))
	require.NoError(t, s.Append(0.5, 75, 97, 42))
	return s.Table()
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestWrite(t *testing.T) {
	t.Run("writes a tab-delimited table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.csv")

		got, err := export.Write(sampleTable(t), &export.Options{Path: path}, quietLogger())
		require.NoError(t, err)
		assert.Equal(t, path, got)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "TIME\tPULSE\tSPO2\tPLETH\n0\t72\t98\t40\n0.5\t75\t97\t42\n", string(data))
	})

	t.Run("accepts the txt extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.txt")

		_, err := export.Write(sampleTable(t), &export.Options{Path: path}, quietLogger())
		require.NoError(t, err)
	})

	t.Run("generates a prefixed name when no path is given", func(t *testing.T) {
		folder := filepath.Join(t.TempDir(), "Records")

		path, err := export.Write(sampleTable(t), &export.Options{Folder: folder, Prefix: "patient42"}, quietLogger())
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(filepath.Base(path), "patient42_"))
		assert.True(t, strings.HasSuffix(path, ".csv"))
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("creates the destination folder when absent", func(t *testing.T) {
		folder := filepath.Join(t.TempDir(), "a", "b")
		path := filepath.Join(folder, "out.csv")

		_, err := export.Write(sampleTable(t), &export.Options{Path: path}, quietLogger())
		require.NoError(t, err)

		_, err = os.Stat(folder)
		assert.NoError(t, err)
	})
}

func TestWriteRejections(t *testing.T) {
	t.Run("rejects unrecognized extensions without touching the filesystem", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "data.json")

		_, err := export.Write(sampleTable(t), &export.Options{Path: path}, quietLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, export.ErrBadExtension)

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "no file may be created")
	})

	t.Run("never overwrites an existing destination", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "once.csv")
		opts := &export.Options{Path: path}

		_, err := export.Write(sampleTable(t), opts, quietLogger())
		require.NoError(t, err)
		first, err := os.ReadFile(path)
		require.NoError(t, err)

		_, err = export.Write(sampleTable(t), opts, quietLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, export.ErrAlreadyExists)

		second, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, first, second, "first file's contents must be untouched")
	})

	t.Run("reports an uncreatable folder", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		// A folder path that collides with an existing file cannot be created.
		path := filepath.Join(blocker, "nested", "out.csv")
		_, err := export.Write(sampleTable(t), &export.Options{Path: path}, quietLogger())
		require.Error(t, err)
		assert.ErrorIs(t, err, export.ErrFolderUncreatable)
	})
}
