package output

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineSinkWritesToFile(t *testing.T) {
	dir := t.TempDir()

	sink := NewLineSink(&LineSinkConfig{
		Device:     "/dev/ttyUSB0",
		BasePath:   dir,
		MaxSizeMB:  1,
		MaxBackups: 1,
		Logger:     slog.Default(),
	})
	defer sink.Close()

	require.NoError(t, sink.WriteLine("1.0, 2.0"))
	require.NoError(t, sink.WriteLine("3.0, 4.0\n"))

	data, err := os.ReadFile(filepath.Join(dir, "dev-ttyUSB0.log"))
	require.NoError(t, err)
	require.Equal(t, "1.0, 2.0\n3.0, 4.0\n", string(data))
}

func TestLineSinkCloseIdempotent(t *testing.T) {
	sink := NewLineSink(&LineSinkConfig{
		Device:   "COM3",
		BasePath: t.TempDir(),
		Logger:   slog.Default(),
	})
	require.NoError(t, sink.WriteLine("hello"))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
}
