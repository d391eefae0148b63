package writer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestWriterWritesRowsNoRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.csv")
	w := New(Config{
		Path:          path,
		FlushInterval: 20 * time.Millisecond,
		Formatter:     func(row any) string { return row.(string) },
	})
	require.NoError(t, w.Start())
	for i := 0; i < 5; i++ {
		require.True(t, w.Write("row"))
	}
	w.Stop()

	require.Equal(t, StateStopped, w.State())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 5, countLines(string(data)))
}

func TestWriterHeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.csv")
	w := New(Config{
		Path:          path,
		FlushInterval: 20 * time.Millisecond,
		Header:        "col_a,col_b",
		Formatter:     func(row any) string { return row.(string) },
	})
	require.NoError(t, w.Start())
	w.Write("1,2")
	w.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "col_a,col_b\n1,2\n", string(data))
}

func TestWriterDropsOnFullQueue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.csv")
	w := New(Config{
		Path:          path,
		QueueCapacity: 1,
		FlushInterval: time.Second,
		Formatter:     func(row any) string { return row.(string) },
	})
	require.NoError(t, w.Start())
	require.True(t, w.Write("a"))
	// Keep pushing fast enough that the queue stays full at least once.
	dropped := false
	for i := 0; i < 100 && !dropped; i++ {
		if !w.Write("b") {
			dropped = true
		}
	}
	w.Stop()
	require.True(t, dropped || w.Statistics().SamplesDropped > 0)
}

func TestWriterRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.csv")
	w := New(Config{
		Path:            path,
		FlushInterval:   10 * time.Millisecond,
		RotateSizeBytes: 20,
		Formatter:       func(row any) string { return "123456789" },
	})
	require.NoError(t, w.Start())
	for i := 0; i < 10; i++ {
		w.Write("x")
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()

	matches, err := filepath.Glob(filepath.Join(dir, "test*.csv"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(matches), 2)
}

func TestWriterWriteReturnsFalseWhenNotRunning(t *testing.T) {
	w := New(Config{Path: filepath.Join(t.TempDir(), "test.csv")})
	require.False(t, w.Write("x"))
}

func countLines(s string) int {
	n := 0
	for _, c := range s {
		if c == '\n' {
			n++
		}
	}
	return n
}
