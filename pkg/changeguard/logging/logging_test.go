package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    log.Level
		wantErr bool
	}{
		{"debug", log.DebugLevel, false},
		{"INFO", log.InfoLevel, false},
		{"warning", log.WarnLevel, false},
		{" error ", log.ErrorLevel, false},
		{"fatal", log.InfoLevel, true},
		{"loud", log.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidLevel, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

// The logging tests share global state and must not run in parallel.

func TestGet_SilentBeforeInit(t *testing.T) {
	require.NoError(t, Close())

	l := Get("quiet")
	assert.Equal(t, "quiet", l.Component())
	l.Info("nothing happens")
	l.With("k", "v").Error("still nothing")
}

func TestInit_WritesFileAndConsole(t *testing.T) {
	t.Cleanup(func() { _ = Close() })

	path := filepath.Join(t.TempDir(), "logs", "changeguard.log")
	var console bytes.Buffer

	early := Get("hasher")

	require.NoError(t, Init(Config{
		Level:        "debug",
		Path:         path,
		Components:   map[string]string{"noisy": "error"},
		ConsoleLevel: "warn",
		Console:      &console,
	}))

	early.Debug("hashing file", "path", "a.txt")
	Get("noisy").Info("suppressed")
	Get("audit").With("run", "r1").Warn("mismatch", "path", "b.txt")

	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "hashing file")
	assert.Contains(t, content, "path=a.txt")
	assert.Contains(t, content, "run=r1")
	assert.NotContains(t, content, "suppressed")

	assert.Contains(t, console.String(), "mismatch")
	assert.NotContains(t, console.String(), "hashing file")
}

func TestInit_InvalidLevels(t *testing.T) {
	t.Cleanup(func() { _ = Close() })
	dir := t.TempDir()

	err := Init(Config{Level: "verbose", Path: filepath.Join(dir, "a.log")})
	assert.ErrorIs(t, err, ErrInvalidLevel)

	err = Init(Config{Path: filepath.Join(dir, "b.log"), Components: map[string]string{"x": "nope"}})
	assert.ErrorIs(t, err, ErrInvalidLevel)

	err = Init(Config{Path: filepath.Join(dir, "c.log"), ConsoleLevel: "nope"})
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestRotatingWriter_RotatesBySize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "size.log")
	w, err := NewRotatingWriter(path, RotationConfig{MaxSize: 256, MaxBackups: 3})
	require.NoError(t, err)

	line := []byte(strings.Repeat("x", 63) + "\n")
	for i := 0; i < 40; i++ {
		_, err := w.Write(line)
		require.NoError(t, err)
	}

	rotated := w.Rotated()
	require.NoError(t, w.Close())

	assert.Len(t, rotated, 3, "old files beyond MaxBackups are pruned")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(256))
}

func TestRotatingWriter_KeepsAllWithoutLimit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "all.log")
	w, err := NewRotatingWriter(path, RotationConfig{MaxSize: 10})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := w.Write([]byte("0123456789"))
		require.NoError(t, err)
	}
	assert.Len(t, w.Rotated(), 4)
	require.NoError(t, w.Close())
}

func TestRotatingWriter_NumbersArchivesNewestFirst(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seq.log")
	w, err := NewRotatingWriter(path, RotationConfig{MaxSize: 5})
	require.NoError(t, err)

	for _, chunk := range []string{"aaaaa", "bbbbb", "ccccc"} {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	assert.Equal(t, []string{path + ".1", path + ".2"}, w.Rotated())
	for file, want := range map[string]string{path: "ccccc", path + ".1": "bbbbb", path + ".2": "aaaaa"} {
		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Equal(t, want, string(data), file)
	}
}

func TestRotatingWriter_PrunesByAge(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "age.log")
	old := filepath.Join(dir, "age.log.1")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
	past := time.Now().AddDate(0, 0, -40)
	require.NoError(t, os.Chtimes(old, past, past))

	w, err := NewRotatingWriter(path, RotationConfig{MaxAge: 30})
	require.NoError(t, err)
	defer w.Close()

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	t.Parallel()

	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "c.log"), RotationConfig{})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
