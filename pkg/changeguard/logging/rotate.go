package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// RotationConfig controls when the log file is rolled over and which
// archives are kept.
type RotationConfig struct {
	// MaxSize in bytes before a roll. Zero uses 10 MiB.
	MaxSize int64
	// MaxAge in days for archives. Zero keeps them regardless of age.
	MaxAge int
	// MaxBackups is the number of archives kept. Zero keeps all.
	MaxBackups int
	// Daily also rolls when the calendar day changes.
	Daily bool
}

// DefaultRotationConfig returns the rotation settings used when none are
// configured.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 << 20,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// RotatingWriter appends to a log file and rolls it into numbered archives,
// logrotate style: "changeguard.log.1" is the newest, higher numbers are
// older. Each write holds an advisory flock so several changeguard processes
// can share the file.
type RotatingWriter struct {
	path string
	cfg  RotationConfig

	mu  sync.Mutex
	seg *segment
}

// NewRotatingWriter opens path for appending, creating parent directories,
// and prunes archives that fall outside cfg.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	seg, err := openSegment(path)
	if err != nil {
		return nil, err
	}
	w := &RotatingWriter{path: path, cfg: cfg, seg: seg}
	w.prune()
	return w, nil
}

// Write implements io.Writer.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.seg == nil {
		return 0, os.ErrClosed
	}
	now := time.Now()
	if w.seg.full(len(p), w.cfg, now) {
		if err := w.roll(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}
	return w.seg.append(p, now)
}

// Close syncs and closes the file. Further writes fail with os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.seg == nil {
		return nil
	}
	err := w.seg.close()
	w.seg = nil
	return err
}

// Rotated lists the archives, newest first.
func (w *RotatingWriter) Rotated() []string {
	nums := w.archiveNumbers()
	out := make([]string, 0, len(nums))
	for i := len(nums) - 1; i >= 0; i-- {
		out = append(out, w.archive(nums[i]))
	}
	return out
}

// roll archives the current file as number 1 and starts an empty one.
func (w *RotatingWriter) roll() error {
	if err := w.seg.close(); err != nil {
		return err
	}
	w.seg = nil

	// Oldest first so no rename lands on an existing archive.
	for _, n := range w.archiveNumbers() {
		if err := os.Rename(w.archive(n), w.archive(n+1)); err != nil {
			return fmt.Errorf("shifting log archive: %w", err)
		}
	}
	if err := os.Rename(w.path, w.archive(1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("archiving log file: %w", err)
	}

	seg, err := openSegment(w.path)
	if err != nil {
		return err
	}
	w.seg = seg
	w.prune()
	return nil
}

// prune removes archives numbered above MaxBackups or older than MaxAge.
func (w *RotatingWriter) prune() {
	cutoff := time.Now().AddDate(0, 0, -w.cfg.MaxAge)
	for _, n := range w.archiveNumbers() {
		name := w.archive(n)
		expired := false
		if w.cfg.MaxAge > 0 {
			if info, err := os.Stat(name); err == nil && info.ModTime().Before(cutoff) {
				expired = true
			}
		}
		if expired || (w.cfg.MaxBackups > 0 && n > w.cfg.MaxBackups) {
			_ = os.Remove(name)
		}
	}
}

func (w *RotatingWriter) archive(n int) string {
	return w.path + "." + strconv.Itoa(n)
}

// archiveNumbers returns the numbers of existing archives, highest first.
func (w *RotatingWriter) archiveNumbers() []int {
	entries, err := os.ReadDir(filepath.Dir(w.path))
	if err != nil {
		return nil
	}
	prefix := filepath.Base(w.path) + "."

	var nums []int
	for _, e := range entries {
		suffix, ok := strings.CutPrefix(e.Name(), prefix)
		if !ok || e.IsDir() {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > 0 {
			nums = append(nums, n)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(nums)))
	return nums
}

// segment is the log file currently written to.
type segment struct {
	f    *os.File
	size int64
	day  string
}

func openSegment(path string) (*segment, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	return &segment{f: f, size: info.Size(), day: dayOf(info.ModTime())}, nil
}

// full reports whether writing n more bytes at now needs a roll first. An
// empty segment is never rolled.
func (s *segment) full(n int, cfg RotationConfig, now time.Time) bool {
	if s.size == 0 {
		return false
	}
	return s.size+int64(n) > cfg.MaxSize || (cfg.Daily && s.day != dayOf(now))
}

func (s *segment) append(p []byte, now time.Time) (int, error) {
	fd := int(s.f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("locking log file: %w", err)
	}
	defer func() { _ = unix.Flock(fd, unix.LOCK_UN) }()

	if s.size == 0 {
		s.day = dayOf(now)
	}
	n, err := s.f.Write(p)
	s.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing log file: %w", err)
	}
	return n, nil
}

func (s *segment) close() error {
	syncErr := s.f.Sync()
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return nil
}

func dayOf(t time.Time) string {
	return t.Format(time.DateOnly)
}
