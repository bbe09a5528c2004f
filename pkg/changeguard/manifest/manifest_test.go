package manifest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sample() *Manifest {
	m := New()
	m.Files["a.txt"] = "0123456789abcdef"
	m.Files["dir/with space/b.bin"] = "1e10"
	m.Files["numeric"] = "123456"
	m.Files["yes"] = "true"
	m.Meta = Meta{
		RunID:             "6f1c",
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		DiscoveryMethod:   "walk",
		HashCommand:       "xxhsum -H0",
		Ignored:           []string{"b.txt"},
		MaxWorkers:        10,
		IgnoreRuleSources: map[string][]string{"~ignorelines": {"b.txt"}},
	}
	return m
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	want := sample()
	want.SetBackup("/tmp/backup")

	var buf bytes.Buffer
	if err := Save(&buf, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(got.Files) != len(want.Files) {
		t.Fatalf("Files has %d entries, want %d", len(got.Files), len(want.Files))
	}
	for p, h := range want.Files {
		if got.Files[p] != h {
			t.Errorf("Files[%q] = %q, want %q", p, got.Files[p], h)
		}
	}

	dir, ok := got.Backup()
	if !ok || dir != "/tmp/backup" {
		t.Errorf("Backup() = %q, %v", dir, ok)
	}
	if got.Meta.HashCommand != "xxhsum -H0" || got.Meta.MaxWorkers != 10 || got.Meta.DiscoveryMethod != "walk" {
		t.Errorf("Meta = %+v", got.Meta)
	}
	if !got.Meta.CreatedAt.Equal(want.Meta.CreatedAt) {
		t.Errorf("CreatedAt = %v", got.Meta.CreatedAt)
	}
}

func TestSave_NullBackup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Save(&buf, New()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"files: {}", "backup_dir: null", "meta:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	m, err := Load(strings.NewReader(out))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := m.Backup(); ok {
		t.Error("Backup() reported a directory for null")
	}
	if len(m.Files) != 0 {
		t.Errorf("Files = %v", m.Files)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ""},
		{"missing files", "backup_dir: null\n"},
		{"null files", "files: null\n"},
		{"files is a list", "files:\n  - a.txt\n  - b.txt\n"},
		{"files is a scalar", "files: a.txt\n"},
		{"nested value", "files:\n  a.txt:\n    hash: x\n"},
		{"absolute path", "files:\n  /etc/passwd: abc\n"},
		{"escapes root", "files:\n  ../outside: abc\n"},
		{"not yaml", "files: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(strings.NewReader(tt.doc))
			if !errors.Is(err, ErrInvalidManifest) {
				t.Errorf("Load() error = %v, want ErrInvalidManifest", err)
			}
		})
	}
}

func TestLoad_LegacyKeys(t *testing.T) {
	t.Parallel()

	doc := `files:
  a.txt: abc123
tmp_backup_dir: /var/tmp/cg
_meta_unused:
  directory: /src
  method: initial_iterdir
  hash_cmd: xxhsum -H0
  ignored:
  - b.txt
  max_workers: 4
  ignore_metas:
    ~ignorelines: []
`
	m, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Files["a.txt"] != "abc123" {
		t.Errorf("Files = %v", m.Files)
	}
	if dir, ok := m.Backup(); !ok || dir != "/var/tmp/cg" {
		t.Errorf("Backup() = %q, %v", dir, ok)
	}
	if m.Meta.DiscoveryMethod != "initial_iterdir" || m.Meta.MaxWorkers != 4 || m.Meta.HashCommand != "xxhsum -H0" {
		t.Errorf("Meta = %+v", m.Meta)
	}
}

func TestLoad_MetaIsNotValidated(t *testing.T) {
	t.Parallel()

	m, err := Load(strings.NewReader("files:\n  a: b\nmeta:\n  unknown_key: 1\n  max_workers: 0\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Files["a"] != "b" {
		t.Errorf("Files = %v", m.Files)
	}
}

func TestWriteFileReadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "audit.yaml")

	want := sample()
	if err := WriteFile(path, want); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(got.Files) != len(want.Files) {
		t.Errorf("Files = %v", got.Files)
	}

	if _, err := ReadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("ReadFile() of missing file succeeded")
	}
}

func TestPaths(t *testing.T) {
	t.Parallel()

	m := New()
	m.Files["b"] = "2"
	m.Files["a/z"] = "1"
	m.Files["a"] = "0"

	got := m.Paths()
	want := []string{"a", "a/z", "b"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}
